package directory

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/idgate/scim-bridge/internal/fault"
)

// errNotFound marks a 404 from the admin API. Lookups translate it into an
// absent result; mutations translate it into a NoTarget fault.
var errNotFound = errors.New("not found")

// KeycloakConfig configures the Keycloak admin API client.
type KeycloakConfig struct {
	// ServerURL is the Keycloak base URL, e.g. https://kc.example.com.
	ServerURL string
	// Realm is the realm this bridge provisions into.
	Realm string
	// ClientID and ClientSecret identify the service account used for the
	// client_credentials grant against the realm's token endpoint.
	ClientID     string
	ClientSecret string
}

// Keycloak implements Directory against the Keycloak admin REST API.
type Keycloak struct {
	http      *http.Client
	adminBase string
}

// NewKeycloak builds a Keycloak client whose requests carry a service
// account token acquired via the client_credentials grant. Tokens are
// refreshed automatically by the oauth2 transport.
func NewKeycloak(ctx context.Context, cfg KeycloakConfig) *Keycloak {
	base := strings.TrimRight(cfg.ServerURL, "/")
	cc := clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/realms/" + cfg.Realm + "/protocol/openid-connect/token",
	}
	return &Keycloak{
		http:      cc.Client(ctx),
		adminBase: base + "/admin/realms/" + cfg.Realm,
	}
}

// do performs one admin API call. A nil out skips response decoding.
// Returns the response headers so callers can read Location on create.
func (k *Keycloak) do(ctx context.Context, method, path string, query url.Values, in, out any) (http.Header, error) {
	u := k.adminBase + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	var body io.Reader
	if in != nil {
		b, err := json.Marshal(in)
		if err != nil {
			return nil, fault.Internal("encode admin request", err)
		}
		body = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, fault.Internal("build admin request", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := k.http.Do(req)
	if err != nil {
		return nil, fault.Internal("call identity store", err)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return resp.Header, errNotFound
	case resp.StatusCode == http.StatusConflict:
		return resp.Header, fault.Uniqueness("identity store rejected conflicting resource: %s", readDetail(resp.Body))
	case resp.StatusCode < 200 || resp.StatusCode > 299:
		return resp.Header, fault.Internal(
			fmt.Sprintf("identity store returned %d: %s", resp.StatusCode, readDetail(resp.Body)), nil)
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.Header, fault.Internal("decode admin response", err)
		}
	}
	return resp.Header, nil
}

// readDetail extracts a short error detail from an admin error body.
func readDetail(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 512))
	var kcErr struct {
		ErrorMessage string `json:"errorMessage"`
	}
	if json.Unmarshal(b, &kcErr) == nil && kcErr.ErrorMessage != "" {
		return kcErr.ErrorMessage
	}
	return strings.TrimSpace(string(b))
}

// idFromLocation extracts the created resource id from a Location header.
func idFromLocation(h http.Header) (string, error) {
	loc := h.Get("Location")
	if loc == "" {
		return "", fault.Internal("identity store create response missing Location", nil)
	}
	return loc[strings.LastIndex(loc, "/")+1:], nil
}

func pageQuery(offset, limit int, search string) url.Values {
	q := url.Values{}
	q.Set("first", strconv.Itoa(offset))
	q.Set("max", strconv.Itoa(limit))
	if search != "" {
		q.Set("search", search)
	}
	return q
}

func (k *Keycloak) CreateUser(ctx context.Context, user *User) (string, error) {
	h, err := k.do(ctx, http.MethodPost, "/users", nil, user, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(h)
}

func (k *Keycloak) GetUserByID(ctx context.Context, id string) (*User, error) {
	var user User
	if _, err := k.do(ctx, http.MethodGet, "/users/"+url.PathEscape(id), nil, nil, &user); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &user, nil
}

func (k *Keycloak) GetUserByUsername(ctx context.Context, username string) (*User, error) {
	q := url.Values{}
	q.Set("username", username)
	q.Set("exact", "true")
	var users []User
	if _, err := k.do(ctx, http.MethodGet, "/users", q, nil, &users); err != nil {
		return nil, err
	}
	if len(users) == 0 {
		return nil, nil
	}
	return &users[0], nil
}

func (k *Keycloak) FindUsersByEmail(ctx context.Context, email string) ([]User, error) {
	q := url.Values{}
	q.Set("email", email)
	q.Set("exact", "true")
	var users []User
	if _, err := k.do(ctx, http.MethodGet, "/users", q, nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (k *Keycloak) UpdateUser(ctx context.Context, id string, user *User) error {
	if _, err := k.do(ctx, http.MethodPut, "/users/"+url.PathEscape(id), nil, user, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return fault.NoTarget("user %s not found in identity store", id)
		}
		return err
	}
	return nil
}

func (k *Keycloak) DeleteUser(ctx context.Context, id string) error {
	if _, err := k.do(ctx, http.MethodDelete, "/users/"+url.PathEscape(id), nil, nil, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return fault.NoTarget("user %s not found in identity store", id)
		}
		return err
	}
	return nil
}

func (k *Keycloak) ListUsers(ctx context.Context, offset, limit int, search string) ([]User, error) {
	var users []User
	if _, err := k.do(ctx, http.MethodGet, "/users", pageQuery(offset, limit, search), nil, &users); err != nil {
		return nil, err
	}
	return users, nil
}

func (k *Keycloak) CountUsers(ctx context.Context, search string) (int64, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	// The user count endpoint returns a bare integer body.
	var count int64
	if _, err := k.do(ctx, http.MethodGet, "/users/count", q, nil, &count); err != nil {
		return 0, err
	}
	return count, nil
}

func (k *Keycloak) CreateGroup(ctx context.Context, group *Group) (string, error) {
	h, err := k.do(ctx, http.MethodPost, "/groups", nil, group, nil)
	if err != nil {
		return "", err
	}
	return idFromLocation(h)
}

func (k *Keycloak) GetGroupByID(ctx context.Context, id string) (*Group, error) {
	var group Group
	if _, err := k.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(id), nil, nil, &group); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &group, nil
}

func (k *Keycloak) GetGroupByName(ctx context.Context, name string) (*Group, error) {
	q := url.Values{}
	q.Set("search", name)
	q.Set("exact", "true")
	var groups []Group
	if _, err := k.do(ctx, http.MethodGet, "/groups", q, nil, &groups); err != nil {
		return nil, err
	}
	// Group search matches on substrings even with exact=true on some
	// server versions, so filter for an exact name match.
	for i := range groups {
		if groups[i].Name == name {
			return &groups[i], nil
		}
	}
	return nil, nil
}

func (k *Keycloak) UpdateGroup(ctx context.Context, id string, group *Group) error {
	if _, err := k.do(ctx, http.MethodPut, "/groups/"+url.PathEscape(id), nil, group, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return fault.NoTarget("group %s not found in identity store", id)
		}
		return err
	}
	return nil
}

func (k *Keycloak) DeleteGroup(ctx context.Context, id string) error {
	if _, err := k.do(ctx, http.MethodDelete, "/groups/"+url.PathEscape(id), nil, nil, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return fault.NoTarget("group %s not found in identity store", id)
		}
		return err
	}
	return nil
}

func (k *Keycloak) ListGroups(ctx context.Context, offset, limit int, search string) ([]Group, error) {
	var groups []Group
	if _, err := k.do(ctx, http.MethodGet, "/groups", pageQuery(offset, limit, search), nil, &groups); err != nil {
		return nil, err
	}
	return groups, nil
}

func (k *Keycloak) CountGroups(ctx context.Context, search string) (int64, error) {
	q := url.Values{}
	if search != "" {
		q.Set("search", search)
	}
	var result struct {
		Count int64 `json:"count"`
	}
	if _, err := k.do(ctx, http.MethodGet, "/groups/count", q, nil, &result); err != nil {
		return 0, err
	}
	return result.Count, nil
}

func (k *Keycloak) ListGroupMembers(ctx context.Context, groupID string, offset, limit int) ([]User, error) {
	q := url.Values{}
	q.Set("first", strconv.Itoa(offset))
	if limit > 0 {
		q.Set("max", strconv.Itoa(limit))
	} else {
		// The members endpoint defaults to a small page; ask for
		// everything when the caller wants the full membership.
		q.Set("max", strconv.Itoa(-1))
	}
	var users []User
	if _, err := k.do(ctx, http.MethodGet, "/groups/"+url.PathEscape(groupID)+"/members", q, nil, &users); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return users, nil
}

func (k *Keycloak) AddGroupMember(ctx context.Context, userID, groupID string) error {
	path := "/users/" + url.PathEscape(userID) + "/groups/" + url.PathEscape(groupID)
	if _, err := k.do(ctx, http.MethodPut, path, nil, nil, nil); err != nil {
		if errors.Is(err, errNotFound) {
			return fault.NoTarget("user %s or group %s not found for membership add", userID, groupID)
		}
		return err
	}
	return nil
}

func (k *Keycloak) RemoveGroupMember(ctx context.Context, userID, groupID string) error {
	path := "/users/" + url.PathEscape(userID) + "/groups/" + url.PathEscape(groupID)
	if _, err := k.do(ctx, http.MethodDelete, path, nil, nil, nil); err != nil {
		// Absent membership is already-satisfied, not an error.
		if errors.Is(err, errNotFound) {
			return nil
		}
		return err
	}
	return nil
}

func (k *Keycloak) ListUserGroups(ctx context.Context, userID string) ([]Group, error) {
	var groups []Group
	if _, err := k.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/groups", nil, nil, &groups); err != nil {
		if errors.Is(err, errNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return groups, nil
}
