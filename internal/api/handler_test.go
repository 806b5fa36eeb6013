package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/idgate/scim-bridge/internal/api"
	"github.com/idgate/scim-bridge/internal/mapper"
	"github.com/idgate/scim-bridge/internal/patch"
	"github.com/idgate/scim-bridge/internal/reconcile"
	"github.com/idgate/scim-bridge/internal/service"
	"github.com/idgate/scim-bridge/internal/testutil"
)

// testEnv holds shared state for SCIM endpoint tests.
type testEnv struct {
	handler http.Handler
	dir     *testutil.FakeDirectory
	token   string
}

func setup(t *testing.T) *testEnv {
	t.Helper()
	dir := testutil.NewFakeDirectory()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	rec := reconcile.New(dir, logger)
	engine := patch.NewEngine(dir, rec, logger)
	users := service.NewUserService(dir, mapper.NewUserMapper(dir, "", logger), engine, patch.ModeLenient, logger)
	groups := service.NewGroupService(dir, mapper.NewGroupMapper("", logger), engine, rec, patch.ModeLenient, logger)

	token := "test-token-" + testutil.NewID()
	auth, err := api.NewAuthenticator(context.Background(), api.AuthConfig{
		StaticTokens: map[string]string{"test-idp": token},
		RateLimit:    1000,
		RateWindow:   time.Minute,
	}, logger)
	require.NoError(t, err)

	return &testEnv{
		handler: api.NewHandler(users, groups, auth, logger),
		dir:     dir,
		token:   token,
	}
}

func (e *testEnv) request(method, path string, body ...any) *httptest.ResponseRecorder {
	var reqBody *bytes.Buffer
	if len(body) > 0 && body[0] != nil {
		b, _ := json.Marshal(body[0])
		reqBody = bytes.NewBuffer(b)
	} else {
		reqBody = &bytes.Buffer{}
	}

	req := httptest.NewRequest(method, "/scim/v2"+path, reqBody)
	req.Header.Set("Authorization", "Bearer "+e.token)
	req.Header.Set("Content-Type", "application/scim+json")

	w := httptest.NewRecorder()
	e.handler.ServeHTTP(w, req)
	return w
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var out map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	return out
}

func (e *testEnv) createUser(t *testing.T, userName string) string {
	t.Helper()
	w := e.request("POST", "/Users", map[string]any{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": userName,
	})
	require.Equal(t, http.StatusCreated, w.Code)
	return decode(t, w)["id"].(string)
}

// --- Auth Tests ---

func TestAuth_MissingToken(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest("GET", "/scim/v2/Users", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_InvalidToken(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest("GET", "/scim/v2/Users", nil)
	req.Header.Set("Authorization", "Bearer wrong-token")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuth_ValidToken(t *testing.T) {
	env := setup(t)
	w := env.request("GET", "/Users")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestAuth_WrongContentType(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest("POST", "/scim/v2/Users", bytes.NewBufferString("<user/>"))
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", "application/xml")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnsupportedMediaType, w.Code)
}

func TestHealth_NoAuth(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest("GET", "/health", nil)
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
}

// --- Discovery Tests ---

func TestServiceProviderConfig(t *testing.T) {
	env := setup(t)
	w := env.request("GET", "/ServiceProviderConfig")
	assert.Equal(t, http.StatusOK, w.Code)

	config := decode(t, w)
	assert.Contains(t, config["schemas"], "urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig")

	patchCfg := config["patch"].(map[string]any)
	assert.Equal(t, true, patchCfg["supported"])
	bulk := config["bulk"].(map[string]any)
	assert.Equal(t, false, bulk["supported"])
}

func TestSchemas(t *testing.T) {
	env := setup(t)
	w := env.request("GET", "/Schemas")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(3), decode(t, w)["totalResults"])
}

func TestResourceTypes(t *testing.T) {
	env := setup(t)
	w := env.request("GET", "/ResourceTypes")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(2), decode(t, w)["totalResults"])
}

// --- User Tests ---

func TestCreateUser_Success(t *testing.T) {
	env := setup(t)

	w := env.request("POST", "/Users", map[string]any{
		"schemas":    []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName":   "newuser@example.com",
		"externalId": "ext-123",
		"active":     true,
	})
	assert.Equal(t, http.StatusCreated, w.Code)
	assert.NotEmpty(t, w.Header().Get("Location"))
	assert.Equal(t, "application/scim+json", w.Header().Get("Content-Type"))

	created := decode(t, w)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "newuser@example.com", created["userName"])
	assert.Equal(t, "ext-123", created["externalId"])
	assert.Equal(t, true, created["active"])
}

func TestCreateUser_Conflict(t *testing.T) {
	env := setup(t)
	env.createUser(t, "dup@example.com")

	w := env.request("POST", "/Users", map[string]any{"userName": "dup@example.com"})
	assert.Equal(t, http.StatusConflict, w.Code)

	body := decode(t, w)
	assert.Contains(t, body["schemas"], "urn:ietf:params:scim:api:messages:2.0:Error")
	assert.Equal(t, "uniqueness", body["scimType"])
	assert.Equal(t, "409", body["status"])
}

func TestCreateUser_InvalidJSON(t *testing.T) {
	env := setup(t)
	req := httptest.NewRequest("POST", "/scim/v2/Users", bytes.NewBufferString("{not json"))
	req.Header.Set("Authorization", "Bearer "+env.token)
	req.Header.Set("Content-Type", "application/scim+json")
	w := httptest.NewRecorder()
	env.handler.ServeHTTP(w, req)
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalidSyntax", decode(t, w)["scimType"])
}

func TestGetUser_Success(t *testing.T) {
	env := setup(t)
	id := env.createUser(t, "getuser@example.com")

	w := env.request("GET", "/Users/"+id)
	assert.Equal(t, http.StatusOK, w.Code)

	fetched := decode(t, w)
	assert.Equal(t, id, fetched["id"])
	assert.Equal(t, "getuser@example.com", fetched["userName"])
}

func TestGetUser_NotFound(t *testing.T) {
	env := setup(t)
	w := env.request("GET", "/Users/"+testutil.NewID())
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Equal(t, "404", decode(t, w)["status"])
}

func TestListUsers_WithFilter(t *testing.T) {
	env := setup(t)
	env.createUser(t, "filtered@example.com")
	env.createUser(t, "other@example.com")

	w := env.request("GET", "/Users?filter=userName+eq+%22filtered%40example.com%22")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode(t, w)["totalResults"])
}

func TestReplaceUser_UpdateUserName(t *testing.T) {
	env := setup(t)
	id := env.createUser(t, "replace@example.com")

	w := env.request("PUT", "/Users/"+id, map[string]any{
		"schemas":  []string{"urn:ietf:params:scim:schemas:core:2.0:User"},
		"userName": "replaced@example.com",
		"active":   true,
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "replaced@example.com", decode(t, w)["userName"])
}

func TestPatchUser_Deactivate(t *testing.T) {
	env := setup(t)
	id := env.createUser(t, "patch@example.com")

	w := env.request("PATCH", "/Users/"+id, map[string]any{
		"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		"Operations": []map[string]any{
			{"op": "replace", "path": "active", "value": false},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, false, decode(t, w)["active"])
}

func TestPatchUser_EnterpriseAttribute(t *testing.T) {
	env := setup(t)
	id := env.createUser(t, "enterprise@example.com")

	w := env.request("PATCH", "/Users/"+id, map[string]any{
		"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		"Operations": []map[string]any{
			{
				"op":    "replace",
				"path":  "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User:department",
				"value": "Platform",
			},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	result := decode(t, w)
	ext := result["urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"].(map[string]any)
	assert.Equal(t, "Platform", ext["department"])
}

func TestDeleteUser_Success(t *testing.T) {
	env := setup(t)
	id := env.createUser(t, "delete@example.com")

	w := env.request("DELETE", "/Users/"+id)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.request("GET", "/Users/"+id)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

// --- Group Tests ---

func TestCreateGroup_Success(t *testing.T) {
	env := setup(t)

	w := env.request("POST", "/Groups", map[string]any{
		"schemas":     []string{"urn:ietf:params:scim:schemas:core:2.0:Group"},
		"displayName": "Engineering",
		"externalId":  "grp-eng",
	})
	assert.Equal(t, http.StatusCreated, w.Code)

	created := decode(t, w)
	assert.NotEmpty(t, created["id"])
	assert.Equal(t, "Engineering", created["displayName"])
	assert.Equal(t, "grp-eng", created["externalId"])
}

func TestGetGroup_Success(t *testing.T) {
	env := setup(t)

	createResp := env.request("POST", "/Groups", map[string]any{"displayName": "Design"})
	require.Equal(t, http.StatusCreated, createResp.Code)
	groupID := decode(t, createResp)["id"].(string)

	w := env.request("GET", "/Groups/"+groupID)
	assert.Equal(t, http.StatusOK, w.Code)

	fetched := decode(t, w)
	assert.Equal(t, groupID, fetched["id"])
	assert.Equal(t, "Design", fetched["displayName"])
}

func TestPatchGroup_AddMember(t *testing.T) {
	env := setup(t)
	userID := env.createUser(t, "member@example.com")

	createResp := env.request("POST", "/Groups", map[string]any{"displayName": "Team"})
	require.Equal(t, http.StatusCreated, createResp.Code)
	groupID := decode(t, createResp)["id"].(string)

	w := env.request("PATCH", "/Groups/"+groupID, map[string]any{
		"schemas": []string{"urn:ietf:params:scim:api:messages:2.0:PatchOp"},
		"Operations": []map[string]any{
			{"op": "add", "path": "members", "value": []map[string]any{{"value": userID}}},
		},
	})
	assert.Equal(t, http.StatusOK, w.Code)

	result := decode(t, w)
	members := result["members"].([]any)
	require.Len(t, members, 1)
	assert.Equal(t, userID, members[0].(map[string]any)["value"])
	assert.Equal(t, []string{userID}, env.dir.MemberIDs(groupID))
}

func TestReplaceGroup_ReconcilesMembers(t *testing.T) {
	env := setup(t)
	a := env.createUser(t, "a@example.com")
	b := env.createUser(t, "b@example.com")

	createResp := env.request("POST", "/Groups", map[string]any{
		"displayName": "Team",
		"members":     []map[string]any{{"value": a}},
	})
	require.Equal(t, http.StatusCreated, createResp.Code)
	groupID := decode(t, createResp)["id"].(string)

	w := env.request("PUT", "/Groups/"+groupID, map[string]any{
		"displayName": "Team",
		"members":     []map[string]any{{"value": b}},
	})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, []string{b}, env.dir.MemberIDs(groupID))
}

func TestPatchGroup_MissingMemberReferent(t *testing.T) {
	env := setup(t)

	createResp := env.request("POST", "/Groups", map[string]any{"displayName": "Team"})
	require.Equal(t, http.StatusCreated, createResp.Code)
	groupID := decode(t, createResp)["id"].(string)

	w := env.request("PATCH", "/Groups/"+groupID, map[string]any{
		"Operations": []map[string]any{
			{"op": "add", "path": "members", "value": []map[string]any{{"value": "ghost"}}},
		},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, "invalidValue", decode(t, w)["scimType"])
}

func TestDeleteGroup_Success(t *testing.T) {
	env := setup(t)

	createResp := env.request("POST", "/Groups", map[string]any{"displayName": "Gone"})
	require.Equal(t, http.StatusCreated, createResp.Code)
	groupID := decode(t, createResp)["id"].(string)

	w := env.request("DELETE", "/Groups/"+groupID)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = env.request("GET", "/Groups/"+groupID)
	assert.Equal(t, http.StatusNotFound, w.Code)
}
