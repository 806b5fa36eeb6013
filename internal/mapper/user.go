// Package mapper translates between SCIM resources and the backing store's
// native records, in both directions.
package mapper

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/scim"
)

// bagField binds one flat SCIM user attribute to its bag key. The tables
// below are the single source of truth for the SCIM-field/bag-key mapping;
// both mapping directions and patch path resolution go through them.
type bagField struct {
	name string
	key  directory.Attr
	get  func(*scim.User) string
	set  func(*scim.User, string)
}

var userBagFields = []bagField{
	{"externalId", directory.AttrExternalID,
		func(u *scim.User) string { return u.ExternalID },
		func(u *scim.User, v string) { u.ExternalID = v }},
	{"displayName", directory.AttrDisplayName,
		func(u *scim.User) string { return u.DisplayName },
		func(u *scim.User, v string) { u.DisplayName = v }},
	{"nickName", directory.AttrNickName,
		func(u *scim.User) string { return u.NickName },
		func(u *scim.User, v string) { u.NickName = v }},
	{"profileUrl", directory.AttrProfileURL,
		func(u *scim.User) string { return u.ProfileURL },
		func(u *scim.User, v string) { u.ProfileURL = v }},
	{"title", directory.AttrTitle,
		func(u *scim.User) string { return u.Title },
		func(u *scim.User, v string) { u.Title = v }},
	{"userType", directory.AttrUserType,
		func(u *scim.User) string { return u.UserType },
		func(u *scim.User, v string) { u.UserType = v }},
	{"preferredLanguage", directory.AttrLocale,
		func(u *scim.User) string { return u.PreferredLanguage },
		func(u *scim.User, v string) { u.PreferredLanguage = v }},
	{"timezone", directory.AttrTimezone,
		func(u *scim.User) string { return u.Timezone },
		func(u *scim.User, v string) { u.Timezone = v }},
}

type enterpriseField struct {
	name string
	key  directory.Attr
	get  func(*scim.EnterpriseUser) string
	set  func(*scim.EnterpriseUser, string)
}

var enterpriseBagFields = []enterpriseField{
	{"employeeNumber", directory.AttrEmployeeNumber,
		func(e *scim.EnterpriseUser) string { return e.EmployeeNumber },
		func(e *scim.EnterpriseUser, v string) { e.EmployeeNumber = v }},
	{"costCenter", directory.AttrCostCenter,
		func(e *scim.EnterpriseUser) string { return e.CostCenter },
		func(e *scim.EnterpriseUser, v string) { e.CostCenter = v }},
	{"organization", directory.AttrOrganization,
		func(e *scim.EnterpriseUser) string { return e.Organization },
		func(e *scim.EnterpriseUser, v string) { e.Organization = v }},
	{"division", directory.AttrDivision,
		func(e *scim.EnterpriseUser) string { return e.Division },
		func(e *scim.EnterpriseUser, v string) { e.Division = v }},
	{"department", directory.AttrDepartment,
		func(e *scim.EnterpriseUser) string { return e.Department },
		func(e *scim.EnterpriseUser, v string) { e.Department = v }},
}

// AttrForPath resolves a flat SCIM attribute name (core or enterprise,
// after the enterprise URN prefix has been stripped) to its bag key.
// Unknown names map to themselves so lenient patches can still write and
// read back a consistent key.
func AttrForPath(name string) directory.Attr {
	for _, f := range userBagFields {
		if strings.EqualFold(f.name, name) {
			return f.key
		}
	}
	for _, f := range enterpriseBagFields {
		if strings.EqualFold(f.name, name) {
			return f.key
		}
	}
	switch {
	case strings.EqualFold(name, string(directory.AttrLocale)):
		return directory.AttrLocale
	case strings.EqualFold(name, string(directory.AttrManagerID)):
		return directory.AttrManagerID
	case strings.EqualFold(name, string(directory.AttrManagerDisplayName)):
		return directory.AttrManagerDisplayName
	}
	return directory.Attr(name)
}

// UserMapper translates between SCIM users and native user records.
type UserMapper struct {
	dir     directory.Directory
	baseURL string
	logger  *slog.Logger
}

// NewUserMapper creates a user mapper. baseURL prefixes meta.location and
// $ref values and may be empty.
func NewUserMapper(dir directory.Directory, baseURL string, logger *slog.Logger) *UserMapper {
	return &UserMapper{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// primaryOrFirst selects the entry flagged primary with a non-blank value,
// falling back to the first entry with a non-blank value.
func primaryOrFirst(entries []scim.MultiValued) string {
	for _, e := range entries {
		if e.Primary && strings.TrimSpace(e.Value) != "" {
			return e.Value
		}
	}
	for _, e := range entries {
		if strings.TrimSpace(e.Value) != "" {
			return e.Value
		}
	}
	return ""
}

func notBlank(s string) bool { return strings.TrimSpace(s) != "" }

// PrimaryEmail returns the address a SCIM user's emails fold down to: the
// primary entry if one is flagged, otherwise the first non-blank entry.
func PrimaryEmail(u *scim.User) string {
	return primaryOrFirst(u.Emails)
}

// ToNative maps a SCIM user onto a native record.
//
// With existing == nil (create) only fields present in the input are
// populated. With existing present (PUT) the semantics are full
// replacement: the attribute bag is rebuilt from scratch and any attribute
// absent from the input is cleared, not left untouched.
func (m *UserMapper) ToNative(su *scim.User, existing *directory.User) *directory.User {
	native := existing
	if native == nil {
		native = &directory.User{}
	}

	if notBlank(su.UserName) {
		native.Username = su.UserName
	}
	native.Enabled = su.ActiveValue()

	if su.Name != nil {
		if notBlank(su.Name.GivenName) {
			native.FirstName = su.Name.GivenName
		} else if existing != nil {
			native.FirstName = ""
		}
		if notBlank(su.Name.FamilyName) {
			native.LastName = su.Name.FamilyName
		} else if existing != nil {
			native.LastName = ""
		}
	} else if existing != nil {
		native.FirstName = ""
		native.LastName = ""
	}

	if email := primaryOrFirst(su.Emails); email != "" {
		native.Email = email
		// The store has no verification flow honored by SCIM;
		// provisioning is treated as implicit verification.
		native.EmailVerified = true
	} else if existing != nil {
		native.Email = ""
		native.EmailVerified = false
	}

	bag := directory.Attributes{}
	if existing == nil && native.Attributes != nil {
		bag = native.Attributes
	}
	for _, f := range userBagFields {
		if v := f.get(su); notBlank(v) {
			bag.Set(f.key, v)
		}
	}
	if phone := primaryOrFirst(su.PhoneNumbers); phone != "" {
		bag.Set(directory.AttrPhoneNumber, phone)
	}
	if ent := su.EnterpriseUser; ent != nil {
		for _, f := range enterpriseBagFields {
			if v := f.get(ent); notBlank(v) {
				bag.Set(f.key, v)
			}
		}
		if ent.Manager != nil {
			if notBlank(ent.Manager.Value) {
				bag.Set(directory.AttrManagerID, ent.Manager.Value)
			}
			if notBlank(ent.Manager.DisplayName) {
				bag.Set(directory.AttrManagerDisplayName, ent.Manager.DisplayName)
			}
		}
	}
	native.Attributes = bag

	return native
}

// ToSCIM reconstructs a SCIM user from a native record. Group membership is
// always derived fresh from the store; a failed membership lookup degrades
// to an empty list rather than failing the mapping.
func (m *UserMapper) ToSCIM(ctx context.Context, native *directory.User) *scim.User {
	su := scim.NewUser()
	su.ID = native.ID
	su.UserName = native.Username
	active := native.Enabled
	su.Active = &active

	name := scim.Name{GivenName: native.FirstName, FamilyName: native.LastName}
	var parts []string
	if notBlank(native.FirstName) {
		parts = append(parts, native.FirstName)
	}
	if notBlank(native.LastName) {
		parts = append(parts, native.LastName)
	}
	name.Formatted = strings.Join(parts, " ")
	if name.GivenName != "" || name.FamilyName != "" || name.Formatted != "" {
		su.Name = &name
	}

	if notBlank(native.Email) {
		su.Emails = []scim.MultiValued{{Value: native.Email, Type: "work", Primary: true}}
	}

	bag := native.Attributes
	for _, f := range userBagFields {
		if v := bag.First(f.key); v != "" {
			f.set(su, v)
		}
	}
	if phone := bag.First(directory.AttrPhoneNumber); phone != "" {
		su.PhoneNumbers = []scim.MultiValued{{Value: phone, Type: "work", Primary: true}}
	}

	ent := scim.EnterpriseUser{}
	entSet := false
	for _, f := range enterpriseBagFields {
		if v := bag.First(f.key); v != "" {
			f.set(&ent, v)
			entSet = true
		}
	}
	if managerID := bag.First(directory.AttrManagerID); managerID != "" {
		ent.Manager = &scim.Manager{
			Value:       managerID,
			DisplayName: bag.First(directory.AttrManagerDisplayName),
		}
		entSet = true
	}
	if entSet {
		su.EnterpriseUser = &ent
		su.Schemas = append(su.Schemas, scim.EnterpriseUserSchema)
	}

	if native.ID != "" {
		groups, err := m.dir.ListUserGroups(ctx, native.ID)
		if err != nil {
			m.logger.Warn("failed to resolve user groups", "user_id", native.ID, "error", err)
		}
		refs := make([]scim.GroupReference, 0, len(groups))
		for _, g := range groups {
			refs = append(refs, scim.GroupReference{
				Value:   g.ID,
				Display: g.Name,
				Ref:     m.baseURL + "/scim/v2/Groups/" + g.ID,
				Type:    "direct",
			})
		}
		su.Groups = refs
	}

	su.Meta.Location = m.baseURL + "/scim/v2/Users/" + native.ID
	if native.CreatedTimestamp > 0 {
		created := time.UnixMilli(native.CreatedTimestamp).UTC()
		su.Meta.Created = &created
		su.Meta.LastModified = &created
	}

	return su
}
