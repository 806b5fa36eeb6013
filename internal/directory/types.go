package directory

// Attr names one entry of the attribute bag. The backing store has no
// first-class fields for most SCIM attributes; they live in a flat
// string-keyed bag on the native record, one key per SCIM field,
// first-list-element-is-value convention. Keeping the key set closed here
// (rather than scattering string literals) is what makes the mapping
// round-trip safe.
type Attr string

const (
	AttrExternalID         Attr = "externalId"
	AttrDisplayName        Attr = "displayName"
	AttrNickName           Attr = "nickName"
	AttrProfileURL         Attr = "profileUrl"
	AttrTitle              Attr = "title"
	AttrUserType           Attr = "userType"
	AttrLocale             Attr = "locale"
	AttrTimezone           Attr = "timezone"
	AttrPhoneNumber        Attr = "phoneNumber"
	AttrEmployeeNumber     Attr = "employeeNumber"
	AttrCostCenter         Attr = "costCenter"
	AttrOrganization       Attr = "organization"
	AttrDivision           Attr = "division"
	AttrDepartment         Attr = "department"
	AttrManagerID          Attr = "managerId"
	AttrManagerDisplayName Attr = "managerDisplayName"
)

// Attributes is the native record's attribute bag in the backing store's
// wire shape.
type Attributes map[string][]string

// First returns the first value stored under key, or "".
func (a Attributes) First(key Attr) string {
	if vs, ok := a[string(key)]; ok && len(vs) > 0 {
		return vs[0]
	}
	return ""
}

// Set stores a single value under key.
func (a Attributes) Set(key Attr, value string) {
	a[string(key)] = []string{value}
}

// Clear removes key and reports whether it was present.
func (a Attributes) Clear(key Attr) bool {
	if _, ok := a[string(key)]; !ok {
		return false
	}
	delete(a, string(key))
	return true
}

// Credential is a credential set on a native user at create time.
type Credential struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	Temporary bool   `json:"temporary"`
}

// PasswordCredential builds a non-temporary password credential.
func PasswordCredential(value string) Credential {
	return Credential{Type: "password", Value: value, Temporary: false}
}

// User is the backing store's native user record.
type User struct {
	ID               string       `json:"id,omitempty"`
	Username         string       `json:"username,omitempty"`
	Enabled          bool         `json:"enabled"`
	Email            string       `json:"email,omitempty"`
	EmailVerified    bool         `json:"emailVerified,omitempty"`
	FirstName        string       `json:"firstName,omitempty"`
	LastName         string       `json:"lastName,omitempty"`
	CreatedTimestamp int64        `json:"createdTimestamp,omitempty"`
	Attributes       Attributes   `json:"attributes,omitempty"`
	Credentials      []Credential `json:"credentials,omitempty"`
}

// Group is the backing store's native group record.
type Group struct {
	ID         string     `json:"id,omitempty"`
	Name       string     `json:"name,omitempty"`
	Attributes Attributes `json:"attributes,omitempty"`
}
