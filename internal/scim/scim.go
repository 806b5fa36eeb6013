// Package scim defines the SCIM v2 resource model and protocol payloads
// exchanged with identity-provider clients (RFC 7643 / RFC 7644).
package scim

import "time"

// SCIM schema URIs.
const (
	UserSchema           = "urn:ietf:params:scim:schemas:core:2.0:User"
	EnterpriseUserSchema = "urn:ietf:params:scim:schemas:extension:enterprise:2.0:User"
	GroupSchema          = "urn:ietf:params:scim:schemas:core:2.0:Group"
	ListResponseSchema   = "urn:ietf:params:scim:api:messages:2.0:ListResponse"
	PatchOpSchema        = "urn:ietf:params:scim:api:messages:2.0:PatchOp"
	ErrorSchema          = "urn:ietf:params:scim:api:messages:2.0:Error"
	SPConfigSchema       = "urn:ietf:params:scim:schemas:core:2.0:ServiceProviderConfig"
	ResourceTypeSchema   = "urn:ietf:params:scim:schemas:core:2.0:ResourceType"
	SchemaSchema         = "urn:ietf:params:scim:schemas:core:2.0:Schema"
)

// ContentType is the SCIM media type.
const ContentType = "application/scim+json"

// Meta holds SCIM resource metadata.
type Meta struct {
	ResourceType string     `json:"resourceType"`
	Created      *time.Time `json:"created,omitempty"`
	LastModified *time.Time `json:"lastModified,omitempty"`
	Location     string     `json:"location,omitempty"`
	Version      string     `json:"version,omitempty"`
}

// Name holds the components of a user's name.
type Name struct {
	Formatted       string `json:"formatted,omitempty"`
	FamilyName      string `json:"familyName,omitempty"`
	GivenName       string `json:"givenName,omitempty"`
	MiddleName      string `json:"middleName,omitempty"`
	HonorificPrefix string `json:"honorificPrefix,omitempty"`
	HonorificSuffix string `json:"honorificSuffix,omitempty"`
}

// MultiValued is one entry of a multi-valued attribute such as
// emails or phoneNumbers.
type MultiValued struct {
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
	Type    string `json:"type,omitempty"`
	Primary bool   `json:"primary,omitempty"`
}

// GroupReference is a read-only reference from a user to a group the user
// belongs to. Derived from the backing store, never settable through the
// User body.
type GroupReference struct {
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
	Ref     string `json:"$ref,omitempty"`
	Type    string `json:"type,omitempty"`
}

// Manager references a user's manager in the enterprise extension.
type Manager struct {
	Value       string `json:"value,omitempty"`
	Ref         string `json:"$ref,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
}

// EnterpriseUser is the enterprise user extension.
type EnterpriseUser struct {
	EmployeeNumber string   `json:"employeeNumber,omitempty"`
	CostCenter     string   `json:"costCenter,omitempty"`
	Organization   string   `json:"organization,omitempty"`
	Division       string   `json:"division,omitempty"`
	Department     string   `json:"department,omitempty"`
	Manager        *Manager `json:"manager,omitempty"`
}

// User is a SCIM user resource.
//
// Active is a pointer so an absent attribute (defaults to true) can be told
// apart from an explicit false. Password is write-only and never populated
// on read.
type User struct {
	Schemas           []string         `json:"schemas"`
	ID                string           `json:"id,omitempty"`
	ExternalID        string           `json:"externalId,omitempty"`
	UserName          string           `json:"userName,omitempty"`
	Name              *Name            `json:"name,omitempty"`
	DisplayName       string           `json:"displayName,omitempty"`
	NickName          string           `json:"nickName,omitempty"`
	ProfileURL        string           `json:"profileUrl,omitempty"`
	Title             string           `json:"title,omitempty"`
	UserType          string           `json:"userType,omitempty"`
	PreferredLanguage string           `json:"preferredLanguage,omitempty"`
	Locale            string           `json:"locale,omitempty"`
	Timezone          string           `json:"timezone,omitempty"`
	Active            *bool            `json:"active,omitempty"`
	Password          string           `json:"password,omitempty"`
	Emails            []MultiValued    `json:"emails,omitempty"`
	PhoneNumbers      []MultiValued    `json:"phoneNumbers,omitempty"`
	Groups            []GroupReference `json:"groups,omitempty"`
	EnterpriseUser    *EnterpriseUser  `json:"urn:ietf:params:scim:schemas:extension:enterprise:2.0:User,omitempty"`
	Meta              *Meta            `json:"meta,omitempty"`
}

// NewUser returns a user with schemas and meta fully initialized.
func NewUser() *User {
	return &User{
		Schemas: []string{UserSchema},
		Meta:    &Meta{ResourceType: "User"},
	}
}

// ActiveValue reports the effective active flag; absent means true.
func (u *User) ActiveValue() bool {
	return u.Active == nil || *u.Active
}

// Member is one member reference of a group. Type is "User" or "Group";
// group nesting is not implemented.
type Member struct {
	Value   string `json:"value,omitempty"`
	Display string `json:"display,omitempty"`
	Type    string `json:"type,omitempty"`
	Ref     string `json:"$ref,omitempty"`
}

// Group is a SCIM group resource.
type Group struct {
	Schemas     []string `json:"schemas"`
	ID          string   `json:"id,omitempty"`
	ExternalID  string   `json:"externalId,omitempty"`
	DisplayName string   `json:"displayName,omitempty"`
	Members     []Member `json:"members"`
	Meta        *Meta    `json:"meta,omitempty"`
}

// NewGroup returns a group with schemas and meta fully initialized.
func NewGroup() *Group {
	return &Group{
		Schemas: []string{GroupSchema},
		Members: []Member{},
		Meta:    &Meta{ResourceType: "Group"},
	}
}

// ListResponse is the SCIM list response envelope.
type ListResponse struct {
	Schemas      []string `json:"schemas"`
	TotalResults int64    `json:"totalResults"`
	StartIndex   int      `json:"startIndex"`
	ItemsPerPage int      `json:"itemsPerPage"`
	Resources    []any    `json:"Resources"`
}

// PatchOp is a single PATCH operation per RFC 7644 section 3.5.2.
type PatchOp struct {
	Op    string `json:"op"`
	Path  string `json:"path,omitempty"`
	Value any    `json:"value,omitempty"`
}

// PatchRequest is a SCIM PATCH request body.
type PatchRequest struct {
	Schemas    []string  `json:"schemas"`
	Operations []PatchOp `json:"Operations"`
}

// Error is the SCIM protocol error body. RFC 7644 types status as a string.
type Error struct {
	Schemas  []string `json:"schemas"`
	ScimType string   `json:"scimType,omitempty"`
	Detail   string   `json:"detail"`
	Status   string   `json:"status"`
}
