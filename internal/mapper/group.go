package mapper

import (
	"log/slog"
	"strings"

	"github.com/idgate/scim-bridge/internal/directory"
	"github.com/idgate/scim-bridge/internal/scim"
)

// GroupMapper translates between SCIM groups and native group records.
// Membership is never carried on the record itself; the service layer
// reconciles it through dedicated membership calls.
type GroupMapper struct {
	baseURL string
	logger  *slog.Logger
}

// NewGroupMapper creates a group mapper.
func NewGroupMapper(baseURL string, logger *slog.Logger) *GroupMapper {
	return &GroupMapper{baseURL: strings.TrimRight(baseURL, "/"), logger: logger}
}

// ToNative maps a SCIM group onto a native record. Unlike users, the group
// bag is merged rather than rebuilt: the only bag-resident group attribute
// is externalId and an update that omits it must not drop it.
func (m *GroupMapper) ToNative(sg *scim.Group, existing *directory.Group) *directory.Group {
	native := existing
	if native == nil {
		native = &directory.Group{}
	}
	if notBlank(sg.DisplayName) {
		native.Name = sg.DisplayName
	}
	if native.Attributes == nil {
		native.Attributes = directory.Attributes{}
	}
	if notBlank(sg.ExternalID) {
		native.Attributes.Set(directory.AttrExternalID, sg.ExternalID)
	}
	return native
}

// ToSCIM reconstructs a SCIM group from a native record and its resolved
// member users.
func (m *GroupMapper) ToSCIM(native *directory.Group, members []directory.User) *scim.Group {
	sg := scim.NewGroup()
	sg.ID = native.ID
	sg.DisplayName = native.Name
	sg.ExternalID = native.Attributes.First(directory.AttrExternalID)
	for _, u := range members {
		sg.Members = append(sg.Members, scim.Member{
			Value:   u.ID,
			Display: u.Username,
			Type:    "User",
			Ref:     m.baseURL + "/scim/v2/Users/" + u.ID,
		})
	}
	sg.Meta.Location = m.baseURL + "/scim/v2/Groups/" + native.ID
	return sg
}
