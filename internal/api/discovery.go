package api

import (
	"fmt"
	"net/http"

	"github.com/idgate/scim-bridge/internal/scim"
)

// baseURLFromRequest constructs the SCIM base URL from the request.
func baseURLFromRequest(r *http.Request) string {
	scheme := "https"
	if r.TLS == nil {
		if fwd := r.Header.Get("X-Forwarded-Proto"); fwd == "https" || fwd == "http" {
			scheme = fwd
		} else {
			scheme = "http"
		}
	}
	return fmt.Sprintf("%s://%s/scim/v2", scheme, r.Host)
}

// serviceProviderConfig handles GET /scim/v2/ServiceProviderConfig
func (h *Handler) serviceProviderConfig(w http.ResponseWriter, r *http.Request) {
	config := map[string]any{
		"schemas":          []string{scim.SPConfigSchema},
		"documentationUri": "https://tools.ietf.org/html/rfc7644",
		"patch": map[string]any{
			"supported": true,
		},
		"bulk": map[string]any{
			"supported":      false,
			"maxOperations":  0,
			"maxPayloadSize": 0,
		},
		"filter": map[string]any{
			"supported":  true,
			"maxResults": 200,
		},
		"changePassword": map[string]any{
			"supported": false,
		},
		"sort": map[string]any{
			"supported": false,
		},
		"etag": map[string]any{
			"supported": false,
		},
		"authenticationSchemes": []map[string]any{
			{
				"type":             "oauthbearertoken",
				"name":             "OAuth Bearer Token",
				"description":      "Authentication scheme using the OAuth Bearer Token Standard",
				"specUri":          "https://tools.ietf.org/html/rfc6750",
				"documentationUri": "https://tools.ietf.org/html/rfc6750",
				"primary":          true,
			},
		},
		"meta": map[string]any{
			"resourceType": "ServiceProviderConfig",
			"location":     baseURLFromRequest(r) + "/ServiceProviderConfig",
		},
	}

	writeJSON(w, http.StatusOK, config)
}

func stringAttr(name, description string) map[string]any {
	return map[string]any{
		"name":        name,
		"type":        "string",
		"multiValued": false,
		"description": description,
		"required":    false,
		"mutability":  "readWrite",
		"returned":    "default",
	}
}

// schemas handles GET /scim/v2/Schemas
func (h *Handler) schemas(w http.ResponseWriter, r *http.Request) {
	baseURL := baseURLFromRequest(r)

	userSchema := map[string]any{
		"schemas":     []string{scim.SchemaSchema},
		"id":          scim.UserSchema,
		"name":        "User",
		"description": "User Account",
		"attributes": []map[string]any{
			{
				"name":        "userName",
				"type":        "string",
				"multiValued": false,
				"description": "Unique identifier for the User, typically used by the user to directly authenticate.",
				"required":    true,
				"caseExact":   false,
				"mutability":  "readWrite",
				"returned":    "default",
				"uniqueness":  "server",
			},
			{
				"name":        "name",
				"type":        "complex",
				"multiValued": false,
				"description": "The components of the user's name.",
				"required":    false,
				"subAttributes": []map[string]any{
					stringAttr("formatted", "The full name."),
					stringAttr("familyName", "The family name of the user."),
					stringAttr("givenName", "The given name of the user."),
				},
				"mutability": "readWrite",
				"returned":   "default",
			},
			{
				"name":        "emails",
				"type":        "complex",
				"multiValued": true,
				"description": "Email addresses for the user.",
				"required":    false,
				"subAttributes": []map[string]any{
					stringAttr("value", "Email address."),
					stringAttr("type", "A label indicating the email type."),
					{
						"name":        "primary",
						"type":        "boolean",
						"multiValued": false,
						"description": "Indicates if this is the primary email.",
						"required":    false,
						"mutability":  "readWrite",
						"returned":    "default",
					},
				},
				"mutability": "readWrite",
				"returned":   "default",
			},
			{
				"name":        "active",
				"type":        "boolean",
				"multiValued": false,
				"description": "A Boolean value indicating the user's administrative status.",
				"required":    false,
				"mutability":  "readWrite",
				"returned":    "default",
			},
			stringAttr("externalId", "An identifier for the resource as defined by the provisioning client."),
			stringAttr("displayName", "The name of the user, suitable for display."),
			stringAttr("nickName", "The casual way to address the user."),
			stringAttr("title", "The user's title."),
			stringAttr("userType", "Identifies the relationship between the organization and the user."),
			stringAttr("preferredLanguage", "The user's preferred written or spoken language."),
			stringAttr("timezone", "The user's time zone in IANA database format."),
		},
		"meta": map[string]any{
			"resourceType": "Schema",
			"location":     baseURL + "/Schemas/" + scim.UserSchema,
		},
	}

	enterpriseSchema := map[string]any{
		"schemas":     []string{scim.SchemaSchema},
		"id":          scim.EnterpriseUserSchema,
		"name":        "EnterpriseUser",
		"description": "Enterprise User",
		"attributes": []map[string]any{
			stringAttr("employeeNumber", "A string identifier, typically numeric or alphanumeric, assigned to a person by the organization."),
			stringAttr("costCenter", "Identifies the name of a cost center."),
			stringAttr("organization", "Identifies the name of an organization."),
			stringAttr("division", "Identifies the name of a division."),
			stringAttr("department", "Identifies the name of a department."),
			{
				"name":        "manager",
				"type":        "complex",
				"multiValued": false,
				"description": "The user's manager.",
				"required":    false,
				"subAttributes": []map[string]any{
					stringAttr("value", "The id of the SCIM resource representing the user's manager."),
					stringAttr("displayName", "The displayName of the user's manager."),
				},
				"mutability": "readWrite",
				"returned":   "default",
			},
		},
		"meta": map[string]any{
			"resourceType": "Schema",
			"location":     baseURL + "/Schemas/" + scim.EnterpriseUserSchema,
		},
	}

	groupSchema := map[string]any{
		"schemas":     []string{scim.SchemaSchema},
		"id":          scim.GroupSchema,
		"name":        "Group",
		"description": "Group",
		"attributes": []map[string]any{
			{
				"name":        "displayName",
				"type":        "string",
				"multiValued": false,
				"description": "A human-readable name for the Group.",
				"required":    true,
				"caseExact":   false,
				"mutability":  "readWrite",
				"returned":    "default",
				"uniqueness":  "server",
			},
			{
				"name":        "members",
				"type":        "complex",
				"multiValued": true,
				"description": "A list of members of the Group.",
				"required":    false,
				"subAttributes": []map[string]any{
					{
						"name":        "value",
						"type":        "string",
						"multiValued": false,
						"description": "Identifier of the member.",
						"required":    false,
						"mutability":  "immutable",
						"returned":    "default",
					},
					{
						"name":        "$ref",
						"type":        "reference",
						"multiValued": false,
						"description": "The URI of the member resource.",
						"required":    false,
						"mutability":  "immutable",
						"returned":    "default",
					},
					{
						"name":        "display",
						"type":        "string",
						"multiValued": false,
						"description": "A human-readable name for the member.",
						"required":    false,
						"mutability":  "readOnly",
						"returned":    "default",
					},
				},
				"mutability": "readWrite",
				"returned":   "default",
			},
			stringAttr("externalId", "An identifier for the resource as defined by the provisioning client."),
		},
		"meta": map[string]any{
			"resourceType": "Schema",
			"location":     baseURL + "/Schemas/" + scim.GroupSchema,
		},
	}

	writeJSON(w, http.StatusOK, scim.ListResponse{
		Schemas:      []string{scim.ListResponseSchema},
		TotalResults: 3,
		StartIndex:   1,
		ItemsPerPage: 3,
		Resources:    []any{userSchema, enterpriseSchema, groupSchema},
	})
}

// resourceTypes handles GET /scim/v2/ResourceTypes
func (h *Handler) resourceTypes(w http.ResponseWriter, r *http.Request) {
	baseURL := baseURLFromRequest(r)

	userResourceType := map[string]any{
		"schemas":     []string{scim.ResourceTypeSchema},
		"id":          "User",
		"name":        "User",
		"description": "User Account",
		"endpoint":    "/Users",
		"schema":      scim.UserSchema,
		"schemaExtensions": []map[string]any{
			{
				"schema":   scim.EnterpriseUserSchema,
				"required": false,
			},
		},
		"meta": map[string]any{
			"resourceType": "ResourceType",
			"location":     baseURL + "/ResourceTypes/User",
		},
	}

	groupResourceType := map[string]any{
		"schemas":     []string{scim.ResourceTypeSchema},
		"id":          "Group",
		"name":        "Group",
		"description": "Group",
		"endpoint":    "/Groups",
		"schema":      scim.GroupSchema,
		"meta": map[string]any{
			"resourceType": "ResourceType",
			"location":     baseURL + "/ResourceTypes/Group",
		},
	}

	writeJSON(w, http.StatusOK, scim.ListResponse{
		Schemas:      []string{scim.ListResponseSchema},
		TotalResults: 2,
		StartIndex:   1,
		ItemsPerPage: 2,
		Resources:    []any{userResourceType, groupResourceType},
	})
}
