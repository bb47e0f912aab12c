package models

import (
	"strings"
	"time"
)

// RoleAdmin grants episode management.
const RoleAdmin = "ROLE_ADMIN"

// User represents a known commenter (mapped from identity provider claims)
type User struct {
	ID        string    `bson:"_id,omitempty" json:"id"`
	Sub       string    `bson:"sub" json:"sub"` // OIDC subject
	Email     string    `bson:"email" json:"email"`
	Name      string    `bson:"name" json:"name"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
	UpdatedAt time.Time `bson:"updatedAt" json:"updatedAt"`
}

// Principal is the authenticated caller of a single request.
type Principal struct {
	Sub   string   `json:"sub"`
	Email string   `json:"email,omitempty"`
	Name  string   `json:"name,omitempty"`
	Roles []string `json:"roles,omitempty"`
}

// HasRole reports whether the principal holds role.
func (p *Principal) HasRole(role string) bool {
	if p == nil {
		return false
	}
	for _, r := range p.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// DisplayName is what gets shown next to a comment.
func (p *Principal) DisplayName() string {
	switch {
	case p == nil:
		return ""
	case p.Name != "":
		return p.Name
	case p.Email != "":
		return p.Email
	}
	return p.Sub
}

// User returns the profile record for this principal.
func (p *Principal) User() *User {
	return &User{Sub: p.Sub, Email: p.Email, Name: p.Name}
}

// PrincipalFromClaims maps token claims to a Principal. Returns nil when the
// claims carry no subject. Roles are read from "roles" and Keycloak's
// "realm_access.roles" and normalized to the ROLE_* convention
// ("admin" -> "ROLE_ADMIN").
func PrincipalFromClaims(claims map[string]interface{}) *Principal {
	sub, _ := claims["sub"].(string)
	if sub == "" {
		return nil
	}
	p := &Principal{Sub: sub}
	p.Email, _ = claims["email"].(string)
	p.Name, _ = claims["name"].(string)
	if p.Name == "" {
		p.Name, _ = claims["preferred_username"].(string)
	}

	seen := map[string]bool{}
	add := func(raw interface{}) {
		list, ok := raw.([]interface{})
		if !ok {
			if ss, ok := raw.([]string); ok {
				for _, s := range ss {
					list = append(list, s)
				}
			}
		}
		for _, v := range list {
			s, ok := v.(string)
			if !ok {
				continue
			}
			role := NormalizeRole(s)
			if role == "" || seen[role] {
				continue
			}
			seen[role] = true
			p.Roles = append(p.Roles, role)
		}
	}
	add(claims["roles"])
	if ra, ok := claims["realm_access"].(map[string]interface{}); ok {
		add(ra["roles"])
	}
	return p
}

// NormalizeRole upper-cases a role name and adds the ROLE_ prefix when missing.
func NormalizeRole(role string) string {
	role = strings.ToUpper(strings.TrimSpace(role))
	role = strings.ReplaceAll(role, "-", "_")
	if role == "" {
		return ""
	}
	if !strings.HasPrefix(role, "ROLE_") {
		role = "ROLE_" + role
	}
	return role
}
