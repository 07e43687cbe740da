package models

// AuthenticatedUser is the identity derived from a verified token.
// It is built once per connection attempt and never mutated afterwards.
type AuthenticatedUser struct {
	ID          string   `json:"id"`
	Email       string   `json:"email"`
	Roles       []string `json:"roles"`
	Permissions []string `json:"permissions"`
	SessionID   string   `json:"session_id"`
}

// HasRole reports whether the user carries the given role.
func (u *AuthenticatedUser) HasRole(role string) bool {
	for _, r := range u.Roles {
		if r == role {
			return true
		}
	}
	return false
}

// HasPermission reports whether the user carries the given permission.
func (u *AuthenticatedUser) HasPermission(permission string) bool {
	for _, p := range u.Permissions {
		if p == permission {
			return true
		}
	}
	return false
}
