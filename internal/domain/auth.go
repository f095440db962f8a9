package domain

// Principal is the authenticated caller as carried by the access token.
type Principal struct {
	UserID string
	Role   Role
}

// IsAdmin reports whether the principal bypasses ticket scoping.
func (p Principal) IsAdmin() bool {
	return p.Role == RoleAdmin
}
