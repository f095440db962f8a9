package domain

import "time"

// Role scopes what a caller may see and do.
type Role string

const (
	RoleUser  Role = "user"
	RoleAgent Role = "agent"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known roles.
func (r Role) Valid() bool {
	switch r {
	case RoleUser, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// User is an account holder. Agents additionally carry their current load.
type User struct {
	ID              string
	Name            string
	Email           string
	PasswordHash    string
	Role            Role
	TicketCount     int
	AssignedTickets []string
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// UserSummary is the public projection embedded in ticket reads.
type UserSummary struct {
	ID    string
	Name  string
	Email string
	Role  Role
}

// Summary projects the user for embedding.
func (u *User) Summary() *UserSummary {
	if u == nil {
		return nil
	}
	return &UserSummary{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role}
}
