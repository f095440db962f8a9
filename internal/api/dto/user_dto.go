package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-api/internal/domain"
)

// SignupRequest payload.
type SignupRequest struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
	Role     string `json:"role"`
}

// LoginRequest payload.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginResponse carries the issued token.
type LoginResponse struct {
	Token     string        `json:"token"`
	ExpiresAt time.Time     `json:"expires_at"`
	User      LoginIdentity `json:"user"`
}

// LoginIdentity is the minimal identity returned at login.
type LoginIdentity struct {
	ID   string      `json:"id"`
	Role domain.Role `json:"role"`
}

// UserSummary is the public view of an account.
type UserSummary struct {
	ID    string      `json:"id"`
	Name  string      `json:"name,omitempty"`
	Email string      `json:"email,omitempty"`
	Role  domain.Role `json:"role,omitempty"`
}

// UserResponse is returned at signup.
type UserResponse struct {
	ID        string      `json:"id"`
	Name      string      `json:"name"`
	Email     string      `json:"email"`
	Role      domain.Role `json:"role"`
	CreatedAt time.Time   `json:"createdAt"`
}

// AgentResponse exposes an agent with its current load.
type AgentResponse struct {
	ID              string   `json:"id"`
	Name            string   `json:"name"`
	Email           string   `json:"email"`
	TicketCount     int      `json:"ticketCount"`
	AssignedTickets []string `json:"assignedTickets"`
}

// NewUserSummary maps a domain summary.
func NewUserSummary(s *domain.UserSummary) UserSummary {
	return UserSummary{ID: s.ID, Name: s.Name, Email: s.Email, Role: s.Role}
}

// NewUserResponse maps an account without credentials.
func NewUserResponse(u *domain.User) UserResponse {
	return UserResponse{ID: u.ID, Name: u.Name, Email: u.Email, Role: u.Role, CreatedAt: u.CreatedAt}
}

// NewAgentResponses maps agents in order.
func NewAgentResponses(agents []domain.User) []AgentResponse {
	items := make([]AgentResponse, 0, len(agents))
	for _, a := range agents {
		assigned := a.AssignedTickets
		if assigned == nil {
			assigned = []string{}
		}
		items = append(items, AgentResponse{
			ID:              a.ID,
			Name:            a.Name,
			Email:           a.Email,
			TicketCount:     a.TicketCount,
			AssignedTickets: assigned,
		})
	}
	return items
}
