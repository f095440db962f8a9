package service

import (
	"github.com/spec-kit/helpdesk-api/internal/domain"
	"github.com/spec-kit/helpdesk-api/internal/repository"
	apperrors "github.com/spec-kit/helpdesk-api/pkg/util/errorutil"
)

// canAccessTicket reports whether the principal may read or modify ticket.
// Admins see everything, users their own tickets, agents their assignments.
func canAccessTicket(p domain.Principal, ticket *domain.Ticket) bool {
	switch p.Role {
	case domain.RoleAdmin:
		return true
	case domain.RoleUser:
		return ticket.CreatedBy == p.UserID
	case domain.RoleAgent:
		return ticket.AssignedTo != nil && *ticket.AssignedTo == p.UserID
	default:
		return false
	}
}

func authorizeTicket(p domain.Principal, ticket *domain.Ticket) error {
	if !canAccessTicket(p, ticket) {
		return apperrors.NewForbidden("forbidden")
	}
	return nil
}

// applyScope narrows a listing to what the principal may see.
func applyScope(filter *repository.TicketFilter, p domain.Principal) {
	switch p.Role {
	case domain.RoleAdmin:
	case domain.RoleAgent:
		id := p.UserID
		filter.AssignedTo = &id
	default:
		id := p.UserID
		filter.CreatedBy = &id
	}
}
