package events

import (
	"time"

	"github.com/spec-kit/helpdesk-api/internal/domain"
)

// EventType enumerates supported event identifiers.
type EventType string

const (
	EventTicketCreated       EventType = "ticket_created"
	EventTicketStatusChanged EventType = "ticket_status_changed"
	EventTicketCommentAdded  EventType = "ticket_comment_added"
	EventTicketPatched       EventType = "ticket_patched"
	EventTicketSLABreached   EventType = "ticket_sla_breached"
)

// AllEventTypes lists every event the service emits.
var AllEventTypes = []EventType{
	EventTicketCreated,
	EventTicketStatusChanged,
	EventTicketCommentAdded,
	EventTicketPatched,
	EventTicketSLABreached,
}

// Actor identifies who caused an event. System events carry an empty actor.
type Actor struct {
	UserID string      `json:"userId,omitempty"`
	Role   domain.Role `json:"role,omitempty"`
}

// ActorFrom builds an Actor from an authenticated principal.
func ActorFrom(p domain.Principal) Actor {
	return Actor{UserID: p.UserID, Role: p.Role}
}

// Event represents a domain event emitted by services.
type Event struct {
	ID        string    `json:"id"`
	Type      EventType `json:"type"`
	TicketID  string    `json:"ticketId"`
	Actor     Actor     `json:"actor"`
	Timestamp time.Time `json:"timestamp"`
	Payload   any       `json:"payload"`
}

// TicketCreatedPayload payload.
type TicketCreatedPayload struct {
	Title      string                `json:"title"`
	Priority   domain.TicketPriority `json:"priority"`
	AssignedTo string                `json:"assignedTo"`
	DeadlineAt time.Time             `json:"deadlineAt"`
}

// TicketStatusChangedPayload payload.
type TicketStatusChangedPayload struct {
	OldStatus domain.TicketStatus `json:"oldStatus"`
	NewStatus domain.TicketStatus `json:"newStatus"`
}

// TicketCommentAddedPayload payload.
type TicketCommentAddedPayload struct {
	Author      string `json:"author"`
	BodyPreview string `json:"bodyPreview"`
}

// TicketPatchedPayload payload.
type TicketPatchedPayload struct {
	Version  int                   `json:"version"`
	Status   domain.TicketStatus   `json:"status"`
	Priority domain.TicketPriority `json:"priority"`
}

// TicketSLABreachedPayload payload.
type TicketSLABreachedPayload struct {
	DetectedAt time.Time `json:"detectedAt"`
}
