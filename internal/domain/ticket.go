package domain

import (
	"strings"
	"time"
)

// TicketStatus enumerates lifecycle states for tickets.
type TicketStatus string

const (
	TicketStatusOpen       TicketStatus = "Open"
	TicketStatusInProgress TicketStatus = "In Progress"
	TicketStatusResolved   TicketStatus = "Resolved"
	TicketStatusClosed     TicketStatus = "Closed"
)

// TicketPriority enumerates SLA urgency.
type TicketPriority string

const (
	TicketPriorityLow    TicketPriority = "Low"
	TicketPriorityMedium TicketPriority = "Medium"
	TicketPriorityHigh   TicketPriority = "High"
	TicketPriorityUrgent TicketPriority = "Urgent"
)

var ticketStatuses = []TicketStatus{
	TicketStatusOpen,
	TicketStatusInProgress,
	TicketStatusResolved,
	TicketStatusClosed,
}

var ticketPriorities = []TicketPriority{
	TicketPriorityLow,
	TicketPriorityMedium,
	TicketPriorityHigh,
	TicketPriorityUrgent,
}

// ParseTicketStatus matches a status label case-insensitively.
func ParseTicketStatus(raw string) (TicketStatus, bool) {
	raw = strings.TrimSpace(raw)
	for _, status := range ticketStatuses {
		if strings.EqualFold(string(status), raw) {
			return status, true
		}
	}
	return "", false
}

// ParseTicketPriority matches a priority label case-insensitively.
func ParseTicketPriority(raw string) (TicketPriority, bool) {
	raw = strings.TrimSpace(raw)
	for _, priority := range ticketPriorities {
		if strings.EqualFold(string(priority), raw) {
			return priority, true
		}
	}
	return "", false
}

// IsTerminal reports whether the status releases the assigned agent.
func (s TicketStatus) IsTerminal() bool {
	return s == TicketStatusResolved || s == TicketStatusClosed
}

// Comment is a single entry in a ticket thread.
type Comment struct {
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// SLA tracks the resolution deadline of a ticket.
type SLA struct {
	DeadlineAt time.Time
	Breached   bool
}

// Ticket is the aggregate for support requests.
type Ticket struct {
	ID            string
	Title         string
	Description   string
	Status        TicketStatus
	Priority      TicketPriority
	CreatedBy     string
	AssignedTo    *string
	Comments      []Comment
	SLA           SLA
	Version       int
	LatestComment *string
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// Populated on reads.
	Creator  *UserSummary
	Assignee *UserSummary
}

// Clone returns a deep copy of the ticket.
func (t *Ticket) Clone() *Ticket {
	if t == nil {
		return nil
	}
	cp := *t
	if t.Comments != nil {
		cp.Comments = append([]Comment{}, t.Comments...)
	}
	if t.AssignedTo != nil {
		assigned := *t.AssignedTo
		cp.AssignedTo = &assigned
	}
	if t.LatestComment != nil {
		latest := *t.LatestComment
		cp.LatestComment = &latest
	}
	if t.Creator != nil {
		creator := *t.Creator
		cp.Creator = &creator
	}
	if t.Assignee != nil {
		assignee := *t.Assignee
		cp.Assignee = &assignee
	}
	return &cp
}
