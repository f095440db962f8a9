package dto

import (
	"time"

	"github.com/spec-kit/helpdesk-api/internal/domain"
)

// CreateTicketRequest payload.
type CreateTicketRequest struct {
	Title       string `json:"title"`
	Description string `json:"description"`
	Priority    string `json:"priority"`
}

// UpdateStatusRequest payload.
type UpdateStatusRequest struct {
	Status string `json:"status"`
}

// AddCommentRequest payload.
type AddCommentRequest struct {
	Message string `json:"message"`
}

// PatchTicketRequest payload. Version is required.
type PatchTicketRequest struct {
	Updates struct {
		Status   *string `json:"status"`
		Priority *string `json:"priority"`
	} `json:"updates"`
	Version *int `json:"version"`
}

// ListMeta describes the returned page.
type ListMeta struct {
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

// SLAResponse carries deadline state.
type SLAResponse struct {
	DeadlineAt time.Time `json:"deadlineAt"`
	Breached   bool      `json:"breached"`
}

// CommentResponse is one thread entry.
type CommentResponse struct {
	Author    string    `json:"author"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

// TicketResponse provides full ticket info.
type TicketResponse struct {
	ID            string                `json:"id"`
	Title         string                `json:"title"`
	Description   string                `json:"description"`
	Status        domain.TicketStatus   `json:"status"`
	Priority      domain.TicketPriority `json:"priority"`
	CreatedBy     *UserSummary          `json:"createdBy"`
	AssignedTo    *UserSummary          `json:"assignedTo"`
	Comments      []CommentResponse     `json:"comments"`
	SLA           SLAResponse           `json:"sla"`
	Version       int                   `json:"version"`
	LatestComment *string               `json:"latestComment,omitempty"`
	CreatedAt     time.Time             `json:"createdAt"`
	UpdatedAt     time.Time             `json:"updatedAt"`
}

// NewTicketResponse maps a ticket. Creator and assignee fall back to bare ids
// when their accounts could not be loaded.
func NewTicketResponse(t *domain.Ticket) TicketResponse {
	resp := TicketResponse{
		ID:            t.ID,
		Title:         t.Title,
		Description:   t.Description,
		Status:        t.Status,
		Priority:      t.Priority,
		CreatedBy:     summaryOrID(t.Creator, &t.CreatedBy),
		AssignedTo:    summaryOrID(t.Assignee, t.AssignedTo),
		Comments:      NewCommentResponses(t.Comments),
		SLA:           SLAResponse{DeadlineAt: t.SLA.DeadlineAt, Breached: t.SLA.Breached},
		Version:       t.Version,
		LatestComment: t.LatestComment,
		CreatedAt:     t.CreatedAt,
		UpdatedAt:     t.UpdatedAt,
	}
	return resp
}

// NewTicketResponses maps a slice of tickets.
func NewTicketResponses(tickets []domain.Ticket) []TicketResponse {
	items := make([]TicketResponse, 0, len(tickets))
	for i := range tickets {
		items = append(items, NewTicketResponse(&tickets[i]))
	}
	return items
}

// NewCommentResponses maps comments in order.
func NewCommentResponses(comments []domain.Comment) []CommentResponse {
	items := make([]CommentResponse, 0, len(comments))
	for _, c := range comments {
		items = append(items, CommentResponse{Author: c.Author, Message: c.Message, Timestamp: c.Timestamp})
	}
	return items
}

func summaryOrID(summary *domain.UserSummary, id *string) *UserSummary {
	if summary != nil {
		s := NewUserSummary(summary)
		return &s
	}
	if id == nil {
		return nil
	}
	return &UserSummary{ID: *id}
}
