package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/helpdesk-api/internal/domain"
	"github.com/spec-kit/helpdesk-api/internal/events"
	"github.com/spec-kit/helpdesk-api/internal/repository"
	"github.com/spec-kit/helpdesk-api/internal/sla"
	apperrors "github.com/spec-kit/helpdesk-api/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
	previewLength   = 140
)

// TicketService coordinates ticket workflows.
type TicketService struct {
	repos              repository.Repositories
	tx                 repository.Transactor
	dispatcher         events.Dispatcher
	logger             *zap.Logger
	enforceTransitions bool
	now                func() time.Time
}

// TicketDependencies bundles collaborators for the ticket service.
type TicketDependencies struct {
	Repos              repository.Repositories
	Transactor         repository.Transactor
	Dispatcher         events.Dispatcher
	Logger             *zap.Logger
	EnforceTransitions bool
	Clock              func() time.Time
}

// TicketCreateInput describes ticket creation payload.
type TicketCreateInput struct {
	Title       string
	Description string
	Priority    string
}

// TicketListInput describes listing parameters.
type TicketListInput struct {
	Query        string
	BreachedOnly bool
	Limit        int
	Offset       int
}

// TicketPage is one page of a scoped listing.
type TicketPage struct {
	Tickets []domain.Ticket
	Total   int
	Limit   int
	Offset  int
}

// TicketPatchInput carries the optional fields of a versioned patch.
type TicketPatchInput struct {
	Status   *string
	Priority *string
	Version  *int
}

// NewTicketService constructs the service.
func NewTicketService(deps TicketDependencies) *TicketService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &TicketService{
		repos:              deps.Repos,
		tx:                 deps.Transactor,
		dispatcher:         deps.Dispatcher,
		logger:             logger,
		enforceTransitions: deps.EnforceTransitions,
		now:                clock,
	}
}

// CreateTicket opens a ticket for the requester and assigns it to the least
// loaded agent.
func (s *TicketService) CreateTicket(ctx context.Context, p domain.Principal, input TicketCreateInput) (*domain.Ticket, error) {
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, apperrors.NewValidationError("title is required", map[string]any{"field": "title"})
	}

	priority := domain.TicketPriorityLow
	if strings.TrimSpace(input.Priority) != "" {
		parsed, ok := domain.ParseTicketPriority(input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority", "value": input.Priority})
		}
		priority = parsed
	}

	ticket := &domain.Ticket{
		Title:       title,
		Description: strings.TrimSpace(input.Description),
		Status:      domain.TicketStatusOpen,
		Priority:    priority,
		CreatedBy:   p.UserID,
		SLA:         domain.SLA{DeadlineAt: sla.Deadline(s.now(), string(priority))},
		Comments:    []domain.Comment{},
	}

	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		return assignLeastLoaded(ctx, repos, ticket)
	})
	if err != nil {
		return nil, translateRepoError(err, "agent")
	}

	created, err := s.repos.Tickets.GetByID(ctx, ticket.ID)
	if err != nil {
		return nil, translateRepoError(err, "ticket")
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCreated,
		TicketID: created.ID,
		Actor:    events.ActorFrom(p),
		Payload: events.TicketCreatedPayload{
			Title:      created.Title,
			Priority:   created.Priority,
			AssignedTo: *created.AssignedTo,
			DeadlineAt: created.SLA.DeadlineAt,
		},
	})
	return created, nil
}

// ListTickets returns the page of tickets visible to the requester.
func (s *TicketService) ListTickets(ctx context.Context, p domain.Principal, input TicketListInput) (*TicketPage, error) {
	limit, offset := normalizePage(input.Limit, input.Offset)
	filter := repository.TicketFilter{
		BreachedOnly: input.BreachedOnly,
		Limit:        limit,
		Offset:       offset,
	}
	if q := strings.TrimSpace(input.Query); q != "" {
		filter.SearchTerm = &q
	}
	applyScope(&filter, p)

	tickets, total, err := s.repos.Tickets.List(ctx, filter)
	if err != nil {
		return nil, translateRepoError(err, "ticket")
	}
	return &TicketPage{Tickets: tickets, Total: total, Limit: limit, Offset: offset}, nil
}

// GetTicket loads a ticket the requester is allowed to see.
func (s *TicketService) GetTicket(ctx context.Context, p domain.Principal, ticketID string) (*domain.Ticket, error) {
	return s.loadAuthorized(ctx, s.repos, p, ticketID)
}

// UpdateStatus sets the ticket status and rebalances the assignee's load.
func (s *TicketService) UpdateStatus(ctx context.Context, p domain.Principal, ticketID, rawStatus string) (*domain.Ticket, error) {
	status, ok := domain.ParseTicketStatus(rawStatus)
	if !ok {
		return nil, apperrors.NewValidationError("invalid status", map[string]any{"field": "status", "value": rawStatus})
	}

	var previous domain.TicketStatus
	var updated *domain.Ticket
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := s.loadAuthorized(ctx, repos, p, ticketID)
		if err != nil {
			return err
		}
		if err := s.checkTransition(ticket.Status, status); err != nil {
			return err
		}
		previous = ticket.Status

		updated, err = repos.Tickets.UpdateStatus(ctx, ticket.ID, status)
		if err != nil {
			return err
		}
		return rebalanceAgent(ctx, repos.Agents, updated)
	})
	if err != nil {
		return nil, translateRepoError(err, "ticket")
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketStatusChanged,
		TicketID: updated.ID,
		Actor:    events.ActorFrom(p),
		Payload:  events.TicketStatusChangedPayload{OldStatus: previous, NewStatus: updated.Status},
	})
	return updated, nil
}

// AddComment appends a message to the ticket thread.
func (s *TicketService) AddComment(ctx context.Context, p domain.Principal, ticketID, message string) (*domain.Ticket, error) {
	message = strings.TrimSpace(message)
	if message == "" {
		return nil, apperrors.NewValidationError("message is required", map[string]any{"field": "message"})
	}

	ticket, err := s.loadAuthorized(ctx, s.repos, p, ticketID)
	if err != nil {
		return nil, err
	}

	updated, err := s.repos.Tickets.AppendComment(ctx, ticket.ID, domain.Comment{
		Author:    p.UserID,
		Message:   message,
		Timestamp: s.now().UTC(),
	})
	if err != nil {
		return nil, translateRepoError(err, "ticket")
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketCommentAdded,
		TicketID: updated.ID,
		Actor:    events.ActorFrom(p),
		Payload: events.TicketCommentAddedPayload{
			Author:      p.UserID,
			BodyPreview: stringPreview(message, previewLength),
		},
	})
	return updated, nil
}

// ListComments returns the comment thread in posting order.
func (s *TicketService) ListComments(ctx context.Context, p domain.Principal, ticketID string) ([]domain.Comment, error) {
	ticket, err := s.loadAuthorized(ctx, s.repos, p, ticketID)
	if err != nil {
		return nil, err
	}
	return ticket.Comments, nil
}

// PatchTicket applies status and priority changes guarded by the ticket
// version. A stale version yields a conflict carrying the server version.
func (s *TicketService) PatchTicket(ctx context.Context, p domain.Principal, ticketID string, input TicketPatchInput) (*domain.Ticket, error) {
	if input.Version == nil {
		return nil, apperrors.NewValidationError("version is required", map[string]any{"field": "version"})
	}

	var patch repository.TicketPatch
	if input.Status != nil {
		status, ok := domain.ParseTicketStatus(*input.Status)
		if !ok {
			return nil, apperrors.NewValidationError("invalid status", map[string]any{"field": "status", "value": *input.Status})
		}
		patch.Status = &status
	}
	if input.Priority != nil {
		priority, ok := domain.ParseTicketPriority(*input.Priority)
		if !ok {
			return nil, apperrors.NewValidationError("invalid priority", map[string]any{"field": "priority", "value": *input.Priority})
		}
		deadline := sla.Deadline(s.now(), string(priority))
		patch.Priority = &priority
		patch.DeadlineAt = &deadline
	}

	var updated *domain.Ticket
	err := s.tx.WithinTx(ctx, func(ctx context.Context, repos repository.Repositories) error {
		ticket, err := s.loadAuthorized(ctx, repos, p, ticketID)
		if err != nil {
			return err
		}
		if patch.Status != nil {
			if err := s.checkTransition(ticket.Status, *patch.Status); err != nil {
				return err
			}
		}

		updated, err = repos.Tickets.PatchVersioned(ctx, ticket.ID, *input.Version, patch)
		if err != nil {
			return err
		}
		if patch.Status != nil {
			return rebalanceAgent(ctx, repos.Agents, updated)
		}
		return nil
	})
	if err != nil {
		return nil, translateRepoError(err, "ticket")
	}

	s.publishEvent(ctx, events.Event{
		Type:     events.EventTicketPatched,
		TicketID: updated.ID,
		Actor:    events.ActorFrom(p),
		Payload: events.TicketPatchedPayload{
			Version:  updated.Version,
			Status:   updated.Status,
			Priority: updated.Priority,
		},
	})
	return updated, nil
}

// CheckSLABreaches flags every overdue unresolved ticket and returns how many
// were flagged by this call.
func (s *TicketService) CheckSLABreaches(ctx context.Context) (int, error) {
	now := s.now()
	ids, err := s.repos.Tickets.MarkBreached(ctx, now)
	if err != nil {
		return 0, translateRepoError(err, "ticket")
	}
	for _, id := range ids {
		s.publishEvent(ctx, events.Event{
			Type:      events.EventTicketSLABreached,
			TicketID:  id,
			Timestamp: now,
			Payload:   events.TicketSLABreachedPayload{DetectedAt: now},
		})
	}
	return len(ids), nil
}

// ListAgents returns agents ordered by current load.
func (s *TicketService) ListAgents(ctx context.Context) ([]domain.User, error) {
	agents, err := s.repos.Agents.List(ctx)
	if err != nil {
		return nil, translateRepoError(err, "agent")
	}
	return agents, nil
}

// loadAuthorized fetches the ticket and applies the access guard. Absence is
// reported before any permission failure.
func (s *TicketService) loadAuthorized(ctx context.Context, repos repository.Repositories, p domain.Principal, ticketID string) (*domain.Ticket, error) {
	if _, err := uuid.Parse(ticketID); err != nil {
		return nil, apperrors.NewNotFound("ticket", nil)
	}
	ticket, err := repos.Tickets.GetByID(ctx, ticketID)
	if err != nil {
		return nil, translateRepoError(err, "ticket")
	}
	if err := authorizeTicket(p, ticket); err != nil {
		return nil, err
	}
	return ticket, nil
}

func (s *TicketService) checkTransition(current, next domain.TicketStatus) error {
	if !s.enforceTransitions || isValidTransition(current, next) {
		return nil
	}
	return apperrors.NewConflict("invalid status transition", map[string]any{
		"from": current,
		"to":   next,
	})
}

var allowedTransitions = map[domain.TicketStatus][]domain.TicketStatus{
	domain.TicketStatusOpen:       {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusOpen, domain.TicketStatusResolved, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusClosed, domain.TicketStatusInProgress},
	domain.TicketStatusClosed:     {},
}

func isValidTransition(current, next domain.TicketStatus) bool {
	if current == next {
		return true
	}
	for _, candidate := range allowedTransitions[current] {
		if candidate == next {
			return true
		}
	}
	return false
}

func normalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = defaultPageSize
	}
	if limit > maxPageSize {
		limit = maxPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

func (s *TicketService) publishEvent(ctx context.Context, event events.Event) {
	if s.dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = s.now()
	}
	if err := s.dispatcher.Publish(ctx, event); err != nil {
		s.logger.Warn("event handler failed",
			zap.String("event_type", string(event.Type)),
			zap.String("ticket_id", event.TicketID),
			zap.Error(err))
	}
}

func stringPreview(body string, max int) string {
	runes := []rune(strings.TrimSpace(body))
	if len(runes) <= max {
		return string(runes)
	}
	return string(runes[:max]) + "..."
}
