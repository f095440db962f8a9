package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/helpdesk-api/internal/domain"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

const ticketProjection = `
        t.id::text, t.title, t.description, t.status, t.priority, t.created_by::text, t.assigned_to::text,
        t.comments, t.sla_deadline_at, t.sla_breached, t.version, t.latest_comment,
        t.created_at, t.updated_at,
        c.name, c.email, c.role,
        a.name, a.email, a.role`

const ticketJoins = `
        LEFT JOIN users c ON c.id = t.created_by
        LEFT JOIN users a ON a.id = t.assigned_to`

type ticketRepository struct {
	db DBTX
}

// NewTicketRepository instantiates repository.
func NewTicketRepository(db DBTX) TicketRepository {
	return &ticketRepository{db: db}
}

func (r *ticketRepository) Create(ctx context.Context, ticket *domain.Ticket) error {
	const query = `
        INSERT INTO tickets (title, description, status, priority, created_by, assigned_to,
                             sla_deadline_at, sla_breached, version)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
        RETURNING id::text, created_at, updated_at`
	return r.db.QueryRow(ctx, query,
		ticket.Title,
		ticket.Description,
		ticket.Status,
		ticket.Priority,
		ticket.CreatedBy,
		ticket.AssignedTo,
		ticket.SLA.DeadlineAt,
		ticket.SLA.Breached,
		ticket.Version,
	).Scan(&ticket.ID, &ticket.CreatedAt, &ticket.UpdatedAt)
}

func (r *ticketRepository) GetByID(ctx context.Context, id string) (*domain.Ticket, error) {
	query := fmt.Sprintf(`SELECT %s FROM tickets t %s WHERE t.id=$1`, ticketProjection, ticketJoins)
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, id))
	if err != nil {
		return nil, normalizeNotFound(err)
	}
	return ticket, nil
}

func (r *ticketRepository) List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error) {
	where, args := buildTicketWhere(filter)

	var total int
	countQuery := fmt.Sprintf(`SELECT COUNT(*) FROM tickets t WHERE %s`, where)
	if err := r.db.QueryRow(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	limit, offset := pageBounds(filter.Limit, filter.Offset)
	query := fmt.Sprintf(`SELECT %s FROM tickets t %s WHERE %s ORDER BY t.created_at DESC, t.id LIMIT %d OFFSET %d`,
		ticketProjection, ticketJoins, where, limit, offset)

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	result := []domain.Ticket{}
	for rows.Next() {
		ticket, err := scanTicket(rows)
		if err != nil {
			return nil, 0, err
		}
		result = append(result, *ticket)
	}
	return result, total, rows.Err()
}

func (r *ticketRepository) UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	return r.updateReturning(ctx, `status=$2, updated_at=NOW()`, id, status)
}

func (r *ticketRepository) AppendComment(ctx context.Context, id string, comment domain.Comment) (*domain.Ticket, error) {
	return r.updateReturning(ctx,
		`comments = comments || $2::jsonb, latest_comment=$3, updated_at=NOW()`,
		id, []domain.Comment{comment}, comment.Message)
}

func (r *ticketRepository) PatchVersioned(ctx context.Context, id string, expectedVersion int, patch TicketPatch) (*domain.Ticket, error) {
	sets := []string{"version = version + 1", "updated_at = NOW()"}
	args := []any{id, expectedVersion}

	if patch.Status != nil {
		args = append(args, *patch.Status)
		sets = append(sets, fmt.Sprintf("status=$%d", len(args)))
	}
	if patch.Priority != nil {
		args = append(args, *patch.Priority)
		sets = append(sets, fmt.Sprintf("priority=$%d", len(args)))
	}
	if patch.DeadlineAt != nil {
		args = append(args, *patch.DeadlineAt)
		sets = append(sets, fmt.Sprintf("sla_deadline_at=$%d", len(args)), "sla_breached=FALSE")
	}

	query := fmt.Sprintf(`
        WITH t AS (UPDATE tickets SET %s WHERE id=$1 AND version=$2 RETURNING *)
        SELECT %s FROM t %s`, strings.Join(sets, ", "), ticketProjection, ticketJoins)

	ticket, err := scanTicket(r.db.QueryRow(ctx, query, args...))
	if err == nil {
		return ticket, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, err
	}

	var current int
	if err := r.db.QueryRow(ctx, `SELECT version FROM tickets WHERE id=$1`, id).Scan(&current); err != nil {
		return nil, normalizeNotFound(err)
	}
	return nil, &VersionConflictError{Current: current}
}

func (r *ticketRepository) MarkBreached(ctx context.Context, now time.Time) ([]string, error) {
	const query = `
        UPDATE tickets SET sla_breached=TRUE, updated_at=NOW()
        WHERE sla_deadline_at <= $1 AND sla_breached = FALSE AND status <> ALL($2)
        RETURNING id::text`
	rows, err := r.db.Query(ctx, query, now, []string{
		string(domain.TicketStatusResolved),
		string(domain.TicketStatusClosed),
	})
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *ticketRepository) updateReturning(ctx context.Context, set string, id string, args ...any) (*domain.Ticket, error) {
	query := fmt.Sprintf(`
        WITH t AS (UPDATE tickets SET %s WHERE id=$1 RETURNING *)
        SELECT %s FROM t %s`, set, ticketProjection, ticketJoins)
	ticket, err := scanTicket(r.db.QueryRow(ctx, query, append([]any{id}, args...)...))
	if err != nil {
		return nil, normalizeNotFound(err)
	}
	return ticket, nil
}

func buildTicketWhere(filter TicketFilter) (string, []any) {
	clauses := []string{"1=1"}
	args := []any{}

	if filter.CreatedBy != nil {
		args = append(args, *filter.CreatedBy)
		clauses = append(clauses, fmt.Sprintf("t.created_by=$%d", len(args)))
	}
	if filter.AssignedTo != nil {
		args = append(args, *filter.AssignedTo)
		clauses = append(clauses, fmt.Sprintf("t.assigned_to=$%d", len(args)))
	}
	if filter.BreachedOnly {
		clauses = append(clauses, "t.sla_breached = TRUE")
	}
	if filter.SearchTerm != nil && strings.TrimSpace(*filter.SearchTerm) != "" {
		args = append(args, "%"+escapeLike(strings.TrimSpace(*filter.SearchTerm))+"%")
		p := fmt.Sprintf("$%d", len(args))
		clauses = append(clauses, fmt.Sprintf(
			"(t.title ILIKE %s OR t.description ILIKE %s OR COALESCE(t.latest_comment, '') ILIKE %s)", p, p, p))
	}
	return strings.Join(clauses, " AND "), args
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}

func pageBounds(limit, offset int) (int, int) {
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

func scanTicket(row pgx.Row) (*domain.Ticket, error) {
	var (
		ticket                                    domain.Ticket
		creatorName, creatorEmail, creatorRole    *string
		assigneeName, assigneeEmail, assigneeRole *string
	)
	if err := row.Scan(
		&ticket.ID,
		&ticket.Title,
		&ticket.Description,
		&ticket.Status,
		&ticket.Priority,
		&ticket.CreatedBy,
		&ticket.AssignedTo,
		&ticket.Comments,
		&ticket.SLA.DeadlineAt,
		&ticket.SLA.Breached,
		&ticket.Version,
		&ticket.LatestComment,
		&ticket.CreatedAt,
		&ticket.UpdatedAt,
		&creatorName, &creatorEmail, &creatorRole,
		&assigneeName, &assigneeEmail, &assigneeRole,
	); err != nil {
		return nil, err
	}
	ticket.Creator = summary(&ticket.CreatedBy, creatorName, creatorEmail, creatorRole)
	ticket.Assignee = summary(ticket.AssignedTo, assigneeName, assigneeEmail, assigneeRole)
	if ticket.Comments == nil {
		ticket.Comments = []domain.Comment{}
	}
	return &ticket, nil
}

func summary(id, name, email, role *string) *domain.UserSummary {
	if id == nil || name == nil {
		return nil
	}
	s := &domain.UserSummary{ID: *id, Name: *name}
	if email != nil {
		s.Email = *email
	}
	if role != nil {
		s.Role = domain.Role(*role)
	}
	return s
}
