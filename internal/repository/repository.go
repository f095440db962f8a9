package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/spec-kit/helpdesk-api/internal/domain"
)

var (
	// ErrNotFound is returned when a lookup matches no record.
	ErrNotFound = errors.New("record not found")
	// ErrNoAgent is returned when no agent account exists.
	ErrNoAgent = errors.New("no agent available")
	// ErrDuplicateEmail is returned when an email is already registered.
	ErrDuplicateEmail = errors.New("email already registered")
)

// VersionConflictError reports a failed compare-and-swap on a ticket version.
type VersionConflictError struct {
	Current int
}

func (e *VersionConflictError) Error() string {
	return fmt.Sprintf("ticket version conflict: server version is %d", e.Current)
}

// DBTX is satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// TicketFilter captures list parameters. Nil pointers mean "no constraint".
type TicketFilter struct {
	CreatedBy    *string
	AssignedTo   *string
	SearchTerm   *string
	BreachedOnly bool
	Limit        int
	Offset       int
}

// TicketPatch is the field-set applied by a versioned patch.
type TicketPatch struct {
	Status     *domain.TicketStatus
	Priority   *domain.TicketPriority
	DeadlineAt *time.Time
}

// TicketRepository encapsulates ticket persistence.
type TicketRepository interface {
	Create(ctx context.Context, ticket *domain.Ticket) error
	GetByID(ctx context.Context, id string) (*domain.Ticket, error)
	List(ctx context.Context, filter TicketFilter) ([]domain.Ticket, int, error)
	UpdateStatus(ctx context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error)
	AppendComment(ctx context.Context, id string, comment domain.Comment) (*domain.Ticket, error)
	PatchVersioned(ctx context.Context, id string, expectedVersion int, patch TicketPatch) (*domain.Ticket, error)
	MarkBreached(ctx context.Context, now time.Time) ([]string, error)
}

// UserRepository defines persistence access for accounts.
type UserRepository interface {
	Create(ctx context.Context, user *domain.User) error
	GetByID(ctx context.Context, id string) (*domain.User, error)
	GetByEmail(ctx context.Context, email string) (*domain.User, error)
}

// AgentDirectory ranks agents by load and maintains their assignment sets.
// Acquire and Release report whether the set changed, which makes both safe
// to repeat.
type AgentDirectory interface {
	LeastLoaded(ctx context.Context) (*domain.User, error)
	List(ctx context.Context) ([]domain.User, error)
	Acquire(ctx context.Context, agentID, ticketID string) (bool, error)
	Release(ctx context.Context, agentID, ticketID string) (bool, error)
}

// Repositories groups the stores a unit of work may touch.
type Repositories struct {
	Tickets TicketRepository
	Users   UserRepository
	Agents  AgentDirectory
}

// Transactor runs fn with repositories bound to a single transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, repos Repositories) error) error
}

// NewRepositories binds every repository to db.
func NewRepositories(db DBTX) Repositories {
	return Repositories{
		Tickets: NewTicketRepository(db),
		Users:   NewUserRepository(db),
		Agents:  NewAgentDirectory(db),
	}
}

func normalizeNotFound(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return err
}
