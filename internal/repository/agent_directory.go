package repository

import (
	"context"

	"github.com/spec-kit/helpdesk-api/internal/domain"
)

type agentDirectory struct {
	db DBTX
}

// NewAgentDirectory instantiates the Postgres-backed directory.
func NewAgentDirectory(db DBTX) AgentDirectory {
	return &agentDirectory{db: db}
}

// LeastLoaded locks and returns the agent with the fewest open assignments.
// Ties go to the oldest account.
func (d *agentDirectory) LeastLoaded(ctx context.Context) (*domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users WHERE role=$1
        ORDER BY ticket_count ASC, created_at ASC, id ASC
        LIMIT 1
        FOR UPDATE`

	agent, err := scanUser(d.db.QueryRow(ctx, query, domain.RoleAgent))
	if err != nil {
		if normalizeNotFound(err) == ErrNotFound {
			return nil, ErrNoAgent
		}
		return nil, err
	}
	return agent, nil
}

func (d *agentDirectory) List(ctx context.Context) ([]domain.User, error) {
	const query = `
        SELECT ` + userColumns + `
        FROM users WHERE role=$1
        ORDER BY ticket_count ASC, created_at ASC, id ASC`

	rows, err := d.db.Query(ctx, query, domain.RoleAgent)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []domain.User{}
	for rows.Next() {
		agent, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *agent)
	}
	return result, rows.Err()
}

func (d *agentDirectory) Acquire(ctx context.Context, agentID, ticketID string) (bool, error) {
	const query = `
        UPDATE users
        SET ticket_count = ticket_count + 1,
            assigned_tickets = array_append(assigned_tickets, $2::uuid),
            updated_at = NOW()
        WHERE id=$1 AND NOT ($2::uuid = ANY(assigned_tickets))`

	cmd, err := d.db.Exec(ctx, query, agentID, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}

func (d *agentDirectory) Release(ctx context.Context, agentID, ticketID string) (bool, error) {
	const query = `
        UPDATE users
        SET ticket_count = GREATEST(ticket_count - 1, 0),
            assigned_tickets = array_remove(assigned_tickets, $2::uuid),
            updated_at = NOW()
        WHERE id=$1 AND $2::uuid = ANY(assigned_tickets)`

	cmd, err := d.db.Exec(ctx, query, agentID, ticketID)
	if err != nil {
		return false, err
	}
	return cmd.RowsAffected() > 0, nil
}
