package service

import (
	"context"

	"github.com/spec-kit/helpdesk-api/internal/domain"
	"github.com/spec-kit/helpdesk-api/internal/repository"
)

// assignLeastLoaded picks the agent with the fewest open tickets and records
// ticketID against it. Both steps must run in the same transaction as the
// ticket insert.
func assignLeastLoaded(ctx context.Context, repos repository.Repositories, ticket *domain.Ticket) error {
	agent, err := repos.Agents.LeastLoaded(ctx)
	if err != nil {
		return err
	}
	agentID := agent.ID
	ticket.AssignedTo = &agentID

	if err := repos.Tickets.Create(ctx, ticket); err != nil {
		return err
	}
	_, err = repos.Agents.Acquire(ctx, agentID, ticket.ID)
	return err
}

// rebalanceAgent keeps the assignee's load in line with the ticket status.
// Terminal tickets are released, anything else is held. Both operations are
// no-ops when the assignment set already agrees.
func rebalanceAgent(ctx context.Context, agents repository.AgentDirectory, ticket *domain.Ticket) error {
	if ticket.AssignedTo == nil {
		return nil
	}
	var err error
	if ticket.Status.IsTerminal() {
		_, err = agents.Release(ctx, *ticket.AssignedTo, ticket.ID)
	} else {
		_, err = agents.Acquire(ctx, *ticket.AssignedTo, ticket.ID)
	}
	return err
}
