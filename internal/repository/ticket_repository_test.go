package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBuildTicketWhereScopesAndSearch(t *testing.T) {
	userID := "6f1c1f8e-7d55-4c4e-9a55-8d7a0c1b2f10"
	term := "  50%_off  "

	where, args := buildTicketWhere(TicketFilter{
		CreatedBy:    &userID,
		SearchTerm:   &term,
		BreachedOnly: true,
	})

	assert.Equal(t,
		"1=1 AND t.created_by=$1 AND t.sla_breached = TRUE AND "+
			"(t.title ILIKE $2 OR t.description ILIKE $2 OR COALESCE(t.latest_comment, '') ILIKE $2)",
		where)
	assert.Equal(t, []any{userID, `%50\%\_off%`}, args)
}

func TestBuildTicketWhereAgentScope(t *testing.T) {
	agentID := "agent-1"

	where, args := buildTicketWhere(TicketFilter{AssignedTo: &agentID})

	assert.Equal(t, "1=1 AND t.assigned_to=$1", where)
	assert.Equal(t, []any{agentID}, args)
}

func TestBuildTicketWhereIgnoresBlankSearch(t *testing.T) {
	blank := "   "

	where, args := buildTicketWhere(TicketFilter{SearchTerm: &blank})

	assert.Equal(t, "1=1", where)
	assert.Empty(t, args)
}

func TestPageBounds(t *testing.T) {
	cases := []struct {
		limit, offset         int
		wantLimit, wantOffset int
	}{
		{0, 0, 20, 0},
		{-5, -1, 20, 0},
		{10, 30, 10, 30},
		{500, 0, 100, 0},
	}
	for _, tt := range cases {
		limit, offset := pageBounds(tt.limit, tt.offset)
		assert.Equal(t, tt.wantLimit, limit)
		assert.Equal(t, tt.wantOffset, offset)
	}
}

func TestVersionConflictErrorMessage(t *testing.T) {
	err := &VersionConflictError{Current: 4}
	assert.Contains(t, err.Error(), "4")
}
