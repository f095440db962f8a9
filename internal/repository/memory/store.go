// Package memory provides a process-local implementation of the repository
// contracts. It backs the service when no database is configured and serves
// as the fake store in tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/spec-kit/helpdesk-api/internal/domain"
	"github.com/spec-kit/helpdesk-api/internal/repository"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type state struct {
	tickets     map[string]*domain.Ticket
	ticketOrder []string
	users       map[string]*domain.User
	userOrder   []string
}

// Store holds tickets and users in memory.
type Store struct {
	mu   sync.RWMutex
	txMu sync.Mutex
	data state
	now  func() time.Time
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		data: state{
			tickets: map[string]*domain.Ticket{},
			users:   map[string]*domain.User{},
		},
		now: time.Now,
	}
}

// Repositories returns repository views over the store.
func (s *Store) Repositories() repository.Repositories {
	return s.views(nil)
}

func (s *Store) views(j *journal) repository.Repositories {
	return repository.Repositories{
		Tickets: &ticketStore{s: s, j: j},
		Users:   &userStore{s: s, j: j},
		Agents:  &agentStore{s: s, j: j},
	}
}

// WithinTx serializes units of work. When fn fails only the rows it wrote
// are restored; writes made outside the transaction are kept.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, repos repository.Repositories) error) error {
	s.txMu.Lock()
	defer s.txMu.Unlock()

	j := newJournal()
	if err := fn(ctx, s.views(j)); err != nil {
		s.mu.Lock()
		j.undo(&s.data)
		s.mu.Unlock()
		return err
	}
	return nil
}

// journal records the pre-transaction value of every row a transaction
// touches. A nil entry marks a row the transaction inserted.
type journal struct {
	tickets map[string]*domain.Ticket
	users   map[string]*domain.User
}

func newJournal() *journal {
	return &journal{
		tickets: map[string]*domain.Ticket{},
		users:   map[string]*domain.User{},
	}
}

// Callers hold s.mu for the methods below. All of them accept a nil journal.

func (j *journal) ticketCreated(id string) {
	if j != nil {
		j.tickets[id] = nil
	}
}

func (j *journal) ticketTouched(st *state, id string) {
	if j == nil {
		return
	}
	if _, seen := j.tickets[id]; seen {
		return
	}
	if t, ok := st.tickets[id]; ok {
		j.tickets[id] = t.Clone()
	}
}

func (j *journal) userCreated(id string) {
	if j != nil {
		j.users[id] = nil
	}
}

func (j *journal) userTouched(st *state, id string) {
	if j == nil {
		return
	}
	if _, seen := j.users[id]; seen {
		return
	}
	if u, ok := st.users[id]; ok {
		j.users[id] = cloneUser(u)
	}
}

func (j *journal) undo(st *state) {
	for id, prior := range j.tickets {
		if prior == nil {
			delete(st.tickets, id)
			st.ticketOrder = without(st.ticketOrder, id)
			continue
		}
		st.tickets[id] = prior
	}
	for id, prior := range j.users {
		if prior == nil {
			delete(st.users, id)
			st.userOrder = without(st.userOrder, id)
			continue
		}
		st.users[id] = prior
	}
}

func without(ids []string, id string) []string {
	if idx := indexOf(ids, id); idx >= 0 {
		return append(ids[:idx:idx], ids[idx+1:]...)
	}
	return ids
}

func cloneUser(u *domain.User) *domain.User {
	cp := *u
	cp.AssignedTickets = append([]string{}, u.AssignedTickets...)
	return &cp
}

// hydrate copies a ticket and fills in creator and assignee summaries.
// Callers hold s.mu.
func (s *Store) hydrate(t *domain.Ticket) *domain.Ticket {
	cp := t.Clone()
	cp.Creator = nil
	cp.Assignee = nil
	if u, ok := s.data.users[t.CreatedBy]; ok {
		cp.Creator = u.Summary()
	}
	if t.AssignedTo != nil {
		if u, ok := s.data.users[*t.AssignedTo]; ok {
			cp.Assignee = u.Summary()
		}
	}
	return cp
}

type ticketStore struct {
	s *Store
	j *journal
}

func (r *ticketStore) Create(_ context.Context, ticket *domain.Ticket) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now().UTC()
	ticket.ID = uuid.NewString()
	ticket.CreatedAt = now
	ticket.UpdatedAt = now
	if ticket.Comments == nil {
		ticket.Comments = []domain.Comment{}
	}

	r.s.data.tickets[ticket.ID] = ticket.Clone()
	r.s.data.ticketOrder = append(r.s.data.ticketOrder, ticket.ID)
	r.j.ticketCreated(ticket.ID)
	return nil
}

func (r *ticketStore) GetByID(_ context.Context, id string) (*domain.Ticket, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return r.s.hydrate(t), nil
}

func (r *ticketStore) List(_ context.Context, filter repository.TicketFilter) ([]domain.Ticket, int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	// Walk newest insertions first so equal timestamps keep newest-first order.
	matched := make([]*domain.Ticket, 0, len(r.s.data.ticketOrder))
	for i := len(r.s.data.ticketOrder) - 1; i >= 0; i-- {
		t := r.s.data.tickets[r.s.data.ticketOrder[i]]
		if matches(t, filter) {
			matched = append(matched, t)
		}
	}
	sort.SliceStable(matched, func(i, j int) bool {
		return matched[i].CreatedAt.After(matched[j].CreatedAt)
	})

	total := len(matched)
	limit, offset := pageBounds(filter.Limit, filter.Offset)
	if offset > total {
		offset = total
	}
	end := offset + limit
	if end > total {
		end = total
	}

	page := make([]domain.Ticket, 0, end-offset)
	for _, t := range matched[offset:end] {
		page = append(page, *r.s.hydrate(t))
	}
	return page, total, nil
}

func (r *ticketStore) UpdateStatus(_ context.Context, id string, status domain.TicketStatus) (*domain.Ticket, error) {
	return r.mutate(id, func(t *domain.Ticket) {
		t.Status = status
	})
}

func (r *ticketStore) AppendComment(_ context.Context, id string, comment domain.Comment) (*domain.Ticket, error) {
	return r.mutate(id, func(t *domain.Ticket) {
		t.Comments = append(t.Comments, comment)
		latest := comment.Message
		t.LatestComment = &latest
	})
}

func (r *ticketStore) PatchVersioned(_ context.Context, id string, expectedVersion int, patch repository.TicketPatch) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	if t.Version != expectedVersion {
		return nil, &repository.VersionConflictError{Current: t.Version}
	}
	r.j.ticketTouched(&r.s.data, id)

	if patch.Status != nil {
		t.Status = *patch.Status
	}
	if patch.Priority != nil {
		t.Priority = *patch.Priority
	}
	if patch.DeadlineAt != nil {
		t.SLA.DeadlineAt = *patch.DeadlineAt
		t.SLA.Breached = false
	}
	t.Version++
	t.UpdatedAt = r.s.now().UTC()
	return r.s.hydrate(t), nil
}

func (r *ticketStore) MarkBreached(_ context.Context, now time.Time) ([]string, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	ids := []string{}
	for _, id := range r.s.data.ticketOrder {
		t := r.s.data.tickets[id]
		if t.SLA.Breached || t.Status.IsTerminal() || t.SLA.DeadlineAt.After(now) {
			continue
		}
		r.j.ticketTouched(&r.s.data, id)
		t.SLA.Breached = true
		t.UpdatedAt = r.s.now().UTC()
		ids = append(ids, id)
	}
	return ids, nil
}

func (r *ticketStore) mutate(id string, apply func(t *domain.Ticket)) (*domain.Ticket, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	t, ok := r.s.data.tickets[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	r.j.ticketTouched(&r.s.data, id)
	apply(t)
	t.UpdatedAt = r.s.now().UTC()
	return r.s.hydrate(t), nil
}

func matches(t *domain.Ticket, filter repository.TicketFilter) bool {
	if filter.CreatedBy != nil && t.CreatedBy != *filter.CreatedBy {
		return false
	}
	if filter.AssignedTo != nil && (t.AssignedTo == nil || *t.AssignedTo != *filter.AssignedTo) {
		return false
	}
	if filter.BreachedOnly && !t.SLA.Breached {
		return false
	}
	if filter.SearchTerm != nil {
		term := strings.ToLower(strings.TrimSpace(*filter.SearchTerm))
		if term == "" {
			return true
		}
		latest := ""
		if t.LatestComment != nil {
			latest = *t.LatestComment
		}
		for _, field := range []string{t.Title, t.Description, latest} {
			if strings.Contains(strings.ToLower(field), term) {
				return true
			}
		}
		return false
	}
	return true
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

type userStore struct {
	s *Store
	j *journal
}

func (r *userStore) Create(_ context.Context, user *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, existing := range r.s.data.users {
		if strings.EqualFold(existing.Email, user.Email) {
			return repository.ErrDuplicateEmail
		}
	}

	now := r.s.now().UTC()
	user.ID = uuid.NewString()
	user.TicketCount = 0
	user.AssignedTickets = []string{}
	user.CreatedAt = now
	user.UpdatedAt = now

	r.s.data.users[user.ID] = cloneUser(user)
	r.s.data.userOrder = append(r.s.data.userOrder, user.ID)
	r.j.userCreated(user.ID)
	return nil
}

func (r *userStore) GetByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	u, ok := r.s.data.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneUser(u), nil
}

func (r *userStore) GetByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	for _, id := range r.s.data.userOrder {
		if u := r.s.data.users[id]; strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, repository.ErrNotFound
}

type agentStore struct {
	s *Store
	j *journal
}

func (r *agentStore) LeastLoaded(ctx context.Context) (*domain.User, error) {
	agents, err := r.List(ctx)
	if err != nil {
		return nil, err
	}
	if len(agents) == 0 {
		return nil, repository.ErrNoAgent
	}
	return &agents[0], nil
}

// List returns agents ordered by load, then by account age.
func (r *agentStore) List(_ context.Context) ([]domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()

	agents := []domain.User{}
	for _, id := range r.s.data.userOrder {
		if u := r.s.data.users[id]; u.Role == domain.RoleAgent {
			agents = append(agents, *cloneUser(u))
		}
	}
	sort.SliceStable(agents, func(i, j int) bool {
		if agents[i].TicketCount != agents[j].TicketCount {
			return agents[i].TicketCount < agents[j].TicketCount
		}
		return agents[i].CreatedAt.Before(agents[j].CreatedAt)
	})
	return agents, nil
}

func (r *agentStore) Acquire(_ context.Context, agentID, ticketID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.data.users[agentID]
	if !ok || indexOf(u.AssignedTickets, ticketID) >= 0 {
		return false, nil
	}
	r.j.userTouched(&r.s.data, agentID)
	u.AssignedTickets = append(u.AssignedTickets, ticketID)
	u.TicketCount++
	u.UpdatedAt = r.s.now().UTC()
	return true, nil
}

func (r *agentStore) Release(_ context.Context, agentID, ticketID string) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	u, ok := r.s.data.users[agentID]
	if !ok {
		return false, nil
	}
	idx := indexOf(u.AssignedTickets, ticketID)
	if idx < 0 {
		return false, nil
	}
	r.j.userTouched(&r.s.data, agentID)
	u.AssignedTickets = append(u.AssignedTickets[:idx], u.AssignedTickets[idx+1:]...)
	if u.TicketCount > 0 {
		u.TicketCount--
	}
	u.UpdatedAt = r.s.now().UTC()
	return true, nil
}

func indexOf(ids []string, id string) int {
	for i, candidate := range ids {
		if candidate == id {
			return i
		}
	}
	return -1
}
