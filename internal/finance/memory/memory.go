// Package memory is an in-process finance.Store used by tests and the
// memory backend.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"tresor/internal/alerts"
	"tresor/internal/core"
	"tresor/internal/finance"
)

type Store struct {
	mu           sync.Mutex
	users        map[string]finance.User // by id
	transactions map[string][]core.Transaction
	budgets      map[string][]core.Budget
	tickets      map[string]finance.Ticket
	records      map[string]alerts.Record
	now          func() time.Time
}

func New() *Store {
	return &Store{
		users:        map[string]finance.User{},
		transactions: map[string][]core.Transaction{},
		budgets:      map[string][]core.Budget{},
		tickets:      map[string]finance.Ticket{},
		records:      map[string]alerts.Record{},
		now:          time.Now,
	}
}

func (s *Store) CreateTransaction(_ context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	if tx.CreatedAt.IsZero() {
		tx.CreatedAt = s.now()
	}
	s.transactions[userID] = append(s.transactions[userID], tx)
	return tx, nil
}

func (s *Store) UpdateTransaction(_ context.Context, userID string, tx core.Transaction) (core.Transaction, error) {
	if err := tx.Validate(); err != nil {
		return core.Transaction{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.transactions[userID]
	for i, existing := range list {
		if existing.ID == tx.ID {
			tx.CreatedAt = existing.CreatedAt
			tx.TicketID = existing.TicketID
			list[i] = tx
			return tx, nil
		}
	}
	return core.Transaction{}, finance.ErrNotFound
}

// ListTransactions returns the user's transactions for the month, most
// recent date first.
func (s *Store) ListTransactions(_ context.Context, userID string, month core.MonthKey) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []core.Transaction
	for _, tx := range s.transactions[userID] {
		if month.Contains(tx.Date) {
			out = append(out, tx)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Date.After(out[j].Date.Time)
	})
	return out, nil
}

func (s *Store) DeleteTransaction(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.transactions[userID]
	for i, tx := range list {
		if tx.ID == id {
			s.transactions[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return finance.ErrNotFound
}

func (s *Store) CreateBudget(_ context.Context, userID string, b core.Budget) (core.Budget, error) {
	if err := b.Validate(); err != nil {
		return core.Budget{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.budgets[userID] {
		if existing.Category == b.Category {
			return core.Budget{}, finance.ErrBudgetExists
		}
	}
	if b.ID == "" {
		b.ID = uuid.NewString()
	}
	s.budgets[userID] = append(s.budgets[userID], b)
	return b, nil
}

func (s *Store) UpdateBudget(_ context.Context, userID string, b core.Budget) error {
	if err := b.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.budgets[userID]
	for _, existing := range list {
		if existing.Category == b.Category && existing.ID != b.ID {
			return finance.ErrBudgetExists
		}
	}
	for i, existing := range list {
		if existing.ID == b.ID {
			list[i] = b
			return nil
		}
	}
	return finance.ErrNotFound
}

func (s *Store) DeleteBudget(_ context.Context, userID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	list := s.budgets[userID]
	for i, b := range list {
		if b.ID == id {
			s.budgets[userID] = append(list[:i], list[i+1:]...)
			return nil
		}
	}
	return finance.ErrNotFound
}

func (s *Store) ListBudgets(_ context.Context, userID string) ([]core.Budget, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]core.Budget(nil), s.budgets[userID]...), nil
}

func (s *Store) CreateUser(_ context.Context, u finance.User) (finance.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.users {
		if existing.Username == u.Username {
			return finance.User{}, finance.ErrUsernameInUse
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = s.now()
	}
	s.users[u.ID] = u
	return u, nil
}

func (s *Store) UserByUsername(_ context.Context, username string) (finance.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Username == username {
			return u, nil
		}
	}
	return finance.User{}, finance.ErrNotFound
}

func (s *Store) ListUserIDs(_ context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ids := make([]string, 0, len(s.users))
	for id := range s.users {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

func (s *Store) SaveTicket(_ context.Context, t finance.Ticket) (finance.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		t.ID = uuid.NewString()
	}
	if t.CreatedAt.IsZero() {
		t.CreatedAt = s.now()
	}
	s.tickets[t.ID] = t
	return t, nil
}

func (s *Store) TicketByID(_ context.Context, userID, id string) (finance.Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.tickets[id]
	if !ok || t.UserID != userID {
		return finance.Ticket{}, finance.ErrNotFound
	}
	return t, nil
}

func (s *Store) Load(_ context.Context, userID string) (alerts.Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	r, ok := s.records[userID]
	if !ok {
		return alerts.NewRecord(), nil
	}
	return r.Clone(), nil
}

func (s *Store) Save(_ context.Context, userID string, record alerts.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.records[userID] = record.Clone()
	return nil
}
