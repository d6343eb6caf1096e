// Package memory is a process-local store used for development and tests.
package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"spendwise/internal/core"
	"spendwise/internal/store"
)

type Store struct {
	mu       sync.RWMutex
	expenses map[string]core.Expense
	users    map[string]core.User // keyed by normalized username
	now      func() time.Time
}

var _ store.Store = (*Store)(nil)

func New() *Store {
	return NewWithClock(time.Now)
}

// NewWithClock lets tests control the timestamps stamped on records.
func NewWithClock(now func() time.Time) *Store {
	return &Store{
		expenses: make(map[string]core.Expense),
		users:    make(map[string]core.User),
		now:      now,
	}
}

func (s *Store) ListExpenses(_ context.Context, userID string) ([]core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]core.Expense, 0, len(s.expenses))
	for _, e := range s.expenses {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	s.mu.RUnlock()
	store.SortNewestFirst(out)
	return out, nil
}

func (s *Store) GetExpense(_ context.Context, userID, id string) (core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return core.Expense{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.owned(userID, id)
}

func (s *Store) CreateExpense(_ context.Context, userID string, fields core.ExpenseFields) (core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return core.Expense{}, err
	}
	if err := fields.Validate(); err != nil {
		return core.Expense{}, err
	}
	now := s.now().UTC()
	e := core.Expense{
		ID:          uuid.NewString(),
		UserID:      userID,
		Date:        fields.Date,
		Amount:      fields.Amount,
		Category:    fields.Category,
		Description: fields.Description,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	s.mu.Lock()
	s.expenses[e.ID] = e
	s.mu.Unlock()
	return e, nil
}

func (s *Store) UpdateExpense(_ context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error) {
	if err := store.RequireUser(userID); err != nil {
		return core.Expense{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.owned(userID, id)
	if err != nil {
		return core.Expense{}, err
	}
	merged := patch.Apply(e.Fields())
	if err := merged.Validate(); err != nil {
		return core.Expense{}, err
	}
	e.Date, e.Amount, e.Category, e.Description = merged.Date, merged.Amount, merged.Category, merged.Description
	e.UpdatedAt = s.now().UTC()
	s.expenses[id] = e
	return e, nil
}

func (s *Store) DeleteExpense(_ context.Context, userID, id string) error {
	if err := store.RequireUser(userID); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.owned(userID, id); err != nil {
		return err
	}
	delete(s.expenses, id)
	return nil
}

// owned must be called with the lock held.
func (s *Store) owned(userID, id string) (core.Expense, error) {
	if err := store.RequireID(id); err != nil {
		return core.Expense{}, err
	}
	e, ok := s.expenses[id]
	if !ok || e.UserID != userID {
		return core.Expense{}, fmt.Errorf("expense %s: %w", id, core.ErrNotFound)
	}
	return e, nil
}

func (s *Store) CreateUser(_ context.Context, username, passwordHash string) (core.User, error) {
	u := core.User{
		ID:           uuid.NewString(),
		Username:     core.NormalizeUsername(username),
		PasswordHash: passwordHash,
		CreatedAt:    s.now().UTC(),
	}
	if err := u.Validate(); err != nil {
		return core.User{}, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.users[u.Username]; exists {
		return core.User{}, core.NewValidationError("username", core.ErrUsernameUnavailable)
	}
	s.users[u.Username] = u
	return u, nil
}

func (s *Store) GetUserByUsername(_ context.Context, username string) (core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[core.NormalizeUsername(username)]
	if !ok {
		return core.User{}, fmt.Errorf("user %q: %w", username, core.ErrNotFound)
	}
	return u, nil
}

func (s *Store) ListUsers(_ context.Context) ([]core.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	return out, nil
}

func (s *Store) Ping(context.Context) error { return nil }

func (s *Store) Close() error { return nil }
