// Package store defines the persistence contract for expenses and users.
//
// Every expense operation is scoped to the owning user: an empty user ID is
// rejected with core.ErrAccess, and a record owned by someone else is
// reported as core.ErrNotFound so ownership is never revealed.
package store

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"spendwise/internal/core"
)

type (
	ExpenseStore interface {
		// ListExpenses returns the user's expenses, newest date first.
		ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
		GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
		CreateExpense(ctx context.Context, userID string, fields core.ExpenseFields) (core.Expense, error)
		// UpdateExpense changes only the fields set in patch and refreshes UpdatedAt.
		UpdateExpense(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error)
		// DeleteExpense removes the record permanently. A missing id is ErrNotFound.
		DeleteExpense(ctx context.Context, userID, id string) error
	}

	UserStore interface {
		CreateUser(ctx context.Context, username, passwordHash string) (core.User, error)
		GetUserByUsername(ctx context.Context, username string) (core.User, error)
		ListUsers(ctx context.Context) ([]core.User, error)
	}

	// Store is what a storage backend provides to the rest of the application.
	Store interface {
		ExpenseStore
		UserStore
		Ping(ctx context.Context) error
		Close() error
	}
)

// RequireUser rejects an empty user scope.
func RequireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("user scope: %w", core.ErrAccess)
	}
	return nil
}

// RequireID rejects an empty expense identifier as not found.
func RequireID(id string) error {
	if strings.TrimSpace(id) == "" {
		return fmt.Errorf("expense id: %w", core.ErrNotFound)
	}
	return nil
}

// Unavailable marks a backend failure so callers can match core.ErrStoreUnavailable.
func Unavailable(op string, err error) error {
	return fmt.Errorf("%s: %w: %w", op, core.ErrStoreUnavailable, err)
}

// SortNewestFirst orders by date descending, then creation time descending,
// then ID so the order is total.
func SortNewestFirst(expenses []core.Expense) {
	sort.SliceStable(expenses, func(i, j int) bool {
		a, b := expenses[i], expenses[j]
		if !a.Date.Equal(b.Date.Time) {
			return a.Date.After(b.Date.Time)
		}
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return a.ID > b.ID
	})
}
