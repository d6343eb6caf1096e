// Package sheets mirrors expenses into a spreadsheet, one row per expense.
package sheets

import (
	"context"

	"spendwise/internal/core"
)

// Ports for outbound adapters.
type (
	// Mirror keeps a row per expense in sync with the store.
	Mirror interface {
		// Upsert writes e to its existing row, or appends one.
		Upsert(ctx context.Context, e core.Expense) (rowRef string, err error)
		// Remove clears the row for expenseID. A missing row is not an error.
		Remove(ctx context.Context, expenseID string) error
		// Reconcile makes the user's rows match expenses exactly.
		Reconcile(ctx context.Context, userID string, expenses []core.Expense) (ReconcileResult, error)
	}
)

// ReconcileResult counts the rows a reconciliation touched.
type ReconcileResult struct {
	Written   int
	Removed   int
	Unchanged int
}
