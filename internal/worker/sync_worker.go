// Package worker mirrors expense changes from the store into a spreadsheet.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/sheets"
	"spendwise/internal/store"
)

// Source is the read side of the store the worker needs.
type Source interface {
	GetExpense(ctx context.Context, userID, id string) (core.Expense, error)
	ListExpenses(ctx context.Context, userID string) ([]core.Expense, error)
	ListUsers(ctx context.Context) ([]core.User, error)
}

// Consumer delivers change events until its context ends.
type Consumer interface {
	ConsumeExpenseChanges(ctx context.Context, handler amqp.Handler) error
}

var _ Source = (store.Store)(nil)

// SyncWorker applies change events to the mirror and periodically reconciles
// every user's rows as a backstop for lost events.
type SyncWorker struct {
	source   Source
	mirror   sheets.Mirror
	interval time.Duration
	logger   *log.Logger
}

func NewSyncWorker(source Source, mirror sheets.Mirror, interval time.Duration, logger *log.Logger) *SyncWorker {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &SyncWorker{
		source:   source,
		mirror:   mirror,
		interval: interval,
		logger:   logger.WithComponent(log.ComponentWorker),
	}
}

// HandleMessage mirrors one event. The store is re-read so the row always
// reflects the latest state, whatever order events arrive in.
func (w *SyncWorker) HandleMessage(ctx context.Context, msg *amqp.ExpenseChangedMessage) error {
	w.logger.DebugContext(ctx, "Processing expense change",
		log.FieldExpenseID, msg.ExpenseID,
		log.FieldMessageOp, string(msg.Op),
		"version", msg.Version)

	switch msg.Op {
	case amqp.OpDelete:
		return w.remove(ctx, msg.ExpenseID)
	case amqp.OpUpsert:
		e, err := w.source.GetExpense(ctx, msg.UserID, msg.ExpenseID)
		if errors.Is(err, core.ErrNotFound) {
			// Deleted after the event was published.
			return w.remove(ctx, msg.ExpenseID)
		}
		if err != nil {
			return fmt.Errorf("get expense from store: %w", err)
		}
		ref, err := w.mirror.Upsert(ctx, e)
		if err != nil {
			return fmt.Errorf("mirror expense: %w", err)
		}
		w.logger.InfoContext(ctx, "Mirrored expense",
			log.FieldExpenseID, e.ID,
			log.FieldUserID, e.UserID,
			"sheets_ref", ref)
		return nil
	default:
		return fmt.Errorf("unknown op %q", msg.Op)
	}
}

func (w *SyncWorker) remove(ctx context.Context, id string) error {
	if err := w.mirror.Remove(ctx, id); err != nil {
		return fmt.Errorf("remove mirrored expense: %w", err)
	}
	w.logger.InfoContext(ctx, "Removed mirrored expense", log.FieldExpenseID, id)
	return nil
}

// ReconcileAll reconciles every user's rows. A failing user does not stop the
// others; all failures are returned together.
func (w *SyncWorker) ReconcileAll(ctx context.Context) (sheets.ReconcileResult, error) {
	var total sheets.ReconcileResult
	users, err := w.source.ListUsers(ctx)
	if err != nil {
		return total, fmt.Errorf("list users: %w", err)
	}

	var errs []error
	for _, u := range users {
		if err := ctx.Err(); err != nil {
			return total, err
		}
		expenses, err := w.source.ListExpenses(ctx, u.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("list expenses for %s: %w", u.Username, err))
			continue
		}
		res, err := w.mirror.Reconcile(ctx, u.ID, expenses)
		if err != nil {
			errs = append(errs, fmt.Errorf("reconcile %s: %w", u.Username, err))
			continue
		}
		total.Written += res.Written
		total.Removed += res.Removed
		total.Unchanged += res.Unchanged
	}

	w.logger.InfoContext(ctx, "Reconciliation completed",
		log.FieldCount, len(users),
		"written", total.Written,
		"removed", total.Removed,
		"unchanged", total.Unchanged,
		"errors", len(errs))
	return total, errors.Join(errs...)
}

// Run consumes events and reconciles on every interval until ctx is cancelled
// or the consumer fails. A reconciliation runs immediately at startup.
func (w *SyncWorker) Run(ctx context.Context, consumer Consumer) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return consumer.ConsumeExpenseChanges(ctx, w.HandleMessage)
	})

	g.Go(func() error {
		w.reconcile(ctx)
		if w.interval <= 0 {
			return nil
		}
		ticker := time.NewTicker(w.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-ticker.C:
				w.reconcile(ctx)
			}
		}
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (w *SyncWorker) reconcile(ctx context.Context) {
	if _, err := w.ReconcileAll(ctx); err != nil && ctx.Err() == nil {
		w.logger.ErrorContext(ctx, "Reconciliation failed", log.FieldError, err)
	}
}
