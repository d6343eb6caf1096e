package services

import (
	"context"
	"errors"
	"fmt"
	"io"

	"spendwise/internal/aggregate"
	"spendwise/internal/amqp"
	"spendwise/internal/core"
	"spendwise/internal/log"
	"spendwise/internal/store"
)

// ChangePublisher announces expense changes to downstream consumers.
type ChangePublisher interface {
	PublishExpenseChanged(ctx context.Context, msg *amqp.ExpenseChangedMessage) error
}

// ExpenseService orchestrates expense operations across the store and the change feed.
// The store is the source of truth; publishing is best effort.
type ExpenseService struct {
	store     store.ExpenseStore
	publisher ChangePublisher
	logger    *log.Logger
}

func NewExpenseService(s store.ExpenseStore, publisher ChangePublisher, logger *log.Logger) *ExpenseService {
	if logger == nil {
		logger = log.New(log.DefaultConfig())
	}
	return &ExpenseService{
		store:     s,
		publisher: publisher,
		logger:    logger.WithComponent(log.ComponentExpense),
	}
}

// List returns the user's expenses, newest first, narrowed by filter.
func (s *ExpenseService) List(ctx context.Context, userID string, filter aggregate.ExpenseFilter) ([]core.Expense, error) {
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	return aggregate.Filter(expenses, filter), nil
}

func (s *ExpenseService) Get(ctx context.Context, userID, id string) (core.Expense, error) {
	e, err := s.store.GetExpense(ctx, userID, id)
	if err != nil {
		return core.Expense{}, fmt.Errorf("get expense: %w", err)
	}
	return e, nil
}

// Create saves an expense and publishes an upsert event.
func (s *ExpenseService) Create(ctx context.Context, userID string, fields core.ExpenseFields) (core.Expense, error) {
	e, err := s.store.CreateExpense(ctx, userID, fields)
	if err != nil {
		return core.Expense{}, fmt.Errorf("create expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense created",
		log.FieldUserID, userID,
		log.FieldExpenseID, e.ID,
		log.FieldCategory, string(e.Category),
		log.FieldAmountCents, e.Amount.Cents)
	s.publish(ctx, amqp.OpUpsert, userID, e.ID, e.UpdatedAt.UnixNano())
	return e, nil
}

// Update applies patch and publishes an upsert event. An empty patch is a validation error.
func (s *ExpenseService) Update(ctx context.Context, userID, id string, patch core.ExpensePatch) (core.Expense, error) {
	if patch.IsEmpty() {
		return core.Expense{}, core.NewValidationError("patch", core.ErrEmptyPatch)
	}
	e, err := s.store.UpdateExpense(ctx, userID, id, patch)
	if err != nil {
		return core.Expense{}, fmt.Errorf("update expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense updated", log.FieldUserID, userID, log.FieldExpenseID, e.ID)
	s.publish(ctx, amqp.OpUpsert, userID, e.ID, e.UpdatedAt.UnixNano())
	return e, nil
}

// Delete removes an expense permanently and publishes a delete event.
func (s *ExpenseService) Delete(ctx context.Context, userID, id string) error {
	if err := s.store.DeleteExpense(ctx, userID, id); err != nil {
		return fmt.Errorf("delete expense: %w", err)
	}
	s.logger.InfoContext(ctx, "Expense deleted", log.FieldUserID, userID, log.FieldExpenseID, id)
	s.publish(ctx, amqp.OpDelete, userID, id, 0)
	return nil
}

// publish never fails the request: the record is already durable.
func (s *ExpenseService) publish(ctx context.Context, op amqp.ChangeOp, userID, id string, version int64) {
	if s.publisher == nil {
		s.logger.DebugContext(ctx, "No change publisher configured, skipping event", log.FieldExpenseID, id)
		return
	}
	msg := amqp.NewExpenseChangedMessage(op, userID, id, version)
	if err := s.publisher.PublishExpenseChanged(ctx, msg); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish expense change",
			log.FieldExpenseID, id,
			log.FieldMessageOp, string(op),
			log.FieldError, err)
	}
}

// Close releases the publisher when it holds a connection.
func (s *ExpenseService) Close() error {
	var errs []error
	if c, ok := s.publisher.(io.Closer); ok {
		if err := c.Close(); err != nil {
			errs = append(errs, fmt.Errorf("publisher: %w", err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("close expense service: %w", errors.Join(errs...))
	}
	return nil
}
