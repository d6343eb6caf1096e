package services

import (
	"context"
	"fmt"
	"time"

	"spendwise/internal/aggregate"
	"spendwise/internal/core"
	"spendwise/internal/projection"
	"spendwise/internal/store"
)

// Clock returns the reference instant for month-relative figures.
type Clock func() time.Time

// DashboardService loads a user's expenses and derives the dashboard view from them.
type DashboardService struct {
	store         store.ExpenseStore
	now           Clock
	defaultMonths int
	defaultRecent int
}

func NewDashboardService(s store.ExpenseStore, now Clock, defaultMonths, defaultRecent int) *DashboardService {
	if now == nil {
		now = time.Now
	}
	return &DashboardService{store: s, now: now, defaultMonths: defaultMonths, defaultRecent: defaultRecent}
}

// Dashboard recomputes stats, series and recent expenses from the full record set.
// Zero months or recent fall back to the configured defaults.
func (s *DashboardService) Dashboard(ctx context.Context, userID string, months, recent int) (aggregate.Dashboard, error) {
	if months == 0 {
		months = s.defaultMonths
	}
	if recent == 0 {
		recent = s.defaultRecent
	}
	if months < projection.MinHorizon || months > projection.MaxHorizon {
		return aggregate.Dashboard{}, core.NewValidationError("months",
			fmt.Errorf("must be between %d and %d", projection.MinHorizon, projection.MaxHorizon))
	}
	if recent < 0 {
		return aggregate.Dashboard{}, core.NewValidationError("recent", fmt.Errorf("must not be negative"))
	}

	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return aggregate.Dashboard{}, fmt.Errorf("load dashboard: %w", err)
	}
	return aggregate.BuildDashboard(expenses, s.now(), months, recent), nil
}

// SavingsService projects savings using the user's spending in the current month.
type SavingsService struct {
	store store.ExpenseStore
	now   Clock
}

func NewSavingsService(s store.ExpenseStore, now Clock) *SavingsService {
	if now == nil {
		now = time.Now
	}
	return &SavingsService{store: s, now: now}
}

// Project validates p, fills MonthExpenses from the store and builds the projection.
func (s *SavingsService) Project(ctx context.Context, userID string, p projection.Params) (projection.Projection, error) {
	if err := p.Validate(); err != nil {
		return projection.Projection{}, err
	}
	expenses, err := s.store.ListExpenses(ctx, userID)
	if err != nil {
		return projection.Projection{}, fmt.Errorf("load savings: %w", err)
	}
	now := s.now()
	p.MonthExpenses = aggregate.MonthSum(expenses, int(now.Month()), now.Year())
	return projection.Build(p, now), nil
}
