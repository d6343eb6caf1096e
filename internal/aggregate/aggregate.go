// Package aggregate derives totals, category breakdowns and monthly series
// from a list of expenses. Every function is pure: the reference instant is
// passed in, and inputs are never mutated.
package aggregate

import (
	"strings"
	"time"

	"spendwise/internal/core"
)

// SeriesLabelLayout formats month labels on dashboard series ("Jan 2025").
const SeriesLabelLayout = "Jan 2006"

// CategorySeries holds one fixed-length bucket slice per category, aligned with Labels.
type CategorySeries struct {
	Labels []string                       `json:"labels"`
	Series map[core.Category][]core.Money `json:"series"`
}

// Dashboard is the view model served to the dashboard page.
type Dashboard struct {
	Stats  core.DashboardStats `json:"stats"`
	Series CategorySeries      `json:"series"`
	Recent []core.Expense      `json:"recent"`
}

// ExpenseFilter narrows an expense list. Zero values disable a criterion.
type ExpenseFilter struct {
	Category core.Category
	From     core.Date
	To       core.Date
	Search   string
}

// TotalSum adds every amount; an empty slice sums to zero.
func TotalSum(expenses []core.Expense) core.Money {
	var total core.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}
	return total
}

// MonthSum sums the expenses dated in the given calendar month (1-12) of year.
func MonthSum(expenses []core.Expense, month, year int) core.Money {
	var total core.Money
	for _, e := range expenses {
		if e.Date.InMonth(year, month) {
			total = total.Add(e.Amount)
		}
	}
	return total
}

// TopCategory returns the category with the largest summed amount.
// Ties go to the category that appears first in the input; the boolean is
// false when expenses is empty.
func TopCategory(expenses []core.Expense) (core.CategoryAmount, bool) {
	if len(expenses) == 0 {
		return core.CategoryAmount{}, false
	}
	totals := make(map[core.Category]core.Money)
	var order []core.Category
	for _, e := range expenses {
		if _, seen := totals[e.Category]; !seen {
			order = append(order, e.Category)
		}
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}

	best := core.CategoryAmount{Category: order[0], Amount: totals[order[0]]}
	for _, c := range order[1:] {
		if best.Amount.LessThan(totals[c]) {
			best = core.CategoryAmount{Category: c, Amount: totals[c]}
		}
	}
	return best, true
}

// MonthlySeriesByCategory buckets expenses into the monthCount calendar months
// ending with now's month, oldest first. Every category receives exactly
// monthCount buckets; empty months are zero.
func MonthlySeriesByCategory(expenses []core.Expense, categories []core.Category, monthCount int, now time.Time) CategorySeries {
	if monthCount < 0 {
		monthCount = 0
	}
	out := CategorySeries{
		Labels: make([]string, monthCount),
		Series: make(map[core.Category][]core.Money, len(categories)),
	}
	for _, c := range categories {
		out.Series[c] = make([]core.Money, monthCount)
	}
	if monthCount == 0 {
		return out
	}

	first := monthStart(now).AddDate(0, -(monthCount - 1), 0)
	index := make(map[int]int, monthCount)
	for i := 0; i < monthCount; i++ {
		m := first.AddDate(0, i, 0)
		out.Labels[i] = m.Format(SeriesLabelLayout)
		index[monthKey(m.Year(), int(m.Month()))] = i
	}

	for _, e := range expenses {
		bucket, ok := out.Series[e.Category]
		if !ok {
			continue
		}
		if i, ok := index[monthKey(e.Date.Year(), e.Date.Month())]; ok {
			bucket[i] = bucket[i].Add(e.Amount)
		}
	}
	return out
}

// RecentExpenses returns the first n expenses as given. It does not sort:
// callers pass lists already ordered newest first.
func RecentExpenses(expenses []core.Expense, n int) []core.Expense {
	if n <= 0 {
		return []core.Expense{}
	}
	if n > len(expenses) {
		n = len(expenses)
	}
	out := make([]core.Expense, n)
	copy(out, expenses[:n])
	return out
}

// Filter keeps expenses matching every set criterion. Date bounds are inclusive
// and the search is a case-insensitive substring match on the description.
func Filter(expenses []core.Expense, f ExpenseFilter) []core.Expense {
	search := strings.ToLower(strings.TrimSpace(f.Search))
	out := make([]core.Expense, 0, len(expenses))
	for _, e := range expenses {
		if f.Category != "" && e.Category != f.Category {
			continue
		}
		if !f.From.IsZero() && e.Date.Before(f.From.Time) {
			continue
		}
		if !f.To.IsZero() && e.Date.After(f.To.Time) {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(e.Description), search) {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Stats computes the dashboard headline numbers relative to now's calendar month.
func Stats(expenses []core.Expense, now time.Time) core.DashboardStats {
	stats := core.DashboardStats{
		Total:     TotalSum(expenses),
		ThisMonth: MonthSum(expenses, int(now.Month()), now.Year()),
	}
	if top, ok := TopCategory(expenses); ok {
		stats.TopCategory = &top
	}
	return stats
}

// BuildDashboard composes stats, the per-category series over all registered
// categories, and the most recent expenses.
func BuildDashboard(expenses []core.Expense, now time.Time, monthCount, recentCount int) Dashboard {
	return Dashboard{
		Stats:  Stats(expenses, now),
		Series: MonthlySeriesByCategory(expenses, core.DefaultCategories.All(), monthCount, now),
		Recent: RecentExpenses(expenses, recentCount),
	}
}

func monthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

func monthKey(year, month int) int {
	return year*12 + month
}
