package aggregate

import (
	"testing"
	"time"

	"spendwise/internal/core"
)

func exp(date string, cents int64, cat core.Category, desc string) core.Expense {
	d, err := core.ParseDate(date)
	if err != nil {
		panic(err)
	}
	return core.Expense{Date: d, Amount: core.NewMoney(cents), Category: cat, Description: desc}
}

func sample() []core.Expense {
	return []core.Expense{
		exp("2025-01-31", 1500, core.Food, "Dinner out"),
		exp("2025-01-01", 4000, core.Bills, "Electricity"),
		exp("2024-12-31", 2500, core.Shopping, "Gift"),
		exp("2024-12-01", 1000, core.Food, "Groceries"),
		exp("2024-11-15", 700, core.Transportation, "Bus pass"),
	}
}

func TestTotalSum(t *testing.T) {
	if got := TotalSum(nil); got.Cents != 0 {
		t.Fatalf("empty total = %d, want 0", got.Cents)
	}
	if got := TotalSum(sample()); got.Cents != 9700 {
		t.Fatalf("total = %d, want 9700", got.Cents)
	}
}

func TestMonthSum(t *testing.T) {
	cases := []struct {
		month, year int
		want        int64
	}{
		{1, 2025, 5500},
		{12, 2024, 3500},
		{11, 2024, 700},
		{1, 2024, 0},
	}
	for _, tc := range cases {
		if got := MonthSum(sample(), tc.month, tc.year); got.Cents != tc.want {
			t.Errorf("MonthSum(%d/%d) = %d, want %d", tc.month, tc.year, got.Cents, tc.want)
		}
	}
}

func TestTotalEqualsSumOfMonths(t *testing.T) {
	data := sample()
	seen := map[[2]int]bool{}
	var sum core.Money
	for _, e := range data {
		k := [2]int{e.Date.Year(), e.Date.Month()}
		if seen[k] {
			continue
		}
		seen[k] = true
		sum = sum.Add(MonthSum(data, k[1], k[0]))
	}
	if sum != TotalSum(data) {
		t.Fatalf("partition mismatch: months=%v total=%v", sum, TotalSum(data))
	}
}

func TestTopCategory(t *testing.T) {
	if _, ok := TopCategory(nil); ok {
		t.Fatal("expected no top category for empty input")
	}

	tie := []core.Expense{
		exp("2025-01-01", 1000, core.Food, "a"),
		exp("2025-01-02", 1000, core.Food, "b"),
		exp("2025-01-03", 1000, core.Shopping, "c"),
	}
	for i := 0; i < 5; i++ {
		got, ok := TopCategory(tie)
		if !ok || got.Category != core.Food || got.Amount.Cents != 2000 {
			t.Fatalf("run %d: got %+v, want Food 20.00", i, got)
		}
	}

	equal := []core.Expense{
		exp("2025-01-01", 500, core.Bills, "a"),
		exp("2025-01-02", 500, core.Food, "b"),
	}
	if got, _ := TopCategory(equal); got.Category != core.Bills {
		t.Fatalf("tie should go to first seen category, got %v", got.Category)
	}

	if got, _ := TopCategory(sample()); got.Category != core.Bills || got.Amount.Cents != 4000 {
		t.Fatalf("got %+v, want Bills 40.00", got)
	}
}

func TestMonthlySeriesByCategory(t *testing.T) {
	now := time.Date(2025, 1, 20, 15, 0, 0, 0, time.UTC)
	cats := []core.Category{core.Food, core.Shopping, core.Entertainment}

	got := MonthlySeriesByCategory(sample(), cats, 3, now)

	wantLabels := []string{"Nov 2024", "Dec 2024", "Jan 2025"}
	if len(got.Labels) != 3 {
		t.Fatalf("labels = %v", got.Labels)
	}
	for i, l := range wantLabels {
		if got.Labels[i] != l {
			t.Errorf("label[%d] = %q, want %q", i, got.Labels[i], l)
		}
	}

	want := map[core.Category][]int64{
		core.Food:          {0, 1000, 1500},
		core.Shopping:      {0, 2500, 0},
		core.Entertainment: {0, 0, 0},
	}
	for cat, buckets := range want {
		series := got.Series[cat]
		if len(series) != 3 {
			t.Fatalf("%s has %d buckets, want 3", cat, len(series))
		}
		for i, c := range buckets {
			if series[i].Cents != c {
				t.Errorf("%s[%d] = %d, want %d", cat, i, series[i].Cents, c)
			}
		}
	}
	if _, ok := got.Series[core.Bills]; ok {
		t.Errorf("unrequested category present")
	}
}

func TestMonthlySeriesFixedLength(t *testing.T) {
	now := time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC)
	for _, n := range []int{0, 1, 6, 13, 60} {
		got := MonthlySeriesByCategory(nil, core.DefaultCategories.All(), n, now)
		if len(got.Labels) != n {
			t.Errorf("n=%d labels=%d", n, len(got.Labels))
		}
		for cat, s := range got.Series {
			if len(s) != n {
				t.Errorf("n=%d %s has %d buckets", n, cat, len(s))
			}
		}
	}
	if got := MonthlySeriesByCategory(sample(), []core.Category{core.Food}, -2, now); len(got.Series[core.Food]) != 0 {
		t.Errorf("negative month count should yield empty series")
	}
}

func TestMonthlySeriesMonthBoundary(t *testing.T) {
	// Expenses dated on the first of a month at midnight belong to that month.
	data := []core.Expense{
		exp("2025-03-01", 100, core.Other, "first"),
		exp("2025-02-28", 200, core.Other, "last"),
	}
	now := time.Date(2025, 3, 31, 23, 59, 0, 0, time.UTC)
	got := MonthlySeriesByCategory(data, []core.Category{core.Other}, 2, now)
	if got.Series[core.Other][0].Cents != 200 || got.Series[core.Other][1].Cents != 100 {
		t.Fatalf("boundary buckets = %v", got.Series[core.Other])
	}
}

func TestRecentExpenses(t *testing.T) {
	data := sample()
	got := RecentExpenses(data, 2)
	if len(got) != 2 || got[0].Description != "Dinner out" || got[1].Description != "Electricity" {
		t.Fatalf("unexpected recent %+v", got)
	}
	got[0].Description = "changed"
	if data[0].Description != "Dinner out" {
		t.Fatalf("RecentExpenses must not alias input")
	}
	if len(RecentExpenses(data, 50)) != len(data) {
		t.Fatalf("n larger than input should return all")
	}
	if len(RecentExpenses(data, 0)) != 0 {
		t.Fatalf("n=0 should return none")
	}

	unsorted := []core.Expense{exp("2024-01-01", 1, core.Food, "old"), exp("2025-01-01", 1, core.Food, "new")}
	if RecentExpenses(unsorted, 1)[0].Description != "old" {
		t.Fatalf("RecentExpenses must not re-sort")
	}
}

func TestFilter(t *testing.T) {
	from, _ := core.ParseDate("2024-12-01")
	to, _ := core.ParseDate("2024-12-31")

	cases := []struct {
		name   string
		filter ExpenseFilter
		want   []string
	}{
		{"no criteria", ExpenseFilter{}, []string{"Dinner out", "Electricity", "Gift", "Groceries", "Bus pass"}},
		{"category", ExpenseFilter{Category: core.Food}, []string{"Dinner out", "Groceries"}},
		{"inclusive range", ExpenseFilter{From: from, To: to}, []string{"Gift", "Groceries"}},
		{"search ignores case", ExpenseFilter{Search: "  GROC "}, []string{"Groceries"}},
		{"combined", ExpenseFilter{Category: core.Food, From: from}, []string{"Dinner out", "Groceries"}},
		{"nothing matches", ExpenseFilter{Category: core.Entertainment}, nil},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := Filter(sample(), tc.filter)
			if len(got) != len(tc.want) {
				t.Fatalf("got %d expenses, want %d", len(got), len(tc.want))
			}
			for i, d := range tc.want {
				if got[i].Description != d {
					t.Errorf("[%d] = %q, want %q", i, got[i].Description, d)
				}
			}
		})
	}
}

func TestBuildDashboard(t *testing.T) {
	now := time.Date(2025, 1, 20, 0, 0, 0, 0, time.UTC)
	d := BuildDashboard(sample(), now, 6, 5)

	if d.Stats.Total.Cents != 9700 || d.Stats.ThisMonth.Cents != 5500 {
		t.Fatalf("stats = %+v", d.Stats)
	}
	if d.Stats.TopCategory == nil || d.Stats.TopCategory.Category != core.Bills {
		t.Fatalf("top = %+v", d.Stats.TopCategory)
	}
	if len(d.Series.Labels) != 6 || d.Series.Labels[0] != "Aug 2024" {
		t.Fatalf("labels = %v", d.Series.Labels)
	}
	if len(d.Series.Series) != len(core.DefaultCategories.All()) {
		t.Fatalf("series should cover every category")
	}
	if len(d.Recent) != 5 {
		t.Fatalf("recent = %d", len(d.Recent))
	}

	empty := BuildDashboard(nil, now, 6, 5)
	if empty.Stats.TopCategory != nil || empty.Stats.Total.Cents != 0 || len(empty.Recent) != 0 {
		t.Fatalf("empty dashboard = %+v", empty)
	}
}
