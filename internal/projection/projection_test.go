package projection

import (
	"errors"
	"strings"
	"testing"
	"time"

	"spendwise/internal/core"
)

func units(n int64) core.Money { return core.NewMoney(n * 100) }

func TestLinearTrajectory(t *testing.T) {
	got := LinearTrajectory(units(100), 3)
	want := []int64{10000, 20000, 30000}
	if len(got) != len(want) {
		t.Fatalf("len = %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Cents != want[i] {
			t.Errorf("[%d] = %d, want %d", i, got[i].Cents, want[i])
		}
	}
	if len(LinearTrajectory(units(100), 0)) != 0 || len(LinearTrajectory(units(100), -1)) != 0 {
		t.Errorf("non-positive horizon should be empty")
	}
	neg := LinearTrajectory(units(-50), 2)
	if neg[1].Cents != -10000 {
		t.Errorf("negative rate should accumulate linearly, got %v", neg)
	}
}

func TestNetMonthlySavings(t *testing.T) {
	if got := NetMonthlySavings(units(5000), units(6000)); got.Cents != -100000 {
		t.Fatalf("got %d, want -100000", got.Cents)
	}
	if got := NetMonthlySavings(units(5000), units(3200)); got.Cents != 180000 {
		t.Fatalf("got %d, want 180000", got.Cents)
	}
}

func TestMonthsToGoal(t *testing.T) {
	cases := []struct {
		name      string
		goal      core.Money
		rate      core.Money
		months    int
		reachable bool
	}{
		{"exact", units(1500), units(500), 3, true},
		{"rounds up", units(1500), units(400), 4, true},
		{"sub-unit rate", units(1), core.NewMoney(30), 4, true},
		{"zero rate", units(1500), units(0), 1500, false},
		{"negative rate", units(1500), units(-200), 1500, false},
		{"zero goal", units(0), units(100), 0, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			m, ok := MonthsToGoal(tc.goal, tc.rate)
			if m != tc.months || ok != tc.reachable {
				t.Fatalf("MonthsToGoal = (%d, %v), want (%d, %v)", m, ok, tc.months, tc.reachable)
			}
		})
	}
}

func TestSavingsGapToGoal(t *testing.T) {
	if got := SavingsGapToGoal(units(1500), units(1000)); got.Cents != 50000 {
		t.Errorf("behind: %d", got.Cents)
	}
	if got := SavingsGapToGoal(units(1500), units(2000)); got.Cents != 50000 {
		t.Errorf("ahead: %d", got.Cents)
	}
	if got := SavingsGapToGoal(units(1500), units(-500)); got.Cents != 200000 {
		t.Errorf("deficit: %d", got.Cents)
	}
}

func TestSavingsRate(t *testing.T) {
	r, ok := SavingsRate(units(1500), units(5000))
	if !ok || r.StringFixed(1) != "30.0" {
		t.Fatalf("got %s %v", r, ok)
	}
	r, ok = SavingsRate(units(-1000), units(5000))
	if !ok || r.StringFixed(1) != "-20.0" {
		t.Fatalf("deficit rate got %s", r)
	}
	if _, ok := SavingsRate(units(10), units(0)); ok {
		t.Fatal("zero income should be undefined")
	}
}

func TestRecommend(t *testing.T) {
	r := Recommend(units(1500), units(1000), units(0))
	if r.OnTrack || r.ReduceBy.Cents != 50000 || !strings.Contains(r.Message, "500.00") {
		t.Fatalf("behind: %+v", r)
	}
	r = Recommend(units(1500), units(1000), units(500))
	if !r.OnTrack {
		t.Fatalf("reduction closing the gap should be on track: %+v", r)
	}
}

func TestLabels(t *testing.T) {
	got := Labels(time.Date(2024, 11, 30, 0, 0, 0, 0, time.UTC), 3)
	want := []string{"November 2024", "December 2024", "January 2025"}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestBuild(t *testing.T) {
	now := time.Date(2025, 1, 15, 0, 0, 0, 0, time.UTC)
	p := Params{
		Income:        units(5000),
		Goal:          units(1500),
		Reduction:     units(100),
		Months:        12,
		MonthExpenses: units(4000),
	}
	got := Build(p, now)

	if len(got.Series.Labels) != 12 || len(got.Series.Goal) != 12 || len(got.Series.Projected) != 12 {
		t.Fatalf("series lengths mismatch: %+v", got.Series)
	}
	if got.Series.Labels[0] != "January 2025" {
		t.Errorf("first label = %q", got.Series.Labels[0])
	}
	if got.Series.Goal[11].Cents != units(18000).Cents {
		t.Errorf("goal[11] = %v", got.Series.Goal[11])
	}
	if got.Series.Projected[0].Cents != units(1100).Cents {
		t.Errorf("projected[0] = %v", got.Series.Projected[0])
	}

	ins := got.Insights
	if ins.NetMonthly.Cents != units(1000).Cents || ins.AdjustedMonthly.Cents != units(1100).Cents || ins.Deficit {
		t.Errorf("net/adjusted: %+v", ins)
	}
	if ins.SavingsRate == nil || *ins.SavingsRate != "20.0" {
		t.Errorf("savings rate = %v", ins.SavingsRate)
	}
	if ins.AnnualProjection.Cents != units(13200).Cents {
		t.Errorf("annual = %v", ins.AnnualProjection)
	}
	if ins.GapToGoal.Cents != units(400).Cents || ins.MonthsToGoal != 2 || !ins.GoalReachable {
		t.Errorf("goal figures: %+v", ins)
	}
	if ins.Recommendation.OnTrack || ins.Recommendation.ReduceBy.Cents != units(500).Cents {
		t.Errorf("recommendation: %+v", ins.Recommendation)
	}
}

func TestBuildDeficitIsSurfaced(t *testing.T) {
	p := Params{Income: units(5000), Goal: units(1500), Months: 3, MonthExpenses: units(6000)}
	ins := Build(p, time.Now()).Insights

	if !ins.Deficit || ins.NetMonthly.Cents != units(-1000).Cents {
		t.Fatalf("deficit not surfaced: %+v", ins)
	}
	if ins.GoalReachable || ins.MonthsToGoal != 1500 {
		t.Fatalf("unreachable goal not surfaced: %+v", ins)
	}
	if !strings.HasPrefix(ins.Recommendation.Message, "Goal unreachable") {
		t.Fatalf("message = %q", ins.Recommendation.Message)
	}
}

func TestParamsValidate(t *testing.T) {
	ok := Params{Income: units(1), Goal: units(1), Months: 1}
	if err := ok.Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	largest := Params{Income: MaxAmount, Goal: MaxAmount, Reduction: MaxAmount, Months: MaxHorizon}
	if err := largest.Validate(); err != nil {
		t.Fatalf("unexpected %v", err)
	}
	adjusted := NetMonthlySavings(largest.Income, core.Money{}).Add(largest.Reduction)
	traj := LinearTrajectory(adjusted, MaxHorizon)
	for i := 1; i < len(traj); i++ {
		if !traj[i-1].LessThan(traj[i]) {
			t.Fatalf("trajectory not increasing at month %d: %s then %s", i+1, traj[i-1], traj[i])
		}
	}
	if AnnualProjection(adjusted).IsNegative() {
		t.Fatal("annual projection overflowed")
	}
	for _, bad := range []Params{
		{Months: 0},
		{Months: 61},
		{Months: 12, Income: units(-1)},
		{Months: 12, Goal: units(-1)},
		{Months: 12, Reduction: units(-1)},
		{Months: 12, Income: MaxAmount.Add(core.NewMoney(1))},
		{Months: 12, Goal: core.NewMoney(8000000000000000000)},
	} {
		if err := bad.Validate(); !errors.Is(err, core.ErrValidation) {
			t.Errorf("%+v expected validation error, got %v", bad, err)
		}
	}
}
