// Package projection extrapolates monthly savings forward. The model is
// deliberately linear: no interest, no variance, no inflation.
package projection

import (
	"fmt"
	"math"
	"time"

	"github.com/shopspring/decimal"

	"spendwise/internal/core"
)

const (
	LabelLayout = "January 2006"
	MinHorizon  = 1
	MaxHorizon  = 60
)

// Defaults used when the caller leaves a parameter out.
var (
	DefaultIncome    = core.NewMoney(500000)
	DefaultGoal      = core.NewMoney(150000)
	DefaultReduction = core.NewMoney(0)
	DefaultHorizon   = 12
)

// MaxAmount bounds income, goal and reduction so that a rate built from them,
// multiplied across the longest horizon, stays within int64 cents.
var MaxAmount = core.NewMoney(math.MaxInt64 / (4 * MaxHorizon))

var (
	hundred = decimal.NewFromInt(100)
	oneUnit = core.NewMoney(100)
)

// Params are the user inputs for a projection.
type Params struct {
	Income        core.Money
	Goal          core.Money
	Reduction     core.Money
	Months        int
	MonthExpenses core.Money
}

func (p Params) Validate() error {
	if p.Months < MinHorizon || p.Months > MaxHorizon {
		return core.NewValidationError("months", fmt.Errorf("horizon must be between %d and %d months", MinHorizon, MaxHorizon))
	}
	for _, f := range []struct {
		name  string
		value core.Money
	}{{"income", p.Income}, {"goal", p.Goal}, {"reduction", p.Reduction}} {
		if f.value.IsNegative() || MaxAmount.LessThan(f.value) {
			return core.NewValidationError(f.name, core.ErrInvalidAmount)
		}
	}
	return nil
}

// Series is the chart data for a projection horizon.
type Series struct {
	Labels    []string     `json:"labels"`
	Goal      []core.Money `json:"goal"`
	Projected []core.Money `json:"projected"`
}

// Insights are the figures shown next to the chart.
type Insights struct {
	NetMonthly       core.Money     `json:"net_monthly"`
	AdjustedMonthly  core.Money     `json:"adjusted_monthly"`
	Deficit          bool           `json:"deficit"`
	SavingsRate      *string        `json:"savings_rate"`
	AnnualProjection core.Money     `json:"annual_projection"`
	GapToGoal        core.Money     `json:"gap_to_goal"`
	MonthsToGoal     int            `json:"months_to_goal"`
	GoalReachable    bool           `json:"goal_reachable"`
	Recommendation   Recommendation `json:"recommendation"`
}

type Recommendation struct {
	OnTrack  bool       `json:"on_track"`
	ReduceBy core.Money `json:"reduce_by"`
	Message  string     `json:"message"`
}

// Projection is the full savings view model.
type Projection struct {
	Series   Series   `json:"series"`
	Insights Insights `json:"insights"`
}

// LinearTrajectory returns the cumulative balance after each month: rate*1 .. rate*months.
func LinearTrajectory(rate core.Money, months int) []core.Money {
	if months < 0 {
		months = 0
	}
	out := make([]core.Money, months)
	for i := range out {
		out[i] = rate.Mul(int64(i + 1))
	}
	return out
}

// NetMonthlySavings is income minus this month's spending. A negative result is a deficit.
func NetMonthlySavings(income, monthExpenseTotal core.Money) core.Money {
	return income.Sub(monthExpenseTotal)
}

// MonthsToGoal returns ceil(goal / rate). A non-positive rate cannot reach the
// goal; the division then uses one currency unit and reachable is false.
func MonthsToGoal(goal, rate core.Money) (months int, reachable bool) {
	reachable = rate.Cents > 0
	if !reachable {
		rate = oneUnit
	}
	q := decimal.NewFromInt(goal.Cents).Div(decimal.NewFromInt(rate.Cents)).Ceil()
	return int(q.IntPart()), reachable
}

// SavingsGapToGoal is the unsigned distance between goal and rate.
func SavingsGapToGoal(goal, rate core.Money) core.Money {
	return goal.Sub(rate).Abs()
}

// SavingsRate is net as a percentage of income, rounded to one decimal.
// It is undefined for a non-positive income.
func SavingsRate(net, income core.Money) (decimal.Decimal, bool) {
	if income.Cents <= 0 {
		return decimal.Zero, false
	}
	return net.Decimal().Div(income.Decimal()).Mul(hundred).Round(1), true
}

// AnnualProjection is twelve months at the given rate.
func AnnualProjection(rate core.Money) core.Money {
	return rate.Mul(12)
}

// Recommend compares the adjusted rate (net plus the planned reduction) with the goal.
func Recommend(goal, net, reduction core.Money) Recommendation {
	if !net.Add(reduction).LessThan(goal) {
		return Recommendation{OnTrack: true, Message: "You are on track to meet your savings goal."}
	}
	reduceBy := goal.Sub(net)
	return Recommendation{
		ReduceBy: reduceBy,
		Message:  fmt.Sprintf("Reduce monthly expenses by %s to reach your savings goal.", reduceBy),
	}
}

// Labels returns month names starting at now's month.
func Labels(now time.Time, months int) []string {
	if months < 0 {
		months = 0
	}
	start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
	out := make([]string, months)
	for i := range out {
		out[i] = start.AddDate(0, i, 0).Format(LabelLayout)
	}
	return out
}

// Build computes the chart series and insights for p at now.
func Build(p Params, now time.Time) Projection {
	net := NetMonthlySavings(p.Income, p.MonthExpenses)
	adjusted := net.Add(p.Reduction)
	months, reachable := MonthsToGoal(p.Goal, adjusted)

	ins := Insights{
		NetMonthly:       net,
		AdjustedMonthly:  adjusted,
		Deficit:          net.IsNegative(),
		AnnualProjection: AnnualProjection(adjusted),
		GapToGoal:        SavingsGapToGoal(p.Goal, adjusted),
		MonthsToGoal:     months,
		GoalReachable:    reachable,
		Recommendation:   Recommend(p.Goal, net, p.Reduction),
	}
	if rate, ok := SavingsRate(net, p.Income); ok {
		s := rate.StringFixed(1)
		ins.SavingsRate = &s
	}
	if !reachable && !ins.Recommendation.OnTrack {
		ins.Recommendation.Message = "Goal unreachable at the current rate. " + ins.Recommendation.Message
	}

	return Projection{
		Series: Series{
			Labels:    Labels(now, p.Months),
			Goal:      LinearTrajectory(p.Goal, p.Months),
			Projected: LinearTrajectory(adjusted, p.Months),
		},
		Insights: ins,
	}
}
