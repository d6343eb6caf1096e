package http

import (
	"fmt"
	"net/http"

	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/projection"
)

// maxReduction caps the monthly expense reduction a projection may assume.
var maxReduction = core.NewMoney(100000)

// handleDashboard serves stats, the per-category monthly series and recent
// expenses. months and recent default to the server configuration.
func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	months, err := queryInt(q, "months", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}
	recent, err := queryInt(q, "recent", 0)
	if err != nil {
		writeError(w, r, err)
		return
	}

	dash, err := s.dashboard.Dashboard(r.Context(), auth.UserID(r.Context()), months, recent)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(dash).Write(w)
}

// handleSavings projects savings from income, goal and reduction given in
// currency units, over months months.
func (s *Server) handleSavings(w http.ResponseWriter, r *http.Request) {
	p, err := parseProjectionParams(r)
	if err != nil {
		writeError(w, r, err)
		return
	}

	proj, err := s.savings.Project(r.Context(), auth.UserID(r.Context()), p)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(proj).Write(w)
}

func parseProjectionParams(r *http.Request) (projection.Params, error) {
	q := r.URL.Query()
	var (
		p   projection.Params
		err error
	)
	if p.Income, err = queryMoney(q, "income", projection.DefaultIncome); err != nil {
		return p, err
	}
	if p.Goal, err = queryMoney(q, "goal", projection.DefaultGoal); err != nil {
		return p, err
	}
	if p.Reduction, err = queryMoney(q, "reduction", projection.DefaultReduction); err != nil {
		return p, err
	}
	if maxReduction.LessThan(p.Reduction) {
		return p, core.NewValidationError("reduction", fmt.Errorf("must be at most %s", maxReduction))
	}
	if p.Months, err = queryInt(q, "months", projection.DefaultHorizon); err != nil {
		return p, err
	}
	return p, nil
}

type categoriesResponse struct {
	Categories []core.Category `json:"categories"`
}

func (s *Server) handleCategories(w http.ResponseWriter, r *http.Request) {
	NewJSONResponse().JSON(categoriesResponse{Categories: core.DefaultCategories.All()}).Write(w)
}
