package http

import (
	"net/http"

	"spendwise/internal/aggregate"
	"spendwise/internal/auth"
	"spendwise/internal/core"
	"spendwise/internal/log"
)

type expenseListResponse struct {
	Expenses []core.Expense `json:"expenses"`
	Count    int            `json:"count"`
	Total    core.Money     `json:"total"`
}

// confirmationResponse asks the client to repeat a delete with confirm=true.
type confirmationResponse struct {
	Error   ErrorDetail  `json:"error"`
	Expense core.Expense `json:"expense"`
}

func (s *Server) handleListExpenses(w http.ResponseWriter, r *http.Request) {
	filter, err := parseExpenseFilter(r.URL.Query())
	if err != nil {
		writeError(w, r, err)
		return
	}

	expenses, err := s.expenses.List(r.Context(), auth.UserID(r.Context()), filter)
	if err != nil {
		writeError(w, r, err)
		return
	}

	NewJSONResponse().JSON(expenseListResponse{
		Expenses: expenses,
		Count:    len(expenses),
		Total:    aggregate.TotalSum(expenses),
	}).Write(w)
}

func (s *Server) handleCreateExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fields, err := req.toFields()
	if err != nil {
		writeError(w, r, err)
		return
	}

	e, err := s.expenses.Create(r.Context(), auth.UserID(r.Context()), fields)
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.expensesCreated.Add(1)

	NewJSONResponse().
		Status(http.StatusCreated).
		Header("Location", "/api/expenses/"+e.ID).
		JSON(e).
		Write(w)
}

func (s *Server) handleGetExpense(w http.ResponseWriter, r *http.Request) {
	e, err := s.expenses.Get(r.Context(), auth.UserID(r.Context()), r.PathValue("id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(e).Write(w)
}

// handlePatchExpense changes only the fields present in the body.
func (s *Server) handlePatchExpense(w http.ResponseWriter, r *http.Request) {
	var req expensePatchRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	patch, err := req.toPatch()
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.update(w, r, patch)
}

// handleReplaceExpense overwrites every editable field.
func (s *Server) handleReplaceExpense(w http.ResponseWriter, r *http.Request) {
	var req expenseRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}
	fields, err := req.toFields()
	if err != nil {
		writeError(w, r, err)
		return
	}
	s.update(w, r, core.PatchFrom(fields))
}

func (s *Server) update(w http.ResponseWriter, r *http.Request, patch core.ExpensePatch) {
	e, err := s.expenses.Update(r.Context(), auth.UserID(r.Context()), r.PathValue("id"), patch)
	if err != nil {
		writeError(w, r, err)
		return
	}
	NewJSONResponse().JSON(e).Write(w)
}

// handleDeleteExpense is two-step: without confirm=true it answers 428 with
// the record that would be removed, and nothing is deleted.
func (s *Server) handleDeleteExpense(w http.ResponseWriter, r *http.Request) {
	userID, id := auth.UserID(r.Context()), r.PathValue("id")

	if !queryBool(r.URL.Query(), "confirm") {
		e, err := s.expenses.Get(r.Context(), userID, id)
		if err != nil {
			writeError(w, r, err)
			return
		}
		NewJSONResponse().
			Status(http.StatusPreconditionRequired).
			JSON(confirmationResponse{
				Error:   ErrorDetail{Code: CodeConfirmationRequired, Message: errConfirmationRequired.Error()},
				Expense: e,
			}).
			Write(w)
		return
	}

	if err := s.expenses.Delete(r.Context(), userID, id); err != nil {
		writeError(w, r, err)
		return
	}
	log.FromContext(r.Context()).WithComponent(log.ComponentHTTP).DebugContext(r.Context(),
		"Delete confirmed", log.FieldExpenseID, id)
	NewJSONResponse().Status(http.StatusNoContent).Write(w)
}
