package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"

	"spendwise/internal/aggregate"
	"spendwise/internal/core"
)

const maxBodyBytes = 64 << 10

var validate = newValidator()

// newValidator reports fields by their JSON names.
func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("json"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

type (
	loginRequest struct {
		Username string `json:"username" validate:"required,max=64"`
		Password string `json:"password" validate:"required,max=256"`
	}

	// expenseRequest is the body of a create or a full update.
	expenseRequest struct {
		Date        string      `json:"date" validate:"required"`
		Amount      *core.Money `json:"amount" validate:"required"`
		Category    string      `json:"category" validate:"required"`
		Description string      `json:"description" validate:"required,max=200"`
	}

	// expensePatchRequest lists only the fields a PATCH changes.
	expensePatchRequest struct {
		Date        *string     `json:"date" validate:"omitempty,min=1"`
		Amount      *core.Money `json:"amount"`
		Category    *string     `json:"category" validate:"omitempty,min=1"`
		Description *string     `json:"description" validate:"omitempty,min=1,max=200"`
	}
)

// decodeJSON reads one JSON object into dst and validates its tags.
// Syntax problems become errMalformedBody, tag violations a *core.ValidationError.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		if errors.Is(err, core.ErrInvalidAmount) {
			return core.NewValidationError("amount", core.ErrInvalidAmount)
		}
		if errors.Is(err, io.EOF) {
			return fmt.Errorf("%w: empty body", errMalformedBody)
		}
		return fmt.Errorf("%w: %v", errMalformedBody, err)
	}
	if dec.More() {
		return fmt.Errorf("%w: trailing data after JSON object", errMalformedBody)
	}
	return validateStruct(dst)
}

func validateStruct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return core.NewValidationError(fe.Field(), fmt.Errorf("failed %q check", fe.Tag()))
	}
	return fmt.Errorf("%w: %v", errMalformedBody, err)
}

func (req expenseRequest) toFields() (core.ExpenseFields, error) {
	date, err := core.ParseDate(req.Date)
	if err != nil {
		return core.ExpenseFields{}, core.NewValidationError("date", err)
	}
	category, err := core.ParseCategory(req.Category)
	if err != nil {
		return core.ExpenseFields{}, core.NewValidationError("category", err)
	}
	return core.ExpenseFields{
		Date:        date,
		Amount:      *req.Amount,
		Category:    category,
		Description: sanitizeInput(req.Description),
	}, nil
}

func (req expensePatchRequest) toPatch() (core.ExpensePatch, error) {
	var patch core.ExpensePatch
	if req.Date != nil {
		date, err := core.ParseDate(*req.Date)
		if err != nil {
			return patch, core.NewValidationError("date", err)
		}
		patch.Date = &date
	}
	if req.Category != nil {
		category, err := core.ParseCategory(*req.Category)
		if err != nil {
			return patch, core.NewValidationError("category", err)
		}
		patch.Category = &category
	}
	if req.Description != nil {
		desc := sanitizeInput(*req.Description)
		patch.Description = &desc
	}
	patch.Amount = req.Amount
	return patch, nil
}

// parseExpenseFilter reads category, from, to and q from the query string.
func parseExpenseFilter(q url.Values) (aggregate.ExpenseFilter, error) {
	var f aggregate.ExpenseFilter
	if v := strings.TrimSpace(q.Get("category")); v != "" {
		c, err := core.ParseCategory(v)
		if err != nil {
			return f, core.NewValidationError("category", err)
		}
		f.Category = c
	}
	var err error
	if f.From, err = optionalDate(q, "from"); err != nil {
		return f, err
	}
	if f.To, err = optionalDate(q, "to"); err != nil {
		return f, err
	}
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From.Time) {
		return f, core.NewValidationError("to", errors.New("must not be before from"))
	}
	f.Search = sanitizeInput(q.Get("q"))
	return f, nil
}

func optionalDate(q url.Values, name string) (core.Date, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return core.Date{}, nil
	}
	d, err := core.ParseDate(v)
	if err != nil {
		return core.Date{}, core.NewValidationError(name, err)
	}
	return d, nil
}

// queryInt returns def when the parameter is absent.
func queryInt(q url.Values, name string, def int) (int, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, core.NewValidationError(name, errors.New("must be an integer"))
	}
	return n, nil
}

// queryMoney reads an amount in currency units, returning def when absent.
func queryMoney(q url.Values, name string, def core.Money) (core.Money, error) {
	v := strings.TrimSpace(q.Get(name))
	if v == "" {
		return def, nil
	}
	m, err := core.ParseMoney(v)
	if err != nil {
		return core.Money{}, core.NewValidationError(name, err)
	}
	return m, nil
}

// queryBool treats an absent or unparsable value as false.
func queryBool(q url.Values, name string) bool {
	b, err := strconv.ParseBool(strings.TrimSpace(q.Get(name)))
	return err == nil && b
}

// bearerToken extracts the token from an "Authorization: Bearer <token>" header.
func bearerToken(r *http.Request) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(r.Header.Get("Authorization")), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
