package core

import (
	"encoding/json"
	"strings"
	"time"
)

const (
	DateLayout           = "2006-01-02"
	MaxDescriptionLength = 200
)

type (
	// Date is a calendar date. The time part is always midnight UTC so the
	// month and year of the value are exactly what the user entered.
	Date struct {
		time.Time
	}

	// Expense is a dated, categorized outflow owned by exactly one user.
	Expense struct {
		ID          string    `json:"id"`
		UserID      string    `json:"user_id"`
		Date        Date      `json:"date"`
		Amount      Money     `json:"amount"`
		Category    Category  `json:"category"`
		Description string    `json:"description"`
		CreatedAt   time.Time `json:"created_at"`
		UpdatedAt   time.Time `json:"updated_at"`
	}

	// ExpenseFields are the user-editable fields of an expense.
	ExpenseFields struct {
		Date        Date
		Amount      Money
		Category    Category
		Description string
	}

	// ExpensePatch lists the fields an update changes; nil fields stay as they are.
	ExpensePatch struct {
		Date        *Date
		Amount      *Money
		Category    *Category
		Description *string
	}
)

func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf truncates t to its calendar date in t's own location.
func DateOf(t time.Time) Date {
	y, m, d := t.Date()
	return NewDate(y, int(m), d)
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

func (d Date) Day() int   { return d.Time.Day() }
func (d Date) Month() int { return int(d.Time.Month()) }
func (d Date) Year() int  { return d.Time.Year() }

func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// InMonth reports whether the date falls in the given calendar month.
func (d Date) InMonth(year, month int) bool {
	return d.Year() == year && d.Month() == month
}

func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return ErrInvalidDate
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

func (f ExpenseFields) Validate() error {
	if err := f.Date.Validate(); err != nil {
		return NewValidationError("date", err)
	}
	if err := f.Amount.Validate(); err != nil {
		return NewValidationError("amount", err)
	}
	if !DefaultCategories.Contains(f.Category) {
		return NewValidationError("category", ErrInvalidCategory)
	}
	if len(strings.TrimSpace(f.Description)) == 0 {
		return NewValidationError("description", ErrEmptyDescription)
	}
	if len([]rune(f.Description)) > MaxDescriptionLength {
		return NewValidationError("description", ErrDescriptionTooLong)
	}
	return nil
}

// Fields returns the editable part of the expense.
func (e Expense) Fields() ExpenseFields {
	return ExpenseFields{
		Date:        e.Date,
		Amount:      e.Amount,
		Category:    e.Category,
		Description: e.Description,
	}
}

func (e Expense) Validate() error {
	return e.Fields().Validate()
}

func (p ExpensePatch) IsEmpty() bool {
	return p.Date == nil && p.Amount == nil && p.Category == nil && p.Description == nil
}

// Apply returns the fields with the patch merged in.
func (p ExpensePatch) Apply(f ExpenseFields) ExpenseFields {
	if p.Date != nil {
		f.Date = *p.Date
	}
	if p.Amount != nil {
		f.Amount = *p.Amount
	}
	if p.Category != nil {
		f.Category = *p.Category
	}
	if p.Description != nil {
		f.Description = *p.Description
	}
	return f
}

// PatchFrom builds a patch that overwrites every field, used for full updates.
func PatchFrom(f ExpenseFields) ExpensePatch {
	return ExpensePatch{
		Date:        &f.Date,
		Amount:      &f.Amount,
		Category:    &f.Category,
		Description: &f.Description,
	}
}
