package sheets

import (
	"fmt"
	"strings"
	"time"

	"spendwise/internal/core"
)

// Column layout of the mirror sheet.
const (
	ColID = iota
	ColUser
	ColDate
	ColCategory
	ColDescription
	ColAmount
	ColCreatedAt
	ColUpdatedAt
	ColumnCount
)

// Header is written to the first row of an empty sheet.
var Header = []string{"ID", "User", "Date", "Category", "Description", "Amount", "Created At", "Updated At"}

const timestampLayout = time.RFC3339Nano

// Row renders e as sheet cells in column order.
func Row(e core.Expense) []string {
	row := make([]string, ColumnCount)
	row[ColID] = e.ID
	row[ColUser] = e.UserID
	row[ColDate] = e.Date.String()
	row[ColCategory] = string(e.Category)
	row[ColDescription] = e.Description
	row[ColAmount] = e.Amount.String()
	row[ColCreatedAt] = e.CreatedAt.UTC().Format(timestampLayout)
	row[ColUpdatedAt] = e.UpdatedAt.UTC().Format(timestampLayout)
	return row
}

// ParseRow reads an expense back from cells. Short rows are padded with blanks.
func ParseRow(cells []string) (core.Expense, error) {
	row := make([]string, ColumnCount)
	for i := 0; i < len(cells) && i < ColumnCount; i++ {
		row[i] = strings.TrimSpace(cells[i])
	}
	if row[ColID] == "" {
		return core.Expense{}, fmt.Errorf("row has no expense id")
	}

	e := core.Expense{
		ID:          row[ColID],
		UserID:      row[ColUser],
		Category:    core.Category(row[ColCategory]),
		Description: row[ColDescription],
	}
	var err error
	if e.Date, err = core.ParseDate(row[ColDate]); err != nil {
		return core.Expense{}, fmt.Errorf("row %s date: %w", e.ID, err)
	}
	if e.Amount, err = core.ParseMoney(row[ColAmount]); err != nil {
		return core.Expense{}, fmt.Errorf("row %s amount: %w", e.ID, err)
	}
	if row[ColCreatedAt] != "" {
		if e.CreatedAt, err = time.Parse(timestampLayout, row[ColCreatedAt]); err != nil {
			return core.Expense{}, fmt.Errorf("row %s created at: %w", e.ID, err)
		}
	}
	if row[ColUpdatedAt] != "" {
		if e.UpdatedAt, err = time.Parse(timestampLayout, row[ColUpdatedAt]); err != nil {
			return core.Expense{}, fmt.Errorf("row %s updated at: %w", e.ID, err)
		}
	}
	return e, nil
}

// SameRow reports whether two rows hold identical cells. Missing trailing cells count as blank.
func SameRow(a, b []string) bool {
	for i := 0; i < ColumnCount; i++ {
		if cell(a, i) != cell(b, i) {
			return false
		}
	}
	return true
}

func cell(row []string, i int) string {
	if i < 0 || i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}

// ToStrings converts API cell values to trimmed strings.
func ToStrings(in []interface{}) []string {
	out := make([]string, len(in))
	for i, v := range in {
		out[i] = strings.TrimSpace(fmt.Sprint(v))
	}
	return out
}
