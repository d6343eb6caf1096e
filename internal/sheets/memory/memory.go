// Package memory is an in-process sheets.Mirror used by tests and local runs.
package memory

import (
	"context"
	"fmt"
	"sync"

	"spendwise/internal/core"
	ports "spendwise/internal/sheets"
)

var _ ports.Mirror = (*Mirror)(nil)

type Mirror struct {
	mu    sync.Mutex
	rows  [][]string
	index map[string]int
}

func New() *Mirror {
	return &Mirror{index: map[string]int{}}
}

// Upsert stores the rendered row and returns a synthetic row reference.
func (m *Mirror) Upsert(_ context.Context, e core.Expense) (string, error) {
	if err := e.Validate(); err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.put(e), nil
}

func (m *Mirror) put(e core.Expense) string {
	row := ports.Row(e)
	if i, ok := m.index[e.ID]; ok {
		m.rows[i] = row
		return fmt.Sprintf("mem:%d", i+1)
	}
	m.rows = append(m.rows, row)
	m.index[e.ID] = len(m.rows) - 1
	return fmt.Sprintf("mem:%d", len(m.rows))
}

func (m *Mirror) Remove(_ context.Context, expenseID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if i, ok := m.index[expenseID]; ok {
		m.rows[i] = nil
		delete(m.index, expenseID)
	}
	return nil
}

func (m *Mirror) Reconcile(_ context.Context, userID string, expenses []core.Expense) (ports.ReconcileResult, error) {
	var res ports.ReconcileResult
	m.mu.Lock()
	defer m.mu.Unlock()

	want := make(map[string]struct{}, len(expenses))
	for _, e := range expenses {
		want[e.ID] = struct{}{}
	}
	for id, i := range m.index {
		if m.rows[i][ports.ColUser] != userID {
			continue
		}
		if _, ok := want[id]; !ok {
			m.rows[i] = nil
			delete(m.index, id)
			res.Removed++
		}
	}
	for _, e := range expenses {
		if i, ok := m.index[e.ID]; ok && ports.SameRow(m.rows[i], ports.Row(e)) {
			res.Unchanged++
			continue
		}
		m.put(e)
		res.Written++
	}
	return res, nil
}

// Rows returns the live rows in sheet order, skipping cleared ones.
func (m *Mirror) Rows() [][]string {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([][]string, 0, len(m.index))
	for _, r := range m.rows {
		if r != nil {
			out = append(out, append([]string(nil), r...))
		}
	}
	return out
}

// Expense parses the row mirrored for id.
func (m *Mirror) Expense(id string) (core.Expense, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	i, ok := m.index[id]
	if !ok {
		return core.Expense{}, false
	}
	e, err := ports.ParseRow(m.rows[i])
	return e, err == nil
}
