package amqp

import (
	"encoding/json"
	"fmt"
	"time"
)

// ChangeOp is the kind of change an event reports.
type ChangeOp string

const (
	OpUpsert ChangeOp = "upsert"
	OpDelete ChangeOp = "delete"
)

// ExpenseChangedMessage announces that an expense was written or removed.
// It carries identifiers only; consumers read the current record from the store.
type ExpenseChangedMessage struct {
	ExpenseID string    `json:"expense_id"`
	UserID    string    `json:"user_id"`
	Op        ChangeOp  `json:"op"`
	Version   int64     `json:"version"`
	Timestamp time.Time `json:"timestamp"`
}

// NewExpenseChangedMessage stamps the event with the current time. Version is
// the record's UpdatedAt in nanoseconds, or zero for deletions.
func NewExpenseChangedMessage(op ChangeOp, userID, expenseID string, version int64) *ExpenseChangedMessage {
	return &ExpenseChangedMessage{
		ExpenseID: expenseID,
		UserID:    userID,
		Op:        op,
		Version:   version,
		Timestamp: time.Now().UTC(),
	}
}

func (m *ExpenseChangedMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// ExpenseChangedMessageFromJSON decodes and checks an event body.
func ExpenseChangedMessageFromJSON(data []byte) (*ExpenseChangedMessage, error) {
	var msg ExpenseChangedMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	if msg.ExpenseID == "" || msg.UserID == "" {
		return nil, fmt.Errorf("message missing expense or user id")
	}
	if msg.Op != OpUpsert && msg.Op != OpDelete {
		return nil, fmt.Errorf("unknown op %q", msg.Op)
	}
	return &msg, nil
}
