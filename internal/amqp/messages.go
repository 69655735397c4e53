package amqp

import (
	"encoding/json"
	"time"
)

// RetrainMessage asks the worker to refit the forecast model. It only
// carries the trigger context; the worker reads the full history from
// the database itself.
type RetrainMessage struct {
	Reason       string    `json:"reason"`
	ExpenseCount int       `json:"expense_count"`
	Timestamp    time.Time `json:"timestamp"`
}

func NewRetrainMessage(reason string, expenseCount int) *RetrainMessage {
	return &RetrainMessage{
		Reason:       reason,
		ExpenseCount: expenseCount,
		Timestamp:    time.Now(),
	}
}

// ToJSON converts the message to JSON bytes
func (m *RetrainMessage) ToJSON() ([]byte, error) {
	return json.Marshal(m)
}

// RetrainMessageFromJSON creates a message from JSON bytes
func RetrainMessageFromJSON(data []byte) (*RetrainMessage, error) {
	var msg RetrainMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, err
	}
	return &msg, nil
}
