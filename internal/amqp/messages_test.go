package amqp

import (
	"testing"
	"time"
)

func TestNewRetrainMessage(t *testing.T) {
	msg := NewRetrainMessage("expense_created", 120)

	if msg.Reason != "expense_created" {
		t.Errorf("Reason = %q, want %q", msg.Reason, "expense_created")
	}
	if msg.ExpenseCount != 120 {
		t.Errorf("ExpenseCount = %d, want 120", msg.ExpenseCount)
	}
	if msg.Timestamp.IsZero() {
		t.Error("Timestamp should not be zero")
	}
	if time.Since(msg.Timestamp) > time.Second {
		t.Error("Timestamp should be recent")
	}
}

func TestRetrainMessageJSON(t *testing.T) {
	timestamp := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	msg := &RetrainMessage{
		Reason:       "manual",
		ExpenseCount: 45,
		Timestamp:    timestamp,
	}

	data, err := msg.ToJSON()
	if err != nil {
		t.Fatalf("ToJSON() error = %v", err)
	}

	parsed, err := RetrainMessageFromJSON(data)
	if err != nil {
		t.Fatalf("RetrainMessageFromJSON() error = %v", err)
	}

	if parsed.Reason != msg.Reason {
		t.Errorf("Reason = %q, want %q", parsed.Reason, msg.Reason)
	}
	if parsed.ExpenseCount != msg.ExpenseCount {
		t.Errorf("ExpenseCount = %d, want %d", parsed.ExpenseCount, msg.ExpenseCount)
	}
	if !parsed.Timestamp.Equal(msg.Timestamp) {
		t.Errorf("Timestamp = %v, want %v", parsed.Timestamp, msg.Timestamp)
	}
}

func TestRetrainMessageInvalidJSON(t *testing.T) {
	if _, err := RetrainMessageFromJSON([]byte(`{"expense_count": "many"}`)); err == nil {
		t.Error("RetrainMessageFromJSON() should fail with invalid JSON")
	}
}
