package models

import "time"

// Event types written to the audit log.
const (
	EventResult  = "RESULT"
	EventError   = "ERROR"
	EventReset   = "RESET"
	EventExpired = "EXPIRED"
)

// CalculatorEvent is a single audit log entry.
type CalculatorEvent struct {
	EventID     string    `json:"event_id"`
	UserID      int       `json:"user_id"`
	OccurredAt  time.Time `json:"occurred_at"`
	Type        string    `json:"type"`        // RESULT | ERROR | RESET | EXPIRED
	Description string    `json:"description"` // human-readable
	Metadata    any       `json:"metadata,omitempty"`
}
