package models

import "time"

// CalculatorState is the stored engine state of one user.
type CalculatorState struct {
	UserID             int       `json:"user_id"`
	Display            string    `json:"display"`
	PendingOperand     string    `json:"pending_operand,omitempty"`  // lossless float text; may be "+Inf" or "NaN"
	PendingOperator    string    `json:"pending_operator,omitempty"` // + | - | × | ÷
	AwaitingFreshEntry bool      `json:"awaiting_fresh_entry"`
	UpdatedAt          time.Time `json:"updated_at"`
}

// HasPending reports whether an operation is in progress.
func (s CalculatorState) HasPending() bool {
	return s.PendingOperator != ""
}
