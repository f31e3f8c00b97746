package service

import "time"

// LogFilter supports audit log filtering by user, time range and type.
type LogFilter struct {
	UserID int       // zero means every user
	From   time.Time // inclusive; zero means no lower bound
	To     time.Time // inclusive; zero means no upper bound
	Type   string    // "", "RESULT", "ERROR", "RESET", "EXPIRED"
}
