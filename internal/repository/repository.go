package repository

import (
	"context"
	"database/sql"
	"time"

	"simple_calculator/internal/models"
)

type Authorization interface {
	Create(username, hash string) (int, error)
	GetByUsername(username string) (*models.User, error)
}

// StateRepo stores one calculator state row per user.
type StateRepo interface {
	Save(ctx context.Context, s models.CalculatorState) error
	Load(ctx context.Context, userID int) (models.CalculatorState, error)
	// DeleteIfIdle removes the row only if it was not touched since before.
	DeleteIfIdle(ctx context.Context, userID int, before time.Time) (bool, error)
	ListIdle(ctx context.Context, before time.Time) ([]int, error)
	Clear(ctx context.Context) (int64, error)
}

type EventRepo interface {
	Append(ctx context.Context, e models.CalculatorEvent) error
	List(ctx context.Context, userID int, from, to time.Time, typ string) ([]models.CalculatorEvent, error)
}

type Repository struct {
	StateRepo StateRepo
	EventRepo EventRepo
	Auth      Authorization
}

func NewRepository(db *sql.DB) *Repository {
	return &Repository{
		StateRepo: NewStateSQLite(db),
		EventRepo: NewEventSQLite(db),
		Auth:      NewUserRepository(db),
	}
}

// timestampLayout is fixed-width in UTC, so stored timestamps compare
// correctly as text.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) (time.Time, error) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, err
	}
	return t.UTC(), nil
}

// nullIfEmpty maps "" to SQL NULL.
func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}
