package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"simple_calculator/internal/models"
)

var (
	errMissingUserID = errors.New("calculator state requires a user id")
	errCorruptState  = errors.New("calculator state has operand without operator or vice versa")
)

type StateSQLite struct {
	db *sql.DB
}

func NewStateSQLite(db *sql.DB) *StateSQLite {
	return &StateSQLite{db: db}
}

const (
	upsertStateSQL = `
		INSERT INTO calculator_state (user_id, display, operand, operator, awaiting_fresh_entry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id) DO UPDATE SET
			display=excluded.display,
			operand=excluded.operand,
			operator=excluded.operator,
			awaiting_fresh_entry=excluded.awaiting_fresh_entry,
			updated_at=excluded.updated_at
	`

	selectStateSQL = `
		SELECT user_id, display, operand, operator, awaiting_fresh_entry, updated_at
		FROM calculator_state WHERE user_id=?
	`

	deleteIdleStateSQL = `DELETE FROM calculator_state WHERE user_id=? AND updated_at < ?`
	selectIdleSQL      = `SELECT user_id FROM calculator_state WHERE updated_at < ? ORDER BY user_id`
	clearStateSQL      = `DELETE FROM calculator_state`
)

// Save inserts or replaces the row of state.UserID.
func (r *StateSQLite) Save(ctx context.Context, state models.CalculatorState) error {
	if state.UserID <= 0 {
		return errMissingUserID
	}
	if (state.PendingOperand == "") != (state.PendingOperator == "") {
		return errCorruptState
	}

	// persist UTC; stamp now when unset
	ts := state.UpdatedAt
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	_, err := r.db.ExecContext(ctx, upsertStateSQL,
		state.UserID,
		state.Display,
		nullIfEmpty(state.PendingOperand),
		nullIfEmpty(state.PendingOperator),
		state.AwaitingFreshEntry,
		formatTimestamp(ts),
	)
	if err != nil {
		return fmt.Errorf("save calculator state for user %d: %w", state.UserID, err)
	}
	return nil
}

// Load fetches the row of userID. A user without a row gets the zero value.
func (r *StateSQLite) Load(ctx context.Context, userID int) (models.CalculatorState, error) {
	row := r.db.QueryRowContext(ctx, selectStateSQL, userID)

	var (
		s         models.CalculatorState
		operand   sql.NullString
		operator  sql.NullString
		updatedAt string
	)
	if err := row.Scan(
		&s.UserID,
		&s.Display,
		&operand,
		&operator,
		&s.AwaitingFreshEntry,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return models.CalculatorState{}, nil // no state yet
		}
		return models.CalculatorState{}, fmt.Errorf("load calculator state for user %d: %w", userID, err)
	}
	if operand.Valid != operator.Valid {
		return models.CalculatorState{}, errCorruptState
	}
	s.PendingOperand = operand.String
	s.PendingOperator = operator.String

	ts, err := parseTimestamp(updatedAt)
	if err != nil {
		return models.CalculatorState{}, fmt.Errorf("parse updated_at %q: %w", updatedAt, err)
	}
	s.UpdatedAt = ts

	return s, nil
}

func (r *StateSQLite) DeleteIfIdle(ctx context.Context, userID int, before time.Time) (bool, error) {
	res, err := r.db.ExecContext(ctx, deleteIdleStateSQL, userID, formatTimestamp(before))
	if err != nil {
		return false, fmt.Errorf("delete idle calculator state for user %d: %w", userID, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n > 0, nil
}

// ListIdle returns users whose state was last updated before the given time.
func (r *StateSQLite) ListIdle(ctx context.Context, before time.Time) ([]int, error) {
	rows, err := r.db.QueryContext(ctx, selectIdleSQL, formatTimestamp(before))
	if err != nil {
		return nil, fmt.Errorf("list idle calculator states: %w", err)
	}
	defer rows.Close()

	var ids []int
	for rows.Next() {
		var id int
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return ids, nil
}

// Clear drops every stored state and reports how many rows went.
func (r *StateSQLite) Clear(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, clearStateSQL)
	if err != nil {
		return 0, fmt.Errorf("clear calculator states: %w", err)
	}
	return res.RowsAffected()
}
