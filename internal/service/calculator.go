package service

import (
	"context"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"simple_calculator/internal/calculator"
	"simple_calculator/internal/logger"
	"simple_calculator/internal/models"
	"simple_calculator/internal/repository"

	"github.com/google/uuid"
)

var errMissingUser = errors.New("a user id is required")

type CalculatorService struct {
	stateRepo repository.StateRepo
	eventRepo repository.EventRepo
	locks     *userLocks
	log       *logger.Logger
	now       func() time.Time
}

func NewCalculatorService(stateRepo repository.StateRepo, eventRepo repository.EventRepo, locks *userLocks) *CalculatorService {
	if locks == nil {
		locks = newUserLocks()
	}
	return &CalculatorService{
		stateRepo: stateRepo,
		eventRepo: eventRepo,
		locks:     locks,
		log:       logger.Get(logger.InfoLevel),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Press applies one button label. Unknown labels fail with
// calculator.ErrUnknownKey before any state is touched.
func (s *CalculatorService) Press(ctx context.Context, userID int, key string) (models.CalculatorState, error) {
	return s.PressSequence(ctx, userID, []string{key})
}

// PressSequence applies keys in order and saves once. Every label is
// validated first, so a bad label leaves the state as it was.
func (s *CalculatorService) PressSequence(ctx context.Context, userID int, keys []string) (models.CalculatorState, error) {
	if userID <= 0 {
		return models.CalculatorState{}, errMissingUser
	}
	parsed, err := calculator.ParseKeys(keys)
	if err != nil {
		return models.CalculatorState{}, err
	}
	return s.apply(ctx, userID, parsed)
}

// Reset is the same as pressing AC. It also recovers a user whose stored
// state no longer restores.
func (s *CalculatorService) Reset(ctx context.Context, userID int) (models.CalculatorState, error) {
	if userID <= 0 {
		return models.CalculatorState{}, errMissingUser
	}
	return s.apply(ctx, userID, []calculator.Key{{Intent: calculator.IntentReset}})
}

func (s *CalculatorService) apply(ctx context.Context, userID int, keys []calculator.Key) (models.CalculatorState, error) {
	unlock := s.locks.lock(userID)
	defer unlock()

	engine, err := s.loadEngine(ctx, userID)
	switch {
	case err == nil:
	case errors.Is(err, calculator.ErrInvalidSnapshot) && len(keys) > 0 && keys[0].Intent == calculator.IntentReset:
		// AC discards whatever was stored anyway
		s.log.Warnw("calculator_state_discarded", "user_id", userID, "err", err)
		engine = calculator.New()
	default:
		return models.CalculatorState{}, err
	}

	now := s.now()
	var events []models.CalculatorEvent
	for _, k := range keys {
		before := engine.Snapshot()
		out := engine.Press(k)
		if ev, ok := eventFor(userID, k, before, engine, out, now); ok {
			events = append(events, ev)
		}
	}

	state := stateFromEngine(userID, engine, now)
	if err := s.stateRepo.Save(ctx, state); err != nil {
		return models.CalculatorState{}, err
	}
	// The press is applied once saved; a lost audit entry does not undo it.
	for _, ev := range events {
		if err := s.eventRepo.Append(ctx, ev); err != nil {
			s.log.Errorw("calculator_event_append_failed", "user_id", userID, "event_type", ev.Type, "err", err)
		}
	}
	return state, nil
}

// loadEngine restores the user's engine, or returns a fresh one when the
// user has no stored state.
func (s *CalculatorService) loadEngine(ctx context.Context, userID int) (*calculator.Engine, error) {
	st, err := s.stateRepo.Load(ctx, userID)
	if err != nil {
		return nil, err
	}
	engine := calculator.New()
	if st.UserID == 0 {
		return engine, nil
	}
	snap, err := snapshotFromState(st)
	if err != nil {
		return nil, err
	}
	if err := engine.Restore(snap); err != nil {
		return nil, fmt.Errorf("restore state of user %d: %w", userID, err)
	}
	return engine, nil
}

// eventFor decides whether a press is worth an audit entry: resets and
// computed results are, plain digit entry is not.
func eventFor(userID int, k calculator.Key, before calculator.Snapshot, e *calculator.Engine, out calculator.Outcome, now time.Time) (models.CalculatorEvent, bool) {
	ev := models.CalculatorEvent{
		EventID:    uuid.NewString(),
		UserID:     userID,
		OccurredAt: now,
	}
	switch {
	case k.Intent == calculator.IntentReset:
		ev.Type = models.EventReset
		ev.Description = "Calculator reset"
		ev.Metadata = map[string]any{"display_before": before.Display}
		return ev, true
	case out.Computed:
		p := before.State.(calculator.PendingOp)
		expr := fmt.Sprintf("%s %s %s = %s", calculator.Format(p.Operand), p.Operator, before.Display, e.Display())
		ev.Type = models.EventResult
		ev.Description = expr
		if math.IsNaN(out.Result) || math.IsInf(out.Result, 0) {
			ev.Type = models.EventError
			ev.Description = "Non-finite result: " + expr
		}
		ev.Metadata = map[string]any{
			"operand":  calculator.Format(p.Operand),
			"operator": p.Operator.String(),
			"input":    before.Display,
			"result":   e.Display(),
			"key":      k.String(),
		}
		return ev, true
	}
	return models.CalculatorEvent{}, false
}

func stateFromEngine(userID int, e *calculator.Engine, now time.Time) models.CalculatorState {
	st := models.CalculatorState{
		UserID:             userID,
		Display:            e.Display(),
		AwaitingFreshEntry: e.AwaitingFreshEntry(),
		UpdatedAt:          now,
	}
	if p, ok := e.State().(calculator.PendingOp); ok {
		st.PendingOperand = strconv.FormatFloat(p.Operand, 'g', -1, 64)
		st.PendingOperator = p.Operator.String()
	}
	return st
}

func snapshotFromState(st models.CalculatorState) (calculator.Snapshot, error) {
	snap := calculator.Snapshot{
		Display:            st.Display,
		State:              calculator.Idle{},
		AwaitingFreshEntry: st.AwaitingFreshEntry,
	}
	if !st.HasPending() {
		return snap, nil
	}
	op, err := calculator.ParseOperator(st.PendingOperator)
	if err != nil {
		return calculator.Snapshot{}, fmt.Errorf("%w: %v", calculator.ErrInvalidSnapshot, err)
	}
	operand, err := strconv.ParseFloat(st.PendingOperand, 64)
	if err != nil {
		return calculator.Snapshot{}, fmt.Errorf("%w: operand %q", calculator.ErrInvalidSnapshot, st.PendingOperand)
	}
	snap.State = calculator.PendingOp{Operand: operand, Operator: op}
	return snap, nil
}
