package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"simple_calculator/internal/calculator"
	"simple_calculator/internal/logger"
	"simple_calculator/internal/models"
)

// memStateRepo is an in-memory repository.StateRepo.
type memStateRepo struct {
	mu      sync.Mutex
	states  map[int]models.CalculatorState
	saveErr error
	saves   int

	// keepOnDelete makes DeleteIfIdle report a row touched after listing.
	keepOnDelete bool
	listErr      error
}

func newMemStateRepo() *memStateRepo {
	return &memStateRepo{states: make(map[int]models.CalculatorState)}
}

func (r *memStateRepo) Save(ctx context.Context, s models.CalculatorState) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.saveErr != nil {
		return r.saveErr
	}
	r.saves++
	r.states[s.UserID] = s
	return nil
}

func (r *memStateRepo) Load(ctx context.Context, userID int) (models.CalculatorState, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.states[userID], nil
}

func (r *memStateRepo) DeleteIfIdle(ctx context.Context, userID int, before time.Time) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[userID]
	if !ok || r.keepOnDelete || !st.UpdatedAt.Before(before) {
		return false, nil
	}
	delete(r.states, userID)
	return true, nil
}

func (r *memStateRepo) ListIdle(ctx context.Context, before time.Time) ([]int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	var ids []int
	for id, st := range r.states {
		if st.UpdatedAt.Before(before) {
			ids = append(ids, id)
		}
	}
	return ids, nil
}

func (r *memStateRepo) Clear(ctx context.Context) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := int64(len(r.states))
	r.states = make(map[int]models.CalculatorState)
	return n, nil
}

func (r *memStateRepo) get(userID int) (models.CalculatorState, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	st, ok := r.states[userID]
	return st, ok
}

// memEventRepo records appended events.
type memEventRepo struct {
	mu        sync.Mutex
	events    []models.CalculatorEvent
	appendErr error
}

func (r *memEventRepo) Append(ctx context.Context, e models.CalculatorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.appendErr != nil {
		return r.appendErr
	}
	r.events = append(r.events, e)
	return nil
}

func (r *memEventRepo) List(ctx context.Context, userID int, from, to time.Time, typ string) ([]models.CalculatorEvent, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]models.CalculatorEvent(nil), r.events...), nil
}

func (r *memEventRepo) all() []models.CalculatorEvent {
	events, _ := r.List(context.Background(), 0, time.Time{}, time.Time{}, "")
	return events
}

func newTestCalculator() (*CalculatorService, *memStateRepo, *memEventRepo) {
	states := newMemStateRepo()
	events := &memEventRepo{}
	svc := NewCalculatorService(states, events, nil)
	svc.log = logger.Nop()
	svc.now = func() time.Time { return time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC) }
	return svc, states, events
}

func TestCalculatorService_PressSequence_Result(t *testing.T) {
	svc, states, events := newTestCalculator()

	got, err := svc.PressSequence(context.Background(), 1, []string{"7", "+", "3", "="})
	if err != nil {
		t.Fatalf("PressSequence: %v", err)
	}
	if got.Display != "10" || got.HasPending() || !got.AwaitingFreshEntry {
		t.Fatalf("unexpected state: %+v", got)
	}
	if states.saves != 1 {
		t.Errorf("expected a single save for the sequence, got %d", states.saves)
	}
	stored, ok := states.get(1)
	if !ok || stored.Display != "10" {
		t.Fatalf("stored state: %+v", stored)
	}

	evs := events.all()
	if len(evs) != 1 {
		t.Fatalf("expected 1 event, got %d", len(evs))
	}
	ev := evs[0]
	if ev.Type != models.EventResult {
		t.Errorf("event type: want %s, got %s", models.EventResult, ev.Type)
	}
	if ev.Description != "7 + 3 = 10" {
		t.Errorf("event description: got %q", ev.Description)
	}
	if ev.UserID != 1 || ev.EventID == "" {
		t.Errorf("event identity not set: %+v", ev)
	}
	meta, ok := ev.Metadata.(map[string]any)
	if !ok || meta["key"] != "=" || meta["result"] != "10" {
		t.Errorf("unexpected metadata: %#v", ev.Metadata)
	}
}

func TestCalculatorService_Press_ContinuesStoredState(t *testing.T) {
	svc, _, events := newTestCalculator()
	ctx := context.Background()

	for _, k := range []string{"5", "+", "3"} {
		if _, err := svc.Press(ctx, 2, k); err != nil {
			t.Fatalf("Press(%q): %v", k, err)
		}
	}
	got, err := svc.Press(ctx, 2, "+")
	if err != nil {
		t.Fatalf("Press(+): %v", err)
	}
	if got.Display != "8" {
		t.Errorf("interim display: want 8, got %q", got.Display)
	}
	if got.PendingOperand != "8" || got.PendingOperator != "+" {
		t.Errorf("pending: got %q %q", got.PendingOperand, got.PendingOperator)
	}
	evs := events.all()
	if len(evs) != 1 || evs[0].Description != "5 + 3 = 8" {
		t.Fatalf("unexpected events: %+v", evs)
	}
}

func TestCalculatorService_PendingOperandIsLossless(t *testing.T) {
	svc, _, _ := newTestCalculator()

	got, err := svc.PressSequence(context.Background(), 1, []string{"1", "÷", "3", "="})
	if err != nil {
		t.Fatalf("PressSequence: %v", err)
	}
	got, err = svc.Press(context.Background(), 1, "×")
	if err != nil {
		t.Fatalf("Press: %v", err)
	}
	if got.PendingOperand != "0.3333333333333333" {
		t.Errorf("pending operand: got %q", got.PendingOperand)
	}
	got, err = svc.PressSequence(context.Background(), 1, []string{"3", "="})
	if err != nil {
		t.Fatalf("PressSequence: %v", err)
	}
	if got.Display != "1" {
		t.Errorf("1/3*3: want 1, got %q", got.Display)
	}
}

func TestCalculatorService_DivideByZeroLogsError(t *testing.T) {
	svc, _, events := newTestCalculator()

	got, err := svc.PressSequence(context.Background(), 1, []string{"6", "÷", "0", "="})
	if err != nil {
		t.Fatalf("PressSequence: %v", err)
	}
	if got.Display != calculator.DisplayInf {
		t.Errorf("display: want %q, got %q", calculator.DisplayInf, got.Display)
	}
	evs := events.all()
	if len(evs) != 1 || evs[0].Type != models.EventError {
		t.Fatalf("expected one ERROR event, got %+v", evs)
	}

	// inf stays usable as an operand.
	got, err = svc.PressSequence(context.Background(), 1, []string{"+", "1", "="})
	if err != nil {
		t.Fatalf("PressSequence: %v", err)
	}
	if got.Display != calculator.DisplayInf {
		t.Errorf("inf + 1: got %q", got.Display)
	}
}

func TestCalculatorService_Reset(t *testing.T) {
	svc, states, events := newTestCalculator()
	ctx := context.Background()

	if _, err := svc.PressSequence(ctx, 3, []string{"9", "+"}); err != nil {
		t.Fatalf("PressSequence: %v", err)
	}
	got, err := svc.Reset(ctx, 3)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got.Display != "0" || got.HasPending() || got.AwaitingFreshEntry {
		t.Fatalf("unexpected state after reset: %+v", got)
	}
	if stored, _ := states.get(3); stored.HasPending() {
		t.Errorf("stored state still pending: %+v", stored)
	}
	evs := events.all()
	if len(evs) != 1 || evs[0].Type != models.EventReset {
		t.Fatalf("expected one RESET event, got %+v", evs)
	}
}

func TestCalculatorService_UnknownKeyLeavesStateUntouched(t *testing.T) {
	svc, states, events := newTestCalculator()
	ctx := context.Background()

	if _, err := svc.Press(ctx, 1, "4"); err != nil {
		t.Fatalf("Press: %v", err)
	}

	cases := [][]string{{"sqrt"}, {"1", "+", "?", "2"}}
	for _, keys := range cases {
		_, err := svc.PressSequence(ctx, 1, keys)
		if !errors.Is(err, calculator.ErrUnknownKey) {
			t.Fatalf("keys %v: expected ErrUnknownKey, got %v", keys, err)
		}
	}
	if states.saves != 1 {
		t.Errorf("expected no saves after rejected input, got %d total", states.saves)
	}
	if stored, _ := states.get(1); stored.Display != "4" {
		t.Errorf("display changed to %q", stored.Display)
	}
	if len(events.all()) != 0 {
		t.Errorf("unexpected events: %+v", events.all())
	}
}

func TestCalculatorService_RequiresUser(t *testing.T) {
	svc, _, _ := newTestCalculator()
	ctx := context.Background()

	if _, err := svc.Press(ctx, 0, "1"); !errors.Is(err, errMissingUser) {
		t.Errorf("Press: expected errMissingUser, got %v", err)
	}
	if _, err := svc.Reset(ctx, -1); !errors.Is(err, errMissingUser) {
		t.Errorf("Reset: expected errMissingUser, got %v", err)
	}
}

func TestCalculatorService_SaveErrorSkipsEvents(t *testing.T) {
	svc, states, events := newTestCalculator()
	states.saveErr = errors.New("disk full")

	_, err := svc.PressSequence(context.Background(), 1, []string{"1", "+", "1", "="})
	if err == nil {
		t.Fatalf("expected save error")
	}
	if len(events.all()) != 0 {
		t.Errorf("events must not be written when save fails")
	}
}

func TestCalculatorService_AppendErrorKeepsPress(t *testing.T) {
	svc, states, events := newTestCalculator()
	events.appendErr = errors.New("log unavailable")

	got, err := svc.PressSequence(context.Background(), 1, []string{"2", "×", "4", "="})
	if err != nil {
		t.Fatalf("applied press must succeed without its audit entry, got %v", err)
	}
	if got.Display != "8" {
		t.Errorf("saved state should be returned, got %+v", got)
	}
	if stored, _ := states.get(1); stored.Display != "8" {
		t.Errorf("state not saved: %+v", stored)
	}
}

func TestCalculatorService_CorruptStoredState(t *testing.T) {
	cases := []models.CalculatorState{
		{UserID: 1, Display: "abc"},
		{UserID: 1, Display: "1", PendingOperand: "2", PendingOperator: "^"},
		{UserID: 1, Display: "1", PendingOperand: "two", PendingOperator: "+"},
	}
	for i, st := range cases {
		t.Run(fmt.Sprintf("case_%d", i), func(t *testing.T) {
			svc, states, _ := newTestCalculator()
			states.states[1] = st

			_, err := svc.Press(context.Background(), 1, "1")
			if !errors.Is(err, calculator.ErrInvalidSnapshot) {
				t.Fatalf("expected ErrInvalidSnapshot, got %v", err)
			}
		})
	}
}

func TestCalculatorService_UsersAreIsolated(t *testing.T) {
	svc, _, _ := newTestCalculator()
	ctx := context.Background()

	if _, err := svc.PressSequence(ctx, 1, []string{"1", "+"}); err != nil {
		t.Fatal(err)
	}
	got, err := svc.PressSequence(ctx, 2, []string{"5", "="})
	if err != nil {
		t.Fatal(err)
	}
	if got.Display != "5" || got.HasPending() {
		t.Fatalf("user 2 saw user 1's pending op: %+v", got)
	}
}

func TestCalculatorService_ConcurrentPressesSerialize(t *testing.T) {
	svc, states, _ := newTestCalculator()
	ctx := context.Background()

	const n = 40
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := svc.Press(ctx, 9, "1"); err != nil {
				t.Errorf("Press: %v", err)
			}
		}()
	}
	wg.Wait()

	stored, _ := states.get(9)
	if want := strings.Repeat("1", n); stored.Display != want {
		t.Fatalf("lost updates: want %d digits, got %q", n, stored.Display)
	}
}

func TestCalculatorService_ResetRecoversCorruptState(t *testing.T) {
	svc, states, events := newTestCalculator()
	states.states[1] = models.CalculatorState{UserID: 1, Display: "abc", PendingOperand: "2", PendingOperator: "+"}
	ctx := context.Background()

	if _, err := svc.Press(ctx, 1, "1"); !errors.Is(err, calculator.ErrInvalidSnapshot) {
		t.Fatalf("expected ErrInvalidSnapshot before reset, got %v", err)
	}

	got, err := svc.Reset(ctx, 1)
	if err != nil {
		t.Fatalf("Reset: %v", err)
	}
	if got.Display != "0" || got.HasPending() {
		t.Fatalf("expected fresh state, got %+v", got)
	}
	if evs := events.all(); len(evs) != 1 || evs[0].Type != models.EventReset {
		t.Fatalf("expected one RESET event, got %+v", evs)
	}

	// a leading AC in a sequence recovers too
	states.states[1] = models.CalculatorState{UserID: 1, Display: "1.2.3"}
	got, err = svc.PressSequence(ctx, 1, []string{"AC", "4"})
	if err != nil || got.Display != "4" {
		t.Fatalf("PressSequence after AC: state=%+v err=%v", got, err)
	}
}

func TestCalculatorService_OverflowEntrySurvivesReload(t *testing.T) {
	svc, _, _ := newTestCalculator()
	ctx := context.Background()

	keys := []string{"1"}
	keys = append(keys, strings.Split(strings.Repeat("0", 400), "")...)
	keys = append(keys, "%", "5", ".")
	got, err := svc.PressSequence(ctx, 1, keys)
	if err != nil {
		t.Fatalf("PressSequence: %v", err)
	}
	if got.Display != "inf5." {
		t.Fatalf("unexpected display %q", got.Display)
	}

	got, err = svc.Press(ctx, 1, "7")
	if err != nil || got.Display != "inf5.7" {
		t.Fatalf("Press after reload: state=%+v err=%v", got, err)
	}
	if got, err = svc.Reset(ctx, 1); err != nil || got.Display != "0" {
		t.Fatalf("Reset after reload: state=%+v err=%v", got, err)
	}
}
