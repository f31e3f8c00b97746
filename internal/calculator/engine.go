// Package calculator holds the state machine behind a single-screen calculator:
// digit entry, one pending binary operation and result evaluation.
//
// An Engine is not safe for concurrent use. Callers that share one must
// serialise access themselves.
package calculator

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const defaultDisplay = "0"

// ErrInvalidSnapshot is returned by Restore for a snapshot the engine could
// never have produced.
var ErrInvalidSnapshot = errors.New("invalid calculator snapshot")

// State is either Idle or PendingOp.
type State interface {
	isState()
}

// Idle means no operation is in progress.
type Idle struct{}

// PendingOp is a left operand and an operator awaiting the right operand.
type PendingOp struct {
	Operand  float64
	Operator Operator
}

func (Idle) isState()      {}
func (PendingOp) isState() {}

// Engine owns the display text and the pending operation.
type Engine struct {
	display            string
	state              State
	awaitingFreshEntry bool
}

// New returns an engine showing "0" with nothing pending.
func New() *Engine {
	e := &Engine{}
	e.Reset()
	return e
}

// Display returns the text to show, verbatim.
func (e *Engine) Display() string { return e.display }

// State returns Idle or the current PendingOp.
func (e *Engine) State() State { return e.state }

// AwaitingFreshEntry reports whether the next digit starts a new number.
func (e *Engine) AwaitingFreshEntry() bool { return e.awaitingFreshEntry }

// AppendDigit handles a digit button. Values outside 0-9 are ignored.
func (e *Engine) AppendDigit(d int) {
	if d < 0 || d > 9 {
		return
	}
	digit := string(rune('0' + d))
	switch {
	case e.awaitingFreshEntry:
		e.display = digit
		e.awaitingFreshEntry = false
	case e.display == defaultDisplay:
		e.display = digit
	default:
		e.display += digit
	}
}

// AppendDecimalPoint handles ".". A second point in the same number is ignored.
func (e *Engine) AppendDecimalPoint() {
	switch {
	case e.awaitingFreshEntry:
		e.display = "0."
		e.awaitingFreshEntry = false
	case !strings.Contains(e.display, "."):
		e.display += "."
	}
}

// Reset handles "AC".
func (e *Engine) Reset() {
	e.display = defaultDisplay
	e.state = Idle{}
	e.awaitingFreshEntry = false
}

// Negate toggles the sign on the display text itself so in-progress entry
// such as "1.50" or "3." survives. Zero and NaN have no sign to toggle.
func (e *Engine) Negate() {
	v, ok := parseDisplay(e.display)
	if !ok || v == 0 || math.IsNaN(v) {
		return
	}
	if v > 0 {
		e.display = "-" + e.display
		return
	}
	e.display = e.display[1:]
}

// Percentage divides the displayed value by 100.
func (e *Engine) Percentage() {
	v, ok := parseDisplay(e.display)
	if !ok {
		return
	}
	e.display = Format(v / 100)
}

// ApplyOperator stores the displayed value as the left operand, or, when an
// operation is already pending, folds it first and shows the interim result.
func (e *Engine) ApplyOperator(op Operator) {
	e.applyOperator(op)
}

func (e *Engine) applyOperator(op Operator) (float64, bool) {
	if !op.Valid() {
		return 0, false
	}
	v, ok := parseDisplay(e.display)
	if !ok {
		return 0, false
	}
	var (
		result   float64
		computed bool
	)
	if p, pending := e.state.(PendingOp); pending {
		result = Calculate(p.Operand, v, p.Operator)
		computed = true
		e.display = Format(result)
		v = result
	}
	e.state = PendingOp{Operand: v, Operator: op}
	e.awaitingFreshEntry = true
	return result, computed
}

// Evaluate handles "=". Without a pending operation it does nothing, so a
// repeated "=" never re-applies the last operation.
func (e *Engine) Evaluate() {
	e.evaluate()
}

func (e *Engine) evaluate() (float64, bool) {
	p, pending := e.state.(PendingOp)
	if !pending {
		return 0, false
	}
	v, ok := parseDisplay(e.display)
	if !ok {
		return 0, false
	}
	result := Calculate(p.Operand, v, p.Operator)
	e.display = Format(result)
	e.state = Idle{}
	e.awaitingFreshEntry = true
	return result, true
}

// Snapshot is a copy of the engine state suitable for storage.
type Snapshot struct {
	Display            string
	State              State
	AwaitingFreshEntry bool
}

// Snapshot captures the current state.
func (e *Engine) Snapshot() Snapshot {
	return Snapshot{
		Display:            e.display,
		State:              e.state,
		AwaitingFreshEntry: e.awaitingFreshEntry,
	}
}

// Restore replaces the engine state with s. On error the engine is unchanged.
func (e *Engine) Restore(s Snapshot) error {
	if !validDisplay(s.Display) {
		return fmt.Errorf("%w: display %q", ErrInvalidSnapshot, s.Display)
	}
	var st State
	switch v := s.State.(type) {
	case nil, Idle:
		st = Idle{}
	case PendingOp:
		if !v.Operator.Valid() {
			return fmt.Errorf("%w: operator %d", ErrInvalidSnapshot, int(v.Operator))
		}
		st = v
	default:
		return fmt.Errorf("%w: state %T", ErrInvalidSnapshot, s.State)
	}
	e.display = s.Display
	e.state = st
	e.awaitingFreshEntry = s.AwaitingFreshEntry
	return nil
}
