package calculator

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrUnknownKey is returned by ParseKey for a label that is not a button.
var ErrUnknownKey = errors.New("unknown key")

// Intent is what a button asks the engine to do.
type Intent int

const (
	IntentDigit Intent = iota + 1
	IntentDecimalPoint
	IntentReset
	IntentNegate
	IntentPercentage
	IntentOperator
	IntentEvaluate
)

// Key is a parsed button press.
type Key struct {
	Intent   Intent
	Digit    int      // IntentDigit only
	Operator Operator // IntentOperator only
}

// String returns the canonical button label.
func (k Key) String() string {
	switch k.Intent {
	case IntentDigit:
		return fmt.Sprintf("%d", k.Digit)
	case IntentDecimalPoint:
		return "."
	case IntentReset:
		return "AC"
	case IntentNegate:
		return "+/-"
	case IntentPercentage:
		return "%"
	case IntentOperator:
		return k.Operator.String()
	case IntentEvaluate:
		return "="
	}
	return "?"
}

// ParseKey maps a button label to a Key.
func ParseKey(label string) (Key, error) {
	s := strings.TrimSpace(label)
	if len(s) == 1 && s[0] >= '0' && s[0] <= '9' {
		return Key{Intent: IntentDigit, Digit: int(s[0] - '0')}, nil
	}
	switch strings.ToUpper(s) {
	case ".", ",":
		return Key{Intent: IntentDecimalPoint}, nil
	case "AC", "C":
		return Key{Intent: IntentReset}, nil
	case "+/-", "±":
		return Key{Intent: IntentNegate}, nil
	case "%":
		return Key{Intent: IntentPercentage}, nil
	case "=":
		return Key{Intent: IntentEvaluate}, nil
	}
	if op, err := ParseOperator(s); err == nil {
		return Key{Intent: IntentOperator, Operator: op}, nil
	}
	return Key{}, fmt.Errorf("%w: %q", ErrUnknownKey, label)
}

// ParseKeys parses every label, failing on the first unknown one.
func ParseKeys(labels []string) ([]Key, error) {
	keys := make([]Key, 0, len(labels))
	for _, l := range labels {
		k, err := ParseKey(l)
		if err != nil {
			return nil, err
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// Outcome reports what a single Press did.
type Outcome struct {
	Changed  bool
	Computed bool    // an arithmetic result was produced
	Result   float64 // valid when Computed
}

// Press dispatches one button press.
func (e *Engine) Press(k Key) Outcome {
	before := e.Snapshot()
	var out Outcome
	switch k.Intent {
	case IntentDigit:
		e.AppendDigit(k.Digit)
	case IntentDecimalPoint:
		e.AppendDecimalPoint()
	case IntentReset:
		e.Reset()
	case IntentNegate:
		e.Negate()
	case IntentPercentage:
		e.Percentage()
	case IntentOperator:
		out.Result, out.Computed = e.applyOperator(k.Operator)
	case IntentEvaluate:
		out.Result, out.Computed = e.evaluate()
	}
	out.Changed = !sameSnapshot(e.Snapshot(), before)
	return out
}

// sameSnapshot compares operands bitwise so a NaN operand equals itself.
func sameSnapshot(a, b Snapshot) bool {
	if a.Display != b.Display || a.AwaitingFreshEntry != b.AwaitingFreshEntry {
		return false
	}
	pa, aPending := a.State.(PendingOp)
	pb, bPending := b.State.(PendingOp)
	if aPending != bPending {
		return false
	}
	return !aPending || (pa.Operator == pb.Operator && math.Float64bits(pa.Operand) == math.Float64bits(pb.Operand))
}

// Layout returns the button labels row by row, top to bottom.
func Layout() [][]string {
	return [][]string{
		{"AC", "+/-", "%", "÷"},
		{"7", "8", "9", "×"},
		{"4", "5", "6", "-"},
		{"1", "2", "3", "+"},
		{"0", ".", "="},
	}
}
