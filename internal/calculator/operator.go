package calculator

import (
	"fmt"
	"strings"
)

// Operator is one of the four binary arithmetic functions.
type Operator int

const (
	Add Operator = iota + 1
	Subtract
	Multiply
	Divide
)

// String returns the button label of the operator.
func (op Operator) String() string {
	switch op {
	case Add:
		return "+"
	case Subtract:
		return "-"
	case Multiply:
		return "×"
	case Divide:
		return "÷"
	default:
		return fmt.Sprintf("Operator(%d)", int(op))
	}
}

// Valid reports whether op is one of the four known operators.
func (op Operator) Valid() bool {
	return op >= Add && op <= Divide
}

// ParseOperator accepts a button label, an ASCII alias or a lowercase name.
func ParseOperator(s string) (Operator, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "+", "add":
		return Add, nil
	case "-", "−", "subtract":
		return Subtract, nil
	case "×", "*", "x", "multiply":
		return Multiply, nil
	case "÷", "/", "divide":
		return Divide, nil
	}
	return 0, fmt.Errorf("unknown operator %q", s)
}

// Calculate applies op to a and b. Division by zero is not guarded and
// yields ±Inf or NaN.
func Calculate(a, b float64, op Operator) float64 {
	switch op {
	case Add:
		return a + b
	case Subtract:
		return a - b
	case Multiply:
		return a * b
	case Divide:
		return a / b
	}
	panic(fmt.Sprintf("calculator: unknown operator %d", int(op)))
}
