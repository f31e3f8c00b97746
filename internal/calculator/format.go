package calculator

import (
	"errors"
	"math"
	"regexp"
	"strconv"
	"strings"
)

// Fixed renderings for non-finite results.
const (
	DisplayNaN    = "nan"
	DisplayInf    = "inf"
	DisplayNegInf = "-inf"
)

// displayPattern matches every text the engine can put on the display:
// a Format result, optionally followed by entry typed onto it ("0.", "inf5.").
// The single decimal point is enforced separately.
var displayPattern = regexp.MustCompile(`^-?(\d+(\.\d*)?(e[+-]\d+)?|inf|nan)\d*(\.\d*)?$`)

// exponentBelow is the magnitude under which fractional values switch to
// exponent notation. Fractions never reach the upper switch at 1e16, since
// every float64 that large is integral.
const exponentBelow = 1e-4

// Format renders a value for the display. Integral values have no decimal
// point; anything else uses the shortest text that parses back to v, in
// positional notation unless it is tiny.
func Format(v float64) string {
	switch {
	case math.IsNaN(v):
		return DisplayNaN
	case math.IsInf(v, 1):
		return DisplayInf
	case math.IsInf(v, -1):
		return DisplayNegInf
	case v == 0:
		// covers -0 too
		return "0"
	case v == math.Trunc(v):
		return strconv.FormatFloat(v, 'f', 0, 64)
	case math.Abs(v) < exponentBelow:
		return strconv.FormatFloat(v, 'g', -1, 64)
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// parseDisplay reads the display as a number. Overflow to ±Inf still counts
// as a value.
func parseDisplay(s string) (float64, bool) {
	v, err := strconv.ParseFloat(s, 64)
	if err != nil && !errors.Is(err, strconv.ErrRange) {
		return 0, false
	}
	return v, true
}

func validDisplay(s string) bool {
	return s != "" && strings.Count(s, ".") <= 1 && displayPattern.MatchString(s)
}
