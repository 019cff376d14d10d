package ups

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/problem"
)

// Problems shared by the validator and the dispatcher.
var (
	ErrInsufficientConfig = problem.WithDetail(http.StatusUnauthorized,
		"Insufficient upsd configuration",
		"Operation requires valid username and password to be configured.")

	ErrDeviceNotFound = problem.New(http.StatusNotFound, "Device not found")
)

// ValidateWrite checks value against the declared constraint of a writable
// variable. It returns nil or a *problem.Detail.
func ValidateWrite(variable string, value nut.Value, detail VarDetail) error {
	w := writeCheck{variable: variable, value: value}
	detail.Accept(&w)

	// Return an untyped nil so callers can compare against nil.
	if w.err != nil {
		return w.err
	}
	return nil
}

// CheckWrite validates a write against a device snapshot: the device must
// exist and declare variable as writable.
func CheckWrite(dev *DeviceEntry, found bool, variable string, value nut.Value) error {
	if !found || dev == nil {
		return ErrDeviceNotFound
	}

	detail, ok := dev.RWVariables[variable]
	if !ok || detail == nil {
		return problem.WithDetail(http.StatusBadRequest, "Invalid RW variable",
			fmt.Sprintf("'%s' is not a valid writeable variable.", variable))
	}
	return ValidateWrite(variable, value, detail)
}

// writeCheck is the Visitor that applies one VarDetail to a candidate value.
// The first failure is kept in err; a nil err means the value is accepted.
type writeCheck struct {
	variable string
	value    nut.Value
	err      *problem.Detail
}

// VisitNumber accepts any numeric value. A numeric-looking string is still
// text and is rejected.
func (w *writeCheck) VisitNumber(NumberDetail) {
	if !w.value.IsNumeric() {
		w.err = problem.WithDetail(http.StatusBadRequest, "Invalid value type",
			fmt.Sprintf("'%s' expects a numeric type, but the provided value is not a number.", w.variable))
	}
}

// VisitString requires non-blank text no longer than the driver limit.
func (w *writeCheck) VisitString(d StringDetail) {
	if !w.value.IsText() {
		w.err = problem.WithDetail(http.StatusBadRequest, "Invalid value type",
			fmt.Sprintf("'%s' expects a string type, but the provided value is not a string.", w.variable))
		return
	}

	// The length limit applies to the value as sent, not the trimmed one.
	s := w.value.String()
	switch {
	case strings.TrimSpace(s) == "":
		w.err = problem.WithDetail(http.StatusBadRequest, "Empty value",
			"Value cannot be empty or consist of only whitespaces.")
	case len(s) > d.MaxLen:
		w.err = problem.WithDetail(http.StatusBadRequest, "Out of range",
			fmt.Sprintf("Maximum allowed string length is %d.", d.MaxLen))
	}
}

// VisitEnum requires an exact member of the option list: same kind, same
// content, no case folding.
func (w *writeCheck) VisitEnum(d EnumDetail) {
	for _, opt := range d.Options {
		if opt.Equal(w.value) {
			return
		}
	}

	// List every option in the problem so the client can correct itself.
	quoted := make([]string, len(d.Options))
	for i, opt := range d.Options {
		quoted[i] = strconv.Quote(opt.String())
	}
	w.err = problem.WithDetail(http.StatusBadRequest, "Invalid option",
		fmt.Sprintf("'%s' is an enum type, allowed options: [%s]", w.variable, strings.Join(quoted, ", ")))
}

// VisitRange requires a number inside the inclusive [Min, Max] bounds.
// Bounds the driver reported as non-numbers are a server-side fault.
func (w *writeCheck) VisitRange(d RangeDetail) {
	if !w.value.IsNumeric() {
		w.err = problem.WithDetail(http.StatusBadRequest, "Invalid value type",
			fmt.Sprintf("'%s' expects a numeric value between %s and %s, but the provided value is not a number.",
				w.variable, d.Min, d.Max))
		return
	}

	lo, okMin := d.Min.Float()
	hi, okMax := d.Max.Float()
	if !okMin || !okMax {
		w.err = problem.WithDetail(http.StatusInternalServerError, "Malformed driver response",
			"Cannot process request since the reported min-max values by ups device are not number.")
		return
	}

	// IsNumeric above guarantees Float succeeds.
	v, _ := w.value.Float()
	if v < lo || v > hi {
		w.err = problem.WithDetail(http.StatusBadRequest, "Out of range",
			fmt.Sprintf("'%s' is not within the acceptable range [%s, %s]", w.variable,
				strconv.FormatFloat(lo, 'f', -1, 64), strconv.FormatFloat(hi, 'f', -1, 64)))
	}
}
