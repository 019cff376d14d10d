package nut

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Value is a variable value as reported by upsd or supplied by an API client.
//
// upsd transmits every value as text; ParseValue classifies a value as
// numeric when its text is a plain decimal number. Values decoded from JSON
// keep the JSON type: numbers are numeric, strings are text.
type Value struct {
	text    string
	num     float64
	numeric bool
}

// NumberValue returns a numeric Value.
func NumberValue(f float64) Value {
	return Value{
		text:    strconv.FormatFloat(f, 'f', -1, 64),
		num:     f,
		numeric: true,
	}
}

// TextValue returns a text Value. The text is never reinterpreted as a number.
func TextValue(s string) Value {
	return Value{text: s}
}

// ParseValue classifies raw daemon text as numeric or text.
func ParseValue(s string) Value {
	if isDecimal(s) {
		if f, err := strconv.ParseFloat(s, 64); err == nil && !math.IsInf(f, 0) && !math.IsNaN(f) {
			return Value{text: s, num: f, numeric: true}
		}
	}
	return Value{text: s}
}

// isDecimal reports whether s looks like [+-]digits[.digits][e[+-]digits].
// strconv.ParseFloat alone would also accept "inf", "nan" and hex floats.
func isDecimal(s string) bool {
	if s == "" {
		return false
	}
	i := 0
	if s[i] == '+' || s[i] == '-' {
		i++
	}
	digits := 0
	for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
		digits++
	}
	if i < len(s) && s[i] == '.' {
		i++
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			digits++
		}
	}
	if digits == 0 {
		return false
	}
	if i < len(s) && (s[i] == 'e' || s[i] == 'E') {
		i++
		if i < len(s) && (s[i] == '+' || s[i] == '-') {
			i++
		}
		exp := 0
		for ; i < len(s) && s[i] >= '0' && s[i] <= '9'; i++ {
			exp++
		}
		if exp == 0 {
			return false
		}
	}
	return i == len(s)
}

// IsNumeric reports whether the value is a number.
func (v Value) IsNumeric() bool { return v.numeric }

// IsText reports whether the value is text.
func (v Value) IsText() bool { return !v.numeric }

// Float returns the value as float64. Text values are converted when their
// content parses as a finite number; ok is false otherwise.
func (v Value) Float() (f float64, ok bool) {
	if v.numeric {
		return v.num, true
	}
	f, err := strconv.ParseFloat(v.text, 64)
	if err != nil || math.IsInf(f, 0) || math.IsNaN(f) {
		return 0, false
	}
	return f, true
}

// String returns the textual form sent to upsd.
func (v Value) String() string { return v.text }

// Equal reports whether both values have the same kind and content.
func (v Value) Equal(o Value) bool {
	if v.numeric != o.numeric {
		return false
	}
	if v.numeric {
		return v.num == o.num
	}
	return v.text == o.text
}

// MarshalJSON encodes numeric values as JSON numbers and text as strings.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.numeric {
		return []byte(strconv.FormatFloat(v.num, 'f', -1, 64)), nil
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts a JSON number or string. Numbers are normalised to
// their plain decimal form; the raw JSON literal is not kept.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("nut: empty value")
	}

	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("nut: decoding text value: %w", err)
		}
		*v = TextValue(s)
		return nil
	}

	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("nut: value must be a number or a string")
	}
	f, err := n.Float64()
	if err != nil {
		return fmt.Errorf("nut: decoding numeric value: %w", err)
	}
	// The wire text is rebuilt from the parsed number so "1e2" goes out as "100".
	*v = NumberValue(f)
	return nil
}
