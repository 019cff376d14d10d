package nut

import (
	"encoding/json"
	"testing"
)

func TestParseValue(t *testing.T) {
	tests := []struct {
		in      string
		numeric bool
	}{
		{"100", true},
		{"-12.5", true},
		{"230.0", true},
		{"1e3", true},
		{".5", true},
		{"", false},
		{"OL CHRG", false},
		{"inf", false},
		{"NaN", false},
		{"0x10", false},
		{"1e", false},
		{"12V", false},
		{"-", false},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			v := ParseValue(tt.in)
			if v.IsNumeric() != tt.numeric {
				t.Errorf("ParseValue(%q).IsNumeric() = %v, want %v", tt.in, v.IsNumeric(), tt.numeric)
			}
			if v.String() != tt.in {
				t.Errorf("ParseValue(%q).String() = %q, want original text", tt.in, v.String())
			}
		})
	}
}

func TestValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b Value
		want bool
	}{
		{"same number different text", ParseValue("230.0"), NumberValue(230), true},
		{"different numbers", NumberValue(1), NumberValue(2), false},
		{"same text", TextValue("low"), TextValue("low"), true},
		{"case sensitive", TextValue("low"), TextValue("Low"), false},
		{"number vs text", NumberValue(5), TextValue("5"), false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.a.Equal(tt.b); got != tt.want {
				t.Errorf("Equal() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestValueFloat(t *testing.T) {
	if f, ok := TextValue("12.5").Float(); !ok || f != 12.5 {
		t.Errorf("TextValue(12.5).Float() = %v, %v", f, ok)
	}
	if _, ok := TextValue("abc").Float(); ok {
		t.Error("TextValue(abc).Float() ok = true, want false")
	}
	if f, ok := NumberValue(-3).Float(); !ok || f != -3 {
		t.Errorf("NumberValue(-3).Float() = %v, %v", f, ok)
	}
}

func TestValueJSON(t *testing.T) {
	var req struct {
		A Value `json:"a"`
		B Value `json:"b"`
	}
	if err := json.Unmarshal([]byte(`{"a": 42.5, "b": "42.5"}`), &req); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if !req.A.IsNumeric() {
		t.Error("JSON number decoded as text")
	}
	if !req.B.IsText() {
		t.Error("JSON string decoded as number")
	}

	var bad Value
	if err := json.Unmarshal([]byte(`true`), &bad); err == nil {
		t.Error("Unmarshal(true) error = nil, want error")
	}

	out, err := json.Marshal(map[string]Value{"n": ParseValue("100"), "s": TextValue("OL")})
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}
	if got, want := string(out), `{"n":100,"s":"OL"}`; got != want {
		t.Errorf("Marshal() = %s, want %s", got, want)
	}
}

func TestValueJSON_NumberWireText(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{`1e2`, "100"},
		{`100`, "100"},
		{`2.50`, "2.5"},
		{`-0.5E1`, "-5"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			var v Value
			if err := json.Unmarshal([]byte(tt.in), &v); err != nil {
				t.Fatalf("Unmarshal(%s) error = %v", tt.in, err)
			}
			if !v.IsNumeric() {
				t.Fatalf("Unmarshal(%s) decoded as text", tt.in)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("Unmarshal(%s).String() = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
