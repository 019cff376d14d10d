package ups

import (
	"net/http"
	"strings"
	"testing"

	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/problem"
)

func TestValidateWrite(t *testing.T) {
	lowHigh := EnumDetail{Options: []nut.Value{nut.TextValue("low"), nut.TextValue("high")}}
	voltages := EnumDetail{Options: []nut.Value{nut.ParseValue("220"), nut.ParseValue("230")}}
	transfer := RangeDetail{Min: nut.ParseValue("160"), Max: nut.ParseValue("180")}

	tests := []struct {
		name       string
		value      nut.Value
		detail     VarDetail
		wantStatus int // 0 means accepted
		wantTitle  string
		wantDetail string
	}{
		{"number accepts number", nut.NumberValue(42), NumberDetail{}, 0, "", ""},
		{"number rejects text", nut.TextValue("42"), NumberDetail{}, http.StatusBadRequest, "Invalid value type",
			"'v' expects a numeric type, but the provided value is not a number."},

		{"string accepts text", nut.TextValue("rack"), StringDetail{MaxLen: 8}, 0, "", ""},
		{"string at max length", nut.TextValue("12345678"), StringDetail{MaxLen: 8}, 0, "", ""},
		{"string rejects number", nut.NumberValue(1), StringDetail{MaxLen: 8}, http.StatusBadRequest, "Invalid value type",
			"'v' expects a string type, but the provided value is not a string."},
		{"string rejects empty", nut.TextValue(""), StringDetail{MaxLen: 8}, http.StatusBadRequest, "Empty value",
			"Value cannot be empty or consist of only whitespaces."},
		{"string rejects blank", nut.TextValue(" \t "), StringDetail{MaxLen: 8}, http.StatusBadRequest, "Empty value", ""},
		{"string too long", nut.TextValue("123456789"), StringDetail{MaxLen: 8}, http.StatusBadRequest, "Out of range",
			"Maximum allowed string length is 8."},
		{"string length counts surrounding spaces", nut.TextValue("  abcdefg"), StringDetail{MaxLen: 8}, http.StatusBadRequest, "Out of range", ""},

		{"enum accepts member", nut.TextValue("high"), lowHigh, 0, "", ""},
		{"enum is case sensitive", nut.TextValue("High"), lowHigh, http.StatusBadRequest, "Invalid option",
			`'v' is an enum type, allowed options: ["low", "high"]`},
		{"numeric enum accepts number", nut.NumberValue(230), voltages, 0, "", ""},
		{"numeric enum rejects other number", nut.NumberValue(240), voltages, http.StatusBadRequest, "Invalid option", ""},
		{"empty enum rejects everything", nut.TextValue("x"), EnumDetail{}, http.StatusBadRequest, "Invalid option", ""},

		{"range accepts inside", nut.NumberValue(170), transfer, 0, "", ""},
		{"range accepts min", nut.NumberValue(160), transfer, 0, "", ""},
		{"range accepts max", nut.NumberValue(180), transfer, 0, "", ""},
		{"range rejects below", nut.NumberValue(159.9), transfer, http.StatusBadRequest, "Out of range",
			"'v' is not within the acceptable range [160, 180]"},
		{"range rejects above", nut.NumberValue(181), transfer, http.StatusBadRequest, "Out of range", ""},
		{"range rejects text", nut.TextValue("170"), transfer, http.StatusBadRequest, "Invalid value type",
			"'v' expects a numeric value between 160 and 180, but the provided value is not a number."},
		{"range with malformed bound", nut.NumberValue(170), RangeDetail{Min: nut.TextValue("low"), Max: nut.ParseValue("180")},
			http.StatusInternalServerError, "Malformed driver response",
			"Cannot process request since the reported min-max values by ups device are not number."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateWrite("v", tt.value, tt.detail)
			if tt.wantStatus == 0 {
				if err != nil {
					t.Fatalf("ValidateWrite() = %v, want nil", err)
				}
				return
			}

			d, ok := problem.As(err)
			if !ok {
				t.Fatalf("ValidateWrite() = %v, want *problem.Detail", err)
			}
			if d.Status != tt.wantStatus || d.Title != tt.wantTitle {
				t.Errorf("problem = %d %q, want %d %q", d.Status, d.Title, tt.wantStatus, tt.wantTitle)
			}
			if tt.wantDetail != "" && d.Detail != tt.wantDetail {
				t.Errorf("detail = %q, want %q", d.Detail, tt.wantDetail)
			}
		})
	}
}

func TestValidateWriteReturnsUntypedNil(t *testing.T) {
	if err := ValidateWrite("v", nut.NumberValue(1), NumberDetail{}); err != nil {
		t.Fatalf("ValidateWrite() = %#v, want untyped nil", err)
	}
}

func TestCheckWrite(t *testing.T) {
	dev := &DeviceEntry{
		Name:        "ups1",
		RWVariables: map[string]VarDetail{"ups.delay.shutdown": NumberDetail{}},
	}

	if err := CheckWrite(nil, false, "ups.delay.shutdown", nut.NumberValue(20)); err != ErrDeviceNotFound {
		t.Errorf("unknown device: err = %v, want ErrDeviceNotFound", err)
	}

	err := CheckWrite(dev, true, "battery.charge", nut.NumberValue(20))
	d, ok := problem.As(err)
	if !ok || d.Title != "Invalid RW variable" || d.Status != http.StatusBadRequest {
		t.Fatalf("undeclared variable: err = %v", err)
	}
	if !strings.Contains(d.Detail, "'battery.charge'") {
		t.Errorf("detail = %q, want variable name", d.Detail)
	}

	if err := CheckWrite(dev, true, "ups.delay.shutdown", nut.NumberValue(20)); err != nil {
		t.Errorf("valid write: err = %v", err)
	}
}
