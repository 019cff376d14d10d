package ups

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"testing"

	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/problem"
)

func TestTranslateError(t *testing.T) {
	protocol := func(code nut.ProtocolError) error {
		return &nut.Error{Kind: nut.KindProtocol, Protocol: code, Op: "INSTCMD"}
	}

	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantTitle  string
	}{
		{"access denied", protocol(nut.ErrAccessDenied), http.StatusUnauthorized, "Access denied"},
		{"wrapped access denied", fmt.Errorf("login: %w", protocol(nut.ErrAccessDenied)), http.StatusUnauthorized, "Access denied"},
		{"unknown ups", protocol(nut.ErrUnknownUPS), http.StatusNotFound, "Device not found"},
		{"io", &nut.Error{Kind: nut.KindIO, Err: io.EOF}, http.StatusBadGateway, "UPS daemon unreachable"},
		{"timeout", &nut.Error{Kind: nut.KindRequestTimeout}, http.StatusBadGateway, "UPS daemon unreachable"},
		{"client class", protocol(nut.ErrReadOnly), http.StatusBadRequest, "Rejected by UPS daemon"},
		{"unavailable class", protocol(nut.ErrDataStale), http.StatusServiceUnavailable, "UPS driver unavailable"},
		{"upstream class", &nut.Error{Kind: nut.KindParse}, http.StatusBadGateway, "Malformed daemon response"},
		{"internal class", protocol(nut.ErrInvalidPassword), http.StatusInternalServerError, "UPS daemon error"},
		{"foreign error", errors.New("boom"), http.StatusInternalServerError, "Internal error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := TranslateError(tt.err)
			if got == nil {
				t.Fatal("TranslateError() = nil")
			}
			if got.Status != tt.wantStatus || got.Title != tt.wantTitle {
				t.Errorf("TranslateError() = %d %q, want %d %q", got.Status, got.Title, tt.wantStatus, tt.wantTitle)
			}
		})
	}
}

func TestTranslateErrorPassesProblemThrough(t *testing.T) {
	if got := TranslateError(ErrInsufficientConfig); got != ErrInsufficientConfig {
		t.Errorf("TranslateError(problem) = %v, want same value", got)
	}

	d := problem.New(http.StatusTeapot, "Teapot")
	if got := TranslateError(fmt.Errorf("wrapped: %w", d)); got != d {
		t.Errorf("TranslateError(wrapped problem) = %v, want inner problem", got)
	}

	if got := TranslateError(nil); got != nil {
		t.Errorf("TranslateError(nil) = %v, want nil", got)
	}
}
