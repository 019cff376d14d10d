package ups

import (
	"errors"
	"net/http"

	"github.com/nerrad567/upsdash-core/internal/nut"
	"github.com/nerrad567/upsdash-core/internal/problem"
)

// TranslateError maps a failure from a daemon call onto the problem returned
// to the API client. Every daemon call site goes through it.
//
// Access denied and unknown device are checked before transport failures;
// other daemon errors map by nut.Class. Errors that are already a
// *problem.Detail pass through unchanged.
func TranslateError(err error) *problem.Detail {
	if err == nil {
		return nil
	}
	// Validation and configuration failures are already problems.
	if d, ok := problem.As(err); ok {
		return d
	}

	// Specific protocol errors win over the generic transport check.
	switch {
	case nut.IsAccessDenied(err):
		return problem.New(http.StatusUnauthorized, "Access denied")
	case nut.IsUnknownUPS(err):
		return ErrDeviceNotFound
	case nut.IsUnreachable(err):
		return problem.New(http.StatusBadGateway, "UPS daemon unreachable")
	}

	// Anything not raised by the protocol client is a bug on our side.
	var nerr *nut.Error
	if !errors.As(err, &nerr) {
		return problem.WithDetail(http.StatusInternalServerError, "Internal error", err.Error())
	}

	switch nerr.Class() {
	// The daemon rejected the request itself, e.g. INVALID-VALUE.
	case nut.ClassClient:
		return problem.WithDetail(http.StatusBadRequest, "Rejected by UPS daemon", nerr.Error())
	// Driver gone or data stale.
	case nut.ClassUnavailable:
		return problem.WithDetail(http.StatusServiceUnavailable, "UPS driver unavailable", nerr.Error())
	case nut.ClassUpstream:
		return problem.WithDetail(http.StatusBadGateway, "Malformed daemon response", nerr.Error())
	default:
		return problem.WithDetail(http.StatusInternalServerError, "UPS daemon error", nerr.Error())
	}
}
