package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/nerrad567/upsdash-core/internal/problem"
)

// writeJSON writes a JSON response with the given status code and payload.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		//nolint:errcheck // Best-effort write to response; connection may be closed
		json.NewEncoder(w).Encode(v)
	}
}

// writeError writes err as application/problem+json. Errors that are not a
// *problem.Detail are reported as a generic 500 so internals never leak.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	if d, ok := problem.As(err); ok {
		problem.Write(w, d)
		return
	}
	s.logger.Error("unhandled request error",
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", requestIDFrom(r.Context()),
		"error", err,
	)
	writeInternalError(w)
}

// writeBadRequest writes a 400 problem.
func writeBadRequest(w http.ResponseWriter, title, detail string) {
	problem.Write(w, problem.WithDetail(http.StatusBadRequest, title, detail))
}

// writeNotFound writes a 404 problem.
func writeNotFound(w http.ResponseWriter, title string) {
	problem.Write(w, problem.New(http.StatusNotFound, title))
}

// writeUnauthorized writes a 401 problem.
func writeUnauthorized(w http.ResponseWriter, detail string) {
	problem.Write(w, problem.WithDetail(http.StatusUnauthorized, "Unauthorized", detail))
}

// writeForbidden writes a 403 problem.
func writeForbidden(w http.ResponseWriter, detail string) {
	problem.Write(w, problem.WithDetail(http.StatusForbidden, "Forbidden", detail))
}

func writeInternalError(w http.ResponseWriter) {
	problem.Write(w, problem.New(http.StatusInternalServerError, "Internal server error"))
}

// decodeJSON decodes the request body into v. Unknown fields are ignored.
// Any decoding failure, including an oversized body, is a 400 problem.
func decodeJSON(r *http.Request, v any) error {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return problem.WithDetail(http.StatusRequestEntityTooLarge, "Request body too large",
				"Request body exceeds the allowed size.")
		}
		return problem.WithDetail(http.StatusBadRequest, "Invalid request body", err.Error())
	}
	return nil
}
