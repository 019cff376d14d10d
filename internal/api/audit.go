package api

import (
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/nerrad567/upsdash-core/internal/audit"
	"github.com/nerrad567/upsdash-core/internal/ups"
)

var (
	auditActions  = []string{string(ups.ActionInstCmd), string(ups.ActionSetVar), string(ups.ActionFSD)}
	auditOutcomes = []string{audit.OutcomeAccepted, audit.OutcomeRejected}
)

// handleListAuditLogs serves GET /audit.
//
// Query parameters: ups, action (instcmd, setvar, fsd), outcome (accepted,
// rejected), since and until (RFC 3339), limit (default 50, max 200) and
// offset. Without an audit database the route does not exist.
func (s *Server) handleListAuditLogs(w http.ResponseWriter, r *http.Request) {
	if s.auditRepo == nil {
		writeNotFound(w, "Target resource not found")
		return
	}

	filter, detail := parseAuditFilter(r.URL.Query())
	if detail != "" {
		writeBadRequest(w, "Invalid query", detail)
		return
	}

	result, err := s.auditRepo.List(r.Context(), filter)
	if err != nil {
		s.logger.Error("failed to list audit logs", "error", err)
		writeInternalError(w)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// parseAuditFilter returns a problem detail for the first bad parameter.
func parseAuditFilter(q url.Values) (audit.Filter, string) {
	f := audit.Filter{UPS: q.Get("ups")}

	for _, p := range []struct {
		key     string
		allowed []string
		dst     *string
	}{
		{"action", auditActions, &f.Action},
		{"outcome", auditOutcomes, &f.Outcome},
	} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		if !slices.Contains(p.allowed, v) {
			return f, "'" + p.key + "' must be one of " + strings.Join(p.allowed, ", ") + "."
		}
		*p.dst = v
	}

	for _, p := range []struct {
		key string
		dst *time.Time
	}{
		{"since", &f.Since},
		{"until", &f.Until},
	} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		t, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return f, "'" + p.key + "' must be an RFC 3339 timestamp."
		}
		*p.dst = t
	}

	for _, p := range []struct {
		key string
		dst *int
	}{
		{"limit", &f.Limit},
		{"offset", &f.Offset},
	} {
		v := q.Get(p.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return f, "'" + p.key + "' must be a non-negative integer."
		}
		*p.dst = n
	}

	return f, ""
}
