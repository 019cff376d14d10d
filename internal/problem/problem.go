// Package problem provides RFC 7807 problem details, the error shape every
// failing API response carries.
package problem

import (
	"encoding/json"
	"errors"
	"net/http"
)

// ContentType is the media type of a serialised Detail.
const ContentType = "application/problem+json"

// Detail is a client-facing error: a short title, the HTTP status and an
// optional human-readable explanation. A Detail is immutable once built.
type Detail struct {
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

// New returns a Detail without explanation.
func New(status int, title string) *Detail {
	return &Detail{Title: title, Status: status}
}

// WithDetail returns a Detail carrying an explanation.
func WithDetail(status int, title, detail string) *Detail {
	return &Detail{Title: title, Status: status, Detail: detail}
}

func (d *Detail) Error() string {
	if d.Detail == "" {
		return d.Title
	}
	return d.Title + ": " + d.Detail
}

// As extracts a *Detail from err's chain.
func As(err error) (*Detail, bool) {
	var d *Detail
	if errors.As(err, &d) {
		return d, true
	}
	return nil, false
}

// Write serialises d as application/problem+json with d.Status.
func Write(w http.ResponseWriter, d *Detail) {
	w.Header().Set("Content-Type", ContentType)
	w.WriteHeader(d.Status)
	//nolint:errcheck // Best-effort write to response; connection may be closed
	json.NewEncoder(w).Encode(d)
}
