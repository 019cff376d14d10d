package api

import (
	"net/http"
	"strings"

	"github.com/nerrad567/upsdash-core/internal/auth"
	"github.com/nerrad567/upsdash-core/internal/ups"
)

const bearerRealm = `Bearer realm="upsdash"`

// requirePermission guards a daemon-facing route. The bearer token's role
// must grant perm; its subject is put on the context for the audit trail.
// With no JWT secret configured requests pass through anonymously.
func (s *Server) requirePermission(perm auth.Permission) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if s.secCfg.JWT.Secret == "" {
				next.ServeHTTP(w, r)
				return
			}

			claims, ok := s.authenticate(w, r)
			if !ok {
				return
			}
			if !auth.HasPermission(claims.Role, perm) {
				s.logger.Warn("permission denied",
					"subject", claims.Subject,
					"role", claims.Role,
					"permission", perm,
					"path", r.URL.Path,
				)
				writeForbidden(w, "Role '"+string(claims.Role)+"' may not perform this operation.")
				return
			}

			next.ServeHTTP(w, r.WithContext(ups.WithSubject(r.Context(), claims.Subject)))
		})
	}
}

// bearerToken extracts the token from an Authorization header.
func bearerToken(r *http.Request) (string, bool) {
	token, found := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
	token = strings.TrimSpace(token)
	return token, found && token != ""
}

// authenticate validates the bearer token, answering 401 with a
// WWW-Authenticate challenge when it is missing or bad.
func (s *Server) authenticate(w http.ResponseWriter, r *http.Request) (*auth.Claims, bool) {
	token, ok := bearerToken(r)
	if !ok {
		w.Header().Set("WWW-Authenticate", bearerRealm)
		writeUnauthorized(w, "Missing bearer token.")
		return nil, false
	}

	claims, err := auth.ParseToken(token, s.secCfg.JWT.Secret)
	if err != nil {
		s.logger.Debug("token rejected", "error", err, "path", r.URL.Path)
		w.Header().Set("WWW-Authenticate", bearerRealm+`, error="invalid_token"`)
		writeUnauthorized(w, "Invalid or expired token.")
		return nil, false
	}
	return claims, true
}
