package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/nerrad567/upsdash-core/internal/auth"
	"github.com/nerrad567/upsdash-core/internal/problem"
	"github.com/nerrad567/upsdash-core/internal/webui"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestIDMiddleware)
	r.Use(s.accessLogMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(middleware.RequestSize(maxRequestBodySize))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "Target resource not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		problem.Write(w, problem.New(http.StatusMethodNotAllowed, "Method not allowed"))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/ups", func(r chi.Router) {
			r.Get("/", s.handleListUPS)

			r.Route("/{name}", func(r chi.Router) {
				r.Use(s.upsNameMiddleware)

				r.Get("/", s.handleGetUPS)
				r.Get("/commands", s.handleListCommands)
				r.With(s.requirePermission(auth.PermInstCmd)).Post("/instcmd", s.handleInstCmd)
				r.With(s.requirePermission(auth.PermSetVar)).Patch("/rw", s.handleSetVar)
				r.With(s.requirePermission(auth.PermShutdown)).Post("/fsd", s.handleFSD)
			})
		})

		r.Get("/audit", s.handleListAuditLogs)

		// Browsers cannot set headers on a WebSocket handshake, so the
		// bearer token is exchanged for a ticket first.
		wsPath := s.wsCfg.Path
		if wsPath == "" {
			wsPath = "/ws"
		}
		r.Post(wsPath+"/ticket", s.handleWSTicket)
		r.Get(wsPath, s.handleWebSocket)
	})

	if s.cfg.Web.Enabled {
		r.Handle("/*", webui.Handler(s.cfg.Web.Dir))
	}

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
