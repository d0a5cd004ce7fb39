package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/nerrad567/taskdesk/internal/auth"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// Profile pictures
	r.Handle("/uploads/*", s.uploadsHandler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Post("/auth/register", s.handleRegister)
		r.Post("/auth/login", s.handleLogin)

		// WebSocket authenticates with a ticket, not a bearer token.
		r.Get("/ws", s.handleWebSocket)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/auth/me", s.handleMe)
			r.Put("/auth/profile", s.handleUpdateProfile)
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			r.Route("/tasks", func(r chi.Router) {
				r.Get("/", s.handleListTasks)
				r.Post("/", s.handleCreateTask)

				r.Route("/{id}", func(r chi.Router) {
					r.Get("/", s.handleGetTask)
					r.Put("/", s.handleUpdateTask)
					r.Delete("/", s.handleDeleteTask)
				})
			})

			// Administrator routes
			r.Group(func(r chi.Router) {
				r.Use(s.requireRole(auth.RoleAdmin))

				r.Route("/users", func(r chi.Router) {
					r.Get("/", s.handleListUsers)

					r.Route("/{id}", func(r chi.Router) {
						r.Get("/", s.handleGetUser)
						r.Put("/", s.handleUpdateUserRole)
						r.Delete("/", s.handleDeleteUser)
					})
				})

				r.Get("/audit", s.handleListAuditLogs)
				r.Get("/metrics", s.handleMetrics)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := "ok"
	code := http.StatusOK
	if s.db != nil {
		if err := s.db.HealthCheck(r.Context()); err != nil {
			s.logger.Warn("health check: database unavailable", "error", err)
			status = "degraded"
			code = http.StatusServiceUnavailable
		}
	}
	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
	})
}
