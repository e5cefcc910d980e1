package devserver

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/go-chi/chi/v5"
)

// NewRouter constructs the HTTP handler serving the task service API.
//
// Routes:
//
//	POST  /api/auth/login            → AuthHandler.Login
//	POST  /api/auth/register         → AuthHandler.Register
//	POST  /api/auth/refresh          → AuthHandler.Refresh
//	POST  /api/auth/logout           → AuthHandler.Logout
//	GET   /api/auth/google           → AuthHandler.GoogleStart
//	POST  /api/auth/google/callback  → AuthHandler.GoogleCallback
//	GET   /api/auth/me               → AuthHandler.Me            (bearer)
//	GET   /api/tasks                 → TaskHandler.List          (bearer)
//	GET   /api/tasks/completed       → TaskHandler.Completed     (bearer)
//	GET   /api/tasks/pending         → TaskHandler.Pending       (bearer)
//	POST  /api/tasks                 → TaskHandler.Create        (bearer)
//	PATCH /api/tasks/{id}/complete   → TaskHandler.ToggleComplete (bearer)
//	PATCH /api/tasks/{id}/delay      → TaskHandler.Delay         (bearer)
//	DELETE /api/tasks/{id}           → TaskHandler.Delete        (bearer)
func NewRouter(authHandler *AuthHandler, taskHandler *TaskHandler, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// Log each request and its metadata
	r.Use(WithRequestLogging(logger))

	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			// Public endpoints
			r.Post("/login", authHandler.Login)
			r.Post("/register", authHandler.Register)
			r.Post("/refresh", authHandler.Refresh)
			r.Post("/logout", authHandler.Logout)
			r.Get("/google", authHandler.GoogleStart)
			r.Post("/google/callback", authHandler.GoogleCallback)

			// Protected group: requires a valid bearer token
			r.Group(func(r chi.Router) {
				r.Use(BearerAuth(authHandler.Auth))
				r.Get("/me", authHandler.Me)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(BearerAuth(authHandler.Auth))
			r.Get("/", taskHandler.List)
			r.Get("/completed", taskHandler.Completed)
			r.Get("/pending", taskHandler.Pending)
			r.Post("/", taskHandler.Create)
			r.Patch("/{id}/complete", taskHandler.ToggleComplete)
			r.Patch("/{id}/delay", taskHandler.Delay)
			r.Delete("/{id}", taskHandler.Delete)
		})
	})

	return r
}
