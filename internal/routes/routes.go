package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/moadiary/moa-backend/internal/handlers"
	"github.com/moadiary/moa-backend/internal/middleware"
	"github.com/moadiary/moa-backend/internal/services"
)

// Handlers groups the route targets for registration.
type Handlers struct {
	Auth    *handlers.AuthHandler
	Records *handlers.RecordHandler
	Diaries *handlers.DiaryHandler
	Todos   *handlers.TodoHandler
}

func SetupRoutes(r *chi.Mux, h Handlers, tokens *services.TokenIssuer) {
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Write([]byte("OK"))
	})

	// Auth routes (public)
	r.Post("/api/auth/verify", h.Auth.Verify)
	r.Post("/api/auth/signup", h.Auth.SignUp)
	r.Post("/api/auth/refresh", h.Auth.Refresh)
	r.Post("/api/auth/logout", h.Auth.Logout)

	// Everything below requires a valid access token.
	r.Group(func(r chi.Router) {
		r.Use(middleware.Auth(tokens))

		// Record routes
		r.Post("/api/records", h.Records.Create)
		r.Get("/api/records", h.Records.List)
		r.Patch("/api/records/{id}", h.Records.Update)
		r.Delete("/api/records/{id}", h.Records.Delete)

		// Diary routes
		r.Post("/api/diaries", h.Diaries.Create)
		r.Get("/api/diaries", h.Diaries.List)
		r.Get("/api/diaries/{id}", h.Diaries.Get)
		r.Patch("/api/diaries/{id}", h.Diaries.Update)

		// Todo routes
		r.Post("/api/todos", h.Todos.Create)
		r.Get("/api/todos", h.Todos.List)
		r.Patch("/api/todos/{id}", h.Todos.Update)
		r.Delete("/api/todos/{id}", h.Todos.Delete)
	})
}
