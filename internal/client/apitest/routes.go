package apitest

import (
	"context"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
)

type ctxKey string

const userKey ctxKey = "user"

// NewRouter mounts the API under /api.
//
// Routes:
//
//	POST /api/login/            public
//	POST /api/register/         public
//	GET  /api/datasets/         Basic auth
//	POST /api/upload/           Basic auth
//	GET  /api/equipment/{id}/   Basic auth
//	GET  /api/summary/{id}/     Basic auth
//	GET  /api/report/{id}/      Basic auth
func NewRouter(s *Server) http.Handler {
	r := chi.NewRouter()
	r.Use(chiMiddleware.Recoverer)
	r.Use(s.gated)

	r.Route("/api", func(r chi.Router) {
		r.Post("/login/", s.handleLogin)
		r.Post("/register/", s.handleRegister)

		r.Group(func(r chi.Router) {
			r.Use(s.basicAuth)
			r.Get("/datasets/", s.handleDatasets)
			r.Post("/upload/", s.handleUpload)
			r.Get("/equipment/{id}/", s.handleEquipment)
			r.Get("/summary/{id}/", s.handleSummary)
			r.Get("/report/{id}/", s.handleReport)
		})
	})
	return r
}

// BaseURL is the API root a client should be pointed at.
func (s *Server) BaseURL() string {
	return s.URL + "/api"
}

// gated applies Hold and FailWith. Paths are matched without the /api prefix.
func (s *Server) gated(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := strings.TrimPrefix(r.URL.Path, "/api")
		if status, failing := s.gate(path); failing {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// basicAuth checks the Basic credentials against the registered users and
// stores the username in the request context.
func (s *Server) basicAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, password, ok := r.BasicAuth()
		if !ok {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Authentication credentials were not provided."})
			return
		}
		s.mu.Lock()
		u, known := s.users[username]
		s.mu.Unlock()
		if !known || u.password != password {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"detail": "Invalid username/password."})
			return
		}
		ctx := context.WithValue(r.Context(), userKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func userFromContext(ctx context.Context) string {
	if s, ok := ctx.Value(userKey).(string); ok {
		return s
	}
	return ""
}

func datasetIDParam(r *http.Request) string {
	return chi.URLParam(r, "id")
}
