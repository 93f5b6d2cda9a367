package handlers

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/dvloznov/voice-ledger/internal/api/middleware"
)

// Router holds the handlers served by the API. Nil handlers leave their routes
// unregistered.
type Router struct {
	Auth       *AuthHandler
	Sessions   *SessionsHandler
	Dashboard  *DashboardHandler
	Categories *CategoriesHandler
	Jobs       *JobsHandler
}

// PublicPaths are served without a bearer token.
var PublicPaths = []string{"/health", "/metrics", "/api/auth/login"}

// Register adds every route to mux.
func (rt *Router) Register(mux *http.ServeMux) {
	if rt.Auth != nil {
		mux.HandleFunc("POST /api/auth/login", rt.Auth.Login)
	}

	if s := rt.Sessions; s != nil {
		mux.HandleFunc("POST /api/sessions", s.CreateSession)
		mux.HandleFunc("GET /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
			s.GetSession(w, r, r.PathValue("id"))
		})
		mux.HandleFunc("DELETE /api/sessions/{id}", func(w http.ResponseWriter, r *http.Request) {
			s.EndSession(w, r, r.PathValue("id"))
		})
		mux.HandleFunc("POST /api/sessions/{id}/turns", func(w http.ResponseWriter, r *http.Request) {
			s.PostTurn(w, r, r.PathValue("id"))
		})
		mux.HandleFunc("POST /api/sessions/{id}/audio", func(w http.ResponseWriter, r *http.Request) {
			s.PostAudio(w, r, r.PathValue("id"))
		})
	}

	if rt.Dashboard != nil {
		mux.HandleFunc("GET /api/dashboard", rt.Dashboard.GetSummary)
	}
	if rt.Categories != nil {
		mux.HandleFunc("GET /api/categories", rt.Categories.ListCategories)
	}

	if j := rt.Jobs; j != nil {
		mux.HandleFunc("GET /api/jobs", j.ListJobs)
		mux.HandleFunc("GET /api/jobs/{id}", func(w http.ResponseWriter, r *http.Request) {
			j.GetJob(w, r, r.PathValue("id"))
		})
	}

	// Health check endpoint
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		middleware.WriteJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	mux.Handle("GET /metrics", promhttp.Handler())
}
