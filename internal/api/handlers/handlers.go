package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/dvloznov/voice-ledger/internal/api/middleware"
	"github.com/dvloznov/voice-ledger/internal/auth"
	"github.com/dvloznov/voice-ledger/internal/conversation"
	"github.com/dvloznov/voice-ledger/internal/dashboard"
	"github.com/dvloznov/voice-ledger/internal/extractor"
	"github.com/dvloznov/voice-ledger/internal/jobs"
	"github.com/dvloznov/voice-ledger/internal/ledger"
)

// MaxAudioBytes caps the size of an uploaded recording.
const MaxAudioBytes = 10 << 20

// LoginService authenticates users.
type LoginService interface {
	Login(ctx context.Context, username, password string) (auth.Login, error)
}

// AuthHandler handles login.
type AuthHandler struct {
	svc LoginService
	log zerolog.Logger
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(svc LoginService, log zerolog.Logger) *AuthHandler {
	return &AuthHandler{svc: svc, log: log}
}

// Login handles POST /api/auth/login
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}
	if req.Username == "" || req.Password == "" {
		middleware.WriteError(w, http.StatusBadRequest, "username and password are required")
		return
	}

	login, err := h.svc.Login(r.Context(), req.Username, req.Password)
	switch {
	case err == nil:
		middleware.WriteJSON(w, http.StatusOK, login)
	case errors.Is(err, auth.ErrInvalidCredentials), errors.Is(err, auth.ErrUserNotFound):
		middleware.WriteError(w, http.StatusUnauthorized, "Invalid username or password")
	case errors.Is(err, auth.ErrAccountBlocked):
		middleware.WriteError(w, http.StatusForbidden, "Account is blocked")
	default:
		h.log.Error().Err(err).Str("username", req.Username).Msg("Login failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Login failed")
	}
}

// SessionsHandler handles dialogue sessions.
type SessionsHandler struct {
	mgr *conversation.Manager
	log zerolog.Logger
}

// NewSessionsHandler creates a new sessions handler.
func NewSessionsHandler(mgr *conversation.Manager, log zerolog.Logger) *SessionsHandler {
	return &SessionsHandler{mgr: mgr, log: log}
}

// CreateSession handles POST /api/sessions
func (h *SessionsHandler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var owner, ledgerID string
	if claims, ok := middleware.ClaimsFromContext(r.Context()); ok {
		owner, ledgerID = claims.Username, claims.LedgerID
	}

	info := h.mgr.StartSession(owner, ledgerID)
	middleware.WriteJSON(w, http.StatusCreated, info)
}

// GetSession handles GET /api/sessions/{id}
func (h *SessionsHandler) GetSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	info, err := h.mgr.Snapshot(callerContext(r), sessionID)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, info)
}

// EndSession handles DELETE /api/sessions/{id}
func (h *SessionsHandler) EndSession(w http.ResponseWriter, r *http.Request, sessionID string) {
	if err := h.mgr.EndSession(callerContext(r), sessionID); err != nil {
		h.writeSessionError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// PostTurn handles POST /api/sessions/{id}/turns
func (h *SessionsHandler) PostTurn(w http.ResponseWriter, r *http.Request, sessionID string) {
	var req struct {
		Text string `json:"text"`
	}

	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteError(w, http.StatusBadRequest, "Invalid request body")
		return
	}

	reply, err := h.mgr.HandleUtterance(callerContext(r), sessionID, req.Text)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

// PostAudio handles POST /api/sessions/{id}/audio. The body is the raw recording.
func (h *SessionsHandler) PostAudio(w http.ResponseWriter, r *http.Request, sessionID string) {
	audio, err := io.ReadAll(http.MaxBytesReader(w, r.Body, MaxAudioBytes))
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			middleware.WriteError(w, http.StatusRequestEntityTooLarge, "Recording too large")
			return
		}
		middleware.WriteError(w, http.StatusBadRequest, "Failed to read recording")
		return
	}

	mimeType := r.Header.Get("Content-Type")
	if mimeType == "" {
		mimeType = "audio/webm"
	}

	reply, err := h.mgr.HandleAudio(callerContext(r), sessionID, audio, mimeType)
	if err != nil {
		h.writeSessionError(w, err)
		return
	}
	middleware.WriteJSON(w, http.StatusOK, reply)
}

func (h *SessionsHandler) writeSessionError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, conversation.ErrSessionNotFound):
		middleware.WriteError(w, http.StatusNotFound, "Session not found")
	case errors.Is(err, conversation.ErrAudioUnsupported):
		middleware.WriteError(w, http.StatusNotImplemented, "Audio input is not configured")
	default:
		h.log.Error().Err(err).Msg("Session request failed")
		middleware.WriteError(w, http.StatusInternalServerError, "Internal server error")
	}
}

// callerContext marks the request context with the authenticated user so the
// manager only resolves that user's sessions.
func callerContext(r *http.Request) context.Context {
	ctx := r.Context()
	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		ctx = conversation.WithOwner(ctx, claims.Username)
	}
	return ctx
}

// DashboardHandler handles the expense summary.
type DashboardHandler struct {
	svc *dashboard.Service
	log zerolog.Logger
}

// NewDashboardHandler creates a new dashboard handler.
func NewDashboardHandler(svc *dashboard.Service, log zerolog.Logger) *DashboardHandler {
	return &DashboardHandler{svc: svc, log: log}
}

// GetSummary handles GET /api/dashboard
func (h *DashboardHandler) GetSummary(w http.ResponseWriter, r *http.Request) {
	recent := dashboard.DefaultRecent
	if s := r.URL.Query().Get("recent"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			middleware.WriteError(w, http.StatusBadRequest, "Invalid recent parameter")
			return
		}
		recent = n
	}

	summary, err := h.svc.Summary(r.Context(), recent)
	if err != nil {
		h.log.Error().Err(err).Str("ledger_id", ledger.LedgerIDFromContext(r.Context(), "")).Msg("Failed to build summary")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to load expenses")
		return
	}
	middleware.WriteJSON(w, http.StatusOK, summary)
}

// CategoriesHandler handles category-related endpoints.
type CategoriesHandler struct {
	source extractor.CategorySource
	log    zerolog.Logger
}

// NewCategoriesHandler creates a new categories handler. A nil source serves
// the built-in categories.
func NewCategoriesHandler(source extractor.CategorySource, log zerolog.Logger) *CategoriesHandler {
	return &CategoriesHandler{source: source, log: log}
}

// ListCategories handles GET /api/categories
func (h *CategoriesHandler) ListCategories(w http.ResponseWriter, r *http.Request) {
	categories := extractor.DefaultCategories
	if h.source != nil {
		names, err := h.source.CategoryNames(r.Context())
		if err != nil {
			h.log.Error().Err(err).Msg("Failed to list categories")
			middleware.WriteError(w, http.StatusInternalServerError, "Failed to list categories")
			return
		}
		categories = names
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"categories": categories,
		"count":      len(categories),
	})
}

// JobsHandler handles job-related endpoints.
type JobsHandler struct {
	store jobs.JobStore
	log   zerolog.Logger
}

// NewJobsHandler creates a new jobs handler.
func NewJobsHandler(store jobs.JobStore, log zerolog.Logger) *JobsHandler {
	return &JobsHandler{
		store: store,
		log:   log,
	}
}

// GetJob handles GET /api/jobs/{id}
func (h *JobsHandler) GetJob(w http.ResponseWriter, r *http.Request, jobID string) {
	ctx := r.Context()

	job, err := h.store.GetJob(ctx, jobID)
	if err != nil {
		h.log.Debug().Err(err).Str("job_id", jobID).Msg("Failed to get job")
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}
	if claims, ok := middleware.ClaimsFromContext(ctx); ok && job.LedgerID != claims.LedgerID {
		middleware.WriteError(w, http.StatusNotFound, "Job not found")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, job)
}

// ListJobs handles GET /api/jobs
func (h *JobsHandler) ListJobs(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	// Parse query parameters
	query := r.URL.Query()
	filter := jobs.JobFilter{
		ExpenseID: query.Get("expense_id"),
		LedgerID:  query.Get("ledger_id"),
		Status:    jobs.JobStatus(query.Get("status")),
	}
	if claims, ok := middleware.ClaimsFromContext(ctx); ok {
		filter.LedgerID = claims.LedgerID
	}

	if limitStr := query.Get("limit"); limitStr != "" {
		if limit, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = limit
		}
	}

	if offsetStr := query.Get("offset"); offsetStr != "" {
		if offset, err := strconv.Atoi(offsetStr); err == nil {
			filter.Offset = offset
		}
	}

	jobsList, err := h.store.ListJobs(ctx, filter)
	if err != nil {
		h.log.Error().Err(err).Msg("Failed to list jobs")
		middleware.WriteError(w, http.StatusInternalServerError, "Failed to list jobs")
		return
	}

	middleware.WriteJSON(w, http.StatusOK, map[string]interface{}{
		"jobs":  jobsList,
		"count": len(jobsList),
	})
}
