package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/kilupskalvis/agentmerge/internal/core"
	"github.com/kilupskalvis/agentmerge/internal/models"
)

// Config holds configurable limits for the server.
type Config struct {
	MaxRequestBody    int64  // bytes, for JSON endpoints
	RequestsPerMinute int    // per-client rate limit, 0 disables
	Token             string // bearer token for API endpoints, empty disables auth
	DefaultActor      string // resolver recorded when a request names none
	Webhooks          *WebhookNotifier
}

// DefaultConfig returns reasonable defaults.
func DefaultConfig() *Config {
	return &Config{
		MaxRequestBody:    16 * 1024 * 1024, // 16MB
		RequestsPerMinute: 600,
		DefaultActor:      "api",
	}
}

// api carries the dependencies shared by all handlers.
type api struct {
	resolver *core.Resolver
	cfg      *Config
	logger   *slog.Logger
}

// Handler creates the HTTP handler with all routes and middleware.
// The returned cleanup function stops background goroutines and should be
// called on server shutdown.
func Handler(resolver *core.Resolver, cfg *Config, logger *slog.Logger) (http.Handler, func()) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	if logger == nil {
		logger = slog.Default()
	}

	a := &api{resolver: resolver, cfg: cfg, logger: logger}
	rl := newRateLimiter(cfg.RequestsPerMinute)
	auth := tokenAuth(cfg.Token)

	// Execution order: auth -> rl -> handler
	protected := func(h http.HandlerFunc) http.Handler {
		return applyMiddleware(h, auth, rl.middleware)
	}

	mux := http.NewServeMux()

	// Health endpoint (no auth)
	mux.HandleFunc("GET /healthz", handleHealthz)

	// Conflicts
	mux.Handle("POST /api/v1/conflicts/detect", protected(a.handleDetect))
	mux.Handle("GET /api/v1/conflicts", protected(a.handleListConflicts))
	mux.Handle("GET /api/v1/conflicts/{id}", protected(a.withConflictID(a.handleGetConflict)))
	mux.Handle("GET /api/v1/conflicts/{id}/markers", protected(a.withConflictID(a.handleMarkers)))

	// Resolution
	mux.Handle("POST /api/v1/conflicts/{id}/auto-resolve", protected(a.withConflictID(a.handleAutoResolve)))
	mux.Handle("POST /api/v1/conflicts/{id}/resolve", protected(a.withConflictID(a.handleResolve)))
	mux.Handle("POST /api/v1/conflicts/{id}/accept/{side}", protected(a.withConflictID(a.handleAccept)))
	mux.Handle("POST /api/v1/conflicts/{id}/rollback", protected(a.handleRollback))

	// Audit and retention
	mux.Handle("GET /api/v1/audit", protected(a.handleAuditLog))
	mux.Handle("POST /api/v1/cleanup", protected(a.handleCleanup))

	// Apply global middleware
	handler := applyMiddleware(mux,
		recoveryMiddleware(logger),
		loggingMiddleware(logger),
		requestIDMiddleware,
	)

	return handler, rl.Stop
}

type conflictHandlerFunc func(w http.ResponseWriter, r *http.Request, id string)

// withConflictID expands the {id} path value (full or short) before calling fn.
func (a *api) withConflictID(fn conflictHandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := a.resolver.ResolveID(r.PathValue("id"))
		if err != nil {
			a.writeResolverError(w, err)
			return
		}
		fn(w, r, id)
	}
}

// --- Request / response bodies ---

// DetectRequest is the body of POST /api/v1/conflicts/detect.
type DetectRequest struct {
	FilePath    string            `json:"file_path"`
	Original    string            `json:"original"`
	ChangeA     models.ChangeInfo `json:"change_a"`
	ChangeB     models.ChangeInfo `json:"change_b"`
	AutoResolve bool              `json:"auto_resolve,omitempty"`
}

// DetectResponse lists the conflicts created by a detection request.
type DetectResponse struct {
	Conflicts   []*models.Conflict          `json:"conflicts"`
	AutoResults map[string]*AutoResolveBody `json:"auto_results,omitempty"`
}

// ConflictsResponse wraps a list of conflicts.
type ConflictsResponse struct {
	Conflicts []*models.Conflict `json:"conflicts"`
}

// AutoResolveBody is the JSON form of an automatic resolution attempt.
type AutoResolveBody struct {
	Success         bool     `json:"success"`
	ResolvedContent string   `json:"resolved_content,omitempty"`
	Status          string   `json:"status"`
	Warnings        []string `json:"warnings,omitempty"`
}

// AcceptRequest is the optional body of the accept endpoint.
type AcceptRequest struct {
	ResolvedBy string `json:"resolved_by"`
}

// RollbackResponse carries the restored pre-resolution content.
type RollbackResponse struct {
	ConflictID      string `json:"conflict_id"`
	OriginalContent string `json:"original_content"`
}

// AuditResponse wraps audit entries.
type AuditResponse struct {
	Entries []*models.AuditEntry `json:"entries"`
}

// CleanupRequest is the body of POST /api/v1/cleanup.
type CleanupRequest struct {
	MaxAge         string `json:"max_age,omitempty"` // Go duration, default 7 days
	PurgeRollbacks bool   `json:"purge_rollbacks,omitempty"`
}

// CleanupResponse reports what a cleanup removed.
type CleanupResponse struct {
	RemovedConflicts int `json:"removed_conflicts"`
	PurgedRollbacks  int `json:"purged_rollbacks"`
}

func toAutoResolveBody(res *models.AutoResolveResult) *AutoResolveBody {
	return &AutoResolveBody{
		Success:         res.Success,
		ResolvedContent: res.ResolvedContent,
		Status:          string(res.Status),
		Warnings:        res.Warnings,
	}
}

// --- Handlers ---

func (a *api) handleDetect(w http.ResponseWriter, r *http.Request) {
	var req DetectRequest
	if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if req.ChangeA.AgentID == "" || req.ChangeB.AgentID == "" {
		writeError(w, http.StatusBadRequest, "bad_request", "change_a.agent_id and change_b.agent_id are required")
		return
	}

	conflicts, err := a.resolver.DetectConflicts(r.Context(), req.Original, req.ChangeA, req.ChangeB, req.FilePath)
	if err != nil {
		a.writeResolverError(w, err)
		return
	}

	resp := &DetectResponse{Conflicts: conflicts}
	for _, c := range conflicts {
		a.cfg.Webhooks.NotifyConflict(EventConflictDetected, c)
	}

	if req.AutoResolve && len(conflicts) > 0 {
		resp.AutoResults = make(map[string]*AutoResolveBody, len(conflicts))
		for i, c := range conflicts {
			res, err := a.resolver.AttemptAutoResolve(r.Context(), c.ID)
			if err != nil {
				// The detection is already committed; report the failed attempt
				// and leave the conflict as detected.
				a.logger.Error("auto-resolve after detect failed", "conflict_id", c.ID, "error", err)
				resp.AutoResults[c.ID] = &AutoResolveBody{
					Status:   string(c.Status),
					Warnings: []string{"automatic resolution failed: " + err.Error()},
				}
				continue
			}
			resp.AutoResults[c.ID] = toAutoResolveBody(res)
			if updated, ok := a.resolver.GetConflict(c.ID); ok {
				resp.Conflicts[i] = updated
				a.notifyOutcome(updated)
			}
		}
	}

	writeJSON(w, http.StatusCreated, resp)
}

func (a *api) handleListConflicts(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	filePath := r.URL.Query().Get("file_path")

	var conflicts []*models.Conflict
	switch status {
	case "", "pending":
		for _, c := range a.resolver.GetPendingConflicts() {
			if filePath == "" || c.FilePath == filePath {
				conflicts = append(conflicts, c)
			}
		}
	case "all":
		conflicts = a.resolver.ListConflicts(filePath)
	default:
		for _, c := range a.resolver.ListConflicts(filePath) {
			if string(c.Status) == status {
				conflicts = append(conflicts, c)
			}
		}
	}
	if conflicts == nil {
		conflicts = []*models.Conflict{}
	}

	writeJSON(w, http.StatusOK, &ConflictsResponse{Conflicts: conflicts})
}

func (a *api) handleGetConflict(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := a.resolver.GetConflict(id)
	if !ok {
		a.writeResolverError(w, core.ErrConflictNotFound)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleMarkers(w http.ResponseWriter, r *http.Request, id string) {
	c, ok := a.resolver.GetConflict(id)
	if !ok {
		a.writeResolverError(w, core.ErrConflictNotFound)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	io.WriteString(w, core.GenerateConflictMarkers(c)+"\n")
}

func (a *api) handleAutoResolve(w http.ResponseWriter, r *http.Request, id string) {
	res, err := a.resolver.AttemptAutoResolve(r.Context(), id)
	if err != nil {
		a.writeResolverError(w, err)
		return
	}
	if c, ok := a.resolver.GetConflict(id); ok {
		a.notifyOutcome(c)
	}
	writeJSON(w, http.StatusOK, toAutoResolveBody(res))
}

func (a *api) handleResolve(w http.ResponseWriter, r *http.Request, id string) {
	var res models.Resolution
	if err := readJSON(r, a.cfg.MaxRequestBody, &res); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", err.Error())
		return
	}
	if res.Type == "" {
		res.Type = models.ResolutionManual
	}
	if !res.Type.Valid() {
		writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid resolution type %q", res.Type))
		return
	}
	if res.ResolvedBy == "" {
		res.ResolvedBy = a.cfg.DefaultActor
	}

	c, err := a.resolver.ManualResolve(r.Context(), id, res)
	if err != nil {
		a.writeResolverError(w, err)
		return
	}
	a.cfg.Webhooks.NotifyConflict(EventConflictResolved, c)
	writeJSON(w, http.StatusOK, c)
}

func (a *api) handleAccept(w http.ResponseWriter, r *http.Request, id string) {
	var req AcceptRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}
	if req.ResolvedBy == "" {
		req.ResolvedBy = a.cfg.DefaultActor
	}

	var (
		c   *models.Conflict
		err error
	)
	switch r.PathValue("side") {
	case "a":
		c, err = a.resolver.AcceptChangeA(r.Context(), id, req.ResolvedBy)
	case "b":
		c, err = a.resolver.AcceptChangeB(r.Context(), id, req.ResolvedBy)
	default:
		writeError(w, http.StatusBadRequest, "bad_request", "side must be 'a' or 'b'")
		return
	}
	if err != nil {
		a.writeResolverError(w, err)
		return
	}
	a.cfg.Webhooks.NotifyConflict(EventConflictResolved, c)
	writeJSON(w, http.StatusOK, c)
}

// handleRollback expands short ids when it can. An id matching nothing is
// passed through so the caller gets no_rollback_state rather than not_found.
func (a *api) handleRollback(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	full, err := a.resolver.ResolveID(id)
	switch {
	case err == nil:
		id = full
	case !errors.Is(err, core.ErrConflictNotFound):
		a.writeResolverError(w, err)
		return
	}

	content, err := a.resolver.Rollback(r.Context(), id)
	if err != nil {
		a.writeResolverError(w, err)
		return
	}
	a.cfg.Webhooks.NotifyRollback(id)
	writeJSON(w, http.StatusOK, &RollbackResponse{ConflictID: id, OriginalContent: content})
}

func (a *api) handleAuditLog(w http.ResponseWriter, r *http.Request) {
	conflictID := r.URL.Query().Get("conflict_id")
	if conflictID != "" {
		// Audit entries outlive their conflicts, so unknown ids are not an error.
		if full, err := a.resolver.ResolveID(conflictID); err == nil {
			conflictID = full
		}
	}
	writeJSON(w, http.StatusOK, &AuditResponse{Entries: a.resolver.GetAuditLog(conflictID)})
}

func (a *api) handleCleanup(w http.ResponseWriter, r *http.Request) {
	var req CleanupRequest
	if r.ContentLength != 0 {
		if err := readJSON(r, a.cfg.MaxRequestBody, &req); err != nil {
			writeError(w, http.StatusBadRequest, "bad_request", err.Error())
			return
		}
	}

	var maxAge time.Duration
	if req.MaxAge != "" {
		d, err := time.ParseDuration(req.MaxAge)
		if err != nil || d <= 0 {
			writeError(w, http.StatusBadRequest, "bad_request", fmt.Sprintf("invalid max_age %q", req.MaxAge))
			return
		}
		maxAge = d
	}

	resp := &CleanupResponse{}
	removed, err := a.resolver.CleanupOldConflicts(r.Context(), maxAge)
	if err != nil {
		a.writeResolverError(w, err)
		return
	}
	resp.RemovedConflicts = removed

	if req.PurgeRollbacks {
		purged, err := a.resolver.PurgeExpiredRollbacks(r.Context())
		if err != nil {
			a.writeResolverError(w, err)
			return
		}
		resp.PurgedRollbacks = purged
	}

	writeJSON(w, http.StatusOK, resp)
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

// notifyOutcome reports the state an automatic resolution attempt left a conflict in.
func (a *api) notifyOutcome(c *models.Conflict) {
	switch c.Status {
	case models.StatusManualRequired:
		a.cfg.Webhooks.NotifyConflict(EventConflictManualRequired, c)
	case models.StatusAutoResolved:
		a.cfg.Webhooks.NotifyConflict(EventConflictResolved, c)
	}
}

// --- Helpers ---

// writeResolverError maps engine errors to HTTP status codes.
func (a *api) writeResolverError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, core.ErrConflictNotFound):
		writeError(w, http.StatusNotFound, "not_found", err.Error())
	case errors.Is(err, core.ErrAmbiguousID):
		writeError(w, http.StatusBadRequest, "ambiguous_id", err.Error())
	case errors.Is(err, core.ErrNoRollbackState):
		writeError(w, http.StatusNotFound, "no_rollback_state", err.Error())
	case errors.Is(err, core.ErrRollbackExpired):
		writeError(w, http.StatusGone, "rollback_expired", err.Error())
	case errors.Is(err, core.ErrConflictClosed):
		writeError(w, http.StatusConflict, "conflict_closed", err.Error())
	default:
		a.logger.Error("resolver operation failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal server error")
	}
}

func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, map[string]string{"error": code, "message": message})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, maxSize int64, v interface{}) error {
	limited := io.LimitReader(r.Body, maxSize)
	if err := json.NewDecoder(limited).Decode(v); err != nil {
		return fmt.Errorf("invalid JSON: %w", err)
	}
	return nil
}
