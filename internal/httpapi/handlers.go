// Package httpapi implements the HTTP surface: project and session
// listing, worktree listing, session detail, and the
// spawn/stop/resume/message control endpoints. This server has no auth
// scheme; it is meant to run on a trusted local network.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"path/filepath"

	"github.com/fleetobserver/fleetobserver/internal/controller"
	"github.com/fleetobserver/fleetobserver/internal/hub"
	"github.com/fleetobserver/fleetobserver/internal/preferences"
	"github.com/fleetobserver/fleetobserver/internal/scanner"
	"github.com/fleetobserver/fleetobserver/internal/sqlcache"
	"github.com/fleetobserver/fleetobserver/pkg/protocol"
)

// Handler serves every project, session, preferences, and control route.
type Handler struct {
	basePaths []string
	prefs     *preferences.Store
	hub       *hub.Hub
	ctrl      *controller.Controller
	cache     *sqlcache.Cache
	logger    *slog.Logger
}

// New creates an httpapi Handler. cache may be nil, in which case every
// session listing re-scans its files directly (FLEET_SUMMARY_CACHE unset).
func New(basePaths []string, prefs *preferences.Store, h *hub.Hub, ctrl *controller.Controller, cache *sqlcache.Cache, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{basePaths: basePaths, prefs: prefs, hub: h, ctrl: ctrl, cache: cache, logger: logger}
}

// RegisterRoutes registers every route on mux.
func (h *Handler) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/projects", h.handleListGroupedProjects)
	mux.HandleFunc("GET /api/directories", h.handleListDirectories)
	mux.HandleFunc("GET /api/projects/{slug}/sessions", h.handleListSessions)
	mux.HandleFunc("GET /api/projects/{slug}/worktrees", h.handleListWorktrees)
	mux.HandleFunc("GET /api/sessions/{sessionId}", h.handleGetSession)
	mux.HandleFunc("POST /api/sessions", h.handleCreateSession)
	mux.HandleFunc("POST /api/sessions/{sessionId}/stop", h.handleStopSession)
	mux.HandleFunc("POST /api/sessions/{sessionId}/resume", h.handleResumeSession)
	mux.HandleFunc("POST /api/sessions/{sessionId}/message", h.handleSendMessage)
	mux.HandleFunc("GET /api/preferences", h.handleGetPreferences)
	mux.HandleFunc("PUT /api/preferences", h.handleSetPreferences)
}

func (h *Handler) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": h.prefs.ProjectConfigs()})
}

type setPreferencesRequest struct {
	Projects []protocol.ProjectConfig `json:"projects"`
}

func (h *Handler) handleSetPreferences(w http.ResponseWriter, r *http.Request) {
	var req setPreferencesRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if err := h.prefs.SetProjectConfigs(req.Projects); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": req.Projects})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

func (h *Handler) projectsAndConfigs() ([]protocol.ProjectSummary, []protocol.ProjectConfig) {
	raw := scanner.ScanProjects(h.basePaths)
	configs := h.prefs.ProjectConfigs()
	return raw, configs
}

func (h *Handler) handleListGroupedProjects(w http.ResponseWriter, r *http.Request) {
	raw, configs := h.projectsAndConfigs()
	grouped := scanner.GroupProjects(raw, configs)
	writeJSON(w, http.StatusOK, map[string]interface{}{"projects": grouped})
}

func (h *Handler) handleListDirectories(w http.ResponseWriter, r *http.Request) {
	raw := scanner.ScanProjects(h.basePaths)
	writeJSON(w, http.StatusOK, map[string]interface{}{"directories": raw})
}

// resolveSlug finds the GroupedProject matching slug and the decoded
// working-directory paths of its matched raw directories (GroupedProject
// only carries the directory IDs; Path lives on the raw ProjectSummary).
func (h *Handler) resolveSlug(slug string) (group protocol.GroupedProject, paths []string, ok bool) {
	raw, configs := h.projectsAndConfigs()
	pathByID := make(map[string]string, len(raw))
	for _, p := range raw {
		pathByID[p.ID] = p.Path
	}

	for _, g := range scanner.GroupProjects(raw, configs) {
		if g.Slug != slug {
			continue
		}
		for _, id := range g.MatchedDirIDs {
			paths = append(paths, pathByID[id])
		}
		return g, paths, true
	}
	return protocol.GroupedProject{}, nil, false
}

func (h *Handler) handleListSessions(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	group, _, ok := h.resolveSlug(slug)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown project slug")
		return
	}

	// Session files live in <basePath>/<dir id>, not under the decoded
	// working-directory path that resolveSlug returns.
	seen := make(map[string]bool, len(group.MatchedDirIDs))
	var sessions []protocol.SessionSummary
	for _, id := range group.MatchedDirIDs {
		if seen[id] {
			continue
		}
		seen[id] = true
		for _, base := range h.basePaths {
			sessions = append(sessions, scanner.ScanSessionsCached(filepath.Join(base, id), h.cache)...)
		}
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"sessions": sessions})
}

func (h *Handler) handleListWorktrees(w http.ResponseWriter, r *http.Request) {
	slug := r.PathValue("slug")
	_, paths, ok := h.resolveSlug(slug)
	if !ok {
		writeJSON(w, http.StatusOK, map[string]interface{}{"worktrees": []protocol.WorktreeSummary{}})
		return
	}

	var worktrees []protocol.WorktreeSummary
	for _, dir := range paths {
		worktrees = append(worktrees, scanner.ScanWorktrees(dir)...)
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"worktrees": worktrees})
}

func (h *Handler) handleGetSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	session, err := h.hub.GetEnrichedSession(sessionID)
	if err != nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"session": session})
}

type createSessionRequest struct {
	ProjectDir string `json:"projectDir"`
	Prompt     string `json:"prompt"`
	CWD        string `json:"cwd"`
}

func (h *Handler) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.ProjectDir == "" {
		writeError(w, http.StatusBadRequest, "projectDir is required")
		return
	}

	sessionID, err := h.ctrl.StartSession(req.ProjectDir, req.CWD, req.Prompt)
	if err != nil {
		h.logger.Error("httpapi: spawn failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	writeJSON(w, http.StatusCreated, map[string]string{"sessionId": sessionID})
}

func (h *Handler) handleStopSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	if err := h.ctrl.StopSession(sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

func (h *Handler) handleResumeSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")
	if err := h.ctrl.ResumeSession(sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}

type sendMessageRequest struct {
	Message string `json:"message"`
}

func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	sessionID := r.PathValue("sessionId")

	var req sendMessageRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.Message == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	if err := h.ctrl.SendMessage(sessionID, req.Message); err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, controller.ErrSessionBusy) {
			status = http.StatusInternalServerError // busy and failed both answer 500
		}
		writeError(w, status, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{"sessionId": sessionID})
}
