package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"aktis-analytics-jira/internal/analytics"
	"aktis-analytics-jira/internal/common"
	"aktis-analytics-jira/internal/interfaces"
	"aktis-analytics-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// APIHandlers contains all API endpoint handlers
type APIHandlers struct {
	config    *common.Config
	engine    interfaces.AnalyticsEngine
	logger    arbor.ILogger
	startTime time.Time
	wsHub     *WebSocketHub
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Version   string    `json:"version"`
	Build     string    `json:"build"`
	Uptime    float64   `json:"uptime_seconds"`
	Services  struct {
		Snapshots bool   `json:"snapshots"`
		Jira      *bool  `json:"jira,omitempty"`
		JiraUser  string `json:"jira_user,omitempty"`
	} `json:"services"`
}

type VersionResponse struct {
	Version string `json:"version"`
	Build   string `json:"build"`
	Commit  string `json:"commit"`
}

// StatusResponse lists what the engine currently holds
type StatusResponse struct {
	Uptime       float64                   `json:"uptime_seconds"`
	DefaultQuery string                    `json:"default_query"`
	Cache        []models.CacheStatus      `json:"cache"`
	Snapshots    []interfaces.SnapshotInfo `json:"snapshots"`
	Clients      int                       `json:"websocket_clients"`
}

// ConfigResponse is the configuration without credentials
type ConfigResponse struct {
	Service   common.ServiceConfig   `json:"service"`
	Analytics common.AnalyticsConfig `json:"analytics"`
	Jira      struct {
		BaseURL        string   `json:"base_url"`
		Epics          []string `json:"epics"`
		PageSize       int      `json:"page_size"`
		IncludeHistory bool     `json:"include_history"`
	} `json:"jira"`
}

// ViewResponse wraps a view with the context it was evaluated in
type ViewResponse struct {
	View        string             `json:"view"`
	Query       string             `json:"query"`
	EvaluatedAt time.Time          `json:"evaluated_at"`
	Priorities  []models.Priority  `json:"priorities"`
	Total       int                `json:"total"`
	Excluded    int                `json:"excluded"`
	Quality     models.DataQuality `json:"quality"`
	Diagnostics models.Diagnostics `json:"diagnostics"`
	Data        interface{}        `json:"data"`
}

type MetricsResponse struct {
	Key         string                `json:"key"`
	EvaluatedAt time.Time             `json:"evaluated_at"`
	Excluded    bool                  `json:"excluded"`
	Issue       models.Issue          `json:"issue"`
	Metrics     models.DerivedMetrics `json:"metrics"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Type  string `json:"type,omitempty"`
}

type IndexResponse struct {
	Service      string   `json:"service"`
	Version      string   `json:"version"`
	DefaultQuery string   `json:"default_query"`
	Endpoints    []string `json:"endpoints"`
	Views        []string `json:"views"`
}

var indexEndpoints = []string{
	"GET /health[?check=jira]",
	"GET /version",
	"GET /status",
	"GET /config",
	"GET /issues[?query=&refresh=]",
	"GET /metrics/{key}[?query=&refresh=&at=]",
	"GET /views",
	"GET /views/{name}[?query=&refresh=&priority=]",
	"POST /invalidate[?query=|?all=true]",
	"GET /ws",
}

// NewAPIHandlers creates a new API handlers instance
func NewAPIHandlers(config *common.Config, engine interfaces.AnalyticsEngine, logger arbor.ILogger, wsHub *WebSocketHub) *APIHandlers {
	return &APIHandlers{
		config:    config,
		engine:    engine,
		logger:    logger,
		startTime: time.Now(),
		wsHub:     wsHub,
	}
}

// IndexHandler lists the endpoints and views. Unmatched paths are 404.
func (h *APIHandlers) IndexHandler(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "no route for " + r.URL.Path})
		return
	}

	h.writeJSON(w, http.StatusOK, IndexResponse{
		Service:      h.config.Service.Name,
		Version:      common.GetVersion(),
		DefaultQuery: h.engine.DefaultQuery(),
		Endpoints:    indexEndpoints,
		Views:        analytics.ViewNames(),
	})
}

// HealthHandler returns system health. ?check=jira also verifies the Jira
// credentials.
func (h *APIHandlers) HealthHandler(w http.ResponseWriter, r *http.Request) {
	health := HealthResponse{
		Status:    "healthy",
		Timestamp: time.Now(),
		Version:   common.GetVersion(),
		Build:     common.GetBuild(),
		Uptime:    time.Since(h.startTime).Seconds(),
	}

	_, err := h.engine.Snapshots()
	health.Services.Snapshots = err == nil

	if r.URL.Query().Get("check") == "jira" {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		defer cancel()

		user, err := h.engine.TestConnection(ctx)
		ok := err == nil
		health.Services.Jira = &ok
		if ok {
			health.Services.JiraUser = user.DisplayName
		} else {
			h.logger.Warn().Err(err).Msg("Jira connection test failed")
		}
	}

	if !health.Services.Snapshots || (health.Services.Jira != nil && !*health.Services.Jira) {
		health.Status = "degraded"
	}

	h.writeJSON(w, http.StatusOK, health)
}

func (h *APIHandlers) VersionHandler(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, VersionResponse{
		Version: common.GetVersion(),
		Build:   common.GetBuild(),
		Commit:  common.GetGitCommit(),
	})
}

// StatusHandler returns cache and snapshot state
func (h *APIHandlers) StatusHandler(w http.ResponseWriter, r *http.Request) {
	status := StatusResponse{
		Uptime:       time.Since(h.startTime).Seconds(),
		DefaultQuery: h.engine.DefaultQuery(),
		Cache:        h.engine.CacheStatus(),
	}

	snapshots, err := h.engine.Snapshots()
	if err != nil {
		h.logger.Warn().Err(err).Msg("Failed to list snapshots")
	}
	status.Snapshots = snapshots

	if h.wsHub != nil {
		status.Clients = h.wsHub.ClientCount()
	}

	h.writeJSON(w, http.StatusOK, status)
}

// ConfigHandler returns the sanitized configuration
func (h *APIHandlers) ConfigHandler(w http.ResponseWriter, r *http.Request) {
	resp := ConfigResponse{
		Service:   h.config.Service,
		Analytics: h.config.Analytics,
	}
	resp.Jira.BaseURL = h.config.Jira.BaseURL
	resp.Jira.Epics = h.config.Jira.Epics
	resp.Jira.PageSize = h.config.Jira.PageSize
	resp.Jira.IncludeHistory = h.config.Jira.IncludeHistory

	h.writeJSON(w, http.StatusOK, resp)
}

// IssuesHandler returns the canonical issue set with diagnostics
func (h *APIHandlers) IssuesHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	result, err := h.engine.GetIssues(r.Context(), r.URL.Query().Get("query"), refreshParam(r))
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, result)
}

// MetricsHandler returns the derived metrics of one issue. ?at=<RFC3339>
// evaluates at a fixed instant instead of now.
func (h *APIHandlers) MetricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	key := strings.Trim(strings.TrimPrefix(r.URL.Path, "/metrics/"), "/")
	if key == "" {
		h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "issue key is required"})
		return
	}

	instant := time.Time{}
	if at := r.URL.Query().Get("at"); at != "" {
		parsed, err := time.Parse(time.RFC3339, at)
		if err != nil {
			h.writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "at must be RFC3339"})
			return
		}
		instant = parsed
	}

	set, result, err := h.engine.Evaluate(r.Context(), r.URL.Query().Get("query"), refreshParam(r), nil)
	if err != nil {
		h.writeError(w, err)
		return
	}
	if instant.IsZero() {
		instant = set.Now
	}

	// excluded issues still have metrics, they are only left out of the views
	for i := range result.Issues {
		issue := &result.Issues[i]
		if issue.Key != key {
			continue
		}
		_, kept := set.Find(key)
		h.writeJSON(w, http.StatusOK, MetricsResponse{
			Key:         key,
			EvaluatedAt: instant,
			Excluded:    !kept,
			Issue:       *issue,
			Metrics:     h.engine.Metrics(issue, instant),
		})
		return
	}

	h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "issue " + key + " not found"})
}

// ViewsHandler serves /views (the list of names) and /views/{name}
func (h *APIHandlers) ViewsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	name := strings.Trim(strings.TrimPrefix(r.URL.Path, "/views"), "/")
	if name == "" {
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"views": analytics.ViewNames()})
		return
	}

	view, ok := analytics.View(name)
	if !ok {
		h.writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "unknown view " + name})
		return
	}

	priorities := h.priorityParam(r)
	set, result, err := h.engine.Evaluate(r.Context(), r.URL.Query().Get("query"), refreshParam(r), priorities)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.writeJSON(w, http.StatusOK, ViewResponse{
		View:        name,
		Query:       result.Query,
		EvaluatedAt: set.Now,
		Priorities:  priorities,
		Total:       set.Len(),
		Excluded:    set.Excluded,
		Quality:     set.Quality,
		Diagnostics: result.Diagnostics,
		Data:        view(set),
	})
}

// InvalidateHandler drops a cached set (?query=) or every set (?all=true)
func (h *APIHandlers) InvalidateHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost && r.Method != http.MethodDelete {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	if all, _ := strconv.ParseBool(r.URL.Query().Get("all")); all {
		h.engine.InvalidateAll()
		h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "invalidated": "all"})
		return
	}

	query := r.URL.Query().Get("query")
	if query == "" {
		query = h.engine.DefaultQuery()
	}
	h.engine.Invalidate(query)
	h.writeJSON(w, http.StatusOK, map[string]interface{}{"success": true, "invalidated": query})
}

// priorityParam resolves the priority filter. Without the parameter the
// configured default applies; "all" or an empty value disables filtering.
func (h *APIHandlers) priorityParam(r *http.Request) []models.Priority {
	values, present := r.URL.Query()["priority"]
	if !present {
		return h.engine.DefaultPriorities()
	}
	joined := strings.Join(values, ",")
	if strings.EqualFold(strings.TrimSpace(joined), "all") {
		return nil
	}
	return models.ParsePriorities(joined)
}

func refreshParam(r *http.Request) bool {
	refresh, _ := strconv.ParseBool(r.URL.Query().Get("refresh"))
	return refresh
}

func (h *APIHandlers) writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error().Err(err).Msg("Failed to encode response")
	}
}

func (h *APIHandlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	resp := ErrorResponse{Error: err.Error()}

	var engineErr *common.EngineError
	if errors.As(err, &engineErr) {
		resp.Type = string(engineErr.Type)
	}
	if common.IsErrorType(err, common.ErrorTypeFetchFailed) {
		status = http.StatusBadGateway
		resp.Type = string(common.ErrorTypeFetchFailed)
	}

	h.logger.Error().Err(err).Int("status", status).Msg("Request failed")
	h.writeJSON(w, status, resp)
}
