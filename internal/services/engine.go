package services

import (
	"context"
	"sync"
	"time"

	"aktis-analytics-jira/internal/analytics"
	"aktis-analytics-jira/internal/clock"
	. "aktis-analytics-jira/internal/common"
	. "aktis-analytics-jira/internal/interfaces"
	"aktis-analytics-jira/internal/models"

	"github.com/ternarybob/arbor"
)

// Engine is the entry point for consumers: cached issue sets, per-issue
// metrics and filtered sets ready for the analytics views.
type Engine struct {
	config    *Config
	client    JiraClient
	cache     *Cache
	snapshots SnapshotStore
	calc      *analytics.Calculator
	policy    analytics.ExclusionPolicy
	clock     clock.Clock
	logger    arbor.ILogger

	mu        sync.RWMutex
	notifiers []RefreshNotifier
}

var _ AnalyticsEngine = (*Engine)(nil)

func NewEngine(config *Config, client JiraClient, cache *Cache, clk clock.Clock, logger arbor.ILogger) *Engine {
	return &Engine{
		config: config,
		client: client,
		cache:  cache,
		calc: analytics.NewCalculator(analytics.Thresholds{
			Yellow: config.Analytics.StuckYellowDays,
			Red:    config.Analytics.StuckRedDays,
		}),
		policy: analytics.ExclusionPolicy{
			Resolutions: config.Analytics.ExcludedResolutions,
			Statuses:    config.Analytics.ExcludedStatuses,
		},
		clock:  clk,
		logger: logger,
	}
}

// NewEngineFromConfig wires the Jira client, fetch pipeline, snapshot store
// and cache described by config. A snapshot store that cannot be opened is
// logged and skipped.
func NewEngineFromConfig(config *Config, logger arbor.ILogger) *Engine {
	client := NewJiraClient(&config.Jira, logger)
	pipeline := NewPipeline(
		NewFetcher(client, config.Jira.PageSize, logger),
		NewNormalizer(config.Jira.BaseURL, config.Jira.Epics, logger),
		logger,
	)

	var snapshots SnapshotStore
	if config.Storage.SnapshotPath != "" {
		store, err := NewSnapshotStore(&config.Storage)
		if err != nil {
			logger.Warn().Err(err).Str("path", config.Storage.SnapshotPath).Msg("Snapshot store unavailable, continuing without it")
		} else {
			snapshots = store
		}
	}

	clk := clock.Real()
	ttl := time.Duration(config.Analytics.CacheTTLSeconds) * time.Second
	cache := NewCache(pipeline, snapshots, clk, ttl, logger)

	engine := NewEngine(config, client, cache, clk, logger)
	engine.snapshots = snapshots
	return engine
}

// Close releases the snapshot store
func (e *Engine) Close() error {
	if e.snapshots != nil {
		return e.snapshots.Close()
	}
	return nil
}

// AddNotifier registers a receiver for refresh events
func (e *Engine) AddNotifier(n RefreshNotifier) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.notifiers = append(e.notifiers, n)
}

func (e *Engine) notify(event RefreshEvent) {
	e.mu.RLock()
	defer e.mu.RUnlock()
	for _, n := range e.notifiers {
		n.NotifyRefresh(event)
	}
}

// DefaultQuery is the query used when a caller passes ""
func (e *Engine) DefaultQuery() string {
	return DefaultQuery(&e.config.Jira)
}

func (e *Engine) resolve(query string) string {
	if query == "" {
		return e.DefaultQuery()
	}
	return query
}

// DefaultPriorities is the configured priority filter
func (e *Engine) DefaultPriorities() []models.Priority {
	out := make([]models.Priority, 0, len(e.config.Analytics.DefaultPriorities))
	for _, p := range e.config.Analytics.DefaultPriorities {
		out = append(out, models.Priority(p))
	}
	return out
}

func (e *Engine) Thresholds() analytics.Thresholds {
	return e.calc.Thresholds()
}

// GetIssues returns the canonical issue set for query in fetch order
func (e *Engine) GetIssues(ctx context.Context, query string, forceRefresh bool) (*models.IssueResult, error) {
	query = e.resolve(query)

	set, err := e.cache.Get(ctx, query, forceRefresh)
	if err != nil {
		e.notify(RefreshEvent{Type: "refresh_failed", Query: query, Error: err.Error()})
		return nil, err
	}

	switch {
	case set.Diagnostics.Stale:
		e.notify(RefreshEvent{
			Type:      "refresh_failed",
			RunID:     set.Diagnostics.RunID,
			Query:     query,
			FetchedAt: set.FetchedAt,
			Issues:    len(set.Issues),
			Stale:     true,
			Error:     set.Diagnostics.RefreshError,
		})
	case !set.Diagnostics.FromCache:
		e.notify(RefreshEvent{
			Type:      "refresh",
			RunID:     set.Diagnostics.RunID,
			Query:     query,
			FetchedAt: set.FetchedAt,
			Issues:    len(set.Issues),
		})
	}

	return &models.IssueResult{
		Query:       set.Query,
		Issues:      set.Issues,
		Diagnostics: set.Diagnostics,
		FetchedAt:   set.FetchedAt,
	}, nil
}

// Metrics derives the metrics of one issue at now
func (e *Engine) Metrics(issue *models.Issue, now time.Time) models.DerivedMetrics {
	return e.calc.Compute(issue, now)
}

// Evaluate loads the set for query and builds the filtered IssueSet the
// views take. Metrics are derived at the clock's current instant, read
// once here; nothing below this call reads the clock. A nil or empty
// priorities slice keeps every priority.
func (e *Engine) Evaluate(ctx context.Context, query string, forceRefresh bool, priorities []models.Priority) (*analytics.IssueSet, *models.IssueResult, error) {
	result, err := e.GetIssues(ctx, query, forceRefresh)
	if err != nil {
		return nil, nil, err
	}

	now := e.clock.Now()
	set := analytics.NewIssueSet(result.Issues, now, e.calc, e.policy, priorities)

	if total := set.Quality.Total(); total > 0 {
		integrity := NewDataIntegrityError("CLAMPED_DURATIONS", "negative durations clamped to zero").
			WithContext("query", result.Query).
			WithContext("clamped", total)
		e.logger.Warn().
			Err(integrity).
			Int("negative_cycle_time", set.Quality.NegativeCycleTime).
			Int("negative_age", set.Quality.NegativeAge).
			Int("negative_time_in_status", set.Quality.NegativeTimeInStatus).
			Msg("Data integrity anomalies recorded")
	}

	return set, result, nil
}

// Invalidate drops the cached set for query
func (e *Engine) Invalidate(query string) {
	query = e.resolve(query)
	e.cache.Invalidate(query)
	e.notify(RefreshEvent{Type: "invalidated", Query: query, FetchedAt: e.clock.Now()})
}

// InvalidateAll drops every cached set
func (e *Engine) InvalidateAll() {
	e.cache.Clear()
	e.notify(RefreshEvent{Type: "invalidated", FetchedAt: e.clock.Now()})
}

func (e *Engine) CacheStatus() []models.CacheStatus {
	return e.cache.Status()
}

// Snapshots lists the stored last-known-good sets
func (e *Engine) Snapshots() ([]SnapshotInfo, error) {
	if e.snapshots == nil {
		return nil, nil
	}
	return e.snapshots.ListSnapshots()
}

// TestConnection verifies the configured credentials
func (e *Engine) TestConnection(ctx context.Context) (*JiraUser, error) {
	return e.client.TestConnection(ctx)
}
