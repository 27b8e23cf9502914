package interfaces

import (
	"context"
	"time"

	"aktis-analytics-jira/internal/analytics"
	"aktis-analytics-jira/internal/models"
)

// PageSource returns one page of search results. Implementations own the
// transport retry budget; an error means that budget is exhausted.
type PageSource interface {
	SearchPage(ctx context.Context, req models.PageRequest) (*models.SearchPage, error)
}

// CursorPager is implemented by sources that page by nextPageToken and
// ignore startAt. On such a source a page without a token is the last one.
type CursorPager interface {
	CursorPaging() bool
}

// JiraClient is the read-only view of the Jira REST API the engine needs
type JiraClient interface {
	PageSource
	TestConnection(ctx context.Context) (*JiraUser, error)
}

type JiraUser struct {
	AccountID    string `json:"accountId"`
	DisplayName  string `json:"displayName"`
	EmailAddress string `json:"emailAddress"`
	Active       bool   `json:"active"`
}

// Loader produces a fresh, normalized issue set for a query
type Loader interface {
	Load(ctx context.Context, query string) ([]models.Issue, models.Diagnostics, error)
}

// Snapshot is the last-known-good result for a query
type Snapshot struct {
	Query       string             `json:"query"`
	FetchedAt   time.Time          `json:"fetched_at"`
	Issues      []models.Issue     `json:"issues"`
	Diagnostics models.Diagnostics `json:"diagnostics"`
}

// SnapshotStore persists last-known-good results so a failed refresh can
// serve stale data after a restart. It is not a database of record.
type SnapshotStore interface {
	SaveSnapshot(snapshot *Snapshot) error
	LoadSnapshot(query string) (*Snapshot, error)
	DeleteSnapshot(query string) error
	ListSnapshots() ([]SnapshotInfo, error)
	Close() error
}

type SnapshotInfo struct {
	Query     string    `json:"query"`
	FetchedAt time.Time `json:"fetched_at"`
	Issues    int       `json:"issues"`
	Saves     int       `json:"saves"`
}

// RefreshEvent announces that the cached set for a query changed
type RefreshEvent struct {
	Type      string    `json:"type"`
	RunID     string    `json:"run_id,omitempty"`
	Query     string    `json:"query"`
	FetchedAt time.Time `json:"fetched_at"`
	Issues    int       `json:"issues"`
	Stale     bool      `json:"stale"`
	Error     string    `json:"error,omitempty"`
}

// RefreshNotifier receives refresh and invalidation events
type RefreshNotifier interface {
	NotifyRefresh(event RefreshEvent)
}

type WebService interface {
	Start(ctx context.Context) error
	Stop() error
	IsRunning() bool
}

// AnalyticsEngine is what the HTTP layer and the CLI report need
type AnalyticsEngine interface {
	GetIssues(ctx context.Context, query string, forceRefresh bool) (*models.IssueResult, error)
	Metrics(issue *models.Issue, now time.Time) models.DerivedMetrics
	Evaluate(ctx context.Context, query string, forceRefresh bool, priorities []models.Priority) (*analytics.IssueSet, *models.IssueResult, error)
	Invalidate(query string)
	InvalidateAll()
	DefaultQuery() string
	DefaultPriorities() []models.Priority
	CacheStatus() []models.CacheStatus
	Snapshots() ([]SnapshotInfo, error)
	TestConnection(ctx context.Context) (*JiraUser, error)
	AddNotifier(n RefreshNotifier)
}
