package models

import "time"

// IssueResult is an issue set in fetch order plus the diagnostics of the
// run that produced it
type IssueResult struct {
	Query       string      `json:"query"`
	Issues      []Issue     `json:"issues"`
	Diagnostics Diagnostics `json:"diagnostics"`
	FetchedAt   time.Time   `json:"fetched_at"`
}

// CacheStatus describes one cached entry
type CacheStatus struct {
	Query     string    `json:"query"`
	FetchedAt time.Time `json:"fetched_at"`
	AgeSecs   int       `json:"age_seconds"`
	Issues    int       `json:"issues"`
	Expired   bool      `json:"expired"`
}
