package models

import "time"

// Diagnostics travel alongside a successful result set. Presentation
// decides whether to surface them.
type Diagnostics struct {
	RunID        string    `json:"run_id"`
	Query        string    `json:"query"`
	FetchedAt    time.Time `json:"fetched_at"`
	Pages        int       `json:"pages"`
	Fetched      int       `json:"fetched"`
	Normalized   int       `json:"normalized"`
	Skipped      int       `json:"skipped"`
	SkippedKeys  []string  `json:"skipped_keys,omitempty"`
	Duplicates   int       `json:"duplicates"`
	Unrecognized int       `json:"unrecognized"`
	Fingerprint  string    `json:"fingerprint"`

	// PartialHistory counts issues whose changelog came back truncated
	PartialHistory int `json:"partial_history"`

	// FromCache is true when the set was served without a fetch. Stale is
	// true when a refresh failed and older data was served instead; the
	// failure is kept in RefreshError.
	FromCache    bool   `json:"from_cache"`
	Stale        bool   `json:"stale"`
	RefreshError string `json:"refresh_error,omitempty"`
}

// DataQuality counts anomalies found while deriving metrics for a set
type DataQuality struct {
	NegativeCycleTime    int `json:"negative_cycle_time"`
	NegativeAge          int `json:"negative_age"`
	NegativeTimeInStatus int `json:"negative_time_in_status"`
	DegradedTimeInStatus int `json:"degraded_time_in_status"`
}

// Record adds the anomalies of one issue's metrics
func (q *DataQuality) Record(m DerivedMetrics) {
	for _, a := range m.Anomalies {
		switch a {
		case AnomalyNegativeCycleTime:
			q.NegativeCycleTime++
		case AnomalyNegativeAge:
			q.NegativeAge++
		case AnomalyNegativeTimeInStatus:
			q.NegativeTimeInStatus++
		case AnomalyMissingHistory:
			q.DegradedTimeInStatus++
		}
	}
}

// Total returns the number of clamped values. Degraded time-in-status is
// reduced confidence rather than a clamp and is not included.
func (q DataQuality) Total() int {
	return q.NegativeCycleTime + q.NegativeAge + q.NegativeTimeInStatus
}
