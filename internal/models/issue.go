package models

import "time"

// Issue is the canonical record produced by the normalizer. Nothing
// downstream of the normalizer touches raw payload shape.
type Issue struct {
	ID  int64  `json:"id"`
	Key string `json:"key"`
	URL string `json:"url"`

	IssueType      string         `json:"issue_type"`
	Priority       Priority       `json:"priority"`
	Status         string         `json:"status"`
	StatusCategory StatusCategory `json:"status_category"`
	Resolution     string         `json:"resolution,omitempty"`

	Assignee *string `json:"assignee"`
	Reporter string  `json:"reporter"`

	EpicKey     string   `json:"epic_key"`
	EpicSummary string   `json:"epic_summary,omitempty"`
	FixVersion  *string  `json:"fix_version"`
	FixVersions []string `json:"fix_versions,omitempty"`
	Labels      []string `json:"labels,omitempty"`
	Components  []string `json:"components,omitempty"`

	Summary     string  `json:"summary"`
	Description *string `json:"description"`

	Created  time.Time  `json:"created"`
	Updated  time.Time  `json:"updated"`
	Resolved *time.Time `json:"resolved"`

	TimeSpentHours        *float64 `json:"time_spent_hours"`
	TimeRemainingHours    *float64 `json:"time_remaining_hours"`
	OriginalEstimateHours *float64 `json:"original_estimate_hours"`

	// Transitions is ordered oldest first. HistoryAvailable is false when
	// the changelog was not requested, which is different from a history
	// with no status changes.
	Transitions      []StatusTransition `json:"transitions,omitempty"`
	HistoryAvailable bool               `json:"history_available"`

	// Unrecognized names the fields whose values fall outside the known
	// sets (priority, status, resolution, epic).
	Unrecognized []string `json:"unrecognized,omitempty"`
}

// StatusTransition is a single status change from the changelog
type StatusTransition struct {
	At   time.Time `json:"at"`
	From string    `json:"from"`
	To   string    `json:"to"`
}

// AssigneeName returns the assignee or the explicit Unassigned bucket.
func (i *Issue) AssigneeName() string {
	if i.Assignee == nil || *i.Assignee == "" {
		return UnassignedBucket
	}
	return *i.Assignee
}

// IsUnrecognized reports whether the named field carried an unknown value.
func (i *Issue) IsUnrecognized(field string) bool {
	for _, f := range i.Unrecognized {
		if f == field {
			return true
		}
	}
	return false
}

// LastStatusChange returns the timestamp of the most recent transition.
func (i *Issue) LastStatusChange() (time.Time, bool) {
	var last time.Time
	found := false
	for _, t := range i.Transitions {
		if !found || t.At.After(last) {
			last = t.At
			found = true
		}
	}
	return last, found
}

// UnassignedBucket is the workload bucket for issues without an assignee
const UnassignedBucket = "Unassigned"
