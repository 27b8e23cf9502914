package analytics

import (
	"strings"
	"time"

	"aktis-analytics-jira/internal/models"
)

// ExclusionPolicy removes issues from every view. It is applied once, when
// the IssueSet is built.
type ExclusionPolicy struct {
	Resolutions []string `json:"resolutions"`
	Statuses    []string `json:"statuses"`
}

// Excludes reports whether the issue's resolution or status is on the
// exclusion lists. Comparison ignores case.
func (p ExclusionPolicy) Excludes(issue *models.Issue) bool {
	for _, r := range p.Resolutions {
		if issue.Resolution != "" && strings.EqualFold(r, issue.Resolution) {
			return true
		}
	}
	for _, s := range p.Statuses {
		if strings.EqualFold(s, issue.Status) {
			return true
		}
	}
	return false
}

// Evaluated pairs an issue with its metrics at the set's evaluation instant
type Evaluated struct {
	Issue   models.Issue          `json:"issue"`
	Metrics models.DerivedMetrics `json:"metrics"`
}

// IssueSet is the exclusion- and priority-filtered input every view takes.
// Metrics are computed once per set, at Now.
type IssueSet struct {
	Now         time.Time          `json:"now"`
	Entries     []Evaluated        `json:"entries"`
	Priorities  []models.Priority  `json:"priorities,omitempty"`
	Excluded    int                `json:"excluded"`
	FilteredOut int                `json:"filtered_out"`
	Quality     models.DataQuality `json:"quality"`
	Thresholds  Thresholds         `json:"thresholds"`
}

// NewIssueSet applies the exclusion policy, then the priority filter, and
// derives metrics for what remains. An empty priority filter keeps every
// priority; an unrecognized priority never matches a non-empty filter.
// Input order is preserved.
func NewIssueSet(issues []models.Issue, now time.Time, calc *Calculator, policy ExclusionPolicy, priorities []models.Priority) *IssueSet {
	set := &IssueSet{
		Now:        now,
		Entries:    make([]Evaluated, 0, len(issues)),
		Priorities: priorities,
		Thresholds: calc.Thresholds(),
	}

	for i := range issues {
		issue := &issues[i]
		if policy.Excludes(issue) {
			set.Excluded++
			continue
		}
		if !matchesPriority(issue, priorities) {
			set.FilteredOut++
			continue
		}

		metrics := calc.Compute(issue, now)
		set.Quality.Record(metrics)
		set.Entries = append(set.Entries, Evaluated{Issue: *issue, Metrics: metrics})
	}

	return set
}

func matchesPriority(issue *models.Issue, priorities []models.Priority) bool {
	if len(priorities) == 0 {
		return true
	}
	if !issue.Priority.Known() || issue.IsUnrecognized("priority") {
		return false
	}
	for _, p := range priorities {
		if issue.Priority == p {
			return true
		}
	}
	return false
}

func (s *IssueSet) Len() int {
	return len(s.Entries)
}

// AllHaveHistory reports whether every issue in the set carries status
// history. An empty set has nothing to measure and reports false.
func (s *IssueSet) AllHaveHistory() bool {
	if len(s.Entries) == 0 {
		return false
	}
	for i := range s.Entries {
		if !s.Entries[i].Issue.HistoryAvailable {
			return false
		}
	}
	return true
}

// Find returns the entry for key
func (s *IssueSet) Find(key string) (*Evaluated, bool) {
	for i := range s.Entries {
		if s.Entries[i].Issue.Key == key {
			return &s.Entries[i], true
		}
	}
	return nil, false
}
