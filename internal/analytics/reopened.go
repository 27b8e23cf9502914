package analytics

import (
	"sort"

	"aktis-analytics-jira/internal/models"
)

// Reopened is the reopened-rate view. When Available is false the numeric
// fields carry no information; that is different from a measured zero.
type Reopened struct {
	Available bool     `json:"available"`
	Reason    string   `json:"reason,omitempty"`
	Reopened  int      `json:"reopened"`
	Eligible  int      `json:"eligible"`
	RatePct   float64  `json:"rate_pct"`
	Keys      []string `json:"keys,omitempty"`
}

// ReopenedRate counts issues whose history shows a move from a terminal
// status back to a non-terminal one, over the issues that were resolved or
// reopened. It needs history for every issue in the set.
func ReopenedRate(set *IssueSet) Reopened {
	if set.Len() == 0 {
		return Reopened{Reason: "no issues in set"}
	}
	if !set.AllHaveHistory() {
		return Reopened{Reason: "status history not available for every issue"}
	}

	r := Reopened{Available: true}
	for i := range set.Entries {
		issue := &set.Entries[i].Issue
		reopened := wasReopened(issue)
		if reopened {
			r.Reopened++
			r.Keys = append(r.Keys, issue.Key)
		}
		if reopened || issue.Resolved != nil || models.IsTerminal(issue.Status) {
			r.Eligible++
		}
	}

	sort.Strings(r.Keys)
	r.RatePct = percent(r.Reopened, r.Eligible)
	return r
}

func wasReopened(issue *models.Issue) bool {
	for _, t := range issue.Transitions {
		if models.IsTerminal(t.From) && !models.IsTerminal(t.To) {
			return true
		}
	}
	return false
}
