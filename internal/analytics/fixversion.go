package analytics

import (
	"sort"

	"aktis-analytics-jira/internal/models"
)

// VersionProgress is the category breakdown of one fix version
type VersionProgress struct {
	Version       string  `json:"version"`
	Total         int     `json:"total"`
	ToDo          int     `json:"to_do"`
	InProgress    int     `json:"in_progress"`
	Done          int     `json:"done"`
	CompletionPct float64 `json:"completion_pct"`
	Blockers      int     `json:"blockers"`
	Criticals     int     `json:"criticals"`
}

type FixVersionReport struct {
	Versions    []VersionProgress `json:"versions"`
	Unversioned int               `json:"unversioned"`
}

// FixVersionProgress groups the set by current fix version. Completion is
// done/total*100, which is 0 for an empty version and never above 100.
// Issues without a fix version are only counted.
func FixVersionProgress(set *IssueSet) FixVersionReport {
	groups := make(map[string]*VersionProgress)
	var report FixVersionReport

	for i := range set.Entries {
		issue := &set.Entries[i].Issue
		if issue.FixVersion == nil || *issue.FixVersion == "" {
			report.Unversioned++
			continue
		}

		v, ok := groups[*issue.FixVersion]
		if !ok {
			v = &VersionProgress{Version: *issue.FixVersion}
			groups[*issue.FixVersion] = v
		}

		v.Total++
		switch issue.StatusCategory {
		case models.CategoryDone:
			v.Done++
		case models.CategoryInProgress:
			v.InProgress++
		default:
			v.ToDo++
		}
		switch issue.Priority {
		case models.PriorityBlocker:
			v.Blockers++
		case models.PriorityCritical:
			v.Criticals++
		}
	}

	report.Versions = make([]VersionProgress, 0, len(groups))
	for _, v := range groups {
		v.CompletionPct = percent(v.Done, v.Total)
		report.Versions = append(report.Versions, *v)
	}
	sort.Slice(report.Versions, func(i, j int) bool {
		return report.Versions[i].Version < report.Versions[j].Version
	})
	return report
}
