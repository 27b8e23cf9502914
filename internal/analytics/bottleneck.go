package analytics

import (
	"sort"

	"aktis-analytics-jira/internal/models"
)

// StuckIssue is an issue over the red threshold in its current status
type StuckIssue struct {
	Key              string          `json:"key"`
	Summary          string          `json:"summary"`
	URL              string          `json:"url"`
	Priority         models.Priority `json:"priority"`
	Assignee         string          `json:"assignee"`
	TimeInStatusDays int             `json:"time_in_status_days"`
	Degraded         bool            `json:"degraded"`
}

type StatusBottleneck struct {
	Status           string       `json:"status"`
	Count            int          `json:"count"`
	MeanDays         float64      `json:"mean_days"`
	MedianDays       float64      `json:"median_days"`
	MaxDays          int          `json:"max_days"`
	StuckCount       int          `json:"stuck_count"`
	Stuck            []StuckIssue `json:"stuck"`
	DegradedEstimate bool         `json:"degraded_estimate"`
}

// Bottlenecks groups unfinished issues by status and reports time-in-status
// statistics plus the issues stuck beyond the red threshold. Stuck lists
// are ordered by time in status descending, then key ascending. Groups
// with the most stuck issues come first.
func Bottlenecks(set *IssueSet) []StatusBottleneck {
	groups := make(map[string]*StatusBottleneck)
	days := make(map[string][]int)

	for i := range set.Entries {
		e := &set.Entries[i]
		if e.Issue.StatusCategory == models.CategoryDone {
			continue
		}

		g, ok := groups[e.Issue.Status]
		if !ok {
			g = &StatusBottleneck{Status: e.Issue.Status, Stuck: []StuckIssue{}}
			groups[e.Issue.Status] = g
		}

		g.Count++
		days[e.Issue.Status] = append(days[e.Issue.Status], e.Metrics.TimeInStatusDays)
		if e.Metrics.TimeInStatusDegraded {
			g.DegradedEstimate = true
		}

		if e.Metrics.TimeInStatusDays > set.Thresholds.Red {
			g.StuckCount++
			g.Stuck = append(g.Stuck, StuckIssue{
				Key:              e.Issue.Key,
				Summary:          e.Issue.Summary,
				URL:              e.Issue.URL,
				Priority:         e.Issue.Priority,
				Assignee:         e.Issue.AssigneeName(),
				TimeInStatusDays: e.Metrics.TimeInStatusDays,
				Degraded:         e.Metrics.TimeInStatusDegraded,
			})
		}
	}

	out := make([]StatusBottleneck, 0, len(groups))
	for status, g := range groups {
		values := make([]float64, len(days[status]))
		for i, d := range days[status] {
			values[i] = float64(d)
		}
		g.MeanDays = mean(values)
		g.MedianDays = median(values)
		g.MaxDays = maxInt(days[status])
		sortStuck(g.Stuck)
		out = append(out, *g)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].StuckCount != out[j].StuckCount {
			return out[i].StuckCount > out[j].StuckCount
		}
		if out[i].MeanDays != out[j].MeanDays {
			return out[i].MeanDays > out[j].MeanDays
		}
		return out[i].Status < out[j].Status
	})
	return out
}

func sortStuck(stuck []StuckIssue) {
	sort.Slice(stuck, func(i, j int) bool {
		if stuck[i].TimeInStatusDays != stuck[j].TimeInStatusDays {
			return stuck[i].TimeInStatusDays > stuck[j].TimeInStatusDays
		}
		return stuck[i].Key < stuck[j].Key
	})
}
