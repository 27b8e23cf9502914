package analytics

import (
	"sort"

	"aktis-analytics-jira/internal/models"
)

// AssigneeWorkload is one row of the workload view
type AssigneeWorkload struct {
	Assignee           string                  `json:"assignee"`
	Total              int                     `json:"total"`
	ByPriority         map[models.Priority]int `json:"by_priority"`
	ByStatus           map[string]int          `json:"by_status"`
	MeanAgeDays        float64                 `json:"mean_age_days"`
	MedianAgeDays      float64                 `json:"median_age_days"`
	TimeSpentHours     float64                 `json:"time_spent_hours"`
	TimeRemainingHours float64                 `json:"time_remaining_hours"`
	Resolved           int                     `json:"resolved"`
	MeanCycleTimeDays  *float64                `json:"mean_cycle_time_days"`
}

// Workload groups the set by assignee. Issues without an assignee land in
// the Unassigned bucket. Rows are ordered by total descending, then name.
// Absent time values add nothing to the sums.
func Workload(set *IssueSet) []AssigneeWorkload {
	type acc struct {
		row    *AssigneeWorkload
		ages   []float64
		cycles []float64
	}
	groups := make(map[string]*acc)

	for i := range set.Entries {
		e := &set.Entries[i]
		name := e.Issue.AssigneeName()

		g, ok := groups[name]
		if !ok {
			g = &acc{row: &AssigneeWorkload{
				Assignee:   name,
				ByPriority: make(map[models.Priority]int),
				ByStatus:   make(map[string]int),
			}}
			groups[name] = g
		}

		g.row.Total++
		g.row.ByPriority[e.Issue.Priority]++
		g.row.ByStatus[e.Issue.Status]++
		g.ages = append(g.ages, float64(e.Metrics.AgeDays))

		if e.Issue.TimeSpentHours != nil {
			g.row.TimeSpentHours += *e.Issue.TimeSpentHours
		}
		if e.Issue.TimeRemainingHours != nil {
			g.row.TimeRemainingHours += *e.Issue.TimeRemainingHours
		}
		if e.Metrics.CycleTimeDays != nil {
			g.row.Resolved++
			g.cycles = append(g.cycles, float64(*e.Metrics.CycleTimeDays))
		}
	}

	rows := make([]AssigneeWorkload, 0, len(groups))
	for _, g := range groups {
		g.row.MeanAgeDays = mean(g.ages)
		g.row.MedianAgeDays = median(g.ages)
		g.row.TimeSpentHours = round1(g.row.TimeSpentHours)
		g.row.TimeRemainingHours = round1(g.row.TimeRemainingHours)
		if len(g.cycles) > 0 {
			m := mean(g.cycles)
			g.row.MeanCycleTimeDays = &m
		}
		rows = append(rows, *g.row)
	}

	sort.Slice(rows, func(i, j int) bool {
		if rows[i].Total != rows[j].Total {
			return rows[i].Total > rows[j].Total
		}
		return rows[i].Assignee < rows[j].Assignee
	})
	return rows
}
