package analytics

import (
	"sort"

	"aktis-analytics-jira/internal/models"
)

// Overview is the executive summary of a set
type Overview struct {
	Total           int                `json:"total"`
	Done            int                `json:"done"`
	DonePct         float64            `json:"done_pct"`
	Dev             int                `json:"dev"`
	QA              int                `json:"qa"`
	ToDo            int                `json:"to_do"`
	ActiveBlockers  int                `json:"active_blockers"`
	ActiveCriticals int                `json:"active_criticals"`
	Red             int                `json:"red"`
	Yellow          int                `json:"yellow"`
	Excluded        int                `json:"excluded"`
	Quality         models.DataQuality `json:"quality"`
}

func Summary(set *IssueSet) Overview {
	o := Overview{
		Total:    set.Len(),
		Excluded: set.Excluded,
		Quality:  set.Quality,
	}

	for i := range set.Entries {
		e := &set.Entries[i]
		status := e.Issue.Status
		active := e.Issue.StatusCategory != models.CategoryDone

		switch {
		case !active:
			o.Done++
		case inList(status, models.DevStatuses):
			o.Dev++
		case inList(status, models.QAStatuses):
			o.QA++
		case inList(status, models.ToDoStatuses):
			o.ToDo++
		}

		if active {
			switch e.Issue.Priority {
			case models.PriorityBlocker:
				o.ActiveBlockers++
			case models.PriorityCritical:
				o.ActiveCriticals++
			}
			switch e.Metrics.StuckFlag {
			case models.StuckRed:
				o.Red++
			case models.StuckYellow:
				o.Yellow++
			}
		}
	}

	o.DonePct = percent(o.Done, o.Total)
	return o
}

// AgeBucket labels, in display order
var AgeBuckets = []string{"0-7 days", "8-14 days", "15-30 days", "30+ days"}

type AgingBucket struct {
	Bucket     string                  `json:"bucket"`
	Count      int                     `json:"count"`
	ByPriority map[models.Priority]int `json:"by_priority"`
}

// Aging buckets unfinished issues by age
func Aging(set *IssueSet) []AgingBucket {
	buckets := make([]AgingBucket, len(AgeBuckets))
	for i, label := range AgeBuckets {
		buckets[i] = AgingBucket{Bucket: label, ByPriority: make(map[models.Priority]int)}
	}

	for i := range set.Entries {
		e := &set.Entries[i]
		if e.Issue.StatusCategory == models.CategoryDone {
			continue
		}
		b := &buckets[ageBucket(e.Metrics.AgeDays)]
		b.Count++
		b.ByPriority[e.Issue.Priority]++
	}
	return buckets
}

func ageBucket(days int) int {
	switch {
	case days <= 7:
		return 0
	case days <= 14:
		return 1
	case days <= 30:
		return 2
	}
	return 3
}

type PriorityCycleTime struct {
	Priority   models.Priority `json:"priority"`
	Count      int             `json:"count"`
	MeanDays   float64         `json:"mean_days"`
	MedianDays float64         `json:"median_days"`
}

// CycleTimeByPriority summarizes resolved issues per priority, fastest
// mean first
func CycleTimeByPriority(set *IssueSet) []PriorityCycleTime {
	cycles := make(map[models.Priority][]float64)
	for i := range set.Entries {
		e := &set.Entries[i]
		if e.Metrics.CycleTimeDays == nil {
			continue
		}
		cycles[e.Issue.Priority] = append(cycles[e.Issue.Priority], float64(*e.Metrics.CycleTimeDays))
	}

	out := make([]PriorityCycleTime, 0, len(cycles))
	for p, values := range cycles {
		out = append(out, PriorityCycleTime{
			Priority:   p,
			Count:      len(values),
			MeanDays:   mean(values),
			MedianDays: median(values),
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].MeanDays != out[j].MeanDays {
			return out[i].MeanDays < out[j].MeanDays
		}
		return out[i].Priority.Rank() < out[j].Priority.Rank()
	})
	return out
}

// ActiveIssue is a row of the high priority lists
type ActiveIssue struct {
	Key              string           `json:"key"`
	Summary          string           `json:"summary"`
	URL              string           `json:"url"`
	Priority         models.Priority  `json:"priority"`
	Status           string           `json:"status"`
	Assignee         string           `json:"assignee"`
	AgeDays          int              `json:"age_days"`
	TimeInStatusDays int              `json:"time_in_status_days"`
	Degraded         bool             `json:"degraded"`
	Flag             models.StuckFlag `json:"flag"`
	FixVersion       *string          `json:"fix_version"`
}

// ActiveHighPriority lists unfinished blockers and criticals, blockers
// first, longest in status first, then by key.
func ActiveHighPriority(set *IssueSet) []ActiveIssue {
	return highPriority(set, func(*models.Issue) bool { return true })
}

// UnassignedHighPriority is ActiveHighPriority limited to issues nobody
// owns
func UnassignedHighPriority(set *IssueSet) []ActiveIssue {
	return highPriority(set, func(issue *models.Issue) bool {
		return issue.AssigneeName() == models.UnassignedBucket
	})
}

func highPriority(set *IssueSet, keep func(*models.Issue) bool) []ActiveIssue {
	out := []ActiveIssue{}
	for i := range set.Entries {
		e := &set.Entries[i]
		if !e.Issue.Priority.IsHigh() || e.Issue.StatusCategory == models.CategoryDone || !keep(&e.Issue) {
			continue
		}
		out = append(out, ActiveIssue{
			Key:              e.Issue.Key,
			Summary:          e.Issue.Summary,
			URL:              e.Issue.URL,
			Priority:         e.Issue.Priority,
			Status:           e.Issue.Status,
			Assignee:         e.Issue.AssigneeName(),
			AgeDays:          e.Metrics.AgeDays,
			TimeInStatusDays: e.Metrics.TimeInStatusDays,
			Degraded:         e.Metrics.TimeInStatusDegraded,
			Flag:             e.Metrics.StuckFlag,
			FixVersion:       e.Issue.FixVersion,
		})
	}

	sort.Slice(out, func(i, j int) bool {
		if ri, rj := out[i].Priority.Rank(), out[j].Priority.Rank(); ri != rj {
			return ri < rj
		}
		if out[i].TimeInStatusDays != out[j].TimeInStatusDays {
			return out[i].TimeInStatusDays > out[j].TimeInStatusDays
		}
		return out[i].Key < out[j].Key
	})
	return out
}

func inList(value string, list []string) bool {
	for _, v := range list {
		if v == value {
			return true
		}
	}
	return false
}
