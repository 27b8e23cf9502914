package analytics

import (
	"fmt"
	"time"
)

// WeekBucket counts resolutions in one ISO week
type WeekBucket struct {
	Week     string    `json:"week"`
	Start    time.Time `json:"start"`
	Resolved int       `json:"resolved"`
}

// WeeklyVelocity counts resolved issues per ISO week, from the week of the
// earliest resolution through the week containing the set's evaluation
// instant. Weeks without resolutions are present with zero. A set with no
// resolutions yields no buckets.
func WeeklyVelocity(set *IssueSet) []WeekBucket {
	counts := make(map[time.Time]int)
	var first, last time.Time

	for i := range set.Entries {
		resolved := set.Entries[i].Issue.Resolved
		if resolved == nil {
			continue
		}
		week := weekStart(*resolved)
		counts[week]++
		if first.IsZero() || week.Before(first) {
			first = week
		}
		if week.After(last) {
			last = week
		}
	}

	if first.IsZero() {
		return []WeekBucket{}
	}
	if current := weekStart(set.Now); current.After(last) {
		last = current
	}

	var buckets []WeekBucket
	for week := first; !week.After(last); week = week.AddDate(0, 0, 7) {
		year, number := week.ISOWeek()
		buckets = append(buckets, WeekBucket{
			Week:     fmt.Sprintf("%d-W%02d", year, number),
			Start:    week,
			Resolved: counts[week],
		})
	}
	return buckets
}

// weekStart returns Monday 00:00 UTC of the ISO week containing t
func weekStart(t time.Time) time.Time {
	t = t.UTC()
	d := time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
	offset := (int(d.Weekday()) + 6) % 7
	return d.AddDate(0, 0, -offset)
}

// MonthBucket compares intake and throughput for one calendar month
type MonthBucket struct {
	Month    string `json:"month"`
	Created  int    `json:"created"`
	Resolved int    `json:"resolved"`
}

type Trend struct {
	Months []MonthBucket `json:"months"`
	// RecentCreated, RecentResolved and NetChange cover the last three
	// months. A positive NetChange means the backlog is shrinking.
	RecentCreated  int `json:"recent_created"`
	RecentResolved int `json:"recent_resolved"`
	NetChange      int `json:"net_change"`
}

const trendMonths = 12

// MonthlyTrend reports created vs resolved per month for up to the last
// twelve months ending at the set's evaluation month, with no gaps.
func MonthlyTrend(set *IssueSet) Trend {
	created := make(map[time.Time]int)
	resolved := make(map[time.Time]int)
	var first time.Time

	note := func(counts map[time.Time]int, t time.Time) {
		month := monthStart(t)
		counts[month]++
		if first.IsZero() || month.Before(first) {
			first = month
		}
	}

	for i := range set.Entries {
		issue := &set.Entries[i].Issue
		note(created, issue.Created)
		if issue.Resolved != nil {
			note(resolved, *issue.Resolved)
		}
	}

	trend := Trend{Months: []MonthBucket{}}
	if first.IsZero() {
		return trend
	}

	last := monthStart(set.Now)
	if earliest := last.AddDate(0, -(trendMonths - 1), 0); first.Before(earliest) {
		first = earliest
	}

	for month := first; !month.After(last); month = month.AddDate(0, 1, 0) {
		trend.Months = append(trend.Months, MonthBucket{
			Month:    month.Format("2006-01"),
			Created:  created[month],
			Resolved: resolved[month],
		})
	}

	recent := trend.Months
	if len(recent) > 3 {
		recent = recent[len(recent)-3:]
	}
	for _, m := range recent {
		trend.RecentCreated += m.Created
		trend.RecentResolved += m.Resolved
	}
	trend.NetChange = trend.RecentResolved - trend.RecentCreated
	return trend
}

func monthStart(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}
