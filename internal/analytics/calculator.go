// Package analytics derives time-relative metrics for canonical issues and
// reduces issue sets into reporting views. Nothing here reads the wall
// clock; every computation takes an explicit evaluation instant.
package analytics

import (
	"time"

	"aktis-analytics-jira/internal/models"
)

const day = 24 * time.Hour

// Thresholds are the stuck limits in whole days. A time-in-status strictly
// greater than Red is red, strictly greater than Yellow is yellow.
type Thresholds struct {
	Yellow int `json:"yellow_days"`
	Red    int `json:"red_days"`
}

func DefaultThresholds() Thresholds {
	return Thresholds{Yellow: 3, Red: 7}
}

type Calculator struct {
	thresholds Thresholds
}

func NewCalculator(thresholds Thresholds) *Calculator {
	return &Calculator{thresholds: thresholds}
}

func (c *Calculator) Thresholds() Thresholds {
	return c.thresholds
}

// Compute derives the metrics of issue at now. Negative spans are clamped
// to zero and recorded as anomalies. Without status history, time in
// status falls back to age and is flagged as degraded.
func (c *Calculator) Compute(issue *models.Issue, now time.Time) models.DerivedMetrics {
	var m models.DerivedMetrics

	m.AgeDays = c.days(now.Sub(issue.Created), models.AnomalyNegativeAge, &m)

	switch {
	case !issue.HistoryAvailable:
		m.TimeInStatusDays = m.AgeDays
		m.TimeInStatusDegraded = true
		m.Anomalies = append(m.Anomalies, models.AnomalyMissingHistory)
	default:
		since := issue.Created
		if last, ok := issue.LastStatusChange(); ok {
			since = last
		}
		m.TimeInStatusDays = c.days(now.Sub(since), models.AnomalyNegativeTimeInStatus, &m)
	}

	if issue.Resolved != nil {
		cycle := c.days(issue.Resolved.Sub(issue.Created), models.AnomalyNegativeCycleTime, &m)
		m.CycleTimeDays = &cycle
	}

	m.StuckFlag = c.Flag(m.TimeInStatusDays)
	return m
}

// Flag classifies a time-in-status value
func (c *Calculator) Flag(days int) models.StuckFlag {
	switch {
	case days > c.thresholds.Red:
		return models.StuckRed
	case days > c.thresholds.Yellow:
		return models.StuckYellow
	}
	return models.StuckGreen
}

// days floors d to whole days, clamping negatives to zero
func (c *Calculator) days(d time.Duration, anomaly models.AnomalyKind, m *models.DerivedMetrics) int {
	if d < 0 {
		m.Anomalies = append(m.Anomalies, anomaly)
		return 0
	}
	return int(d / day)
}
