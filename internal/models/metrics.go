package models

// StuckFlag classifies how long an issue has sat in its current status
type StuckFlag string

const (
	StuckGreen  StuckFlag = "green"
	StuckYellow StuckFlag = "yellow"
	StuckRed    StuckFlag = "red"
)

// AnomalyKind names a data-integrity problem found while deriving metrics
type AnomalyKind string

const (
	AnomalyNegativeCycleTime    AnomalyKind = "negative_cycle_time"
	AnomalyNegativeAge          AnomalyKind = "negative_age"
	AnomalyNegativeTimeInStatus AnomalyKind = "negative_time_in_status"
	AnomalyMissingHistory       AnomalyKind = "missing_history"
)

// DerivedMetrics are time-relative values computed against an explicit
// evaluation instant. They are never stored.
type DerivedMetrics struct {
	AgeDays              int           `json:"age_days"`
	TimeInStatusDays     int           `json:"time_in_status_days"`
	TimeInStatusDegraded bool          `json:"time_in_status_degraded"`
	StuckFlag            StuckFlag     `json:"stuck_flag"`
	CycleTimeDays        *int          `json:"cycle_time_days"`
	Anomalies            []AnomalyKind `json:"anomalies,omitempty"`
}

// HasAnomaly reports whether kind was recorded
func (m DerivedMetrics) HasAnomaly(kind AnomalyKind) bool {
	for _, a := range m.Anomalies {
		if a == kind {
			return true
		}
	}
	return false
}
