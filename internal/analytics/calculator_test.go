package analytics

import (
	"reflect"
	"testing"
	"time"

	"aktis-analytics-jira/internal/models"
)

var testNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func daysAgo(d int) time.Time {
	return testNow.Add(-time.Duration(d) * day)
}

func timePtr(t time.Time) *time.Time { return &t }

func stringPtr(s string) *string { return &s }

func floatPtr(f float64) *float64 { return &f }

// issue builds an issue with history and no transitions, so time in
// status equals age
func issue(key string, priority models.Priority, status string, createdDaysAgo int) models.Issue {
	return models.Issue{
		Key:              key,
		Priority:         priority,
		Status:           status,
		StatusCategory:   models.CategoryFor(status, ""),
		Created:          daysAgo(createdDaysAgo),
		Updated:          daysAgo(createdDaysAgo),
		HistoryAvailable: true,
	}
}

func evaluate(issues ...models.Issue) *IssueSet {
	return NewIssueSet(issues, testNow, NewCalculator(DefaultThresholds()), ExclusionPolicy{}, nil)
}

func TestComputeWithoutHistoryDegradesToAge(t *testing.T) {
	i := issue("PROJ-1", models.PriorityBlocker, "In Progress", 10)
	i.HistoryAvailable = false

	m := NewCalculator(DefaultThresholds()).Compute(&i, testNow)

	if m.AgeDays != 10 || m.TimeInStatusDays != 10 {
		t.Errorf("Expected age and time in status of 10, got %d and %d", m.AgeDays, m.TimeInStatusDays)
	}
	if !m.TimeInStatusDegraded {
		t.Error("Expected degraded time in status")
	}
	if m.StuckFlag != models.StuckRed {
		t.Errorf("Expected red, got %s", m.StuckFlag)
	}
	if !m.HasAnomaly(models.AnomalyMissingHistory) {
		t.Errorf("Expected missing history to be recorded, got %v", m.Anomalies)
	}
}

func TestComputeUsesLastTransition(t *testing.T) {
	i := issue("PROJ-1", models.PriorityMajor, "In Review", 20)
	i.Transitions = []models.StatusTransition{
		{At: daysAgo(15), From: "To Do", To: "In Progress"},
		{At: daysAgo(4), From: "In Progress", To: "In Review"},
	}

	m := NewCalculator(DefaultThresholds()).Compute(&i, testNow)

	if m.AgeDays != 20 {
		t.Errorf("Expected age 20, got %d", m.AgeDays)
	}
	if m.TimeInStatusDays != 4 || m.TimeInStatusDegraded {
		t.Errorf("Expected 4 measured days, got %d (degraded %v)", m.TimeInStatusDays, m.TimeInStatusDegraded)
	}
	if m.StuckFlag != models.StuckYellow {
		t.Errorf("Expected yellow, got %s", m.StuckFlag)
	}
	if len(m.Anomalies) != 0 {
		t.Errorf("Expected no anomalies, got %v", m.Anomalies)
	}
}

func TestComputeWithoutTransitionsUsesCreated(t *testing.T) {
	i := issue("PROJ-1", models.PriorityMajor, "To Do", 2)

	m := NewCalculator(DefaultThresholds()).Compute(&i, testNow)

	if m.TimeInStatusDays != 2 || m.StuckFlag != models.StuckGreen {
		t.Errorf("Unexpected metrics %+v", m)
	}
}

func TestComputeFloorsToWholeDays(t *testing.T) {
	i := issue("PROJ-1", models.PriorityMajor, "To Do", 0)
	i.Created = testNow.Add(-47 * time.Hour)

	m := NewCalculator(DefaultThresholds()).Compute(&i, testNow)
	if m.AgeDays != 1 {
		t.Errorf("Expected 47h to floor to 1 day, got %d", m.AgeDays)
	}
}

func TestComputeClampsNegativeCycleTime(t *testing.T) {
	i := issue("PROJ-1", models.PriorityMajor, "Done", 5)
	i.Resolved = timePtr(i.Created.Add(-24 * time.Hour))

	m := NewCalculator(DefaultThresholds()).Compute(&i, testNow)

	if m.CycleTimeDays == nil || *m.CycleTimeDays != 0 {
		t.Errorf("Expected cycle time clamped to 0, got %v", m.CycleTimeDays)
	}
	if len(m.Anomalies) != 1 || m.Anomalies[0] != models.AnomalyNegativeCycleTime {
		t.Errorf("Expected exactly one negative cycle time anomaly, got %v", m.Anomalies)
	}
}

func TestComputeClampsFutureCreated(t *testing.T) {
	i := issue("PROJ-1", models.PriorityMajor, "To Do", 0)
	i.Created = testNow.Add(48 * time.Hour)

	m := NewCalculator(DefaultThresholds()).Compute(&i, testNow)

	if m.AgeDays != 0 || m.TimeInStatusDays != 0 {
		t.Errorf("Expected clamped values, got %+v", m)
	}
	if !m.HasAnomaly(models.AnomalyNegativeAge) || !m.HasAnomaly(models.AnomalyNegativeTimeInStatus) {
		t.Errorf("Expected negative age and time in status, got %v", m.Anomalies)
	}
}

func TestComputeCycleTime(t *testing.T) {
	i := issue("PROJ-1", models.PriorityMajor, "Done", 9)
	i.Resolved = timePtr(daysAgo(2))

	m := NewCalculator(DefaultThresholds()).Compute(&i, testNow)
	if m.CycleTimeDays == nil || *m.CycleTimeDays != 7 {
		t.Errorf("Expected 7 day cycle time, got %v", m.CycleTimeDays)
	}

	open := issue("PROJ-2", models.PriorityMajor, "To Do", 9)
	if m := NewCalculator(DefaultThresholds()).Compute(&open, testNow); m.CycleTimeDays != nil {
		t.Errorf("Expected no cycle time for open issue, got %d", *m.CycleTimeDays)
	}
}

func TestComputeIsDeterministic(t *testing.T) {
	i := issue("PROJ-1", models.PriorityMajor, "In Progress", 12)
	i.HistoryAvailable = false
	calc := NewCalculator(DefaultThresholds())

	if !reflect.DeepEqual(calc.Compute(&i, testNow), calc.Compute(&i, testNow)) {
		t.Error("Compute returned different results for the same instant")
	}
}

func TestFlagThresholds(t *testing.T) {
	calc := NewCalculator(Thresholds{Yellow: 3, Red: 7})
	tests := []struct {
		days int
		want models.StuckFlag
	}{
		{0, models.StuckGreen},
		{3, models.StuckGreen},
		{4, models.StuckYellow},
		{7, models.StuckYellow},
		{8, models.StuckRed},
	}

	for _, tt := range tests {
		if got := calc.Flag(tt.days); got != tt.want {
			t.Errorf("Flag(%d) = %s, want %s", tt.days, got, tt.want)
		}
	}
}

func TestIssueSetExclusionAndPriorityFilter(t *testing.T) {
	dup := issue("PROJ-2", models.PriorityBlocker, "Done", 3)
	dup.Resolution = "duplicate"
	unknown := issue("PROJ-4", "P0", "To Do", 1)
	unknown.Unrecognized = []string{"priority"}

	issues := []models.Issue{
		issue("PROJ-1", models.PriorityBlocker, "In Progress", 3),
		dup,
		issue("PROJ-3", models.PriorityMinor, "Won't Do", 3),
		unknown,
		issue("PROJ-5", models.PriorityMinor, "To Do", 1),
	}
	policy := ExclusionPolicy{Resolutions: []string{"Duplicate"}, Statuses: []string{"won't do"}}
	calc := NewCalculator(DefaultThresholds())

	all := NewIssueSet(issues, testNow, calc, policy, nil)
	if all.Len() != 3 || all.Excluded != 2 {
		t.Errorf("Expected 3 kept and 2 excluded, got %d and %d", all.Len(), all.Excluded)
	}
	if _, ok := all.Find("PROJ-4"); !ok {
		t.Error("Expected unknown priority kept without a filter")
	}

	blockers := NewIssueSet(issues, testNow, calc, policy, []models.Priority{models.PriorityBlocker})
	if blockers.Len() != 1 || blockers.Entries[0].Issue.Key != "PROJ-1" {
		t.Errorf("Expected only PROJ-1, got %d entries", blockers.Len())
	}
	if blockers.FilteredOut != 2 {
		t.Errorf("Expected 2 filtered out, got %d", blockers.FilteredOut)
	}

	p0 := NewIssueSet(issues, testNow, calc, policy, []models.Priority{"P0"})
	if p0.Len() != 0 {
		t.Errorf("Expected unrecognized priority never to match a filter, got %d", p0.Len())
	}
}

func TestExclusionAppliesToEveryView(t *testing.T) {
	rejected := issue("PROJ-3", models.PriorityBlocker, "Rejected", 20)
	rejected.Resolution = "Rejected"
	rejected.Assignee = stringPtr("Ana")
	rejected.FixVersion = stringPtr("1.0")

	issues := []models.Issue{
		issue("PROJ-1", models.PriorityMajor, "To Do", 2),
		issue("PROJ-2", models.PriorityCritical, "In Progress", 9),
		rejected,
	}
	set := NewIssueSet(issues, testNow, NewCalculator(DefaultThresholds()), ExclusionPolicy{Resolutions: []string{"Rejected"}}, nil)

	if got := Summary(set).Total; got != 2 {
		t.Errorf("Summary total %d, want 2", got)
	}
	if got := PriorityStatusMatrix(set).Total; got != 2 {
		t.Errorf("Matrix total %d, want 2", got)
	}
	total := 0
	for _, row := range Workload(set) {
		total += row.Total
		if row.Assignee == "Ana" {
			t.Error("Excluded issue leaked into workload")
		}
	}
	if total != 2 {
		t.Errorf("Workload total %d, want 2", total)
	}
	if len(FixVersionProgress(set).Versions) != 0 {
		t.Error("Excluded issue leaked into fix version progress")
	}
	for _, h := range ActiveHighPriority(set) {
		if h.Key == "PROJ-3" {
			t.Error("Excluded issue leaked into high priority list")
		}
	}
}
