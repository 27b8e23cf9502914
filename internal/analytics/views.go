package analytics

import "sort"

// ViewFunc renders one named view of a set
type ViewFunc func(set *IssueSet) interface{}

var views = map[string]ViewFunc{
	"workload":                 func(s *IssueSet) interface{} { return Workload(s) },
	"priority_status_matrix":   func(s *IssueSet) interface{} { return PriorityStatusMatrix(s) },
	"fix_version_progress":     func(s *IssueSet) interface{} { return FixVersionProgress(s) },
	"weekly_velocity":          func(s *IssueSet) interface{} { return WeeklyVelocity(s) },
	"reopened_rate":            func(s *IssueSet) interface{} { return ReopenedRate(s) },
	"bottlenecks":              func(s *IssueSet) interface{} { return Bottlenecks(s) },
	"status_distribution":      func(s *IssueSet) interface{} { return StatusDistribution(s) },
	"summary":                  func(s *IssueSet) interface{} { return Summary(s) },
	"aging":                    func(s *IssueSet) interface{} { return Aging(s) },
	"cycle_time_by_priority":   func(s *IssueSet) interface{} { return CycleTimeByPriority(s) },
	"monthly_trend":            func(s *IssueSet) interface{} { return MonthlyTrend(s) },
	"active_high_priority":     func(s *IssueSet) interface{} { return ActiveHighPriority(s) },
	"unassigned_high_priority": func(s *IssueSet) interface{} { return UnassignedHighPriority(s) },
}

// View looks up a view by name
func View(name string) (ViewFunc, bool) {
	v, ok := views[name]
	return v, ok
}

// ViewNames lists the registered views in name order
func ViewNames() []string {
	names := make([]string, 0, len(views))
	for name := range views {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
