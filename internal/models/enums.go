package models

import "strings"

// Priority is the Jira priority name. Known values are ordered by
// severity; unknown values are preserved verbatim and sort last.
type Priority string

const (
	PriorityBlocker  Priority = "Blocker"
	PriorityCritical Priority = "Critical"
	PriorityMajor    Priority = "Major"
	PriorityMinor    Priority = "Minor"
	PriorityTrivial  Priority = "Trivial"
)

// KnownPriorities in severity order
var KnownPriorities = []Priority{
	PriorityBlocker,
	PriorityCritical,
	PriorityMajor,
	PriorityMinor,
	PriorityTrivial,
}

// Rank returns 0 for Blocker through 4 for Trivial, and len(KnownPriorities)
// for anything unrecognized.
func (p Priority) Rank() int {
	for i, known := range KnownPriorities {
		if p == known {
			return i
		}
	}
	return len(KnownPriorities)
}

func (p Priority) Known() bool {
	return p.Rank() < len(KnownPriorities)
}

// IsHigh reports Blocker or Critical
func (p Priority) IsHigh() bool {
	return p == PriorityBlocker || p == PriorityCritical
}

// ParsePriorities splits a comma separated list, dropping blanks.
func ParsePriorities(csv string) []Priority {
	var out []Priority
	for _, part := range strings.Split(csv, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, Priority(part))
		}
	}
	return out
}

// StatusCategory is the coarse workflow bucket used by progress reports.
type StatusCategory string

const (
	CategoryToDo       StatusCategory = "To Do"
	CategoryInProgress StatusCategory = "In Progress"
	CategoryDone       StatusCategory = "Done"
)

// statusCategories is the fixed policy table mapping workflow statuses to
// categories. Statuses missing from it fall back to the category Jira
// reports for the status, then to To Do.
var statusCategories = map[string]StatusCategory{
	"To Do":                    CategoryToDo,
	"Open":                     CategoryToDo,
	"Backlog":                  CategoryToDo,
	"Selected for Development": CategoryToDo,
	"Reopened":                 CategoryToDo,
	"In Progress":              CategoryInProgress,
	"In Development":           CategoryInProgress,
	"Ready for QA":             CategoryInProgress,
	"In QA":                    CategoryInProgress,
	"Testing":                  CategoryInProgress,
	"In Review":                CategoryInProgress,
	"Done":                     CategoryDone,
	"Resolved":                 CategoryDone,
	"Closed":                   CategoryDone,
	"Rejected":                 CategoryDone,
	"Won't Fix":                CategoryDone,
	"Won't Do":                 CategoryDone,
	"Cancelled":                CategoryDone,
}

// KnownStatus reports whether the status is in the policy table.
func KnownStatus(status string) bool {
	_, ok := statusCategories[status]
	return ok
}

// CategoryFor maps a status to its category. backend is the category name
// or key reported by Jira alongside the status and may be empty.
func CategoryFor(status, backend string) StatusCategory {
	if category, ok := statusCategories[status]; ok {
		return category
	}
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "done":
		return CategoryDone
	case "in progress", "indeterminate":
		return CategoryInProgress
	}
	return CategoryToDo
}

// IsTerminal reports whether a status belongs to the Done category. Only
// the policy table is consulted, so unknown statuses are never terminal.
func IsTerminal(status string) bool {
	return statusCategories[status] == CategoryDone
}

// Development and QA stages used by the executive summary
var (
	DevStatuses  = []string{"In Progress", "In Development"}
	QAStatuses   = []string{"Ready for QA", "In QA", "Testing", "In Review"}
	ToDoStatuses = []string{"To Do", "Open", "Backlog", "Selected for Development", "Reopened"}
)

// KnownResolutions are the resolution names Jira ships with by default
var KnownResolutions = []string{
	"Done",
	"Fixed",
	"Rejected",
	"Duplicate",
	"Won't Fix",
	"Won't Do",
	"Cannot Reproduce",
	"Incomplete",
	"Cancelled",
}

// KnownResolution reports whether the resolution is empty or recognized.
func KnownResolution(resolution string) bool {
	if resolution == "" {
		return true
	}
	for _, r := range KnownResolutions {
		if strings.EqualFold(r, resolution) {
			return true
		}
	}
	return false
}
