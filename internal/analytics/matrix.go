package analytics

import (
	"sort"

	"aktis-analytics-jira/internal/models"
)

// Matrix is a complete priority x status grid. Every observed priority has
// a row and every observed status a column; empty combinations are
// present with a zero count.
type Matrix struct {
	Priorities []models.Priority                  `json:"priorities"`
	Statuses   []string                           `json:"statuses"`
	Cells      map[models.Priority]map[string]int `json:"cells"`
	Total      int                                `json:"total"`
}

// Count returns the cell value, zero for combinations outside the grid
func (m *Matrix) Count(p models.Priority, status string) int {
	return m.Cells[p][status]
}

// Sum adds every cell. It always equals Total.
func (m *Matrix) Sum() int {
	sum := 0
	for _, row := range m.Cells {
		for _, n := range row {
			sum += n
		}
	}
	return sum
}

// PriorityStatusMatrix builds the grid. Rows follow severity with unknown
// priorities last in name order; columns are grouped by status category
// then ordered by name.
func PriorityStatusMatrix(set *IssueSet) *Matrix {
	priorities := make(map[models.Priority]bool)
	statuses := make(map[string]models.StatusCategory)
	for i := range set.Entries {
		issue := &set.Entries[i].Issue
		priorities[issue.Priority] = true
		statuses[issue.Status] = issue.StatusCategory
	}

	m := &Matrix{
		Priorities: orderPriorities(priorities),
		Statuses:   orderStatuses(statuses),
		Cells:      make(map[models.Priority]map[string]int),
		Total:      set.Len(),
	}
	for _, p := range m.Priorities {
		row := make(map[string]int, len(m.Statuses))
		for _, s := range m.Statuses {
			row[s] = 0
		}
		m.Cells[p] = row
	}
	for i := range set.Entries {
		issue := &set.Entries[i].Issue
		m.Cells[issue.Priority][issue.Status]++
	}
	return m
}

// StatusCount is one bar of the status distribution
type StatusCount struct {
	Status   string                `json:"status"`
	Category models.StatusCategory `json:"category"`
	Count    int                   `json:"count"`
	Percent  float64               `json:"percent"`
}

// StatusDistribution counts issues per status, most populated first
func StatusDistribution(set *IssueSet) []StatusCount {
	counts := make(map[string]int)
	categories := make(map[string]models.StatusCategory)
	for i := range set.Entries {
		issue := &set.Entries[i].Issue
		counts[issue.Status]++
		categories[issue.Status] = issue.StatusCategory
	}

	out := make([]StatusCount, 0, len(counts))
	for _, status := range sortedKeys(counts) {
		out = append(out, StatusCount{
			Status:   status,
			Category: categories[status],
			Count:    counts[status],
			Percent:  percent(counts[status], set.Len()),
		})
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Count > out[j].Count })
	return out
}

func orderPriorities(seen map[models.Priority]bool) []models.Priority {
	out := make([]models.Priority, 0, len(seen))
	for p := range seen {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool {
		ri, rj := out[i].Rank(), out[j].Rank()
		if ri != rj {
			return ri < rj
		}
		return out[i] < out[j]
	})
	return out
}

var categoryOrder = map[models.StatusCategory]int{
	models.CategoryToDo:       0,
	models.CategoryInProgress: 1,
	models.CategoryDone:       2,
}

func orderStatuses(seen map[string]models.StatusCategory) []string {
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		ci, cj := categoryOrder[seen[out[i]]], categoryOrder[seen[out[j]]]
		if ci != cj {
			return ci < cj
		}
		return out[i] < out[j]
	})
	return out
}
