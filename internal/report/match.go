package report

import (
	"slices"
	"sort"
	"strings"
	"time"

	"github.com/spec-kit/field-audit-service/internal/domain"
)

// Matches evaluates the filter against issue in memory. It agrees with
// CompileWhere for every predicate.
func (f Filter) Matches(issue *domain.Issue, now time.Time) bool {
	for _, t := range f.textTerms() {
		value, ok := t.value(issue)
		if !ok || !strings.Contains(strings.ToLower(value), strings.ToLower(t.term)) {
			return false
		}
	}
	if len(f.ReporterIDs) > 0 && !slices.Contains(f.ReporterIDs, issue.Reporter.ID) {
		return false
	}
	if len(f.Regions) > 0 && !slices.Contains(f.Regions, issue.Region) {
		return false
	}
	if len(f.Types) > 0 && !slices.Contains(f.Types, issue.Type) {
		return false
	}
	if len(f.Statuses) > 0 && !slices.Contains(f.Statuses, issue.Status) {
		return false
	}
	if len(f.Weeks) > 0 && !slices.Contains(f.Weeks, issue.Week) {
		return false
	}
	if f.Prioritized != nil && issue.IsPrioritized != *f.Prioritized {
		return false
	}

	if !f.Date.Contains(issue.Date) || !f.DateIdentified.Contains(issue.DateIdentified) || !f.CreatedAt.Contains(issue.CreatedAt) {
		return false
	}
	if !f.DateOfClosure.IsZero() {
		if issue.DateOfClosure == nil || !f.DateOfClosure.Contains(*issue.DateOfClosure) {
			return false
		}
	}

	if f.DaysOpenMin != nil || f.DaysOpenMax != nil {
		days := issue.DaysOpen(now)
		if f.DaysOpenMin != nil && days < *f.DaysOpenMin {
			return false
		}
		if f.DaysOpenMax != nil && days > *f.DaysOpenMax {
			return false
		}
	}
	return true
}

// SortRows orders rows in place, breaking ties by id in the same direction.
func SortRows(rows []Row, s Sort) {
	compare := func(a, b Row) int {
		switch s.Field {
		case SortDate:
			return a.Issue.Date.Compare(b.Issue.Date)
		case SortDateIdentified:
			return a.Issue.DateIdentified.Compare(b.Issue.DateIdentified)
		case SortDaysOpen:
			return a.DaysOpen - b.DaysOpen
		default:
			return a.Issue.CreatedAt.Compare(b.Issue.CreatedAt)
		}
	}
	sort.SliceStable(rows, func(i, j int) bool {
		c := compare(rows[i], rows[j])
		if c == 0 {
			c = compareID(rows[i].Issue.ID, rows[j].Issue.ID)
		}
		if s.Order == Ascend {
			return c < 0
		}
		return c > 0
	})
}

// Paginate returns the slice of rows for page.
func Paginate(rows []Row, page Page) []Row {
	offset := page.Offset()
	if offset < 0 || offset >= len(rows) {
		return []Row{}
	}
	end := offset + page.Size
	if page.Size <= 0 || end > len(rows) {
		end = len(rows)
	}
	return rows[offset:end]
}

func compareID(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
