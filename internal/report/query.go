package report

import (
	"strings"
	"time"

	"github.com/spec-kit/field-audit-service/internal/domain"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// DateRange is an inclusive, day-bounded range. Either side may be open.
type DateRange struct {
	From *time.Time
	To   *time.Time
}

// IsZero reports whether the range imposes no constraint.
func (r DateRange) IsZero() bool {
	return r.From == nil && r.To == nil
}

// Bounds returns the half-open instant range [start of From, start of day after To).
func (r DateRange) Bounds() (lower, upper *time.Time) {
	if r.From != nil {
		l := domain.StartOfDay(*r.From)
		lower = &l
	}
	if r.To != nil {
		u := domain.StartOfDay(*r.To).AddDate(0, 0, 1)
		upper = &u
	}
	return lower, upper
}

// Contains reports whether t falls inside the range.
func (r DateRange) Contains(t time.Time) bool {
	lower, upper := r.Bounds()
	if lower != nil && t.Before(*lower) {
		return false
	}
	if upper != nil && !t.Before(*upper) {
		return false
	}
	return true
}

// Filter is the conjunction of optional predicates over issues. Nil or empty
// fields impose no constraint.
type Filter struct {
	Station           *string
	Details           *string
	ActionTaken       *string
	Feedback          *string
	AreaManager       *string
	RegionalManager   *string
	ProcessSpecialist *string
	LogNumber         *string
	ReporterName      *string
	ResolverName      *string

	ReporterIDs []string
	Regions     []domain.Region
	Types       []domain.IssueType
	Statuses    []domain.IssueStatus
	Weeks       []int
	Prioritized *bool

	Date           DateRange
	DateIdentified DateRange
	DateOfClosure  DateRange
	CreatedAt      DateRange

	DaysOpenMin *int
	DaysOpenMax *int
}

// SortField is one of the allow-listed sort keys.
type SortField string

const (
	SortCreatedAt      SortField = "createdAt"
	SortDate           SortField = "date"
	SortDateIdentified SortField = "dateIdentified"
	SortDaysOpen       SortField = "daysOpen"
)

// SortOrder is ascending or descending.
type SortOrder string

const (
	Ascend  SortOrder = "ascend"
	Descend SortOrder = "descend"
)

// Sort selects ordering for a listing.
type Sort struct {
	Field SortField
	Order SortOrder
}

// DefaultSort is newest first.
var DefaultSort = Sort{Field: SortCreatedAt, Order: Descend}

// ParseSort validates a sort selector. Empty input yields DefaultSort and an
// empty order defaults to descending.
func ParseSort(field, order string) (Sort, error) {
	field = strings.TrimSpace(field)
	order = strings.ToLower(strings.TrimSpace(order))
	if field == "" && order == "" {
		return DefaultSort, nil
	}

	s := Sort{Field: SortCreatedAt, Order: Descend}
	switch SortField(field) {
	case "":
	case SortCreatedAt, SortDate, SortDateIdentified, SortDaysOpen:
		s.Field = SortField(field)
	default:
		return Sort{}, apperrors.NewValidationError("unsupported sort field", "sortField")
	}
	switch order {
	case "":
	case "ascend", "asc":
		s.Order = Ascend
	case "descend", "desc":
		s.Order = Descend
	default:
		return Sort{}, apperrors.NewValidationError("unsupported sort order", "sortOrder")
	}
	return s, nil
}

// Page is a 1-based page selector.
type Page struct {
	Number int
	Size   int
}

// Offset returns the number of rows skipped before this page.
func (p Page) Offset() int {
	return p.Size * (p.Number - 1)
}

// Query is a complete listing request.
type Query struct {
	Filter Filter
	Sort   Sort
	Page   Page
}

// Normalize fills defaults and caps the page size. Zero means unset; negative
// values are rejected.
func (q *Query) Normalize(defaultPageSize, maxPageSize int) error {
	var invalid []string
	if q.Page.Number < 0 {
		invalid = append(invalid, "page")
	}
	if q.Page.Size < 0 {
		invalid = append(invalid, "pageSize")
	}
	if d := q.Filter.DaysOpenMin; d != nil && *d < 0 {
		invalid = append(invalid, "daysOpenMin")
	}
	if len(invalid) > 0 {
		return apperrors.NewValidationError("invalid pagination or range", invalid...)
	}

	if q.Page.Number == 0 {
		q.Page.Number = 1
	}
	if q.Page.Size == 0 {
		q.Page.Size = defaultPageSize
	}
	if maxPageSize > 0 && q.Page.Size > maxPageSize {
		q.Page.Size = maxPageSize
	}
	if q.Sort.Field == "" {
		q.Sort = DefaultSort
	}
	if q.Sort.Order == "" {
		q.Sort.Order = Descend
	}
	return nil
}

// Row is a denormalized issue with its derived age.
type Row struct {
	Issue    domain.Issue
	DaysOpen int
}

// NewRow derives the row for issue as of now.
func NewRow(issue *domain.Issue, now time.Time) Row {
	return Row{Issue: *issue, DaysOpen: issue.DaysOpen(now)}
}

// Result is one page of rows plus the unpaginated match count.
type Result struct {
	Rows  []Row
	Total int64
	Page  Page
}

// TotalPages returns ceil(Total / Page.Size).
func (r Result) TotalPages() int64 {
	if r.Page.Size <= 0 {
		return 0
	}
	size := int64(r.Page.Size)
	return (r.Total + size - 1) / size
}

type textTerm struct {
	column string
	term   string
	value  func(*domain.Issue) (string, bool)
}

// textTerms lists the supplied free-text predicates with their SQL column and
// in-memory accessor.
func (f Filter) textTerms() []textTerm {
	candidates := []struct {
		column string
		term   *string
		value  func(*domain.Issue) (string, bool)
	}{
		{"i.station", f.Station, func(i *domain.Issue) (string, bool) { return i.Station, true }},
		{"i.details", f.Details, func(i *domain.Issue) (string, bool) { return i.Details, true }},
		{"i.action_taken", f.ActionTaken, func(i *domain.Issue) (string, bool) { return i.ActionTaken, true }},
		{"i.feedback", f.Feedback, func(i *domain.Issue) (string, bool) { return i.Feedback, true }},
		{"i.area_manager", f.AreaManager, func(i *domain.Issue) (string, bool) { return i.AreaManager, true }},
		{"i.regional_manager", f.RegionalManager, func(i *domain.Issue) (string, bool) { return i.RegionalManager, true }},
		{"i.process_specialist", f.ProcessSpecialist, func(i *domain.Issue) (string, bool) { return i.ProcessSpecialist, true }},
		{"i.log_number", f.LogNumber, func(i *domain.Issue) (string, bool) { return i.LogNumber, true }},
		{"reporter.name", f.ReporterName, func(i *domain.Issue) (string, bool) { return i.Reporter.Name, true }},
		{"resolver.name", f.ResolverName, func(i *domain.Issue) (string, bool) {
			if i.ResolvedBy == nil {
				return "", false
			}
			return i.ResolvedBy.Name, true
		}},
	}

	var terms []textTerm
	for _, c := range candidates {
		if c.term == nil {
			continue
		}
		term := strings.TrimSpace(*c.term)
		if term == "" {
			continue
		}
		terms = append(terms, textTerm{column: c.column, term: term, value: c.value})
	}
	return terms
}
