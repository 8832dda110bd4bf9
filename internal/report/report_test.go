package report

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"regexp"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-audit-service/internal/domain"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

var now = time.Date(2024, 6, 20, 12, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func day(d int) time.Time {
	return time.Date(2024, 6, d, 0, 0, 0, 0, time.UTC)
}

func sampleIssues() []*domain.Issue {
	closed := day(14)
	return []*domain.Issue{
		{
			ID: 1, Reporter: domain.IdentityRef{ID: "u1", Name: "Amal Perera"},
			Date: day(10), DateIdentified: day(10), Region: domain.RegionWRNorth,
			Station: "Colombo Fort", Type: domain.IssueTypeSafety, Details: `Broken "rail" guard`,
			Status: domain.IssueStatusResolved, ActionTaken: "fixed",
			ResolvedBy: &domain.IdentityRef{ID: "u9", Name: "Nimal RM"}, DateOfClosure: &closed,
			CreatedAt: day(10).Add(8 * time.Hour),
		},
		{
			ID: 2, Reporter: domain.IdentityRef{ID: "u2", Name: "Kamal Silva"},
			Date: day(11), DateIdentified: day(11), Region: domain.RegionSouthern,
			Station: "Galle", Type: domain.IssueTypeHousekeeping, Details: "litter on platform",
			Status: domain.IssueStatusPending, IsPrioritized: true,
			CreatedAt: day(11).Add(9 * time.Hour),
		},
		{
			ID: 3, Reporter: domain.IdentityRef{ID: "u1", Name: "Amal Perera"},
			Date: day(18), DateIdentified: day(18), Region: domain.RegionWRNorth,
			Station: "Fort Annex", Type: domain.IssueTypeIT, Details: "ticket printer down",
			Status: domain.IssueStatusMaintenance, LogNumber: "WO-77", MaintenanceComment: "awaiting part",
			CreatedAt: day(18).Add(10 * time.Hour),
		},
	}
}

func filterIDs(issues []*domain.Issue, f Filter) []int64 {
	var ids []int64
	for _, issue := range issues {
		if f.Matches(issue, now) {
			ids = append(ids, issue.ID)
		}
	}
	return ids
}

func TestFilterMatchesTextCaseInsensitive(t *testing.T) {
	issues := sampleIssues()

	assert.Equal(t, []int64{1, 3}, filterIDs(issues, Filter{Station: ptr("FORT")}))
	assert.Equal(t, []int64{1}, filterIDs(issues, Filter{ResolverName: ptr("nimal")}))
	assert.Equal(t, []int64{1, 3}, filterIDs(issues, Filter{ReporterName: ptr("amal p")}))
	assert.Equal(t, []int64{1, 2, 3}, filterIDs(issues, Filter{Station: ptr("  ")}))
}

func TestFilterConjunctionIsSubsetOfEachPredicate(t *testing.T) {
	issues := sampleIssues()
	a := Filter{Regions: []domain.Region{domain.RegionWRNorth}}
	b := Filter{Statuses: []domain.IssueStatus{domain.IssueStatusMaintenance, domain.IssueStatusPending}}
	both := Filter{Regions: a.Regions, Statuses: b.Statuses}

	assert.Equal(t, []int64{1, 3}, filterIDs(issues, a))
	assert.Equal(t, []int64{2, 3}, filterIDs(issues, b))
	assert.Equal(t, []int64{3}, filterIDs(issues, both))
	assert.Equal(t, []int64{1, 2, 3}, filterIDs(issues, Filter{}))
}

func TestFilterDateRangesAreInclusiveByDay(t *testing.T) {
	issues := sampleIssues()

	f := Filter{CreatedAt: DateRange{From: ptr(day(10).Add(20 * time.Hour)), To: ptr(day(11))}}
	assert.Equal(t, []int64{1, 2}, filterIDs(issues, f))

	f = Filter{DateOfClosure: DateRange{To: ptr(day(30))}}
	assert.Equal(t, []int64{1}, filterIDs(issues, f))
}

func TestFilterDaysOpenAndFlags(t *testing.T) {
	issues := sampleIssues()

	// closed after 4 days, 9 days open, 2 days open
	assert.Equal(t, []int64{2}, filterIDs(issues, Filter{DaysOpenMin: ptr(5)}))
	assert.Equal(t, []int64{1, 3}, filterIDs(issues, Filter{DaysOpenMax: ptr(4)}))
	assert.Equal(t, []int64{2}, filterIDs(issues, Filter{Prioritized: ptr(true)}))
	assert.Equal(t, []int64{1, 3}, filterIDs(issues, Filter{ReporterIDs: []string{"u1"}}))
}

func TestParseSort(t *testing.T) {
	s, err := ParseSort("", "")
	require.NoError(t, err)
	assert.Equal(t, DefaultSort, s)

	s, err = ParseSort("daysOpen", "asc")
	require.NoError(t, err)
	assert.Equal(t, Sort{Field: SortDaysOpen, Order: Ascend}, s)

	s, err = ParseSort("date", "")
	require.NoError(t, err)
	assert.Equal(t, Descend, s.Order)

	_, err = ParseSort("station", "ascend")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
	_, err = ParseSort("date", "sideways")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeValidation))
}

func TestQueryNormalize(t *testing.T) {
	q := Query{}
	require.NoError(t, q.Normalize(10, 100))
	assert.Equal(t, Page{Number: 1, Size: 10}, q.Page)
	assert.Equal(t, DefaultSort, q.Sort)
	assert.Equal(t, 0, q.Page.Offset())

	q = Query{Page: Page{Number: 3, Size: 500}}
	require.NoError(t, q.Normalize(10, 100))
	assert.Equal(t, 200, q.Page.Offset())

	q = Query{Page: Page{Number: -1}}
	assert.True(t, apperrors.HasCode(q.Normalize(10, 100), apperrors.CodeValidation))
}

func TestSortRowsAndPaginate(t *testing.T) {
	var rows []Row
	for _, issue := range sampleIssues() {
		rows = append(rows, NewRow(issue, now))
	}

	SortRows(rows, DefaultSort)
	assert.Equal(t, []int64{3, 2, 1}, rowIDs(rows))

	SortRows(rows, Sort{Field: SortDaysOpen, Order: Descend})
	assert.Equal(t, []int64{2, 1, 3}, rowIDs(rows))

	SortRows(rows, Sort{Field: SortDate, Order: Ascend})
	assert.Equal(t, []int64{1, 2, 3}, rowIDs(rows))

	assert.Equal(t, []int64{3}, rowIDs(Paginate(rows, Page{Number: 2, Size: 2})))
	assert.Empty(t, Paginate(rows, Page{Number: 3, Size: 2}))
}

func TestResultTotalPages(t *testing.T) {
	assert.Equal(t, int64(3), Result{Total: 21, Page: Page{Number: 1, Size: 10}}.TotalPages())
	assert.Equal(t, int64(0), Result{Total: 0, Page: Page{Number: 1, Size: 10}}.TotalPages())
}

func rowIDs(rows []Row) []int64 {
	ids := make([]int64, 0, len(rows))
	for _, r := range rows {
		ids = append(ids, r.Issue.ID)
	}
	return ids
}

func TestCompileWhere(t *testing.T) {
	f := Filter{
		Station:     ptr("50%_off"),
		Regions:     []domain.Region{domain.RegionWRNorth, domain.RegionSouthern},
		Prioritized: ptr(false),
		Date:        DateRange{From: ptr(day(1)), To: ptr(day(30))},
		DaysOpenMin: ptr(3),
	}
	c := CompileWhere(f, now)

	assert.Equal(t,
		"WHERE 1=1 AND i.station ILIKE $1 AND i.region IN ($2,$3) AND i.is_prioritized = $4"+
			" AND i.date >= $5 AND i.date < $6 AND "+DaysOpenExpr("$7")+" >= $8",
		c.Where)
	require.Len(t, c.Args(), 8)
	assert.Equal(t, `%50\%\_off%`, c.Args()[0])
	assert.Equal(t, "WR-North", c.Args()[1])
	assert.Equal(t, day(31), c.Args()[5])
	assert.Equal(t, now, c.Args()[6])
	assertPlaceholders(t, c.Where, c.Args())

	empty := CompileWhere(Filter{}, now)
	assert.Equal(t, "WHERE 1=1", empty.Where)
	assert.Empty(t, empty.Args())
}

func TestCompileWhereBindsReferenceTimeOnce(t *testing.T) {
	c := CompileWhere(Filter{DaysOpenMin: ptr(2), DaysOpenMax: ptr(9)}, now)
	assert.Equal(t, "WHERE 1=1 AND "+DaysOpenExpr("$1")+" >= $2 AND "+DaysOpenExpr("$1")+" <= $3", c.Where)
	assert.Equal(t, []any{now, 2, 9}, c.Args())

	assert.Equal(t, DaysOpenExpr("$1"), c.DaysOpen())
	assert.Len(t, c.Args(), 3)

	station := CompileWhere(Filter{Station: ptr("fort")}, now)
	assert.Equal(t, "WHERE 1=1 AND i.station ILIKE $1", station.Where)
	assert.Equal(t, DaysOpenExpr("$2"), station.DaysOpen())
	assert.Equal(t, []any{"%fort%", now}, station.Args())
}

// assertPlaceholders checks that every bound argument is referenced by sql
// and that sql references nothing beyond the bound arguments.
func assertPlaceholders(t *testing.T, sql string, args []any) {
	t.Helper()
	for i := range args {
		assert.Regexp(t, regexp.MustCompile(fmt.Sprintf(`\$%d\b`, i+1)), sql, "argument $%d is never referenced", i+1)
	}
	assert.NotRegexp(t, regexp.MustCompile(fmt.Sprintf(`\$%d\b`, len(args)+1)), sql)
}

func TestCompileOrder(t *testing.T) {
	assert.Equal(t, "ORDER BY i.created_at DESC, i.id DESC", CompileOrder(DefaultSort))
	assert.Equal(t, "ORDER BY days_open ASC, i.id ASC", CompileOrder(Sort{Field: SortDaysOpen, Order: Ascend}))
}

func TestFlattenAndCSV(t *testing.T) {
	var rows []Row
	for _, issue := range sampleIssues() {
		rows = append(rows, NewRow(issue, now))
	}
	flat := Flatten(rows, "02 Jan 2006")
	require.Len(t, flat, 3)

	resolved := flat[0]
	assert.Equal(t, "10 Jun 2024", resolved.Date)
	assert.Equal(t, "14 Jun 2024", resolved.DateOfClosure)
	assert.Equal(t, Placeholder, resolved.DaysOpen)
	assert.Equal(t, "4", resolved.DaysResolved)
	assert.Equal(t, "Broken rail guard", resolved.Details)
	assert.Equal(t, "Nimal RM", resolved.ResolvedBy)
	assert.Equal(t, "Observation", resolved.Category)
	assert.Equal(t, "No", resolved.Prioritized)

	open := flat[1]
	assert.Equal(t, "9", open.DaysOpen)
	assert.Equal(t, Placeholder, open.DaysResolved)
	assert.Equal(t, Placeholder, open.DateOfClosure)
	assert.Equal(t, Placeholder, open.ResolvedBy)
	assert.Equal(t, "Issue", open.Category)
	assert.Equal(t, "Yes", open.Prioritized)

	var buf bytes.Buffer
	require.NoError(t, WriteCSV(&buf, flat))
	records, err := csv.NewReader(strings.NewReader(buf.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, csvHeader, records[0])
	assert.Equal(t, "Colombo Fort", records[1][5])
	assert.NotContains(t, buf.String(), `"`)
}
