package report

import (
	"fmt"
	"strings"
	"time"
)

// DaysOpenExpr computes the derived age in SQL against the reference time
// bound at ref.
func DaysOpenExpr(ref string) string {
	return fmt.Sprintf(`FLOOR(EXTRACT(EPOCH FROM (COALESCE(i.date_of_closure, %s::timestamptz) - i.date_identified::timestamptz)) / 86400)::int`, ref)
}

// Compiled is a parameterized WHERE fragment. The reference time is bound
// on first use only, so every bound argument is referenced by the SQL.
type Compiled struct {
	Where  string
	args   []any
	now    time.Time
	nowRef string
}

// Bind appends v and returns its placeholder.
func (c *Compiled) Bind(v any) string {
	c.args = append(c.args, v)
	return fmt.Sprintf("$%d", len(c.args))
}

// DaysOpen returns the days-open expression, binding the reference time if
// nothing has referenced it yet.
func (c *Compiled) DaysOpen() string {
	if c.nowRef == "" {
		c.nowRef = c.Bind(c.now)
	}
	return DaysOpenExpr(c.nowRef)
}

// Args returns the bound values in placeholder order.
func (c *Compiled) Args() []any {
	return c.args
}

// CompileWhere renders f as a WHERE clause over issues aliased i, with the
// reporter and resolver joins aliased reporter and resolver.
func CompileWhere(f Filter, now time.Time) *Compiled {
	c := &Compiled{now: now}
	clauses := []string{"1=1"}

	in := func(column string, values []any) {
		placeholders := make([]string, len(values))
		for i, v := range values {
			placeholders[i] = c.Bind(v)
		}
		clauses = append(clauses, fmt.Sprintf("%s IN (%s)", column, strings.Join(placeholders, ",")))
	}

	for _, t := range f.textTerms() {
		clauses = append(clauses, fmt.Sprintf("%s ILIKE %s", t.column, c.Bind("%"+escapeLike(t.term)+"%")))
	}

	if len(f.ReporterIDs) > 0 {
		values := make([]any, len(f.ReporterIDs))
		for i, id := range f.ReporterIDs {
			values[i] = id
		}
		in("i.reporter_id", values)
	}
	if len(f.Regions) > 0 {
		values := make([]any, len(f.Regions))
		for i, region := range f.Regions {
			values[i] = string(region)
		}
		in("i.region", values)
	}
	if len(f.Types) > 0 {
		values := make([]any, len(f.Types))
		for i, typ := range f.Types {
			values[i] = string(typ)
		}
		in("i.type", values)
	}
	if len(f.Statuses) > 0 {
		values := make([]any, len(f.Statuses))
		for i, status := range f.Statuses {
			values[i] = string(status)
		}
		in("i.status", values)
	}
	if len(f.Weeks) > 0 {
		values := make([]any, len(f.Weeks))
		for i, week := range f.Weeks {
			values[i] = week
		}
		in("i.week", values)
	}
	if f.Prioritized != nil {
		clauses = append(clauses, fmt.Sprintf("i.is_prioritized = %s", c.Bind(*f.Prioritized)))
	}

	for _, dr := range []struct {
		column string
		rng    DateRange
	}{
		{"i.date", f.Date},
		{"i.date_identified", f.DateIdentified},
		{"i.date_of_closure", f.DateOfClosure},
		{"i.created_at", f.CreatedAt},
	} {
		lower, upper := dr.rng.Bounds()
		if lower != nil {
			clauses = append(clauses, fmt.Sprintf("%s >= %s", dr.column, c.Bind(*lower)))
		}
		if upper != nil {
			clauses = append(clauses, fmt.Sprintf("%s < %s", dr.column, c.Bind(*upper)))
		}
	}

	if f.DaysOpenMin != nil {
		expr := c.DaysOpen()
		clauses = append(clauses, fmt.Sprintf("%s >= %s", expr, c.Bind(*f.DaysOpenMin)))
	}
	if f.DaysOpenMax != nil {
		expr := c.DaysOpen()
		clauses = append(clauses, fmt.Sprintf("%s <= %s", expr, c.Bind(*f.DaysOpenMax)))
	}

	c.Where = "WHERE " + strings.Join(clauses, " AND ")
	return c
}

var sortColumns = map[SortField]string{
	SortCreatedAt:      "i.created_at",
	SortDate:           "i.date",
	SortDateIdentified: "i.date_identified",
	SortDaysOpen:       "days_open",
}

// CompileOrder renders s as an ORDER BY clause with id as tie-breaker.
func CompileOrder(s Sort) string {
	column, ok := sortColumns[s.Field]
	if !ok {
		column = sortColumns[DefaultSort.Field]
	}
	dir := "DESC"
	if s.Order == Ascend {
		dir = "ASC"
	}
	return fmt.Sprintf("ORDER BY %s %s, i.id %s", column, dir, dir)
}

func escapeLike(term string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(term)
}
