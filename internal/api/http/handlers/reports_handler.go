package handlers

import (
	"bytes"
	"strconv"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/field-audit-service/internal/api/dto"
	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/report"
	"github.com/spec-kit/field-audit-service/internal/service"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// ReportsHandler serves issue listings and exports.
type ReportsHandler struct {
	service *service.ReportService
}

// NewReportsHandler constructs handler.
func NewReportsHandler(reportService *service.ReportService) *ReportsHandler {
	return &ReportsHandler{service: reportService}
}

// ListIssues GET /issues.
func (h *ReportsHandler) ListIssues(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	sort, err := report.ParseSort(c.Query("sortField"), c.Query("sortOrder"))
	if err != nil {
		return err
	}
	page, err := parsePage(c)
	if err != nil {
		return err
	}

	result, err := h.service.ListIssues(c.UserContext(), report.Query{Filter: filter, Sort: sort, Page: page})
	if err != nil {
		return err
	}
	return c.JSON(dto.NewIssueListResponse(result))
}

// ExportIssues GET /issues/export?format=json|csv.
func (h *ReportsHandler) ExportIssues(c *fiber.Ctx) error {
	filter, err := parseFilter(c)
	if err != nil {
		return err
	}
	format := strings.ToLower(c.Query("format", "json"))
	if format != "json" && format != "csv" {
		return apperrors.NewValidationError("format must be json or csv", "format")
	}

	rows, err := h.service.ExportIssues(c.UserContext(), filter)
	if err != nil {
		return err
	}
	if format == "json" {
		return c.JSON(fiber.Map{"data": rows})
	}

	var buf bytes.Buffer
	if err := report.WriteCSV(&buf, rows); err != nil {
		return apperrors.NewInternalError(err)
	}
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	c.Set(fiber.HeaderContentDisposition, `attachment; filename="issues.csv"`)
	return c.Send(buf.Bytes())
}

var textFilters = map[string]func(*report.Filter) **string{
	"station":           func(f *report.Filter) **string { return &f.Station },
	"details":           func(f *report.Filter) **string { return &f.Details },
	"actionTaken":       func(f *report.Filter) **string { return &f.ActionTaken },
	"feedback":          func(f *report.Filter) **string { return &f.Feedback },
	"areaManager":       func(f *report.Filter) **string { return &f.AreaManager },
	"regionalManager":   func(f *report.Filter) **string { return &f.RegionalManager },
	"processSpecialist": func(f *report.Filter) **string { return &f.ProcessSpecialist },
	"logNumber":         func(f *report.Filter) **string { return &f.LogNumber },
	"reportedBy":        func(f *report.Filter) **string { return &f.ReporterName },
	"resolvedBy":        func(f *report.Filter) **string { return &f.ResolverName },
}

var dateFilters = map[string]func(*report.Filter) *report.DateRange{
	"date":           func(f *report.Filter) *report.DateRange { return &f.Date },
	"dateIdentified": func(f *report.Filter) *report.DateRange { return &f.DateIdentified },
	"dateOfClosure":  func(f *report.Filter) *report.DateRange { return &f.DateOfClosure },
	"createdAt":      func(f *report.Filter) *report.DateRange { return &f.CreatedAt },
}

// parseFilter maps query parameters onto a report filter. List parameters
// may repeat or carry comma separated values; date ranges use <name>From and
// <name>To.
func parseFilter(c *fiber.Ctx) (report.Filter, error) {
	var (
		f       report.Filter
		invalid []string
	)

	for key, field := range textFilters {
		if v := strings.TrimSpace(c.Query(key)); v != "" {
			*field(&f) = &v
		}
	}

	f.ReporterIDs = queryList(c, "reporterId")
	for _, v := range queryList(c, "region") {
		f.Regions = append(f.Regions, domain.Region(v))
	}
	for _, v := range queryList(c, "type") {
		f.Types = append(f.Types, domain.IssueType(v))
	}
	for _, v := range queryList(c, "status") {
		status := domain.IssueStatus(v)
		if !status.Valid() {
			invalid = append(invalid, "status")
			break
		}
		f.Statuses = append(f.Statuses, status)
	}
	for _, v := range queryList(c, "week") {
		week, err := strconv.Atoi(v)
		if err != nil || week < 1 {
			invalid = append(invalid, "week")
			break
		}
		f.Weeks = append(f.Weeks, week)
	}

	if v := c.Query("isPrioritized"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			invalid = append(invalid, "isPrioritized")
		} else {
			f.Prioritized = &b
		}
	}
	switch c.Query("category") {
	case "":
	case domain.CategoryOf(true):
		f.Prioritized = boolPtr(true)
	case domain.CategoryOf(false):
		f.Prioritized = boolPtr(false)
	default:
		invalid = append(invalid, "category")
	}

	for key, field := range dateFilters {
		r := field(&f)
		if v := c.Query(key + "From"); v != "" {
			if t, err := parseDate(v); err == nil {
				r.From = &t
			} else {
				invalid = append(invalid, key+"From")
			}
		}
		if v := c.Query(key + "To"); v != "" {
			if t, err := parseDate(v); err == nil {
				r.To = &t
			} else {
				invalid = append(invalid, key+"To")
			}
		}
	}

	for key, dst := range map[string]**int{"daysOpenMin": &f.DaysOpenMin, "daysOpenMax": &f.DaysOpenMax} {
		if v := c.Query(key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				invalid = append(invalid, key)
				continue
			}
			*dst = &n
		}
	}

	if len(invalid) > 0 {
		return report.Filter{}, apperrors.NewValidationError("invalid filter", invalid...)
	}
	return f, nil
}

func parsePage(c *fiber.Ctx) (report.Page, error) {
	var (
		page    report.Page
		invalid []string
	)
	if v := c.Query("page"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, "page")
		}
		page.Number = n
	}
	if v := c.Query("pageSize"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			invalid = append(invalid, "pageSize")
		}
		page.Size = n
	}
	if len(invalid) > 0 {
		return report.Page{}, apperrors.NewValidationError("invalid pagination", invalid...)
	}
	return page, nil
}

func queryList(c *fiber.Ctx, key string) []string {
	var out []string
	for _, raw := range c.Context().QueryArgs().PeekMulti(key) {
		for _, part := range strings.Split(string(raw), ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func boolPtr(b bool) *bool { return &b }
