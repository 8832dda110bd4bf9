package report

import (
	"encoding/csv"
	"io"
	"strconv"
	"strings"
	"time"

	"github.com/spec-kit/field-audit-service/internal/domain"
)

// Placeholder fills export cells that do not apply to a row.
const Placeholder = "-"

// ExportRow is the flattened, display-formatted view of one issue.
type ExportRow struct {
	ID                 int64  `json:"id"`
	Week               int    `json:"week"`
	Date               string `json:"date"`
	DateIdentified     string `json:"dateIdentified"`
	Region             string `json:"region"`
	Station            string `json:"station"`
	Type               string `json:"type"`
	Category           string `json:"category"`
	Details            string `json:"details"`
	AreaManager        string `json:"areaManager"`
	RegionalManager    string `json:"regionalManager"`
	ProcessSpecialist  string `json:"processSpecialist"`
	Prioritized        string `json:"prioritized"`
	Status             string `json:"status"`
	ReportedBy         string `json:"reportedBy"`
	ResolvedBy         string `json:"resolvedBy"`
	DateOfClosure      string `json:"dateOfClosure"`
	DaysOpen           string `json:"daysOpen"`
	DaysResolved       string `json:"daysResolved"`
	LogNumber          string `json:"logNumber"`
	MaintenanceComment string `json:"maintenanceComment"`
	ActionTaken        string `json:"actionTaken"`
	Feedback           string `json:"feedback"`
	CreatedAt          string `json:"createdAt"`
}

var csvHeader = []string{
	"ID", "Week", "Date", "Date Identified", "Region", "Station", "Type", "Category",
	"Details", "Area Manager", "Regional Manager", "Process Specialist", "Prioritized",
	"Status", "Reported By", "Resolved By", "Date Of Closure", "Days Open", "Days Resolved",
	"Log Number", "Maintenance Comment", "Action Taken", "Feedback", "Created At",
}

// Flatten renders rows for export using layout for every date.
func Flatten(rows []Row, layout string) []ExportRow {
	out := make([]ExportRow, 0, len(rows))
	for _, row := range rows {
		out = append(out, flattenRow(row, layout))
	}
	return out
}

func flattenRow(row Row, layout string) ExportRow {
	issue := row.Issue
	resolved := issue.Status == domain.IssueStatusResolved

	er := ExportRow{
		ID:                 issue.ID,
		Week:               issue.Week,
		Date:               formatDate(issue.Date, layout),
		DateIdentified:     formatDate(issue.DateIdentified, layout),
		Region:             string(issue.Region),
		Station:            stripQuotes(issue.Station),
		Type:               string(issue.Type),
		Category:           issue.Category(),
		Details:            stripQuotes(issue.Details),
		AreaManager:        stripQuotes(issue.AreaManager),
		RegionalManager:    stripQuotes(issue.RegionalManager),
		ProcessSpecialist:  stripQuotes(issue.ProcessSpecialist),
		Prioritized:        yesNo(issue.IsPrioritized),
		Status:             string(issue.Status),
		ReportedBy:         stripQuotes(issue.Reporter.Name),
		ResolvedBy:         Placeholder,
		DateOfClosure:      Placeholder,
		DaysOpen:           Placeholder,
		DaysResolved:       Placeholder,
		LogNumber:          stripQuotes(issue.LogNumber),
		MaintenanceComment: stripQuotes(issue.MaintenanceComment),
		ActionTaken:        stripQuotes(issue.ActionTaken),
		Feedback:           stripQuotes(issue.Feedback),
		CreatedAt:          formatDate(issue.CreatedAt, layout),
	}
	if issue.ResolvedBy != nil && issue.ResolvedBy.Name != "" {
		er.ResolvedBy = stripQuotes(issue.ResolvedBy.Name)
	}
	if issue.DateOfClosure != nil {
		er.DateOfClosure = formatDate(*issue.DateOfClosure, layout)
	}
	if resolved {
		er.DaysResolved = strconv.Itoa(row.DaysOpen)
	} else {
		er.DaysOpen = strconv.Itoa(row.DaysOpen)
	}
	return er
}

// WriteCSV writes a header line followed by one record per row.
func WriteCSV(w io.Writer, rows []ExportRow) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(csvHeader); err != nil {
		return err
	}
	for _, r := range rows {
		record := []string{
			strconv.FormatInt(r.ID, 10), strconv.Itoa(r.Week), r.Date, r.DateIdentified,
			r.Region, r.Station, r.Type, r.Category, r.Details, r.AreaManager,
			r.RegionalManager, r.ProcessSpecialist, r.Prioritized, r.Status,
			r.ReportedBy, r.ResolvedBy, r.DateOfClosure, r.DaysOpen, r.DaysResolved,
			r.LogNumber, r.MaintenanceComment, r.ActionTaken, r.Feedback, r.CreatedAt,
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatDate(t time.Time, layout string) string {
	if t.IsZero() {
		return Placeholder
	}
	return t.Format(layout)
}

func stripQuotes(s string) string {
	return strings.NewReplacer(`"`, "", `'`, "").Replace(s)
}

func yesNo(b bool) string {
	if b {
		return "Yes"
	}
	return "No"
}
