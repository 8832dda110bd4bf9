package service

import (
	"context"
	"time"

	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/report"
	"github.com/spec-kit/field-audit-service/internal/repository"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// ReportService serves read-only listings and exports.
type ReportService struct {
	issues repository.IssueRepository
	cfg    config.ReportConfig
	now    func() time.Time
}

// NewReportService constructs the service. A nil clock uses time.Now.
func NewReportService(issues repository.IssueRepository, cfg config.ReportConfig, clock func() time.Time) *ReportService {
	if clock == nil {
		clock = time.Now
	}
	return &ReportService{issues: issues, cfg: cfg, now: clock}
}

// ListIssues returns one page of matching rows plus the total match count.
func (s *ReportService) ListIssues(ctx context.Context, q report.Query) (report.Result, error) {
	if err := q.Normalize(s.cfg.DefaultPageSize, s.cfg.MaxPageSize); err != nil {
		return report.Result{}, err
	}
	rows, total, err := s.issues.List(ctx, q, s.now())
	if err != nil {
		return report.Result{}, apperrors.NewStorageFailure(err, 0)
	}
	return report.Result{Rows: rows, Total: total, Page: q.Page}, nil
}

// ExportIssues returns every matching issue flattened for display, oldest first.
func (s *ReportService) ExportIssues(ctx context.Context, f report.Filter) ([]report.ExportRow, error) {
	rows, err := s.issues.Export(ctx, f, s.now())
	if err != nil {
		return nil, apperrors.NewStorageFailure(err, 0)
	}
	return report.Flatten(rows, s.dateLayout()), nil
}

func (s *ReportService) dateLayout() string {
	if s.cfg.DateLayout == "" {
		return "02 Jan 2006"
	}
	return s.cfg.DateLayout
}
