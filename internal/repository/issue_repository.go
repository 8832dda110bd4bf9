package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/report"
)

// IssueRepository encapsulates issue persistence.
type IssueRepository interface {
	// Create assigns the next sequential id and inserts the issue.
	Create(ctx context.Context, issue *domain.Issue) error
	Update(ctx context.Context, issue *domain.Issue) error
	GetByID(ctx context.Context, id int64) (*domain.Issue, error)
	Delete(ctx context.Context, id int64) error
	// EscalateStale flags every unflagged, unresolved issue created before cutoff.
	EscalateStale(ctx context.Context, cutoff time.Time) (int64, error)
	List(ctx context.Context, q report.Query, now time.Time) ([]report.Row, int64, error)
	Count(ctx context.Context, f report.Filter, now time.Time) (int64, error)
	// Export returns every matching row in creation order.
	Export(ctx context.Context, f report.Filter, now time.Time) ([]report.Row, error)
}

const issueColumns = `i.id, i.reporter_id, COALESCE(reporter.name, ''), i.week, i.date, i.date_identified,
               i.region, i.station, i.type, i.details, i.area_manager, i.regional_manager, i.process_specialist,
               i.evidence_before, i.evidence_after, i.is_prioritized, i.status, i.resolved_by, resolver.name,
               i.date_of_closure, i.log_number, i.maintenance_comment, i.action_taken, i.feedback,
               i.updated_by, i.created_at, i.updated_at`

const issueFrom = `FROM issues i
        LEFT JOIN users reporter ON reporter.id = i.reporter_id
        LEFT JOIN users resolver ON resolver.id = i.resolved_by`

type issueRepository struct {
	db DBTX
}

// NewIssueRepository returns a Postgres-backed implementation.
func NewIssueRepository(db DBTX) IssueRepository {
	return &issueRepository{db: db}
}

func (r *issueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE issues IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return err
	}
	var id int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM issues`).Scan(&id); err != nil {
		return err
	}

	const query = `
        INSERT INTO issues (id, reporter_id, week, date, date_identified, region, station, type, details,
            area_manager, regional_manager, process_specialist, evidence_before, evidence_after,
            is_prioritized, status, resolved_by, date_of_closure, log_number, maintenance_comment,
            action_taken, feedback, updated_by, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25)`
	if _, err := tx.Exec(ctx, query,
		id,
		issue.Reporter.ID,
		issue.Week,
		issue.Date,
		issue.DateIdentified,
		issue.Region,
		issue.Station,
		issue.Type,
		issue.Details,
		issue.AreaManager,
		issue.RegionalManager,
		issue.ProcessSpecialist,
		refStrings(issue.EvidenceBefore),
		refStrings(issue.EvidenceAfter),
		issue.IsPrioritized,
		issue.Status,
		resolverID(issue),
		issue.DateOfClosure,
		issue.LogNumber,
		issue.MaintenanceComment,
		issue.ActionTaken,
		issue.Feedback,
		attributions(issue),
		issue.CreatedAt,
		issue.UpdatedAt,
	); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	issue.ID = id
	return nil
}

func (r *issueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	const query = `
        UPDATE issues SET week=$1, date=$2, date_identified=$3, region=$4, station=$5, type=$6, details=$7,
            area_manager=$8, regional_manager=$9, process_specialist=$10, evidence_before=$11, evidence_after=$12,
            is_prioritized=$13, status=$14, resolved_by=$15, date_of_closure=$16, log_number=$17,
            maintenance_comment=$18, action_taken=$19, feedback=$20, updated_by=$21, updated_at=$22
        WHERE id=$23`
	cmd, err := r.db.Exec(ctx, query,
		issue.Week,
		issue.Date,
		issue.DateIdentified,
		issue.Region,
		issue.Station,
		issue.Type,
		issue.Details,
		issue.AreaManager,
		issue.RegionalManager,
		issue.ProcessSpecialist,
		refStrings(issue.EvidenceBefore),
		refStrings(issue.EvidenceAfter),
		issue.IsPrioritized,
		issue.Status,
		resolverID(issue),
		issue.DateOfClosure,
		issue.LogNumber,
		issue.MaintenanceComment,
		issue.ActionTaken,
		issue.Feedback,
		attributions(issue),
		issue.UpdatedAt,
		issue.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	query := `SELECT ` + issueColumns + ` ` + issueFrom + ` WHERE i.id=$1`
	return scanIssue(r.db.QueryRow(ctx, query, id))
}

func (r *issueRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM issues WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *issueRepository) EscalateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	const query = `
        UPDATE issues SET is_prioritized = TRUE
        WHERE is_prioritized = FALSE AND status <> $1 AND created_at < $2`
	cmd, err := r.db.Exec(ctx, query, domain.IssueStatusResolved, cutoff)
	if err != nil {
		return 0, err
	}
	return cmd.RowsAffected(), nil
}

func (r *issueRepository) List(ctx context.Context, q report.Query, now time.Time) ([]report.Row, int64, error) {
	total, err := r.Count(ctx, q.Filter, now)
	if err != nil {
		return nil, 0, err
	}

	compiled := report.CompileWhere(q.Filter, now)
	daysOpen := compiled.DaysOpen()
	limit, offset := compiled.Bind(q.Page.Size), compiled.Bind(q.Page.Offset())
	query := fmt.Sprintf(`SELECT %s, %s AS days_open %s %s %s LIMIT %s OFFSET %s`,
		issueColumns, daysOpen, issueFrom, compiled.Where, report.CompileOrder(q.Sort), limit, offset)

	rows, err := r.queryRows(ctx, query, compiled.Args()...)
	if err != nil {
		return nil, 0, err
	}
	return rows, total, nil
}

func (r *issueRepository) Count(ctx context.Context, f report.Filter, now time.Time) (int64, error) {
	compiled := report.CompileWhere(f, now)
	query := fmt.Sprintf(`SELECT COUNT(*) %s %s`, issueFrom, compiled.Where)
	var total int64
	if err := r.db.QueryRow(ctx, query, compiled.Args()...).Scan(&total); err != nil {
		return 0, err
	}
	return total, nil
}

func (r *issueRepository) Export(ctx context.Context, f report.Filter, now time.Time) ([]report.Row, error) {
	compiled := report.CompileWhere(f, now)
	daysOpen := compiled.DaysOpen()
	query := fmt.Sprintf(`SELECT %s, %s AS days_open %s %s %s`,
		issueColumns, daysOpen, issueFrom, compiled.Where,
		report.CompileOrder(report.Sort{Field: report.SortCreatedAt, Order: report.Ascend}))
	return r.queryRows(ctx, query, compiled.Args()...)
}

func (r *issueRepository) queryRows(ctx context.Context, query string, args ...any) ([]report.Row, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	result := []report.Row{}
	for rows.Next() {
		var daysOpen int
		issue, err := scanIssue(rows, &daysOpen)
		if err != nil {
			return nil, err
		}
		result = append(result, report.Row{Issue: *issue, DaysOpen: daysOpen})
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanIssue(row scanner, extra ...any) (*domain.Issue, error) {
	var (
		issue                  domain.Issue
		before, after          []string
		resolvedBy, resolverNm *string
	)
	dest := []any{
		&issue.ID,
		&issue.Reporter.ID,
		&issue.Reporter.Name,
		&issue.Week,
		&issue.Date,
		&issue.DateIdentified,
		&issue.Region,
		&issue.Station,
		&issue.Type,
		&issue.Details,
		&issue.AreaManager,
		&issue.RegionalManager,
		&issue.ProcessSpecialist,
		&before,
		&after,
		&issue.IsPrioritized,
		&issue.Status,
		&resolvedBy,
		&resolverNm,
		&issue.DateOfClosure,
		&issue.LogNumber,
		&issue.MaintenanceComment,
		&issue.ActionTaken,
		&issue.Feedback,
		&issue.UpdatedBy,
		&issue.CreatedAt,
		&issue.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}

	issue.EvidenceBefore = toRefs(before)
	issue.EvidenceAfter = toRefs(after)
	if resolvedBy != nil {
		ref := domain.IdentityRef{ID: *resolvedBy}
		if resolverNm != nil {
			ref.Name = *resolverNm
		}
		issue.ResolvedBy = &ref
	}
	if issue.UpdatedBy == nil {
		issue.UpdatedBy = []domain.Attribution{}
	}
	return &issue, nil
}

func refStrings(refs []domain.EvidenceRef) []string {
	out := make([]string, 0, len(refs))
	for _, ref := range refs {
		out = append(out, string(ref))
	}
	return out
}

func toRefs(values []string) []domain.EvidenceRef {
	out := make([]domain.EvidenceRef, 0, len(values))
	for _, v := range values {
		out = append(out, domain.EvidenceRef(v))
	}
	return out
}

func resolverID(issue *domain.Issue) *string {
	if issue.ResolvedBy == nil {
		return nil
	}
	id := issue.ResolvedBy.ID
	return &id
}

func attributions(issue *domain.Issue) []domain.Attribution {
	if issue.UpdatedBy == nil {
		return []domain.Attribution{}
	}
	return issue.UpdatedBy
}

// IsNotFound reports whether err means the row does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, pgx.ErrNoRows)
}
