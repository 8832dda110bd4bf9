package repository

import (
	"context"
	"sync"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/report"
)

// MemoryIssueRepository keeps issues in process. It backs development mode
// when no database is configured and evaluates the same report queries as
// the Postgres implementation.
type MemoryIssueRepository struct {
	mu     sync.RWMutex
	issues map[int64]*domain.Issue
}

// NewMemoryIssueRepository returns an empty store.
func NewMemoryIssueRepository() *MemoryIssueRepository {
	return &MemoryIssueRepository{issues: make(map[int64]*domain.Issue)}
}

func (r *MemoryIssueRepository) Create(ctx context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var maxID int64
	for id := range r.issues {
		if id > maxID {
			maxID = id
		}
	}
	issue.ID = maxID + 1
	r.issues[issue.ID] = issue.Clone()
	return nil
}

func (r *MemoryIssueRepository) Update(ctx context.Context, issue *domain.Issue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.issues[issue.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.issues[issue.ID] = issue.Clone()
	return nil
}

func (r *MemoryIssueRepository) GetByID(ctx context.Context, id int64) (*domain.Issue, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	issue, ok := r.issues[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return issue.Clone(), nil
}

func (r *MemoryIssueRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.issues[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.issues, id)
	return nil
}

func (r *MemoryIssueRepository) EscalateStale(ctx context.Context, cutoff time.Time) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	var updated int64
	for _, issue := range r.issues {
		if !issue.CreatedAt.Before(cutoff) {
			continue
		}
		if issue.Escalate() {
			updated++
		}
	}
	return updated, nil
}

func (r *MemoryIssueRepository) List(ctx context.Context, q report.Query, now time.Time) ([]report.Row, int64, error) {
	rows := r.matching(q.Filter, now)
	report.SortRows(rows, q.Sort)
	return report.Paginate(rows, q.Page), int64(len(rows)), nil
}

func (r *MemoryIssueRepository) Count(ctx context.Context, f report.Filter, now time.Time) (int64, error) {
	return int64(len(r.matching(f, now))), nil
}

func (r *MemoryIssueRepository) Export(ctx context.Context, f report.Filter, now time.Time) ([]report.Row, error) {
	rows := r.matching(f, now)
	report.SortRows(rows, report.Sort{Field: report.SortCreatedAt, Order: report.Ascend})
	return rows, nil
}

func (r *MemoryIssueRepository) matching(f report.Filter, now time.Time) []report.Row {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rows := []report.Row{}
	for _, issue := range r.issues {
		if f.Matches(issue, now) {
			rows = append(rows, report.NewRow(issue.Clone(), now))
		}
	}
	return rows
}
