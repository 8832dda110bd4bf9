package repository

import (
	"context"
	"sync"

	"github.com/jackc/pgx/v5"

	"github.com/spec-kit/field-audit-service/internal/domain"
)

// InitiativeRepository encapsulates initiative persistence.
type InitiativeRepository interface {
	// Create assigns the next sequential id and inserts the initiative.
	Create(ctx context.Context, initiative *domain.Initiative) error
	Update(ctx context.Context, initiative *domain.Initiative) error
	GetByID(ctx context.Context, id int64) (*domain.Initiative, error)
	Delete(ctx context.Context, id int64) error
}

type initiativeRepository struct {
	db DBTX
}

// NewInitiativeRepository returns a Postgres-backed implementation.
func NewInitiativeRepository(db DBTX) InitiativeRepository {
	return &initiativeRepository{db: db}
}

func (r *initiativeRepository) Create(ctx context.Context, initiative *domain.Initiative) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if _, err := tx.Exec(ctx, `LOCK TABLE initiatives IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return err
	}
	var id int64
	if err := tx.QueryRow(ctx, `SELECT COALESCE(MAX(id), 0) + 1 FROM initiatives`).Scan(&id); err != nil {
		return err
	}

	const query = `
        INSERT INTO initiatives (id, reporter_id, week, date, region, station, type, details,
            area_manager, regional_manager, evidence_before, evidence_after, created_at, updated_at)
        VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14)`
	if _, err := tx.Exec(ctx, query,
		id,
		initiative.Reporter.ID,
		initiative.Week,
		initiative.Date,
		initiative.Region,
		initiative.Station,
		initiative.Type,
		initiative.Details,
		initiative.AreaManager,
		initiative.RegionalManager,
		refStrings(initiative.EvidenceBefore),
		refStrings(initiative.EvidenceAfter),
		initiative.CreatedAt,
		initiative.UpdatedAt,
	); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	initiative.ID = id
	return nil
}

func (r *initiativeRepository) Update(ctx context.Context, initiative *domain.Initiative) error {
	const query = `
        UPDATE initiatives SET week=$1, date=$2, region=$3, station=$4, type=$5, details=$6,
            area_manager=$7, regional_manager=$8, evidence_before=$9, evidence_after=$10, updated_at=$11
        WHERE id=$12`
	cmd, err := r.db.Exec(ctx, query,
		initiative.Week,
		initiative.Date,
		initiative.Region,
		initiative.Station,
		initiative.Type,
		initiative.Details,
		initiative.AreaManager,
		initiative.RegionalManager,
		refStrings(initiative.EvidenceBefore),
		refStrings(initiative.EvidenceAfter),
		initiative.UpdatedAt,
		initiative.ID,
	)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

func (r *initiativeRepository) GetByID(ctx context.Context, id int64) (*domain.Initiative, error) {
	const query = `
        SELECT n.id, n.reporter_id, COALESCE(reporter.name, ''), n.week, n.date, n.region, n.station,
               n.type, n.details, n.area_manager, n.regional_manager, n.evidence_before, n.evidence_after,
               n.created_at, n.updated_at
        FROM initiatives n
        LEFT JOIN users reporter ON reporter.id = n.reporter_id
        WHERE n.id=$1`
	var (
		initiative    domain.Initiative
		before, after []string
	)
	if err := r.db.QueryRow(ctx, query, id).Scan(
		&initiative.ID,
		&initiative.Reporter.ID,
		&initiative.Reporter.Name,
		&initiative.Week,
		&initiative.Date,
		&initiative.Region,
		&initiative.Station,
		&initiative.Type,
		&initiative.Details,
		&initiative.AreaManager,
		&initiative.RegionalManager,
		&before,
		&after,
		&initiative.CreatedAt,
		&initiative.UpdatedAt,
	); err != nil {
		return nil, err
	}
	initiative.EvidenceBefore = toRefs(before)
	initiative.EvidenceAfter = toRefs(after)
	return &initiative, nil
}

func (r *initiativeRepository) Delete(ctx context.Context, id int64) error {
	cmd, err := r.db.Exec(ctx, `DELETE FROM initiatives WHERE id=$1`, id)
	if err != nil {
		return err
	}
	if cmd.RowsAffected() == 0 {
		return pgx.ErrNoRows
	}
	return nil
}

// MemoryInitiativeRepository keeps initiatives in process for development mode.
type MemoryInitiativeRepository struct {
	mu          sync.RWMutex
	initiatives map[int64]*domain.Initiative
}

// NewMemoryInitiativeRepository returns an empty store.
func NewMemoryInitiativeRepository() *MemoryInitiativeRepository {
	return &MemoryInitiativeRepository{initiatives: make(map[int64]*domain.Initiative)}
}

func (r *MemoryInitiativeRepository) Create(ctx context.Context, initiative *domain.Initiative) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var maxID int64
	for id := range r.initiatives {
		if id > maxID {
			maxID = id
		}
	}
	initiative.ID = maxID + 1
	r.initiatives[initiative.ID] = initiative.Clone()
	return nil
}

func (r *MemoryInitiativeRepository) Update(ctx context.Context, initiative *domain.Initiative) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.initiatives[initiative.ID]; !ok {
		return pgx.ErrNoRows
	}
	r.initiatives[initiative.ID] = initiative.Clone()
	return nil
}

func (r *MemoryInitiativeRepository) GetByID(ctx context.Context, id int64) (*domain.Initiative, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	initiative, ok := r.initiatives[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return initiative.Clone(), nil
}

func (r *MemoryInitiativeRepository) Delete(ctx context.Context, id int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.initiatives[id]; !ok {
		return pgx.ErrNoRows
	}
	delete(r.initiatives, id)
	return nil
}
