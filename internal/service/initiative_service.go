package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/events"
	"github.com/spec-kit/field-audit-service/internal/evidence"
	"github.com/spec-kit/field-audit-service/internal/observability"
	"github.com/spec-kit/field-audit-service/internal/repository"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// InitiativeService manages initiative submissions and their evidence.
type InitiativeService struct {
	initiatives repository.InitiativeRepository
	blobs       evidence.BlobStore
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	now         func() time.Time
}

// InitiativeDependencies bundles collaborators for the initiative service.
type InitiativeDependencies struct {
	InitiativeRepo repository.InitiativeRepository
	BlobStore      evidence.BlobStore
	Dispatcher     events.Dispatcher
	Metrics        *observability.Metrics
	Logger         *zap.Logger
	Clock          func() time.Time
}

// InitiativeInput carries initiative attributes. On create every text field
// is required; on update nil fields are left untouched.
type InitiativeInput struct {
	Date            *time.Time
	Region          *domain.Region
	Station         *string
	Type            *domain.IssueType
	Details         *string
	AreaManager     *string
	RegionalManager *string
	EvidenceBefore  []evidence.Upload
	EvidenceAfter   []evidence.Upload
}

func (in InitiativeInput) uploads(slot domain.EvidenceSlot) []evidence.Upload {
	switch slot {
	case domain.SlotBefore:
		return in.EvidenceBefore
	case domain.SlotAfter:
		return in.EvidenceAfter
	}
	return nil
}

// NewInitiativeService constructs the service.
func NewInitiativeService(deps InitiativeDependencies) *InitiativeService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &InitiativeService{
		initiatives: deps.InitiativeRepo,
		blobs:       deps.BlobStore,
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		now:         clock,
	}
}

// CreateInitiative stores the evidence in both slots and persists the
// initiative. Blobs are rolled back if the record cannot be saved.
func (s *InitiativeService) CreateInitiative(ctx context.Context, actor domain.Identity, input InitiativeInput) (*domain.Initiative, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	now := s.now()
	initiative := &domain.Initiative{
		Reporter:       actor.Ref(),
		EvidenceBefore: []domain.EvidenceRef{},
		EvidenceAfter:  []domain.EvidenceRef{},
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := applyInitiative(initiative, input, true); err != nil {
		return nil, err
	}

	batch := evidence.NewBatch(s.blobs, s.logger, s.metrics)
	added, err := s.attach(ctx, batch, initiative, input)
	if err != nil {
		return nil, err
	}
	if err := s.initiatives.Create(ctx, initiative); err != nil {
		return nil, apperrors.NewStorageFailure(err, rollbackEvidence(ctx, batch, s.logger))
	}

	s.logger.Info("initiative created",
		zap.Int64("initiative_id", initiative.ID),
		zap.String("reporter_id", actor.ID),
		zap.Int("evidence", added))
	s.publish(ctx, events.EventInitiativeCreated, actor, initiative, added)
	return initiative, nil
}

// GetInitiative fetches a single initiative.
func (s *InitiativeService) GetInitiative(ctx context.Context, id int64) (*domain.Initiative, error) {
	return s.load(ctx, id)
}

// UpdateInitiative lets the reporter amend attributes and append evidence to
// either slot. Existing references are never removed.
func (s *InitiativeService) UpdateInitiative(ctx context.Context, actor domain.Identity, id int64, input InitiativeInput) (*domain.Initiative, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if current.Reporter.ID != actor.ID {
		return nil, apperrors.NewUnauthorized("only the reporter may update this initiative")
	}

	staged := current.Clone()
	if err := applyInitiative(staged, input, false); err != nil {
		return nil, err
	}
	batch := evidence.NewBatch(s.blobs, s.logger, s.metrics)
	added, err := s.attach(ctx, batch, staged, input)
	if err != nil {
		return nil, err
	}
	staged.UpdatedAt = s.now()
	if err := s.initiatives.Update(ctx, staged); err != nil {
		rolledBack := rollbackEvidence(ctx, batch, s.logger)
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("initiative", map[string]any{"id": id, "rolled_back": rolledBack})
		}
		return nil, apperrors.NewStorageFailure(err, rolledBack)
	}

	s.logger.Info("initiative updated",
		zap.Int64("initiative_id", id),
		zap.String("actor_id", actor.ID),
		zap.Int("evidence_added", added))
	s.publish(ctx, events.EventInitiativeUpdated, actor, staged, added)
	return staged, nil
}

// DeleteInitiative removes an initiative and then every blob it references.
func (s *InitiativeService) DeleteInitiative(ctx context.Context, actor domain.Identity, id int64) error {
	if !actor.Admin() {
		return apperrors.NewUnauthorized("administrator required")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.initiatives.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewNotFound("initiative", map[string]any{"id": id})
		}
		return apperrors.NewStorageFailure(err, 0)
	}

	deleted, failed := purgeEvidence(ctx, s.blobs, s.logger, current.AllEvidence(), zap.Int64("initiative_id", id))
	s.logger.Info("initiative deleted",
		zap.Int64("initiative_id", id),
		zap.String("actor_id", actor.ID),
		zap.Int("blobs_deleted", deleted),
		zap.Int("blobs_failed", failed))
	publishEvent(ctx, s.dispatcher, s.logger, s.now(), events.Event{
		Type:         events.EventInitiativeDeleted,
		InitiativeID: id,
		Actor:        events.ActorOf(actor),
		Payload:      events.IssueDeletedPayload{BlobsDeleted: deleted, BlobsFailed: failed},
	})
	return nil
}

func (s *InitiativeService) attach(ctx context.Context, batch *evidence.Batch, initiative *domain.Initiative, input InitiativeInput) (int, error) {
	added := 0
	for _, slot := range domain.EvidenceSlots {
		uploads := input.uploads(slot)
		if len(uploads) == 0 {
			continue
		}
		refs, err := batch.Attach(ctx, slot, initiative.Evidence(slot), uploads)
		if err != nil {
			return 0, apperrors.NewUploadFailure(err, rollbackEvidence(ctx, batch, s.logger))
		}
		initiative.SetEvidence(slot, refs)
		added += len(uploads)
	}
	return added, nil
}

func (s *InitiativeService) load(ctx context.Context, id int64) (*domain.Initiative, error) {
	initiative, err := s.initiatives.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("initiative", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageFailure(err, 0)
	}
	return initiative, nil
}

func (s *InitiativeService) publish(ctx context.Context, eventType events.EventType, actor domain.Identity, initiative *domain.Initiative, added int) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now(), events.Event{
		Type:         eventType,
		InitiativeID: initiative.ID,
		Actor:        events.ActorOf(actor),
		Payload: events.InitiativeSavedPayload{
			Region:        initiative.Region,
			Station:       initiative.Station,
			EvidenceAdded: added,
		},
	})
}

// applyInitiative validates input and copies it onto initiative. With
// required set, absent or blank fields are rejected.
func applyInitiative(initiative *domain.Initiative, input InitiativeInput, required bool) error {
	var fields []string
	text := func(name string, dst *string, v *string) {
		if v == nil {
			if required {
				fields = append(fields, name)
			}
			return
		}
		if strings.TrimSpace(*v) == "" {
			fields = append(fields, name)
			return
		}
		*dst = strings.TrimSpace(*v)
	}

	switch {
	case input.Date != nil && !input.Date.IsZero():
		initiative.Date = *input.Date
		initiative.Week = domain.WeekOfMonth(*input.Date)
	case input.Date != nil || required:
		fields = append(fields, "date")
	}
	switch {
	case input.Region != nil && input.Region.Valid():
		initiative.Region = *input.Region
	case input.Region != nil || required:
		fields = append(fields, "region")
	}
	switch {
	case input.Type != nil && input.Type.Valid():
		initiative.Type = *input.Type
	case input.Type != nil || required:
		fields = append(fields, "type")
	}
	text("station", &initiative.Station, input.Station)
	text("details", &initiative.Details, input.Details)
	text("areaManager", &initiative.AreaManager, input.AreaManager)
	text("regionalManager", &initiative.RegionalManager, input.RegionalManager)

	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid initiative", fields...)
	}
	return nil
}
