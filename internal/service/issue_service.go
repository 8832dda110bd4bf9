package service

import (
	"context"
	"errors"
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

// IssueService coordinates issue lifecycle workflows.
type IssueService struct {
	issues     repository.IssueRepository
	blobs      evidence.BlobStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
}

// IssueDependencies bundles collaborators for the issue service.
type IssueDependencies struct {
	IssueRepo  repository.IssueRepository
	BlobStore  evidence.BlobStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
	Clock      func() time.Time
}

// CreateIssueInput describes a reporter submission.
type CreateIssueInput struct {
	Date              time.Time
	DateIdentified    time.Time
	Region            domain.Region
	Station           string
	Type              domain.IssueType
	Details           string
	AreaManager       string
	RegionalManager   string
	ProcessSpecialist string
	IsPrioritized     bool
	// Evidence is stored in the before slot.
	Evidence []evidence.Upload
}

// UpdateIssueCommand carries the mutable subset of issue fields. Nil fields
// are left untouched.
type UpdateIssueCommand struct {
	Date               *time.Time
	DateIdentified     *time.Time
	Region             *domain.Region
	Station            *string
	Type               *domain.IssueType
	Details            *string
	AreaManager        *string
	RegionalManager    *string
	ProcessSpecialist  *string
	IsPrioritized      *bool
	Status             *domain.IssueStatus
	LogNumber          *string
	MaintenanceComment *string
	ActionTaken        *string
	Feedback           *string
	EvidenceBefore     []evidence.Upload
	EvidenceAfter      []evidence.Upload
}

// Uploads returns the new blobs destined for slot.
func (c UpdateIssueCommand) Uploads(slot domain.EvidenceSlot) []evidence.Upload {
	switch slot {
	case domain.SlotBefore:
		return c.EvidenceBefore
	case domain.SlotAfter:
		return c.EvidenceAfter
	}
	return nil
}

// Fields lists the names of the attributes the command sets.
func (c UpdateIssueCommand) Fields() []string {
	var fields []string
	add := func(set bool, name string) {
		if set {
			fields = append(fields, name)
		}
	}
	add(c.Date != nil, "date")
	add(c.DateIdentified != nil, "dateIdentified")
	add(c.Region != nil, "region")
	add(c.Station != nil, "station")
	add(c.Type != nil, "type")
	add(c.Details != nil, "details")
	add(c.AreaManager != nil, "areaManager")
	add(c.RegionalManager != nil, "regionalManager")
	add(c.ProcessSpecialist != nil, "processSpecialist")
	add(c.IsPrioritized != nil, "isPrioritized")
	add(c.Status != nil, "status")
	add(c.LogNumber != nil, "logNumber")
	add(c.MaintenanceComment != nil, "maintenanceComment")
	add(c.ActionTaken != nil, "actionTaken")
	add(c.Feedback != nil, "feedback")
	add(len(c.EvidenceBefore) > 0, "evidencesBefore")
	add(len(c.EvidenceAfter) > 0, "evidencesAfter")
	return fields
}

// NewIssueService constructs the service.
func NewIssueService(deps IssueDependencies) *IssueService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	return &IssueService{
		issues:     deps.IssueRepo,
		blobs:      deps.BlobStore,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
	}
}

// CreateIssue validates a submission, stores its evidence and persists a
// Pending issue. Blobs are rolled back if the record cannot be saved.
func (s *IssueService) CreateIssue(ctx context.Context, actor domain.Identity, input CreateIssueInput) (*domain.Issue, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	if err := validateCreate(input); err != nil {
		return nil, err
	}

	batch := evidence.NewBatch(s.blobs, s.logger, s.metrics)
	refs, err := batch.Attach(ctx, domain.SlotBefore, nil, input.Evidence)
	if err != nil {
		return nil, apperrors.NewUploadFailure(err, s.rollback(ctx, batch))
	}

	now := s.now()
	issue := &domain.Issue{
		Reporter:          actor.Ref(),
		Week:              domain.WeekOfMonth(input.Date),
		Date:              input.Date,
		DateIdentified:    input.DateIdentified,
		Region:            input.Region,
		Station:           strings.TrimSpace(input.Station),
		Type:              input.Type,
		Details:           strings.TrimSpace(input.Details),
		AreaManager:       strings.TrimSpace(input.AreaManager),
		RegionalManager:   strings.TrimSpace(input.RegionalManager),
		ProcessSpecialist: strings.TrimSpace(input.ProcessSpecialist),
		EvidenceBefore:    refs,
		EvidenceAfter:     []domain.EvidenceRef{},
		IsPrioritized:     input.IsPrioritized,
		Status:            domain.IssueStatusPending,
		UpdatedBy:         []domain.Attribution{},
		CreatedAt:         now,
		UpdatedAt:         now,
	}
	if err := s.issues.Create(ctx, issue); err != nil {
		return nil, apperrors.NewStorageFailure(err, s.rollback(ctx, batch))
	}

	s.logger.Info("issue created",
		zap.Int64("issue_id", issue.ID),
		zap.String("reporter_id", actor.ID),
		zap.Int("evidence", len(refs)))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueCreated,
		IssueID: issue.ID,
		Actor:   events.ActorOf(actor),
		Payload: events.IssueCreatedPayload{
			Region:        issue.Region,
			Station:       issue.Station,
			Type:          issue.Type,
			EvidenceCount: len(refs),
		},
	})
	return issue, nil
}

// GetIssue fetches a single issue.
func (s *IssueService) GetIssue(ctx context.Context, id int64) (*domain.Issue, error) {
	return s.load(ctx, id)
}

// UpdateIssue applies cmd on behalf of actor. Validation and authorization
// happen before any blob is stored; a failed save rolls back the new blobs.
func (s *IssueService) UpdateIssue(ctx context.Context, actor domain.Identity, id int64, cmd UpdateIssueCommand) (*domain.Issue, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !canUpdate(actor, current, cmd.Status) {
		return nil, apperrors.NewUnauthorized("not permitted to update this issue")
	}

	now := s.now()
	staged := current.Clone()
	if err := applyUpdate(staged, cmd, actor, now); err != nil {
		return nil, err
	}

	batch := evidence.NewBatch(s.blobs, s.logger, s.metrics)
	added := 0
	for _, slot := range domain.EvidenceSlots {
		uploads := cmd.Uploads(slot)
		if len(uploads) == 0 {
			continue
		}
		refs, err := batch.Attach(ctx, slot, staged.Evidence(slot), uploads)
		if err != nil {
			return nil, apperrors.NewUploadFailure(err, s.rollback(ctx, batch))
		}
		staged.SetEvidence(slot, refs)
		added += len(uploads)
	}

	staged.AppendAttribution(actor, now)
	staged.UpdatedAt = now
	if err := s.issues.Update(ctx, staged); err != nil {
		rolledBack := s.rollback(ctx, batch)
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"id": id, "rolled_back": rolledBack})
		}
		return nil, apperrors.NewStorageFailure(err, rolledBack)
	}

	s.logger.Info("issue updated",
		zap.Int64("issue_id", id),
		zap.String("actor_id", actor.ID),
		zap.Strings("fields", cmd.Fields()))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueUpdated,
		IssueID: id,
		Actor:   events.ActorOf(actor),
		Payload: events.IssueUpdatedPayload{Fields: cmd.Fields(), EvidenceAdded: added},
	})
	if staged.Status != current.Status {
		s.publishEvent(ctx, events.Event{
			Type:    events.EventIssueStatusChanged,
			IssueID: id,
			Actor:   events.ActorOf(actor),
			Payload: events.IssueStatusChangedPayload{OldStatus: current.Status, NewStatus: staged.Status},
		})
	}
	return staged, nil
}

// ToggleCancel flips an issue between Pending and Cancelled.
func (s *IssueService) ToggleCancel(ctx context.Context, actor domain.Identity, id int64) (*domain.Issue, error) {
	if err := requireActor(actor); err != nil {
		return nil, err
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}

	staged := current.Clone()
	if err := staged.ToggleCancel(); err != nil {
		return nil, apperrors.NewValidationError("only pending or cancelled issues can be toggled", "status")
	}
	now := s.now()
	staged.AppendAttribution(actor, now)
	staged.UpdatedAt = now
	if err := s.save(ctx, staged); err != nil {
		return nil, err
	}

	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueCancelToggled,
		IssueID: id,
		Actor:   events.ActorOf(actor),
		Payload: events.IssueStatusChangedPayload{OldStatus: current.Status, NewStatus: staged.Status},
	})
	return staged, nil
}

// DeleteIssue removes an issue and then every blob it references. Blob
// cleanup failures are logged and do not restore the record.
func (s *IssueService) DeleteIssue(ctx context.Context, actor domain.Identity, id int64) error {
	if !actor.Admin() {
		return apperrors.NewUnauthorized("administrator required")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if err := s.issues.Delete(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewNotFound("issue", map[string]any{"id": id})
		}
		return apperrors.NewStorageFailure(err, 0)
	}

	deleted, failed := purgeEvidence(ctx, s.blobs, s.logger, current.AllEvidence(), zap.Int64("issue_id", id))
	s.logger.Info("issue deleted",
		zap.Int64("issue_id", id),
		zap.String("actor_id", actor.ID),
		zap.Int("blobs_deleted", deleted),
		zap.Int("blobs_failed", failed))
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueDeleted,
		IssueID: id,
		Actor:   events.ActorOf(actor),
		Payload: events.IssueDeletedPayload{BlobsDeleted: deleted, BlobsFailed: failed},
	})
	return nil
}

// DetachEvidence removes one reference from slot and deletes its blob.
func (s *IssueService) DetachEvidence(ctx context.Context, actor domain.Identity, id int64, slot domain.EvidenceSlot, ref domain.EvidenceRef) error {
	if err := requireActor(actor); err != nil {
		return err
	}
	slot, ok := domain.ParseEvidenceSlot(string(slot))
	if !ok {
		return apperrors.NewValidationError("unknown evidence slot", "slot")
	}
	current, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	if !canUpdate(actor, current, nil) {
		return apperrors.NewUnauthorized("not permitted to update this issue")
	}

	refs, ok := evidence.Detach(current.Evidence(slot), ref)
	if !ok {
		return apperrors.NewNotFound("evidence", map[string]any{"slot": slot, "ref": ref})
	}
	staged := current.Clone()
	staged.SetEvidence(slot, refs)
	now := s.now()
	staged.AppendAttribution(actor, now)
	staged.UpdatedAt = now
	if err := s.save(ctx, staged); err != nil {
		return err
	}

	if err := s.blobs.Delete(ctx, ref); err != nil {
		s.logger.Warn("evidence blob delete failed",
			zap.Int64("issue_id", id),
			zap.String("ref", string(ref)),
			zap.Error(err))
	}
	s.publishEvent(ctx, events.Event{
		Type:    events.EventIssueEvidenceDetached,
		IssueID: id,
		Actor:   events.ActorOf(actor),
		Payload: events.EvidenceDetachedPayload{Slot: slot, Ref: ref},
	})
	return nil
}

func (s *IssueService) load(ctx context.Context, id int64) (*domain.Issue, error) {
	issue, err := s.issues.GetByID(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperrors.NewNotFound("issue", map[string]any{"id": id})
		}
		return nil, apperrors.NewStorageFailure(err, 0)
	}
	return issue, nil
}

func (s *IssueService) save(ctx context.Context, issue *domain.Issue) error {
	if err := s.issues.Update(ctx, issue); err != nil {
		if repository.IsNotFound(err) {
			return apperrors.NewNotFound("issue", map[string]any{"id": issue.ID})
		}
		return apperrors.NewStorageFailure(err, 0)
	}
	return nil
}

func (s *IssueService) rollback(ctx context.Context, batch *evidence.Batch) int {
	return rollbackEvidence(ctx, batch, s.logger)
}

func (s *IssueService) publishEvent(ctx context.Context, event events.Event) {
	publishEvent(ctx, s.dispatcher, s.logger, s.now(), event)
}

func requireActor(actor domain.Identity) error {
	if strings.TrimSpace(actor.ID) == "" {
		return apperrors.NewUnauthorized("identity required")
	}
	return nil
}

// canUpdate applies the ownership rule. Before resolution the reporter owns
// the issue and a regional manager may take it to Resolved or Maintenance;
// once resolved only the resolver may continue. Administrators always may.
func canUpdate(actor domain.Identity, issue *domain.Issue, target *domain.IssueStatus) bool {
	if actor.Admin() {
		return true
	}
	if issue.ResolvedBy != nil {
		return issue.ResolvedBy.ID == actor.ID
	}
	if issue.Reporter.ID == actor.ID {
		return true
	}
	if actor.Role == domain.RoleRegionalManager && target != nil {
		return *target == domain.IssueStatusResolved || *target == domain.IssueStatusMaintenance
	}
	return false
}

func validateCreate(input CreateIssueInput) error {
	var fields []string
	if input.Date.IsZero() {
		fields = append(fields, "date")
	}
	if input.DateIdentified.IsZero() {
		fields = append(fields, "dateIdentified")
	}
	if !input.Region.Valid() {
		fields = append(fields, "region")
	}
	if !input.Type.Valid() {
		fields = append(fields, "type")
	}
	if strings.TrimSpace(input.Station) == "" {
		fields = append(fields, "station")
	}
	if strings.TrimSpace(input.Details) == "" {
		fields = append(fields, "details")
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid issue submission", fields...)
	}
	return nil
}

// applyUpdate stages cmd onto issue. The issue must be a clone; on error it
// is discarded by the caller.
func applyUpdate(issue *domain.Issue, cmd UpdateIssueCommand, actor domain.Identity, now time.Time) error {
	var fields []string
	if cmd.Date != nil {
		if cmd.Date.IsZero() {
			fields = append(fields, "date")
		}
		issue.Date = *cmd.Date
		issue.Week = domain.WeekOfMonth(*cmd.Date)
	}
	if cmd.DateIdentified != nil {
		if cmd.DateIdentified.IsZero() {
			fields = append(fields, "dateIdentified")
		}
		issue.DateIdentified = *cmd.DateIdentified
	}
	if cmd.Region != nil {
		if !cmd.Region.Valid() {
			fields = append(fields, "region")
		}
		issue.Region = *cmd.Region
	}
	if cmd.Type != nil {
		if !cmd.Type.Valid() {
			fields = append(fields, "type")
		}
		issue.Type = *cmd.Type
	}
	if cmd.Station != nil {
		if strings.TrimSpace(*cmd.Station) == "" {
			fields = append(fields, "station")
		}
		issue.Station = strings.TrimSpace(*cmd.Station)
	}
	if cmd.Details != nil {
		if strings.TrimSpace(*cmd.Details) == "" {
			fields = append(fields, "details")
		}
		issue.Details = strings.TrimSpace(*cmd.Details)
	}
	setText(&issue.AreaManager, cmd.AreaManager)
	setText(&issue.RegionalManager, cmd.RegionalManager)
	setText(&issue.ProcessSpecialist, cmd.ProcessSpecialist)
	setText(&issue.LogNumber, cmd.LogNumber)
	setText(&issue.MaintenanceComment, cmd.MaintenanceComment)
	setText(&issue.ActionTaken, cmd.ActionTaken)
	setText(&issue.Feedback, cmd.Feedback)
	if cmd.IsPrioritized != nil {
		issue.IsPrioritized = *cmd.IsPrioritized
	}
	if len(fields) > 0 {
		return apperrors.NewValidationError("invalid issue update", fields...)
	}

	if cmd.Status == nil || *cmd.Status == issue.Status {
		return nil
	}
	return transition(issue, *cmd.Status, actor, now)
}

func transition(issue *domain.Issue, target domain.IssueStatus, actor domain.Identity, now time.Time) error {
	var err error
	switch target {
	case domain.IssueStatusResolved:
		err = issue.Resolve(actor, now)
	case domain.IssueStatusMaintenance:
		err = issue.MarkMaintenance()
	case domain.IssueStatusCancelled, domain.IssueStatusPending:
		return apperrors.NewValidationError("use the cancel toggle to cancel or reopen an issue", "status")
	default:
		return apperrors.NewValidationError("unknown status", "status")
	}

	switch {
	case err == nil:
		return nil
	case errors.Is(err, domain.ErrActionTakenRequired):
		return apperrors.NewValidationError(err.Error(), "actionTaken")
	case errors.Is(err, domain.ErrMaintenanceFieldsRequired):
		var missing []string
		if strings.TrimSpace(issue.LogNumber) == "" {
			missing = append(missing, "logNumber")
		}
		if strings.TrimSpace(issue.MaintenanceComment) == "" {
			missing = append(missing, "maintenanceComment")
		}
		return apperrors.NewValidationError(err.Error(), missing...)
	default:
		return apperrors.NewValidationError(err.Error(), "status")
	}
}

func setText(dst *string, v *string) {
	if v != nil {
		*dst = strings.TrimSpace(*v)
	}
}
