package service

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/events"
	"github.com/spec-kit/field-audit-service/internal/observability"
	"github.com/spec-kit/field-audit-service/internal/repository"
	apperrors "github.com/spec-kit/field-audit-service/pkg/util/errorutil"
)

// EscalationStatusStore persists the outcome of the latest escalation run.
type EscalationStatusStore interface {
	SaveRun(ctx context.Context, run domain.EscalationRun) error
	LastRun(ctx context.Context) (*domain.EscalationRun, error)
}

// EscalationService flags stale unresolved issues as prioritized.
type EscalationService struct {
	issues     repository.IssueRepository
	status     EscalationStatusStore
	dispatcher events.Dispatcher
	metrics    *observability.Metrics
	logger     *zap.Logger
	now        func() time.Time
	ageDays    int

	mu   sync.Mutex
	last *domain.EscalationRun
}

// EscalationDependencies bundles collaborators for the escalation service.
type EscalationDependencies struct {
	IssueRepo   repository.IssueRepository
	StatusStore EscalationStatusStore
	Dispatcher  events.Dispatcher
	Metrics     *observability.Metrics
	Logger      *zap.Logger
	Clock       func() time.Time
	Config      config.EscalationConfig
}

// NewEscalationService constructs the service.
func NewEscalationService(deps EscalationDependencies) *EscalationService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := deps.Clock
	if clock == nil {
		clock = time.Now
	}
	ageDays := deps.Config.AgeDays
	if ageDays <= 0 {
		ageDays = 2
	}
	return &EscalationService{
		issues:     deps.IssueRepo,
		status:     deps.StatusStore,
		dispatcher: deps.Dispatcher,
		metrics:    deps.Metrics,
		logger:     logger,
		now:        clock,
		ageDays:    ageDays,
	}
}

// EscalationCutoff is UTC midnight ageDays before now. Issues created
// strictly before it are stale.
func EscalationCutoff(now time.Time, ageDays int) time.Time {
	return domain.StartOfDay(now.UTC().AddDate(0, 0, -ageDays))
}

// RunEscalation performs one pass and returns how many issues it flagged.
// Re-running is a no-op for issues already flagged.
func (s *EscalationService) RunEscalation(ctx context.Context, trigger string) (domain.EscalationRun, error) {
	started := s.now()
	run := domain.EscalationRun{
		StartedAt: started,
		Cutoff:    EscalationCutoff(started, s.ageDays),
		Trigger:   trigger,
	}

	updated, err := s.issues.EscalateStale(ctx, run.Cutoff)
	run.FinishedAt = s.now()
	run.Updated = updated
	s.metrics.RecordEscalation(updated, err)
	if err != nil {
		run.Error = err.Error()
		s.logger.Error("escalation run failed",
			zap.String("trigger", trigger),
			zap.Time("cutoff", run.Cutoff),
			zap.Error(err))
		s.remember(ctx, run)
		return run, apperrors.NewStorageFailure(err, 0)
	}

	s.logger.Info("escalation run completed",
		zap.String("trigger", trigger),
		zap.Time("cutoff", run.Cutoff),
		zap.Int64("updated", updated))
	s.remember(ctx, run)
	if updated > 0 {
		publishEvent(ctx, s.dispatcher, s.logger, run.FinishedAt, events.Event{
			Type:    events.EventIssuesEscalated,
			Payload: events.IssuesEscalatedPayload{Cutoff: run.Cutoff, Updated: updated},
		})
	}
	return run, nil
}

// LastRun returns the most recent run, preferring the shared status store.
func (s *EscalationService) LastRun(ctx context.Context) (*domain.EscalationRun, error) {
	if s.status != nil {
		run, err := s.status.LastRun(ctx)
		if err == nil && run != nil {
			return run, nil
		}
		if err != nil {
			s.logger.Warn("escalation status unavailable", zap.Error(err))
		}
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.last == nil {
		return nil, apperrors.NewNotFound("escalation run", nil)
	}
	run := *s.last
	return &run, nil
}

func (s *EscalationService) remember(ctx context.Context, run domain.EscalationRun) {
	s.mu.Lock()
	s.last = &run
	s.mu.Unlock()

	if s.status == nil {
		return
	}
	if err := s.status.SaveRun(ctx, run); err != nil {
		s.logger.Warn("escalation status not saved", zap.Error(err))
	}
}
