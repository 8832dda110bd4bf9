package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/domain"
)

// TriggerSchedule marks runs started by the cron schedule.
const TriggerSchedule = "schedule"

// Escalator runs one escalation pass.
type Escalator interface {
	RunEscalation(ctx context.Context, trigger string) (domain.EscalationRun, error)
}

// EscalationWorker drives periodic escalation on a cron schedule.
type EscalationWorker struct {
	cron      *cron.Cron
	escalator Escalator
	logger    *zap.Logger
	timeout   time.Duration
}

// NewEscalationWorker parses the schedule and registers the job. The worker
// does nothing until Start is called.
func NewEscalationWorker(cfg config.EscalationConfig, escalator Escalator, logger *zap.Logger) (*EscalationWorker, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &EscalationWorker{
		cron:      cron.New(cron.WithLocation(time.UTC)),
		escalator: escalator,
		logger:    logger,
		timeout:   time.Minute,
	}
	if _, err := w.cron.AddFunc(cfg.Schedule, w.tick); err != nil {
		return nil, fmt.Errorf("parse escalation schedule %q: %w", cfg.Schedule, err)
	}
	return w, nil
}

// Start begins the schedule in the background.
func (w *EscalationWorker) Start() {
	w.cron.Start()
	for _, entry := range w.cron.Entries() {
		w.logger.Info("escalation worker started", zap.Time("next_run", entry.Next))
	}
}

// Stop halts the schedule and waits for a running pass, bounded by ctx.
func (w *EscalationWorker) Stop(ctx context.Context) {
	select {
	case <-w.cron.Stop().Done():
	case <-ctx.Done():
		w.logger.Warn("escalation worker stop timed out")
	}
}

// RunOnce performs a single scheduled pass synchronously.
func (w *EscalationWorker) RunOnce(ctx context.Context) (domain.EscalationRun, error) {
	ctx, cancel := context.WithTimeout(ctx, w.timeout)
	defer cancel()
	return w.escalator.RunEscalation(ctx, TriggerSchedule)
}

func (w *EscalationWorker) tick() {
	if _, err := w.RunOnce(context.Background()); err != nil {
		w.logger.Error("scheduled escalation failed", zap.Error(err))
	}
}
