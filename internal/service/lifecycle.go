package service

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/events"
	"github.com/spec-kit/field-audit-service/internal/evidence"
)

// publishEvent stamps event with an id and time and dispatches it. Handler
// failures are logged and never reach the caller.
func publishEvent(ctx context.Context, dispatcher events.Dispatcher, logger *zap.Logger, now time.Time, event events.Event) {
	if dispatcher == nil {
		return
	}
	if event.ID == "" {
		event.ID = uuid.NewString()
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = now
	}
	if err := dispatcher.Publish(ctx, event); err != nil {
		logger.Warn("event handler failed", zap.String("event_type", string(event.Type)), zap.Error(err))
	}
}

// rollbackEvidence removes the blobs a failed mutation already stored.
func rollbackEvidence(ctx context.Context, batch *evidence.Batch, logger *zap.Logger) int {
	saved := len(batch.Saved())
	if saved == 0 {
		return 0
	}
	removed := batch.Rollback(context.WithoutCancel(ctx))
	logger.Warn("evidence rolled back", zap.Int("saved", saved), zap.Int("removed", removed))
	return removed
}

// purgeEvidence deletes every blob in refs, logging each failure against owner.
func purgeEvidence(ctx context.Context, blobs evidence.BlobStore, logger *zap.Logger, refs []domain.EvidenceRef, owner zap.Field) (deleted, failed int) {
	for _, ref := range refs {
		if err := blobs.Delete(ctx, ref); err != nil {
			failed++
			logger.Warn("evidence cleanup failed", owner, zap.String("ref", string(ref)), zap.Error(err))
			continue
		}
		deleted++
	}
	return deleted, failed
}
