package evidence

import (
	"context"

	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/domain"
	"github.com/spec-kit/field-audit-service/internal/observability"
)

// Batch tracks the blobs saved during one mutation so they can be rolled back
// if a later step fails.
type Batch struct {
	store   BlobStore
	logger  *zap.Logger
	metrics *observability.Metrics
	saved   []domain.EvidenceRef
}

// NewBatch starts an empty batch over store.
func NewBatch(store BlobStore, logger *zap.Logger, metrics *observability.Metrics) *Batch {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Batch{store: store, logger: logger, metrics: metrics}
}

// Attach saves uploads into slot and returns existing with the new references
// appended in upload order. On error the blobs saved so far stay tracked for
// Rollback.
func (b *Batch) Attach(ctx context.Context, slot domain.EvidenceSlot, existing []domain.EvidenceRef, uploads []Upload) ([]domain.EvidenceRef, error) {
	refs := append([]domain.EvidenceRef(nil), existing...)
	for _, upload := range uploads {
		ref, err := b.store.Save(ctx, slot, upload)
		b.metrics.RecordUpload(string(slot), err)
		if err != nil {
			b.logger.Warn("evidence upload failed",
				zap.String("slot", string(slot)),
				zap.String("filename", upload.Filename),
				zap.Error(err))
			return nil, err
		}
		b.saved = append(b.saved, ref)
		refs = append(refs, ref)
	}
	return refs, nil
}

// Saved lists the references written by this batch.
func (b *Batch) Saved() []domain.EvidenceRef {
	return append([]domain.EvidenceRef(nil), b.saved...)
}

// Rollback deletes every blob saved by this batch and returns how many were removed.
func (b *Batch) Rollback(ctx context.Context) int {
	removed := 0
	for _, ref := range b.saved {
		if err := b.store.Delete(ctx, ref); err != nil {
			b.logger.Error("evidence rollback failed", zap.String("ref", string(ref)), zap.Error(err))
			continue
		}
		removed++
	}
	b.saved = nil
	b.metrics.RecordRollback(removed)
	return removed
}

// Detach removes the first occurrence of ref from refs.
func Detach(refs []domain.EvidenceRef, ref domain.EvidenceRef) ([]domain.EvidenceRef, bool) {
	for i, candidate := range refs {
		if candidate == ref {
			out := make([]domain.EvidenceRef, 0, len(refs)-1)
			out = append(out, refs[:i]...)
			return append(out, refs[i+1:]...), true
		}
	}
	return refs, false
}
