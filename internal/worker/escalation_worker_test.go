package worker

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/domain"
)

type stubEscalator struct {
	calls    atomic.Int32
	triggers chan string
	err      error
}

func (s *stubEscalator) RunEscalation(ctx context.Context, trigger string) (domain.EscalationRun, error) {
	s.calls.Add(1)
	if s.triggers != nil {
		s.triggers <- trigger
	}
	if _, ok := ctx.Deadline(); !ok {
		return domain.EscalationRun{}, errors.New("missing deadline")
	}
	return domain.EscalationRun{Trigger: trigger, Updated: 1}, s.err
}

func TestNewEscalationWorkerRejectsBadSchedule(t *testing.T) {
	_, err := NewEscalationWorker(config.EscalationConfig{Schedule: "every now and then"}, &stubEscalator{}, nil)
	assert.Error(t, err)
}

func TestEscalationWorkerRunOnce(t *testing.T) {
	stub := &stubEscalator{}
	w, err := NewEscalationWorker(config.EscalationConfig{Schedule: "0 */6 * * *"}, stub, nil)
	require.NoError(t, err)

	run, err := w.RunOnce(context.Background())
	require.NoError(t, err)
	assert.Equal(t, TriggerSchedule, run.Trigger)
	assert.Equal(t, int32(1), stub.calls.Load())
}

func TestEscalationWorkerFiresOnSchedule(t *testing.T) {
	stub := &stubEscalator{triggers: make(chan string, 4)}
	w, err := NewEscalationWorker(config.EscalationConfig{Schedule: "@every 1s"}, stub, nil)
	require.NoError(t, err)

	w.Start()
	select {
	case trigger := <-stub.triggers:
		assert.Equal(t, TriggerSchedule, trigger)
	case <-time.After(5 * time.Second):
		t.Fatal("escalation did not fire")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	w.Stop(ctx)
}
