package scheduler_test

import (
	"context"
	"testing"
	"time"

	"github.com/finmate/finmate/internal/finlife"
	"github.com/finmate/finmate/internal/scheduler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type stubSyncer struct {
	ran chan struct{}
}

func (s *stubSyncer) SyncAll(ctx context.Context) *finlife.AllResult {
	select {
	case s.ran <- struct{}{}:
	default:
	}
	return &finlife.AllResult{DepositProducts: true}
}

func TestSchedulerRunsSync(t *testing.T) {
	syncer := &stubSyncer{ran: make(chan struct{}, 1)}
	s, err := scheduler.New(zap.NewNop(), "@every 1s", syncer, time.Second)
	require.NoError(t, err)
	require.NoError(t, s.Start())
	defer s.Stop()

	assert.False(t, s.Next().IsZero())
	select {
	case <-syncer.ran:
	case <-time.After(3 * time.Second):
		t.Fatal("sync did not run")
	}
}

func TestSchedulerRejectsBadSpec(t *testing.T) {
	_, err := scheduler.New(zap.NewNop(), "every tuesday", &stubSyncer{}, 0)
	assert.Error(t, err)
}
