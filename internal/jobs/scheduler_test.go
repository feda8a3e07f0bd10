package jobs

import (
	"context"
	"errors"
	"testing"
	"time"

	"whatsdesk/internal/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockSyncer struct{ mock.Mock }

func (m *mockSyncer) SyncStatuses(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockPurger struct{ mock.Mock }

func (m *mockPurger) PurgeBefore(ctx context.Context, before time.Time) (int64, error) {
	args := m.Called(ctx, before)
	return args.Get(0).(int64), args.Error(1)
}

func testJobsConfig() config.JobsConfig {
	return config.JobsConfig{
		StatusSyncSpec:   "@every 1m",
		WebhookPurgeSpec: "@daily",
		WebhookRetention: 7 * 24 * time.Hour,
	}
}

func TestPurgeWebhooks_UsesRetention(t *testing.T) {
	purger := &mockPurger{}
	purger.On("PurgeBefore", mock.Anything, mock.MatchedBy(func(before time.Time) bool {
		age := time.Since(before)
		return age > 7*24*time.Hour-time.Minute && age < 7*24*time.Hour+time.Minute
	})).Return(int64(3), nil)

	s := NewScheduler(testJobsConfig(), &mockSyncer{}, purger, zap.NewNop())

	require.NoError(t, s.PurgeWebhooks(context.Background()))
	purger.AssertExpectations(t)
}

func TestSyncStatuses_PropagatesError(t *testing.T) {
	syncer := &mockSyncer{}
	syncer.On("SyncStatuses", mock.Anything).Return(0, errors.New("db down"))

	s := NewScheduler(testJobsConfig(), syncer, &mockPurger{}, zap.NewNop())

	assert.Error(t, s.SyncStatuses(context.Background()))
}

func TestStart_RejectsBadSpec(t *testing.T) {
	cfg := testJobsConfig()
	cfg.StatusSyncSpec = "not a spec"

	s := NewScheduler(cfg, &mockSyncer{}, &mockPurger{}, zap.NewNop())

	assert.Error(t, s.Start())
}

func TestWrap_RecoversPanic(t *testing.T) {
	s := NewScheduler(testJobsConfig(), &mockSyncer{}, &mockPurger{}, zap.NewNop())

	assert.NotPanics(t, func() {
		s.wrap("boom", func(ctx context.Context) error { panic("boom") })()
	})
}
