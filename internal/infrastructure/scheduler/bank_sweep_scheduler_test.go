package scheduler

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	appbanking "github.com/bankbridge/backend/internal/application/banking"
)

type fakePaymentSyncer struct {
	calls atomic.Int32
	err   error
}

func (f *fakePaymentSyncer) SyncStatuses(ctx context.Context) (*appbanking.StatusSweepResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &appbanking.StatusSweepResult{Polled: 2, Advanced: 1, Resolved: 1}, nil
}

type fakeCategorizer struct {
	calls atomic.Int32
	err   error
}

func (f *fakeCategorizer) CategorizeBacklog(ctx context.Context) (*appbanking.BacklogResult, error) {
	f.calls.Add(1)
	if f.err != nil {
		return nil, f.err
	}
	return &appbanking.BacklogResult{Tenants: 1, Scanned: 3, Processed: 2, Pending: 1}, nil
}

func testConfig() BankSweepSchedulerConfig {
	return BankSweepSchedulerConfig{
		Enabled:               true,
		PaymentStatusInterval: 10 * time.Millisecond,
		CategorizeInterval:    10 * time.Millisecond,
		SweepTimeout:          time.Second,
	}
}

func TestBankSweepSchedulerConfig_Validate(t *testing.T) {
	cfg := DefaultBankSweepSchedulerConfig()
	require.NoError(t, cfg.Validate())

	cfg.PaymentStatusInterval = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultBankSweepSchedulerConfig()
	cfg.CategorizeInterval = -time.Second
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)

	cfg = DefaultBankSweepSchedulerConfig()
	cfg.SweepTimeout = 0
	assert.ErrorIs(t, cfg.Validate(), ErrInvalidConfig)
}

func TestBankSweepScheduler_RunsBothSweeps(t *testing.T) {
	payments := &fakePaymentSyncer{}
	categorizer := &fakeCategorizer{}

	s, err := NewBankSweepScheduler(testConfig(), payments, categorizer, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.True(t, s.IsRunning())

	assert.Eventually(t, func() bool {
		return payments.calls.Load() >= 2 && categorizer.calls.Load() >= 2
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
	assert.False(t, s.IsRunning())
}

func TestBankSweepScheduler_SweepErrorDoesNotStopLoop(t *testing.T) {
	payments := &fakePaymentSyncer{err: errors.New("bank unavailable")}
	categorizer := &fakeCategorizer{}

	s, err := NewBankSweepScheduler(testConfig(), payments, categorizer, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))

	assert.Eventually(t, func() bool {
		return payments.calls.Load() >= 3
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}

func TestBankSweepScheduler_Disabled(t *testing.T) {
	cfg := testConfig()
	cfg.Enabled = false

	payments := &fakePaymentSyncer{}
	categorizer := &fakeCategorizer{}

	s, err := NewBankSweepScheduler(cfg, payments, categorizer, zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, s.Start(context.Background()))
	assert.False(t, s.IsRunning())

	time.Sleep(30 * time.Millisecond)
	assert.Zero(t, payments.calls.Load())
	assert.Zero(t, categorizer.calls.Load())
}

func TestBankSweepScheduler_TriggerRequiresRunning(t *testing.T) {
	s, err := NewBankSweepScheduler(testConfig(), &fakePaymentSyncer{}, &fakeCategorizer{}, zap.NewNop())
	require.NoError(t, err)

	assert.ErrorIs(t, s.TriggerPaymentStatusSweep(context.Background()), ErrSchedulerNotRunning)
	assert.ErrorIs(t, s.TriggerCategorizeSweep(context.Background()), ErrSchedulerNotRunning)
}

func TestBankSweepScheduler_TriggerImmediate(t *testing.T) {
	payments := &fakePaymentSyncer{}
	categorizer := &fakeCategorizer{}

	cfg := testConfig()
	cfg.PaymentStatusInterval = time.Hour
	cfg.CategorizeInterval = time.Hour

	s, err := NewBankSweepScheduler(cfg, payments, categorizer, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, s.Start(context.Background()))

	require.NoError(t, s.TriggerPaymentStatusSweep(context.Background()))
	require.NoError(t, s.TriggerCategorizeSweep(context.Background()))

	assert.Eventually(t, func() bool {
		return payments.calls.Load() == 1 && categorizer.calls.Load() == 1
	}, time.Second, 5*time.Millisecond)

	stopCtx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	require.NoError(t, s.Stop(stopCtx))
}
