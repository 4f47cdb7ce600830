package scheduler

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	appbanking "github.com/bankbridge/backend/internal/application/banking"
)

// PaymentStatusSyncer polls the bank for in-flight payment orders
type PaymentStatusSyncer interface {
	SyncStatuses(ctx context.Context) (*appbanking.StatusSweepResult, error)
}

// BacklogCategorizer categorizes uncategorized transactions across tenants
type BacklogCategorizer interface {
	CategorizeBacklog(ctx context.Context) (*appbanking.BacklogResult, error)
}

// BankSweepSchedulerConfig holds configuration for the background sweeps
type BankSweepSchedulerConfig struct {
	// Enabled determines if the scheduler is active
	Enabled bool

	// PaymentStatusInterval is how often in-flight payment orders are polled
	PaymentStatusInterval time.Duration

	// CategorizeInterval is how often the categorization backlog is drained
	CategorizeInterval time.Duration

	// SweepTimeout is the maximum time one sweep run may take
	SweepTimeout time.Duration
}

// DefaultBankSweepSchedulerConfig returns default configuration
func DefaultBankSweepSchedulerConfig() BankSweepSchedulerConfig {
	return BankSweepSchedulerConfig{
		Enabled:               true,
		PaymentStatusInterval: 5 * time.Minute,
		CategorizeInterval:    10 * time.Minute,
		SweepTimeout:          5 * time.Minute,
	}
}

// Validate validates the configuration
func (c *BankSweepSchedulerConfig) Validate() error {
	if c.PaymentStatusInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.CategorizeInterval <= 0 {
		return ErrInvalidConfig
	}
	if c.SweepTimeout <= 0 {
		return ErrInvalidConfig
	}
	return nil
}

// BankSweepScheduler drives the two recurring bank jobs: the payment
// order status sweep and the transaction categorization backlog sweep.
type BankSweepScheduler struct {
	config      BankSweepSchedulerConfig
	payments    PaymentStatusSyncer
	categorizer BacklogCategorizer
	logger      *zap.Logger

	cancel    context.CancelFunc
	wg        sync.WaitGroup
	mu        sync.Mutex
	isRunning bool
}

// NewBankSweepScheduler creates a new bank sweep scheduler
func NewBankSweepScheduler(
	config BankSweepSchedulerConfig,
	payments PaymentStatusSyncer,
	categorizer BacklogCategorizer,
	logger *zap.Logger,
) (*BankSweepScheduler, error) {
	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &BankSweepScheduler{
		config:      config,
		payments:    payments,
		categorizer: categorizer,
		logger:      logger,
	}, nil
}

// Start starts the scheduler
func (s *BankSweepScheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}
	if !s.config.Enabled {
		s.mu.Unlock()
		s.logger.Info("Bank sweep scheduler is disabled")
		return nil
	}
	s.isRunning = true
	s.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.wg.Add(2)
	go s.runPaymentStatusSweeps(ctx)
	go s.runCategorizeSweeps(ctx)

	s.logger.Info("Bank sweep scheduler started",
		zap.Duration("payment_status_interval", s.config.PaymentStatusInterval),
		zap.Duration("categorize_interval", s.config.CategorizeInterval),
	)

	return nil
}

// Stop gracefully stops the scheduler
func (s *BankSweepScheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}
	s.isRunning = false
	s.mu.Unlock()

	if s.cancel != nil {
		s.cancel()
	}

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("Bank sweep scheduler stopped gracefully")
		return nil
	case <-ctx.Done():
		s.logger.Warn("Bank sweep scheduler stop timed out")
		return ctx.Err()
	}
}

// IsRunning returns whether the scheduler is running
func (s *BankSweepScheduler) IsRunning() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.isRunning
}

// runPaymentStatusSweeps polls in-flight payment orders on a fixed interval
func (s *BankSweepScheduler) runPaymentStatusSweeps(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.PaymentStatusInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Payment status sweep loop stopping")
			return
		case <-ticker.C:
			s.executePaymentStatusSweep(ctx)
		}
	}
}

// runCategorizeSweeps drains the categorization backlog on a fixed interval
func (s *BankSweepScheduler) runCategorizeSweeps(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.config.CategorizeInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Debug("Categorization sweep loop stopping")
			return
		case <-ticker.C:
			s.executeCategorizeSweep(ctx)
		}
	}
}

func (s *BankSweepScheduler) executePaymentStatusSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.payments.SyncStatuses(sweepCtx)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Payment status sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Payment status sweep completed",
		zap.Duration("duration", duration),
		zap.Int("polled", result.Polled),
		zap.Int("advanced", result.Advanced),
		zap.Int("resolved", result.Resolved),
		zap.Int("failed", result.Failed),
	)
}

func (s *BankSweepScheduler) executeCategorizeSweep(ctx context.Context) {
	sweepCtx, cancel := context.WithTimeout(ctx, s.config.SweepTimeout)
	defer cancel()

	startTime := time.Now()
	result, err := s.categorizer.CategorizeBacklog(sweepCtx)
	duration := time.Since(startTime)

	if err != nil {
		s.logger.Error("Categorization sweep failed",
			zap.Duration("duration", duration),
			zap.Error(err),
		)
		return
	}

	s.logger.Info("Categorization sweep completed",
		zap.Duration("duration", duration),
		zap.Int("tenants", result.Tenants),
		zap.Int("failed", result.Failed),
		zap.Int("scanned", result.Scanned),
		zap.Int("processed", result.Processed),
		zap.Int("pending", result.Pending),
		zap.Int("skipped", result.Skipped),
	)
}

// TriggerPaymentStatusSweep triggers an immediate payment status sweep
func (s *BankSweepScheduler) TriggerPaymentStatusSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.executePaymentStatusSweep(ctx)
	}()

	return nil
}

// TriggerCategorizeSweep triggers an immediate categorization sweep
func (s *BankSweepScheduler) TriggerCategorizeSweep(ctx context.Context) error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return ErrSchedulerNotRunning
	}
	s.wg.Add(1)
	s.mu.Unlock()

	go func() {
		defer s.wg.Done()
		s.executeCategorizeSweep(ctx)
	}()

	return nil
}
