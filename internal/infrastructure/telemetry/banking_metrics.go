// This file contains the business metrics for bank connectivity.
package telemetry

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// BankingMetrics tracks sync activity, categorization outcomes, token
// refreshes and payment submissions.
type BankingMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	syncRunsTotal        *Counter
	transactionsIngested *Counter
	categorizationsTotal *Counter
	tokenRefreshesTotal  *Counter
	paymentsSubmitted    *Counter
	syncDurationSeconds  *Histogram
}

// NewBankingMetrics creates a new BankingMetrics instance.
func NewBankingMetrics(meter metric.Meter, logger *zap.Logger) (*BankingMetrics, error) {
	if meter == nil {
		return nil, ErrMeterNil
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	bm := &BankingMetrics{
		meter:  meter,
		logger: logger,
	}

	var err error
	bm.syncRunsTotal, err = NewCounter(meter,
		"bankbridge_sync_runs_total",
		"Total number of bank sync runs",
		"{runs}")
	if err != nil {
		return nil, err
	}

	bm.transactionsIngested, err = NewCounter(meter,
		"bankbridge_transactions_ingested_total",
		"Total number of bank statement operations ingested",
		"{transactions}")
	if err != nil {
		return nil, err
	}

	bm.categorizationsTotal, err = NewCounter(meter,
		"bankbridge_categorizations_total",
		"Total number of automatic categorization attempts",
		"{transactions}")
	if err != nil {
		return nil, err
	}

	bm.tokenRefreshesTotal, err = NewCounter(meter,
		"bankbridge_token_refreshes_total",
		"Total number of OAuth token refresh attempts",
		"{refreshes}")
	if err != nil {
		return nil, err
	}

	bm.paymentsSubmitted, err = NewCounter(meter,
		"bankbridge_payments_submitted_total",
		"Total number of payment orders submitted to banks",
		"{payments}")
	if err != nil {
		return nil, err
	}

	bm.syncDurationSeconds, err = NewHistogram(meter,
		"bankbridge_sync_duration_seconds",
		"Duration of bank sync runs",
		"s")
	if err != nil {
		return nil, err
	}

	return bm, nil
}

// RecordSyncRun records a completed sync run and its duration.
func (m *BankingMetrics) RecordSyncRun(ctx context.Context, bankCode, operation string, success bool, duration time.Duration) {
	attrs := []attribute.KeyValue{
		attribute.String("bank_code", bankCode),
		attribute.String("operation", operation),
		attribute.Bool("success", success),
	}
	m.syncRunsTotal.Inc(ctx, attrs...)
	m.syncDurationSeconds.Record(ctx, duration.Seconds(), attrs...)
}

// RecordTransactionsIngested records ingested operations split by outcome.
func (m *BankingMetrics) RecordTransactionsIngested(ctx context.Context, bankCode string, created, updated int) {
	if created > 0 {
		m.transactionsIngested.Add(ctx, int64(created),
			attribute.String("bank_code", bankCode),
			attribute.String("outcome", "created"))
	}
	if updated > 0 {
		m.transactionsIngested.Add(ctx, int64(updated),
			attribute.String("bank_code", bankCode),
			attribute.String("outcome", "updated"))
	}
}

// RecordCategorization records one automatic categorization attempt.
// Outcome is "processed", "pending" or "skipped".
func (m *BankingMetrics) RecordCategorization(ctx context.Context, outcome string) {
	m.categorizationsTotal.Inc(ctx, attribute.String("outcome", outcome))
}

// RecordTokenRefresh records one proactive token refresh attempt.
func (m *BankingMetrics) RecordTokenRefresh(ctx context.Context, bankCode string, success bool) {
	m.tokenRefreshesTotal.Inc(ctx,
		attribute.String("bank_code", bankCode),
		attribute.Bool("success", success))
}

// RecordPaymentSubmitted records one payment submission attempt.
func (m *BankingMetrics) RecordPaymentSubmitted(ctx context.Context, bankCode string, success bool) {
	m.paymentsSubmitted.Inc(ctx,
		attribute.String("bank_code", bankCode),
		attribute.Bool("success", success))
}
