package banking

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/infrastructure/telemetry"
)

const (
	// categorizeBatchSize bounds one categorization run
	categorizeBatchSize = 100

	// autoProcessThreshold finalizes a transaction without human review
	autoProcessThreshold = 0.8

	// suggestThreshold sets the category but keeps the row pending review
	suggestThreshold = 0.5

	// backlogTenantLimit bounds how many tenants one backlog sweep visits
	backlogTenantLimit = 200
)

// CategorizationService runs the confidence-scored categorization engine
// over ingested transactions and applies manual overrides.
type CategorizationService struct {
	transactionRepo banking.BankTransactionRepository
	categorizer     *banking.Categorizer
	metrics         *telemetry.BankingMetrics
	logger          *zap.Logger
}

// NewCategorizationService creates a new CategorizationService. Metrics
// may be nil.
func NewCategorizationService(
	transactionRepo banking.BankTransactionRepository,
	categorizer *banking.Categorizer,
	metrics *telemetry.BankingMetrics,
	logger *zap.Logger,
) *CategorizationService {
	return &CategorizationService{
		transactionRepo: transactionRepo,
		categorizer:     categorizer,
		metrics:         metrics,
		logger:          logger,
	}
}

// CategorizeResult reports one batch categorization run
type CategorizeResult struct {
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"` // Auto-finalized, confidence >= 0.8
	Pending   int `json:"pending"`   // Category suggested, needs review
	Skipped   int `json:"skipped"`   // No signal or confidence < 0.5
}

// TransactionResult is the client-facing view of a categorized transaction
type TransactionResult struct {
	ID                 uuid.UUID                `json:"id"`
	ExternalID         string                   `json:"external_id"`
	CategoryCode       *string                  `json:"category_code,omitempty"`
	CategoryName       string                   `json:"category_name,omitempty"`
	CategoryConfidence *float64                 `json:"category_confidence,omitempty"`
	ProcessingStatus   banking.ProcessingStatus `json:"processing_status"`
}

// CategorizeNew scans up to one batch of NEW uncategorized transactions
// and applies the confidence thresholds: >= 0.8 finalizes, [0.5, 0.8)
// suggests and leaves the row pending, below 0.5 the row is untouched.
func (s *CategorizationService) CategorizeNew(ctx context.Context, tenantID uuid.UUID, accountID *uuid.UUID) (*CategorizeResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_categorization", "categorize_new")
	defer span.End()

	telemetry.SetAttributes(span, telemetry.SpanAttrTenantID, tenantID.String())

	transactions, err := s.transactionRepo.FindNewUncategorized(ctx, tenantID, accountID, categorizeBatchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load uncategorized transactions: %w", err)
	}

	result := &CategorizeResult{Scanned: len(transactions)}

	for i := range transactions {
		tx := &transactions[i]

		categorization, err := s.categorizer.AutoCategorize(ctx, tx)
		if err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("categorization failed: %w", err)
		}

		if categorization == nil || categorization.Confidence < suggestThreshold {
			result.Skipped++
			s.recordOutcome(ctx, "skipped")
			continue
		}

		trusted := categorization.Confidence >= autoProcessThreshold
		tx.ApplyAutoCategory(categorization.CategoryCode, categorization.Confidence, trusted)
		if err := s.transactionRepo.Save(ctx, tx); err != nil {
			telemetry.RecordError(span, err)
			return nil, fmt.Errorf("failed to save transaction: %w", err)
		}

		if trusted {
			result.Processed++
			s.recordOutcome(ctx, "processed")
		} else {
			result.Pending++
			s.recordOutcome(ctx, "pending")
		}
	}

	s.logger.Info("Categorization batch finished",
		zap.String("tenant_id", tenantID.String()),
		zap.Int("scanned", result.Scanned),
		zap.Int("processed", result.Processed),
		zap.Int("pending", result.Pending),
		zap.Int("skipped", result.Skipped))

	return result, nil
}

// BacklogResult reports one cross-tenant backlog sweep
type BacklogResult struct {
	Tenants   int `json:"tenants"`
	Failed    int `json:"failed"`
	Scanned   int `json:"scanned"`
	Processed int `json:"processed"`
	Pending   int `json:"pending"`
	Skipped   int `json:"skipped"`
}

// CategorizeBacklog runs one categorization batch for every tenant that
// still has uncategorized NEW transactions. A failing tenant does not
// stop the sweep.
func (s *CategorizationService) CategorizeBacklog(ctx context.Context) (*BacklogResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_categorization", "categorize_backlog")
	defer span.End()

	tenantIDs, err := s.transactionRepo.FindTenantsWithUncategorized(ctx, backlogTenantLimit)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to list tenants with backlog: %w", err)
	}

	result := &BacklogResult{Tenants: len(tenantIDs)}

	for _, tenantID := range tenantIDs {
		batch, err := s.CategorizeNew(ctx, tenantID, nil)
		if err != nil {
			result.Failed++
			s.logger.Error("Backlog categorization failed for tenant",
				zap.String("tenant_id", tenantID.String()),
				zap.Error(err))
			continue
		}
		result.Scanned += batch.Scanned
		result.Processed += batch.Processed
		result.Pending += batch.Pending
		result.Skipped += batch.Skipped
	}

	return result, nil
}

// ApplyCategory is the manual override path; it always finalizes the
// transaction. Codes outside the built-in table are allowed so operators
// can keep their own categories.
func (s *CategorizationService) ApplyCategory(ctx context.Context, tenantID, transactionID uuid.UUID, categoryCode string) (*TransactionResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_categorization", "apply_category")
	defer span.End()

	if categoryCode == "" {
		err := shared.NewDomainError("INVALID_CATEGORY", "Category code cannot be empty")
		telemetry.RecordError(span, err)
		return nil, err
	}

	tx, err := s.transactionRepo.FindByIDForTenant(ctx, tenantID, transactionID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get transaction: %w", err)
	}

	tx.ApplyManualCategory(categoryCode)
	if err := s.transactionRepo.Save(ctx, tx); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save transaction: %w", err)
	}

	return toTransactionResult(tx), nil
}

func (s *CategorizationService) recordOutcome(ctx context.Context, outcome string) {
	if s.metrics != nil {
		s.metrics.RecordCategorization(ctx, outcome)
	}
}

func toTransactionResult(tx *banking.BankTransaction) *TransactionResult {
	result := &TransactionResult{
		ID:                 tx.GetID(),
		ExternalID:         tx.ExternalID,
		CategoryCode:       tx.CategoryCode,
		CategoryConfidence: tx.CategoryConfidence,
		ProcessingStatus:   tx.ProcessingStatus,
	}
	if tx.CategoryCode != nil {
		result.CategoryName = banking.CategoryName(*tx.CategoryCode)
	}
	return result
}
