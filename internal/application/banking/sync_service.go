package banking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/infrastructure/telemetry"
)

// StatementArchiver stores raw statement payloads for audit and replay.
// Archival is best-effort: a failed archive is logged, never fails a sync.
type StatementArchiver interface {
	ArchiveStatement(ctx context.Context, tenantID, integrationID uuid.UUID, accountNumber string, fetchedAt time.Time, payload []byte) error
}

// SyncService pulls bank statements and balances into the local store.
// Re-running a sync over an overlapping window is safe: operations are
// upserted by (tenant, external id), so duplicates collapse instead of
// multiplying.
type SyncService struct {
	integrationRepo banking.BankIntegrationRepository
	accountRepo     banking.BankAccountRepository
	transactionRepo banking.BankTransactionRepository
	syncLogRepo     banking.BankSyncLogRepository
	providers       banking.BankProviderRegistry
	tokens          *TokenService
	archiver        StatementArchiver // Optional
	metrics         *telemetry.BankingMetrics
	logger          *zap.Logger
	now             func() time.Time
}

// NewSyncService creates a new SyncService. The archiver and metrics may
// be nil.
func NewSyncService(
	integrationRepo banking.BankIntegrationRepository,
	accountRepo banking.BankAccountRepository,
	transactionRepo banking.BankTransactionRepository,
	syncLogRepo banking.BankSyncLogRepository,
	providers banking.BankProviderRegistry,
	tokens *TokenService,
	archiver StatementArchiver,
	metrics *telemetry.BankingMetrics,
	logger *zap.Logger,
) *SyncService {
	return &SyncService{
		integrationRepo: integrationRepo,
		accountRepo:     accountRepo,
		transactionRepo: transactionRepo,
		syncLogRepo:     syncLogRepo,
		providers:       providers,
		tokens:          tokens,
		archiver:        archiver,
		metrics:         metrics,
		logger:          logger,
		now:             time.Now,
	}
}

// SyncResult reports the outcome of one sync run
type SyncResult struct {
	IntegrationID uuid.UUID             `json:"integration_id"`
	AccountID     *uuid.UUID            `json:"account_id,omitempty"`
	Operation     banking.SyncOperation `json:"operation"`
	Processed     int                   `json:"processed"`
	Created       int                   `json:"created"`
	Updated       int                   `json:"updated"`
}

// SyncTransactions pulls the statement for one account over a date window
// and upserts every operation. The audit log row is opened in STARTED
// state before any network call so partial failures are always visible.
func (s *SyncService) SyncTransactions(ctx context.Context, tenantID, integrationID, accountID uuid.UUID, from, to time.Time) (*SyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_sync", "sync_transactions")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrIntegrationID, integrationID.String(),
		telemetry.SpanAttrAccountID, accountID.String(),
	)

	started := s.now()

	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	account, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, accountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get account: %w", err)
	}
	if account.IntegrationID != integrationID {
		err := shared.NewDomainError("ACCOUNT_MISMATCH", "Account does not belong to this integration")
		telemetry.RecordError(span, err)
		return nil, err
	}

	syncLog := banking.NewBankSyncLog(tenantID, integrationID, banking.SyncOperationTransactions)
	if err := s.syncLogRepo.Save(ctx, syncLog); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to open sync log: %w", err)
	}

	token, err := s.tokens.EnsureValidTokenFor(ctx, integration)
	if err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	statement, err := provider.FetchStatement(ctx, token, integration.Sandbox, account.AccountNumber, from, to)
	if err != nil {
		// Full response detail stays in the log; callers get the wrapped error
		s.logger.Error("Statement fetch failed",
			zap.String("integration_id", integrationID.String()),
			zap.String("account_number", account.AccountNumber),
			zap.Error(err))
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	var created, updated int
	var balanceOp *banking.StatementOperation

	for i := range statement.Operations {
		op := statement.Operations[i]

		wasCreated, err := s.upsertOperation(ctx, tenantID, accountID, op)
		if err != nil {
			return nil, s.failSync(ctx, span, syncLog, integration, started, err)
		}
		if wasCreated {
			created++
		} else {
			updated++
		}

		// Balance cache candidate: the operation with the latest timestamp
		// that actually carries a balance-after value. Banks do not
		// guarantee response ordering.
		if op.BalanceAfter != nil {
			if balanceOp == nil || op.Date.After(balanceOp.Date) {
				balanceOp = &statement.Operations[i]
			}
		}
	}

	if balanceOp != nil {
		account.UpdateBalance(*balanceOp.BalanceAfter, balanceOp.Date)
		if err := s.accountRepo.Save(ctx, account); err != nil {
			return nil, s.failSync(ctx, span, syncLog, integration, started, err)
		}
	}

	integration.MarkSynced(s.now())
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	processed := len(statement.Operations)
	syncLog.Finish(processed, created, updated)
	if err := s.syncLogRepo.Save(ctx, syncLog); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to finalize sync log: %w", err)
	}

	s.archive(ctx, integration, account.AccountNumber, []byte(statement.RawPayload))

	if s.metrics != nil {
		s.metrics.RecordSyncRun(ctx, integration.BankCode.String(), banking.SyncOperationTransactions.String(), true, s.now().Sub(started))
		s.metrics.RecordTransactionsIngested(ctx, integration.BankCode.String(), created, updated)
	}

	s.logger.Info("Transaction sync finished",
		zap.String("integration_id", integrationID.String()),
		zap.String("account_number", account.AccountNumber),
		zap.Int("processed", processed),
		zap.Int("created", created),
		zap.Int("updated", updated))

	return &SyncResult{
		IntegrationID: integrationID,
		AccountID:     &accountID,
		Operation:     banking.SyncOperationTransactions,
		Processed:     processed,
		Created:       created,
		Updated:       updated,
	}, nil
}

// upsertOperation creates or overwrites one statement operation keyed by
// (tenant, external id). Category and review state survive re-syncs.
func (s *SyncService) upsertOperation(ctx context.Context, tenantID, accountID uuid.UUID, op banking.StatementOperation) (bool, error) {
	existing, err := s.transactionRepo.FindByExternalID(ctx, tenantID, op.ExternalID)
	if err != nil && !errors.Is(err, shared.ErrNotFound) {
		return false, fmt.Errorf("failed to look up transaction: %w", err)
	}

	if existing != nil {
		existing.Overwrite(op.Date, op.OperationType, op.Amount, op.BalanceAfter, op.Counterparty, op.Purpose, op.RawPayload)
		if err := s.transactionRepo.Save(ctx, existing); err != nil {
			return false, fmt.Errorf("failed to update transaction: %w", err)
		}
		return false, nil
	}

	tx, err := banking.NewBankTransaction(tenantID, accountID, op.ExternalID, op.Date, op.OperationType, op.Amount)
	if err != nil {
		return false, err
	}
	tx.Overwrite(op.Date, op.OperationType, op.Amount, op.BalanceAfter, op.Counterparty, op.Purpose, op.RawPayload)
	if err := s.transactionRepo.Save(ctx, tx); err != nil {
		return false, fmt.Errorf("failed to create transaction: %w", err)
	}
	return true, nil
}

// SyncBalances re-pulls every account's balance from the bank and
// overwrites the cache
func (s *SyncService) SyncBalances(ctx context.Context, tenantID, integrationID uuid.UUID) (*SyncResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "bank_sync", "sync_balances")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrIntegrationID, integrationID.String(),
	)

	started := s.now()

	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, integrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	syncLog := banking.NewBankSyncLog(tenantID, integrationID, banking.SyncOperationBalances)
	if err := s.syncLogRepo.Save(ctx, syncLog); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to open sync log: %w", err)
	}

	token, err := s.tokens.EnsureValidTokenFor(ctx, integration)
	if err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	external, err := provider.ListAccounts(ctx, token, integration.Sandbox)
	if err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	accounts, err := s.accountRepo.FindByIntegration(ctx, tenantID, integrationID)
	if err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}
	byNumber := make(map[string]banking.ExternalAccount, len(external))
	for _, ext := range external {
		byNumber[ext.AccountNumber] = ext
	}

	var updated int
	now := s.now()
	for i := range accounts {
		ext, ok := byNumber[accounts[i].AccountNumber]
		if !ok {
			continue
		}
		accounts[i].UpdateBalance(ext.Balance, now)
		if err := s.accountRepo.Save(ctx, &accounts[i]); err != nil {
			return nil, s.failSync(ctx, span, syncLog, integration, started, err)
		}
		updated++
	}

	integration.MarkSynced(now)
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		return nil, s.failSync(ctx, span, syncLog, integration, started, err)
	}

	syncLog.Finish(len(external), 0, updated)
	if err := s.syncLogRepo.Save(ctx, syncLog); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to finalize sync log: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordSyncRun(ctx, integration.BankCode.String(), banking.SyncOperationBalances.String(), true, s.now().Sub(started))
	}

	return &SyncResult{
		IntegrationID: integrationID,
		Operation:     banking.SyncOperationBalances,
		Processed:     len(external),
		Updated:       updated,
	}, nil
}

// failSync finalizes the audit log and the integration's error state,
// then returns the original error for the caller
func (s *SyncService) failSync(ctx context.Context, span trace.Span, syncLog *banking.BankSyncLog, integration *banking.BankIntegration, started time.Time, cause error) error {
	telemetry.RecordError(span, cause)

	syncLog.Fail(cause.Error())
	if err := s.syncLogRepo.Save(ctx, syncLog); err != nil {
		s.logger.Error("Failed to finalize failed sync log", zap.Error(err))
	}

	integration.RecordError(cause.Error())
	if err := s.integrationRepo.Save(ctx, integration); err != nil {
		s.logger.Error("Failed to record integration error", zap.Error(err))
	}

	if s.metrics != nil {
		s.metrics.RecordSyncRun(ctx, integration.BankCode.String(), syncLog.Operation.String(), false, s.now().Sub(started))
	}
	return cause
}

// archive stores the raw statement payload when an archiver is configured
func (s *SyncService) archive(ctx context.Context, integration *banking.BankIntegration, accountNumber string, payload []byte) {
	if s.archiver == nil || len(payload) == 0 {
		return
	}
	if err := s.archiver.ArchiveStatement(ctx, integration.TenantID, integration.GetID(), accountNumber, s.now(), payload); err != nil {
		s.logger.Warn("Failed to archive raw statement",
			zap.String("integration_id", integration.GetID().String()),
			zap.String("account_number", accountNumber),
			zap.Error(err))
	}
}
