package banking

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/bankbridge/backend/internal/infrastructure/telemetry"
)

// statusSweepBatchSize bounds one status-sync sweep across tenants
const statusSweepBatchSize = 50

// PaymentOrderService drives payment orders through the submission state
// machine. The invariant that matters: SENDING is persisted before the
// network call, and ExternalID is only ever written on confirmed
// acceptance, so a crash or failure is always distinguishable from a
// double-submission.
type PaymentOrderService struct {
	orderRepo       banking.PaymentOrderRepository
	accountRepo     banking.BankAccountRepository
	integrationRepo banking.BankIntegrationRepository
	providers       banking.BankProviderRegistry
	tokens          *TokenService
	metrics         *telemetry.BankingMetrics
	logger          *zap.Logger
	now             func() time.Time
}

// NewPaymentOrderService creates a new PaymentOrderService. Metrics may
// be nil.
func NewPaymentOrderService(
	orderRepo banking.PaymentOrderRepository,
	accountRepo banking.BankAccountRepository,
	integrationRepo banking.BankIntegrationRepository,
	providers banking.BankProviderRegistry,
	tokens *TokenService,
	metrics *telemetry.BankingMetrics,
	logger *zap.Logger,
) *PaymentOrderService {
	return &PaymentOrderService{
		orderRepo:       orderRepo,
		accountRepo:     accountRepo,
		integrationRepo: integrationRepo,
		providers:       providers,
		tokens:          tokens,
		metrics:         metrics,
		logger:          logger,
		now:             time.Now,
	}
}

// PaymentOrderResult is the client-facing view of a payment order
type PaymentOrderResult struct {
	ID             uuid.UUID                  `json:"id"`
	DocumentNumber string                     `json:"document_number"`
	Amount         decimal.Decimal            `json:"amount"`
	Status         banking.PaymentOrderStatus `json:"status"`
	ExternalID     *string                    `json:"external_id,omitempty"`
	SentAt         *time.Time                 `json:"sent_at,omitempty"`
	ExecutedAt     *time.Time                 `json:"executed_at,omitempty"`
	ErrorMessage   string                     `json:"error_message,omitempty"`
}

// StatusSweepResult reports one status-sync sweep
type StatusSweepResult struct {
	Polled   int `json:"polled"`
	Advanced int `json:"advanced"` // Orders whose status changed
	Resolved int `json:"resolved"` // Orders that reached a terminal status
	Failed   int `json:"failed"`   // Orders whose poll errored
}

// CreateOrder creates a draft payment order for one of the tenant's
// accounts
func (s *PaymentOrderService) CreateOrder(
	ctx context.Context,
	tenantID, accountID uuid.UUID,
	documentNumber string,
	documentDate time.Time,
	recipient banking.PaymentRecipient,
	amount decimal.Decimal,
	purpose string,
) (*PaymentOrderResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_order", "create")
	defer span.End()

	if _, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, accountID); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payer account: %w", err)
	}

	order, err := banking.NewPaymentOrder(tenantID, accountID, documentNumber, documentDate, recipient, amount, purpose)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := s.orderRepo.Save(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment order: %w", err)
	}
	return toPaymentOrderResult(order), nil
}

// Send submits a payment order to the bank. Legal from DRAFT, PENDING
// and ERROR; the ERROR retry is safe because a failed submission never
// stored an external id.
func (s *PaymentOrderService) Send(ctx context.Context, tenantID, orderID uuid.UUID) (*PaymentOrderResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_order", "send")
	defer span.End()

	telemetry.SetAttributes(span,
		telemetry.SpanAttrTenantID, tenantID.String(),
		telemetry.SpanAttrOrderID, orderID.String(),
	)

	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}

	account, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, order.AccountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payer account: %w", err)
	}

	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, account.IntegrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}

	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if !provider.SupportsPayments() {
		telemetry.RecordError(span, banking.ErrPaymentsNotSupported)
		return nil, banking.ErrPaymentsNotSupported
	}

	if err := order.BeginSending(); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	// SENDING hits the database before the wire. Crash evidence.
	if err := s.orderRepo.Save(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist sending state: %w", err)
	}

	token, err := s.tokens.EnsureValidTokenFor(ctx, integration)
	if err != nil {
		return s.settleSendFailure(ctx, span, order, integration, err)
	}

	externalID, err := provider.SubmitPayment(ctx, token, integration.Sandbox, banking.PaymentRequest{
		DocumentNumber: order.DocumentNumber,
		DocumentDate:   order.DocumentDate,
		Amount:         order.Amount,
		Purpose:        order.Purpose,
		PayerAccount:   account.AccountNumber,
		Recipient:      order.Recipient,
		Priority:       order.Priority,
		VATType:        order.VATType,
		VATAmount:      order.VATAmount,
	})
	if err != nil {
		return s.settleSendFailure(ctx, span, order, integration, err)
	}

	order.MarkSent(externalID, s.now())
	if err := s.orderRepo.Save(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to persist sent state: %w", err)
	}

	if s.metrics != nil {
		s.metrics.RecordPaymentSubmitted(ctx, integration.BankCode.String(), true)
	}
	s.logger.Info("Payment order submitted",
		zap.String("order_id", order.GetID().String()),
		zap.String("external_id", externalID),
		zap.String("bank_code", integration.BankCode.String()))

	return toPaymentOrderResult(order), nil
}

// settleSendFailure records a failed submission: order goes to ERROR with
// the message, external id stays empty, the original error surfaces
func (s *PaymentOrderService) settleSendFailure(ctx context.Context, span trace.Span, order *banking.PaymentOrder, integration *banking.BankIntegration, cause error) (*PaymentOrderResult, error) {
	telemetry.RecordError(span, cause)

	order.MarkSendFailed(cause.Error())
	if err := s.orderRepo.Save(ctx, order); err != nil {
		s.logger.Error("Failed to persist payment failure", zap.Error(err))
	}
	if s.metrics != nil {
		s.metrics.RecordPaymentSubmitted(ctx, integration.BankCode.String(), false)
	}
	s.logger.Error("Payment submission failed",
		zap.String("order_id", order.GetID().String()),
		zap.String("bank_code", integration.BankCode.String()),
		zap.Error(cause))
	return nil, cause
}

// CheckStatus polls the bank for the order's current status and applies
// the mapped transition
func (s *PaymentOrderService) CheckStatus(ctx context.Context, tenantID, orderID uuid.UUID) (*PaymentOrderResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_order", "check_status")
	defer span.End()

	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}

	if err := s.pollOrder(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	return toPaymentOrderResult(order), nil
}

// pollOrder fetches the bank status for one order and persists the
// resulting transition
func (s *PaymentOrderService) pollOrder(ctx context.Context, order *banking.PaymentOrder) error {
	if order.ExternalID == nil {
		return banking.ErrPaymentNotSent
	}

	account, err := s.accountRepo.FindByIDForTenant(ctx, order.TenantID, order.AccountID)
	if err != nil {
		return fmt.Errorf("failed to get payer account: %w", err)
	}
	integration, err := s.integrationRepo.FindByIDForTenant(ctx, order.TenantID, account.IntegrationID)
	if err != nil {
		return fmt.Errorf("failed to get integration: %w", err)
	}
	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		return err
	}
	token, err := s.tokens.EnsureValidTokenFor(ctx, integration)
	if err != nil {
		return err
	}

	bankStatus, err := provider.GetPaymentStatus(ctx, token, integration.Sandbox, *order.ExternalID)
	if err != nil {
		return fmt.Errorf("failed to poll payment status: %w", err)
	}

	mapped, ok := banking.MapBankPaymentStatus(bankStatus)
	if !ok {
		// Unknown vocabulary from the bank: log and keep the local state
		s.logger.Warn("Unknown bank payment status",
			zap.String("order_id", order.GetID().String()),
			zap.String("bank_status", bankStatus))
		return nil
	}
	if mapped == order.Status {
		return nil
	}

	reason := ""
	if mapped == banking.PaymentOrderStatusRejected {
		reason = fmt.Sprintf("rejected by bank (status %s)", bankStatus)
	}
	if err := order.ApplyBankStatus(mapped, s.now(), reason); err != nil {
		return err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		return fmt.Errorf("failed to save payment order: %w", err)
	}

	s.logger.Info("Payment order status advanced",
		zap.String("order_id", order.GetID().String()),
		zap.String("status", mapped.String()))
	return nil
}

// Cancel requests a bank-side cancellation. Legal only while the order is
// in flight; a failed cancel leaves the local status untouched.
func (s *PaymentOrderService) Cancel(ctx context.Context, tenantID, orderID uuid.UUID) (*PaymentOrderResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_order", "cancel")
	defer span.End()

	order, err := s.orderRepo.FindByIDForTenant(ctx, tenantID, orderID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payment order: %w", err)
	}

	if !order.Status.CanCancel() {
		err := shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot cancel payment order in %s status", order.Status))
		telemetry.RecordError(span, err)
		return nil, err
	}
	if order.ExternalID == nil {
		telemetry.RecordError(span, banking.ErrPaymentNotSent)
		return nil, banking.ErrPaymentNotSent
	}

	account, err := s.accountRepo.FindByIDForTenant(ctx, tenantID, order.AccountID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get payer account: %w", err)
	}
	integration, err := s.integrationRepo.FindByIDForTenant(ctx, tenantID, account.IntegrationID)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to get integration: %w", err)
	}
	provider, err := s.providers.Provider(integration.BankCode)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	token, err := s.tokens.EnsureValidTokenFor(ctx, integration)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}

	if err := provider.CancelPayment(ctx, token, integration.Sandbox, *order.ExternalID); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("bank refused cancellation: %w", err)
	}

	if err := order.MarkCancelled("cancelled by operator"); err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	if err := s.orderRepo.Save(ctx, order); err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to save payment order: %w", err)
	}

	return toPaymentOrderResult(order), nil
}

// SyncStatuses sweeps in-flight orders across all tenants and polls the
// bank for each. Per-order failures are counted, not fatal.
func (s *PaymentOrderService) SyncStatuses(ctx context.Context) (*StatusSweepResult, error) {
	ctx, span := telemetry.StartServiceSpan(ctx, "payment_order", "sync_statuses")
	defer span.End()

	orders, err := s.orderRepo.FindInFlight(ctx, statusSweepBatchSize)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, fmt.Errorf("failed to load in-flight orders: %w", err)
	}

	result := &StatusSweepResult{Polled: len(orders)}
	for i := range orders {
		order := &orders[i]
		before := order.Status

		if err := s.pollOrder(ctx, order); err != nil {
			result.Failed++
			s.logger.Warn("Status poll failed",
				zap.String("order_id", order.GetID().String()),
				zap.Error(err))
			continue
		}
		if order.Status != before {
			result.Advanced++
		}
		if order.Status.IsTerminal() {
			result.Resolved++
		}
	}

	telemetry.SetAttributes(span,
		"polled", result.Polled,
		"advanced", result.Advanced,
		"resolved", result.Resolved,
		"failed", result.Failed,
	)
	return result, nil
}

func toPaymentOrderResult(o *banking.PaymentOrder) *PaymentOrderResult {
	return &PaymentOrderResult{
		ID:             o.GetID(),
		DocumentNumber: o.DocumentNumber,
		Amount:         o.Amount,
		Status:         o.Status,
		ExternalID:     o.ExternalID,
		SentAt:         o.SentAt,
		ExecutedAt:     o.ExecutedAt,
		ErrorMessage:   o.ErrorMessage,
	}
}
