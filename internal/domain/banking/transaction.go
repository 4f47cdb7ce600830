package banking

import (
	"time"

	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// OperationType is the direction of a statement operation
type OperationType string

const (
	OperationTypeCredit OperationType = "CREDIT" // Money in
	OperationTypeDebit  OperationType = "DEBIT"  // Money out
)

// IsValid checks if the operation type is valid
func (t OperationType) IsValid() bool {
	return t == OperationTypeCredit || t == OperationTypeDebit
}

// String returns the string representation of OperationType
func (t OperationType) String() string {
	return string(t)
}

// ProcessingStatus tracks whether categorization/review of a transaction
// is complete
type ProcessingStatus string

const (
	ProcessingStatusNew       ProcessingStatus = "NEW"       // Just ingested, uncategorized
	ProcessingStatusPending   ProcessingStatus = "PENDING"   // Auto-categorized, needs human confirmation
	ProcessingStatusProcessed ProcessingStatus = "PROCESSED" // Categorization trusted or confirmed
	ProcessingStatusIgnored   ProcessingStatus = "IGNORED"   // Excluded from reconciliation
	ProcessingStatusError     ProcessingStatus = "ERROR"     // Processing failed
)

// IsValid checks if the status is a valid ProcessingStatus
func (s ProcessingStatus) IsValid() bool {
	switch s {
	case ProcessingStatusNew, ProcessingStatusPending, ProcessingStatusProcessed,
		ProcessingStatusIgnored, ProcessingStatusError:
		return true
	}
	return false
}

// String returns the string representation of ProcessingStatus
func (s ProcessingStatus) String() string {
	return string(s)
}

// Counterparty holds the identity of the other side of an operation
type Counterparty struct {
	Name          string `json:"name"`
	INN           string `json:"inn"`
	KPP           string `json:"kpp"`
	AccountNumber string `json:"account_number"`
	BankName      string `json:"bank_name"`
	BankBIK       string `json:"bank_bik"`
}

// BankTransaction is one ingested bank statement operation.
// (TenantID, ExternalID) is unique; that pair is the idempotency key that
// makes sync safe to re-run over overlapping windows.
type BankTransaction struct {
	shared.TenantAggregateRoot
	AccountID          uuid.UUID        `json:"account_id"`
	ExternalID         string           `json:"external_id"`
	OperationAt        time.Time        `json:"operation_at"`
	OperationType      OperationType    `json:"operation_type"`
	Amount             decimal.Decimal  `json:"amount"` // Non-negative; sign carried by OperationType
	BalanceAfter       *decimal.Decimal `json:"balance_after,omitempty"`
	Counterparty       Counterparty     `json:"counterparty"`
	Purpose            string           `json:"purpose"`
	CategoryCode       *string          `json:"category_code,omitempty"`
	CategoryConfidence *float64         `json:"category_confidence,omitempty"`
	ProcessingStatus   ProcessingStatus `json:"processing_status"`
	RawPayload         string           `json:"-"`
}

// NewBankTransaction creates a freshly ingested transaction
func NewBankTransaction(
	tenantID, accountID uuid.UUID,
	externalID string,
	operationAt time.Time,
	operationType OperationType,
	amount decimal.Decimal,
) (*BankTransaction, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Account ID cannot be empty")
	}
	if externalID == "" {
		return nil, shared.NewDomainError("INVALID_EXTERNAL_ID", "External ID cannot be empty")
	}
	if !operationType.IsValid() {
		return nil, shared.NewDomainError("INVALID_OPERATION_TYPE", "Operation type must be credit or debit")
	}
	if amount.IsNegative() {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Amount cannot be negative")
	}
	return &BankTransaction{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		AccountID:           accountID,
		ExternalID:          externalID,
		OperationAt:         operationAt,
		OperationType:       operationType,
		Amount:              amount,
		ProcessingStatus:    ProcessingStatusNew,
	}, nil
}

// Overwrite replaces the mutable statement fields with a re-fetched
// version of the same operation. Category and processing status are kept:
// a re-synced operation must not lose its review state.
func (t *BankTransaction) Overwrite(
	operationAt time.Time,
	operationType OperationType,
	amount decimal.Decimal,
	balanceAfter *decimal.Decimal,
	counterparty Counterparty,
	purpose string,
	rawPayload string,
) {
	t.OperationAt = operationAt
	t.OperationType = operationType
	t.Amount = amount
	t.BalanceAfter = balanceAfter
	t.Counterparty = counterparty
	t.Purpose = purpose
	t.RawPayload = rawPayload
	t.Touch()
	t.IncrementVersion()
}

// ApplyAutoCategory records an automatic categorization result. Confidence
// at or above the trust threshold finalizes the transaction; below it the
// category is set but human confirmation is still required.
func (t *BankTransaction) ApplyAutoCategory(categoryCode string, confidence float64, trusted bool) {
	t.CategoryCode = &categoryCode
	t.CategoryConfidence = &confidence
	if trusted {
		t.ProcessingStatus = ProcessingStatusProcessed
	} else {
		t.ProcessingStatus = ProcessingStatusPending
	}
	t.Touch()
	t.IncrementVersion()
}

// ApplyManualCategory is the human-trusted override path; it always
// finalizes the transaction.
func (t *BankTransaction) ApplyManualCategory(categoryCode string) {
	t.CategoryCode = &categoryCode
	t.CategoryConfidence = nil
	t.ProcessingStatus = ProcessingStatusProcessed
	t.Touch()
	t.IncrementVersion()
}

// IsCategorized returns true if a category has been assigned
func (t *BankTransaction) IsCategorized() bool {
	return t.CategoryCode != nil
}
