package banking

import (
	"fmt"
	"time"

	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PaymentOrderStatus represents the lifecycle state of an outbound payment
type PaymentOrderStatus string

const (
	PaymentOrderStatusDraft      PaymentOrderStatus = "DRAFT"
	PaymentOrderStatusPending    PaymentOrderStatus = "PENDING"
	PaymentOrderStatusSending    PaymentOrderStatus = "SENDING"    // Persisted before the network call
	PaymentOrderStatusSent       PaymentOrderStatus = "SENT"       // Bank accepted the document
	PaymentOrderStatusAccepted   PaymentOrderStatus = "ACCEPTED"   // Bank validated the document
	PaymentOrderStatusProcessing PaymentOrderStatus = "PROCESSING" // Bank is executing
	PaymentOrderStatusExecuted   PaymentOrderStatus = "EXECUTED"   // Funds moved
	PaymentOrderStatusRejected   PaymentOrderStatus = "REJECTED"
	PaymentOrderStatusCancelled  PaymentOrderStatus = "CANCELLED"
	PaymentOrderStatusError      PaymentOrderStatus = "ERROR" // Submission failed; retryable
)

// IsValid checks if the status is a valid PaymentOrderStatus
func (s PaymentOrderStatus) IsValid() bool {
	switch s {
	case PaymentOrderStatusDraft, PaymentOrderStatusPending, PaymentOrderStatusSending,
		PaymentOrderStatusSent, PaymentOrderStatusAccepted, PaymentOrderStatusProcessing,
		PaymentOrderStatusExecuted, PaymentOrderStatusRejected, PaymentOrderStatusCancelled,
		PaymentOrderStatusError:
		return true
	}
	return false
}

// String returns the string representation of PaymentOrderStatus
func (s PaymentOrderStatus) String() string {
	return string(s)
}

// IsTerminal returns true if no further transitions are allowed
func (s PaymentOrderStatus) IsTerminal() bool {
	switch s {
	case PaymentOrderStatusExecuted, PaymentOrderStatusRejected, PaymentOrderStatusCancelled:
		return true
	}
	return false
}

// CanSend returns true if the order may be submitted to the bank.
// ERROR is retryable: a failed submission never stored an external id,
// so re-sending is safe.
func (s PaymentOrderStatus) CanSend() bool {
	switch s {
	case PaymentOrderStatusDraft, PaymentOrderStatusPending, PaymentOrderStatusError:
		return true
	}
	return false
}

// CanCancel returns true if a bank-side cancellation may be requested
func (s PaymentOrderStatus) CanCancel() bool {
	switch s {
	case PaymentOrderStatusSent, PaymentOrderStatusAccepted, PaymentOrderStatusProcessing:
		return true
	}
	return false
}

// InFlight returns true for statuses the status-sync sweep must poll
func (s PaymentOrderStatus) InFlight() bool {
	return s.CanCancel()
}

// PaymentRecipient holds the banking details of the payment recipient
type PaymentRecipient struct {
	Name            string `json:"name"`
	INN             string `json:"inn"`
	KPP             string `json:"kpp"`
	AccountNumber   string `json:"account_number"`
	BankBIK         string `json:"bank_bik"`
	BankName        string `json:"bank_name"`
	BankCorrAccount string `json:"bank_corr_account"`
}

// PaymentOrder is an outbound instruction to move funds from one of our
// accounts to a recipient, tracked through submission to execution.
type PaymentOrder struct {
	shared.TenantAggregateRoot
	AccountID      uuid.UUID          `json:"account_id"` // Payer account
	DocumentNumber string             `json:"document_number"`
	DocumentDate   time.Time          `json:"document_date"`
	Recipient      PaymentRecipient   `json:"recipient"`
	Amount         decimal.Decimal    `json:"amount"`
	Purpose        string             `json:"purpose"`
	Priority       int                `json:"priority"`
	VATType        string             `json:"vat_type,omitempty"`
	VATAmount      *decimal.Decimal   `json:"vat_amount,omitempty"`
	Status         PaymentOrderStatus `json:"status"`
	ExternalID     *string            `json:"external_id,omitempty"` // Bank-assigned payment id once sent
	SentAt         *time.Time         `json:"sent_at,omitempty"`
	ExecutedAt     *time.Time         `json:"executed_at,omitempty"`
	ErrorMessage   string             `json:"error_message,omitempty"`
}

// NewPaymentOrder creates a draft payment order
func NewPaymentOrder(
	tenantID, accountID uuid.UUID,
	documentNumber string,
	documentDate time.Time,
	recipient PaymentRecipient,
	amount decimal.Decimal,
	purpose string,
) (*PaymentOrder, error) {
	if accountID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_ACCOUNT", "Payer account ID cannot be empty")
	}
	if documentNumber == "" {
		return nil, shared.NewDomainError("INVALID_DOCUMENT_NUMBER", "Document number cannot be empty")
	}
	if recipient.Name == "" || recipient.AccountNumber == "" || recipient.BankBIK == "" {
		return nil, shared.NewDomainError("INVALID_RECIPIENT", "Recipient name, account and bank BIK are required")
	}
	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_AMOUNT", "Payment amount must be positive")
	}
	if purpose == "" {
		return nil, shared.NewDomainError("INVALID_PURPOSE", "Payment purpose cannot be empty")
	}
	return &PaymentOrder{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		AccountID:           accountID,
		DocumentNumber:      documentNumber,
		DocumentDate:        documentDate,
		Recipient:           recipient,
		Amount:              amount,
		Purpose:             purpose,
		Priority:            5,
		Status:              PaymentOrderStatusDraft,
	}, nil
}

// BeginSending moves the order into SENDING. This is persisted before the
// network call so a crash mid-submission leaves visible evidence instead
// of a silent double-submission risk.
func (o *PaymentOrder) BeginSending() error {
	if !o.Status.CanSend() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot send payment order in %s status", o.Status))
	}
	o.Status = PaymentOrderStatusSending
	o.ErrorMessage = ""
	o.Touch()
	o.IncrementVersion()
	return nil
}

// MarkSent records the bank's acceptance and the assigned external id
func (o *PaymentOrder) MarkSent(externalID string, at time.Time) {
	o.Status = PaymentOrderStatusSent
	o.ExternalID = &externalID
	o.SentAt = &at
	o.ErrorMessage = ""
	o.Touch()
	o.IncrementVersion()
}

// MarkSendFailed records a submission failure. ExternalID stays unset so a
// retry is safe to issue.
func (o *PaymentOrder) MarkSendFailed(message string) {
	o.Status = PaymentOrderStatusError
	o.ErrorMessage = message
	o.Touch()
	o.IncrementVersion()
}

// ApplyBankStatus maps a polled bank-side status onto the order. Terminal
// statuses never regress.
func (o *PaymentOrder) ApplyBankStatus(status PaymentOrderStatus, at time.Time, reason string) error {
	if o.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Payment order already in terminal %s status", o.Status))
	}
	if !status.IsValid() {
		return shared.NewDomainError("INVALID_STATUS", "Unknown payment order status")
	}
	o.Status = status
	switch status {
	case PaymentOrderStatusExecuted:
		o.ExecutedAt = &at
	case PaymentOrderStatusRejected:
		o.ErrorMessage = reason
	}
	o.Touch()
	o.IncrementVersion()
	return nil
}

// MarkCancelled records a confirmed bank-side cancellation
func (o *PaymentOrder) MarkCancelled(note string) error {
	if !o.Status.CanCancel() {
		return shared.NewDomainError("INVALID_STATE",
			fmt.Sprintf("Cannot cancel payment order in %s status", o.Status))
	}
	o.Status = PaymentOrderStatusCancelled
	o.ErrorMessage = note
	o.Touch()
	o.IncrementVersion()
	return nil
}
