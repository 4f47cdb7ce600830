package banking

import (
	"time"

	"github.com/bankbridge/backend/internal/domain/shared"
	"github.com/google/uuid"
)

// SyncOperation names what a sync run pulled from the bank
type SyncOperation string

const (
	SyncOperationTransactions SyncOperation = "TRANSACTIONS"
	SyncOperationBalances     SyncOperation = "BALANCES"
)

// String returns the string representation of SyncOperation
func (o SyncOperation) String() string {
	return string(o)
}

// SyncLogStatus represents the outcome of a sync run
type SyncLogStatus string

const (
	SyncLogStatusStarted SyncLogStatus = "STARTED"
	SyncLogStatusSuccess SyncLogStatus = "SUCCESS"
	SyncLogStatusError   SyncLogStatus = "ERROR"
)

// IsValid checks if the status is a valid SyncLogStatus
func (s SyncLogStatus) IsValid() bool {
	switch s {
	case SyncLogStatusStarted, SyncLogStatusSuccess, SyncLogStatusError:
		return true
	}
	return false
}

// BankSyncLog is the immutable audit record of one sync run. It is opened
// in STARTED state before any network call so partial failures are always
// diagnosable, and finalized exactly once. Append-only.
type BankSyncLog struct {
	shared.TenantAggregateRoot
	IntegrationID uuid.UUID     `json:"integration_id"`
	Operation     SyncOperation `json:"operation"`
	Status        SyncLogStatus `json:"status"`
	StartedAt     time.Time     `json:"started_at"`
	FinishedAt    *time.Time    `json:"finished_at,omitempty"`
	Processed     int           `json:"processed"`
	Created       int           `json:"created"`
	Updated       int           `json:"updated"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// NewBankSyncLog opens an audit record for a sync run
func NewBankSyncLog(tenantID, integrationID uuid.UUID, operation SyncOperation) *BankSyncLog {
	return &BankSyncLog{
		TenantAggregateRoot: shared.NewTenantAggregateRoot(tenantID),
		IntegrationID:       integrationID,
		Operation:           operation,
		Status:              SyncLogStatusStarted,
		StartedAt:           time.Now(),
	}
}

// Finish finalizes the run as successful with its counters
func (l *BankSyncLog) Finish(processed, created, updated int) {
	now := time.Now()
	l.Status = SyncLogStatusSuccess
	l.FinishedAt = &now
	l.Processed = processed
	l.Created = created
	l.Updated = updated
	l.Touch()
}

// Fail finalizes the run as failed with the triage message
func (l *BankSyncLog) Fail(message string) {
	now := time.Now()
	l.Status = SyncLogStatusError
	l.FinishedAt = &now
	l.ErrorMessage = message
	l.Touch()
}
