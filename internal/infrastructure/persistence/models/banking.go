package models

import (
	"time"

	"github.com/bankbridge/backend/internal/domain/banking"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// BankIntegrationModel is the persistence model for the BankIntegration
// aggregate root. Token columns hold bank-issued secrets; they are never
// serialized outward.
type BankIntegrationModel struct {
	TenantAggregateModel
	BankCode       banking.BankCode          `gorm:"type:varchar(20);not null;uniqueIndex:idx_bank_integration_tenant_code,priority:2"`
	ClientID       string                    `gorm:"type:varchar(200);not null"`
	ClientSecret   string                    `gorm:"type:varchar(500);not null"`
	AccessToken    string                    `gorm:"type:text"`
	RefreshToken   string                    `gorm:"type:text"`
	TokenExpiresAt *time.Time                `gorm:"index"`
	OAuthState     string                    `gorm:"type:varchar(100);index"`
	Sandbox        bool                      `gorm:"not null;default:false"`
	Status         banking.IntegrationStatus `gorm:"type:varchar(20);not null;default:'PENDING';index"`
	LastError      string                    `gorm:"type:text"`
	LastSyncAt     *time.Time
}

// TableName returns the table name for GORM
func (BankIntegrationModel) TableName() string {
	return "bank_integrations"
}

// ToDomain converts the persistence model to a domain BankIntegration entity.
func (m *BankIntegrationModel) ToDomain() *banking.BankIntegration {
	integration := &banking.BankIntegration{
		BankCode:       m.BankCode,
		ClientID:       m.ClientID,
		ClientSecret:   m.ClientSecret,
		AccessToken:    m.AccessToken,
		RefreshToken:   m.RefreshToken,
		TokenExpiresAt: m.TokenExpiresAt,
		OAuthState:     m.OAuthState,
		Sandbox:        m.Sandbox,
		Status:         m.Status,
		LastError:      m.LastError,
		LastSyncAt:     m.LastSyncAt,
	}
	m.PopulateTenantAggregateRoot(&integration.TenantAggregateRoot)
	return integration
}

// FromDomain populates the persistence model from a domain BankIntegration entity.
func (m *BankIntegrationModel) FromDomain(i *banking.BankIntegration) {
	m.FromDomainTenantAggregateRoot(i.TenantAggregateRoot)
	m.BankCode = i.BankCode
	m.ClientID = i.ClientID
	m.ClientSecret = i.ClientSecret
	m.AccessToken = i.AccessToken
	m.RefreshToken = i.RefreshToken
	m.TokenExpiresAt = i.TokenExpiresAt
	m.OAuthState = i.OAuthState
	m.Sandbox = i.Sandbox
	m.Status = i.Status
	m.LastError = i.LastError
	m.LastSyncAt = i.LastSyncAt
}

// BankIntegrationModelFromDomain creates a new persistence model from a domain BankIntegration.
func BankIntegrationModelFromDomain(i *banking.BankIntegration) *BankIntegrationModel {
	m := &BankIntegrationModel{}
	m.FromDomain(i)
	return m
}

// BankAccountModel is the persistence model for the BankAccount aggregate root.
type BankAccountModel struct {
	TenantAggregateModel
	IntegrationID    uuid.UUID       `gorm:"type:uuid;not null;index;uniqueIndex:idx_bank_account_integration_number,priority:1"`
	AccountNumber    string          `gorm:"type:varchar(34);not null;uniqueIndex:idx_bank_account_integration_number,priority:2"`
	Name             string          `gorm:"type:varchar(200)"`
	Currency         string          `gorm:"type:varchar(3);not null;default:'RUB'"`
	Balance          decimal.Decimal `gorm:"type:decimal(18,2);not null"`
	BalanceUpdatedAt *time.Time
}

// TableName returns the table name for GORM
func (BankAccountModel) TableName() string {
	return "bank_accounts"
}

// ToDomain converts the persistence model to a domain BankAccount entity.
func (m *BankAccountModel) ToDomain() *banking.BankAccount {
	account := &banking.BankAccount{
		IntegrationID:    m.IntegrationID,
		AccountNumber:    m.AccountNumber,
		Name:             m.Name,
		Currency:         m.Currency,
		Balance:          m.Balance,
		BalanceUpdatedAt: m.BalanceUpdatedAt,
	}
	m.PopulateTenantAggregateRoot(&account.TenantAggregateRoot)
	return account
}

// FromDomain populates the persistence model from a domain BankAccount entity.
func (m *BankAccountModel) FromDomain(a *banking.BankAccount) {
	m.FromDomainTenantAggregateRoot(a.TenantAggregateRoot)
	m.IntegrationID = a.IntegrationID
	m.AccountNumber = a.AccountNumber
	m.Name = a.Name
	m.Currency = a.Currency
	m.Balance = a.Balance
	m.BalanceUpdatedAt = a.BalanceUpdatedAt
}

// BankAccountModelFromDomain creates a new persistence model from a domain BankAccount.
func BankAccountModelFromDomain(a *banking.BankAccount) *BankAccountModel {
	m := &BankAccountModel{}
	m.FromDomain(a)
	return m
}

// BankTransactionModel is the persistence model for the BankTransaction
// aggregate root. The (tenant_id, external_id) unique index is what makes
// re-syncing overlapping statement windows idempotent.
type BankTransactionModel struct {
	TenantAggregateModel
	AccountID            uuid.UUID                `gorm:"type:uuid;not null;index"`
	ExternalID           string                   `gorm:"type:varchar(100);not null;uniqueIndex:idx_bank_tx_tenant_external,priority:2"`
	OperationAt          time.Time                `gorm:"not null;index"`
	OperationType        banking.OperationType    `gorm:"type:varchar(10);not null"`
	Amount               decimal.Decimal          `gorm:"type:decimal(18,2);not null"`
	BalanceAfter         *decimal.Decimal         `gorm:"type:decimal(18,2)"`
	CounterpartyName     string                   `gorm:"type:varchar(300)"`
	CounterpartyINN      string                   `gorm:"type:varchar(12);index"`
	CounterpartyKPP      string                   `gorm:"type:varchar(9)"`
	CounterpartyAccount  string                   `gorm:"type:varchar(34)"`
	CounterpartyBankName string                   `gorm:"type:varchar(300)"`
	CounterpartyBankBIK  string                   `gorm:"type:varchar(9)"`
	Purpose              string                   `gorm:"type:text"`
	CategoryCode         *string                  `gorm:"type:varchar(50);index"`
	CategoryConfidence   *float64                 `gorm:"type:decimal(4,3)"`
	ProcessingStatus     banking.ProcessingStatus `gorm:"type:varchar(20);not null;default:'NEW';index"`
	RawPayload           string                   `gorm:"type:jsonb"`
}

// TableName returns the table name for GORM
func (BankTransactionModel) TableName() string {
	return "bank_transactions"
}

// ToDomain converts the persistence model to a domain BankTransaction entity.
func (m *BankTransactionModel) ToDomain() *banking.BankTransaction {
	tx := &banking.BankTransaction{
		AccountID:     m.AccountID,
		ExternalID:    m.ExternalID,
		OperationAt:   m.OperationAt,
		OperationType: m.OperationType,
		Amount:        m.Amount,
		BalanceAfter:  m.BalanceAfter,
		Counterparty: banking.Counterparty{
			Name:          m.CounterpartyName,
			INN:           m.CounterpartyINN,
			KPP:           m.CounterpartyKPP,
			AccountNumber: m.CounterpartyAccount,
			BankName:      m.CounterpartyBankName,
			BankBIK:       m.CounterpartyBankBIK,
		},
		Purpose:            m.Purpose,
		CategoryCode:       m.CategoryCode,
		CategoryConfidence: m.CategoryConfidence,
		ProcessingStatus:   m.ProcessingStatus,
		RawPayload:         m.RawPayload,
	}
	m.PopulateTenantAggregateRoot(&tx.TenantAggregateRoot)
	return tx
}

// FromDomain populates the persistence model from a domain BankTransaction entity.
func (m *BankTransactionModel) FromDomain(tx *banking.BankTransaction) {
	m.FromDomainTenantAggregateRoot(tx.TenantAggregateRoot)
	m.AccountID = tx.AccountID
	m.ExternalID = tx.ExternalID
	m.OperationAt = tx.OperationAt
	m.OperationType = tx.OperationType
	m.Amount = tx.Amount
	m.BalanceAfter = tx.BalanceAfter
	m.CounterpartyName = tx.Counterparty.Name
	m.CounterpartyINN = tx.Counterparty.INN
	m.CounterpartyKPP = tx.Counterparty.KPP
	m.CounterpartyAccount = tx.Counterparty.AccountNumber
	m.CounterpartyBankName = tx.Counterparty.BankName
	m.CounterpartyBankBIK = tx.Counterparty.BankBIK
	m.Purpose = tx.Purpose
	m.CategoryCode = tx.CategoryCode
	m.CategoryConfidence = tx.CategoryConfidence
	m.ProcessingStatus = tx.ProcessingStatus
	m.RawPayload = tx.RawPayload
}

// BankTransactionModelFromDomain creates a new persistence model from a domain BankTransaction.
func BankTransactionModelFromDomain(tx *banking.BankTransaction) *BankTransactionModel {
	m := &BankTransactionModel{}
	m.FromDomain(tx)
	return m
}

// PaymentOrderModel is the persistence model for the PaymentOrder aggregate root.
type PaymentOrderModel struct {
	TenantAggregateModel
	AccountID                uuid.UUID                  `gorm:"type:uuid;not null;index"`
	DocumentNumber           string                     `gorm:"type:varchar(50);not null;uniqueIndex:idx_payment_order_tenant_number,priority:2"`
	DocumentDate             time.Time                  `gorm:"not null"`
	RecipientName            string                     `gorm:"type:varchar(300);not null"`
	RecipientINN             string                     `gorm:"type:varchar(12)"`
	RecipientKPP             string                     `gorm:"type:varchar(9)"`
	RecipientAccount         string                     `gorm:"type:varchar(34);not null"`
	RecipientBankBIK         string                     `gorm:"type:varchar(9);not null"`
	RecipientBankName        string                     `gorm:"type:varchar(300)"`
	RecipientBankCorrAccount string                     `gorm:"type:varchar(34)"`
	Amount                   decimal.Decimal            `gorm:"type:decimal(18,2);not null"`
	Purpose                  string                     `gorm:"type:text;not null"`
	Priority                 int                        `gorm:"not null;default:5"`
	VATType                  string                     `gorm:"type:varchar(20)"`
	VATAmount                *decimal.Decimal           `gorm:"type:decimal(18,2)"`
	Status                   banking.PaymentOrderStatus `gorm:"type:varchar(20);not null;default:'DRAFT';index"`
	ExternalID               *string                    `gorm:"type:varchar(100);index"`
	SentAt                   *time.Time
	ExecutedAt               *time.Time
	ErrorMessage             string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (PaymentOrderModel) TableName() string {
	return "payment_orders"
}

// ToDomain converts the persistence model to a domain PaymentOrder entity.
func (m *PaymentOrderModel) ToDomain() *banking.PaymentOrder {
	order := &banking.PaymentOrder{
		AccountID:      m.AccountID,
		DocumentNumber: m.DocumentNumber,
		DocumentDate:   m.DocumentDate,
		Recipient: banking.PaymentRecipient{
			Name:            m.RecipientName,
			INN:             m.RecipientINN,
			KPP:             m.RecipientKPP,
			AccountNumber:   m.RecipientAccount,
			BankBIK:         m.RecipientBankBIK,
			BankName:        m.RecipientBankName,
			BankCorrAccount: m.RecipientBankCorrAccount,
		},
		Amount:       m.Amount,
		Purpose:      m.Purpose,
		Priority:     m.Priority,
		VATType:      m.VATType,
		VATAmount:    m.VATAmount,
		Status:       m.Status,
		ExternalID:   m.ExternalID,
		SentAt:       m.SentAt,
		ExecutedAt:   m.ExecutedAt,
		ErrorMessage: m.ErrorMessage,
	}
	m.PopulateTenantAggregateRoot(&order.TenantAggregateRoot)
	return order
}

// FromDomain populates the persistence model from a domain PaymentOrder entity.
func (m *PaymentOrderModel) FromDomain(o *banking.PaymentOrder) {
	m.FromDomainTenantAggregateRoot(o.TenantAggregateRoot)
	m.AccountID = o.AccountID
	m.DocumentNumber = o.DocumentNumber
	m.DocumentDate = o.DocumentDate
	m.RecipientName = o.Recipient.Name
	m.RecipientINN = o.Recipient.INN
	m.RecipientKPP = o.Recipient.KPP
	m.RecipientAccount = o.Recipient.AccountNumber
	m.RecipientBankBIK = o.Recipient.BankBIK
	m.RecipientBankName = o.Recipient.BankName
	m.RecipientBankCorrAccount = o.Recipient.BankCorrAccount
	m.Amount = o.Amount
	m.Purpose = o.Purpose
	m.Priority = o.Priority
	m.VATType = o.VATType
	m.VATAmount = o.VATAmount
	m.Status = o.Status
	m.ExternalID = o.ExternalID
	m.SentAt = o.SentAt
	m.ExecutedAt = o.ExecutedAt
	m.ErrorMessage = o.ErrorMessage
}

// PaymentOrderModelFromDomain creates a new persistence model from a domain PaymentOrder.
func PaymentOrderModelFromDomain(o *banking.PaymentOrder) *PaymentOrderModel {
	m := &PaymentOrderModel{}
	m.FromDomain(o)
	return m
}

// BankSyncLogModel is the persistence model for the BankSyncLog aggregate root.
type BankSyncLogModel struct {
	TenantAggregateModel
	IntegrationID uuid.UUID             `gorm:"type:uuid;not null;index"`
	Operation     banking.SyncOperation `gorm:"type:varchar(20);not null"`
	Status        banking.SyncLogStatus `gorm:"type:varchar(10);not null;index"`
	StartedAt     time.Time             `gorm:"not null;index"`
	FinishedAt    *time.Time
	Processed     int    `gorm:"not null;default:0"`
	Created       int    `gorm:"not null;default:0"`
	Updated       int    `gorm:"not null;default:0"`
	ErrorMessage  string `gorm:"type:text"`
}

// TableName returns the table name for GORM
func (BankSyncLogModel) TableName() string {
	return "bank_sync_logs"
}

// ToDomain converts the persistence model to a domain BankSyncLog entity.
func (m *BankSyncLogModel) ToDomain() *banking.BankSyncLog {
	log := &banking.BankSyncLog{
		IntegrationID: m.IntegrationID,
		Operation:     m.Operation,
		Status:        m.Status,
		StartedAt:     m.StartedAt,
		FinishedAt:    m.FinishedAt,
		Processed:     m.Processed,
		Created:       m.Created,
		Updated:       m.Updated,
		ErrorMessage:  m.ErrorMessage,
	}
	m.PopulateTenantAggregateRoot(&log.TenantAggregateRoot)
	return log
}

// FromDomain populates the persistence model from a domain BankSyncLog entity.
func (m *BankSyncLogModel) FromDomain(l *banking.BankSyncLog) {
	m.FromDomainTenantAggregateRoot(l.TenantAggregateRoot)
	m.IntegrationID = l.IntegrationID
	m.Operation = l.Operation
	m.Status = l.Status
	m.StartedAt = l.StartedAt
	m.FinishedAt = l.FinishedAt
	m.Processed = l.Processed
	m.Created = l.Created
	m.Updated = l.Updated
	m.ErrorMessage = l.ErrorMessage
}

// BankSyncLogModelFromDomain creates a new persistence model from a domain BankSyncLog.
func BankSyncLogModelFromDomain(l *banking.BankSyncLog) *BankSyncLogModel {
	m := &BankSyncLogModel{}
	m.FromDomain(l)
	return m
}
