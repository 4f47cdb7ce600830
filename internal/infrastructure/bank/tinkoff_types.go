package bank

import (
	"github.com/shopspring/decimal"
)

// tinkoffTokenResponse is the token endpoint response for both
// authorization-code and refresh-token grants
type tinkoffTokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token,omitempty"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type,omitempty"`
}

// tinkoffErrorResponse is the error body of a non-2xx response
type tinkoffErrorResponse struct {
	ErrorCode    string `json:"errorCode,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`
}

// tinkoffBalance is the balance block of an account
type tinkoffBalance struct {
	Otb             decimal.Decimal `json:"otb"` // Open-to-book: available balance
	Authorized      decimal.Decimal `json:"authorized,omitempty"`
	PendingPayments decimal.Decimal `json:"pendingPayments,omitempty"`
}

// tinkoffAccount is one account of the bank-accounts response
type tinkoffAccount struct {
	AccountNumber string         `json:"accountNumber"`
	Name          string         `json:"name"`
	Currency      string         `json:"currency"`
	Balance       tinkoffBalance `json:"balance"`
	Status        string         `json:"status"`
}

// tinkoffCounterparty is the counterparty block of a statement operation
type tinkoffCounterparty struct {
	Name          string `json:"name"`
	INN           string `json:"inn"`
	KPP           string `json:"kpp,omitempty"`
	AccountNumber string `json:"accountNumber,omitempty"`
	BankName      string `json:"bankName,omitempty"`
	BankBik       string `json:"bankBik,omitempty"`
}

// tinkoffOperation is one operation of the bank-statement response
type tinkoffOperation struct {
	ID             string              `json:"id"`
	Date           string              `json:"date"`
	Amount         decimal.Decimal     `json:"amount"`
	Currency       string              `json:"currency"`
	OperationType  string              `json:"operationType"` // Credit | Debit
	Category       string              `json:"category,omitempty"`
	Status         string              `json:"status,omitempty"`
	Counterparty   tinkoffCounterparty `json:"counterparty"`
	PaymentPurpose string              `json:"paymentPurpose"`
	Fee            decimal.Decimal     `json:"fee,omitempty"`
	BalanceAfter   *decimal.Decimal    `json:"balanceAfter,omitempty"`
}

// tinkoffStatementResponse is the bank-statement response
type tinkoffStatementResponse struct {
	Operations []tinkoffOperation `json:"operations"`
}

// tinkoffPaymentRequest is the payment submission payload
type tinkoffPaymentRequest struct {
	DocumentNumber           string           `json:"documentNumber"`
	DocumentDate             string           `json:"documentDate"`
	Amount                   decimal.Decimal  `json:"amount"`
	Purpose                  string           `json:"purpose"`
	PayerAccount             string           `json:"payerAccount"`
	RecipientName            string           `json:"recipientName"`
	RecipientInn             string           `json:"recipientInn"`
	RecipientKpp             string           `json:"recipientKpp,omitempty"`
	RecipientAccount         string           `json:"recipientAccount"`
	RecipientBankBik         string           `json:"recipientBankBik"`
	RecipientBankName        string           `json:"recipientBankName"`
	RecipientBankCorrAccount string           `json:"recipientBankCorrAccount"`
	Priority                 int              `json:"priority"`
	VatType                  string           `json:"vatType,omitempty"`
	VatAmount                *decimal.Decimal `json:"vatAmount,omitempty"`
}

// tinkoffPaymentResponse is the payment submission response
type tinkoffPaymentResponse struct {
	PaymentID string `json:"paymentId"`
}

// tinkoffPaymentStatusResponse is the payment status response
type tinkoffPaymentStatusResponse struct {
	Status string `json:"status"`
}
