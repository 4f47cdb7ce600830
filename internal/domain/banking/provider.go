package banking

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"
)

// ---------------------------------------------------------------------------
// BankProvider Errors
// ---------------------------------------------------------------------------

var (
	ErrBankNotConfigured   = errors.New("banking: bank not configured")
	ErrBankUnavailable     = errors.New("banking: bank temporarily unavailable")
	ErrBankRequestFailed   = errors.New("banking: bank request failed")
	ErrBankInvalidResponse = errors.New("banking: invalid bank response")
	ErrBankAuthFailed      = errors.New("banking: bank authentication failed")

	ErrNoToken            = errors.New("banking: integration has no access token")
	ErrTokenRefreshFailed = errors.New("banking: token refresh rejected by bank")
	ErrOAuthStateMismatch = errors.New("banking: oauth state mismatch")

	ErrPaymentsNotSupported = errors.New("banking: bank does not support programmatic payments")
	ErrPaymentNotSent       = errors.New("banking: payment order has no external id")
)

// ---------------------------------------------------------------------------
// Wire value objects
// ---------------------------------------------------------------------------

// ExternalAccount is one account as reported by the bank
type ExternalAccount struct {
	AccountNumber string
	Name          string
	Currency      string
	Balance       decimal.Decimal
	Status        string
}

// StatementOperation is one operation of a bank statement
type StatementOperation struct {
	ExternalID    string
	Date          time.Time
	OperationType OperationType
	Amount        decimal.Decimal
	Currency      string
	Category      string
	Status        string
	Counterparty  Counterparty
	Purpose       string
	Fee           decimal.Decimal
	BalanceAfter  *decimal.Decimal
	RawPayload    string
}

// Statement is the result of one statement fetch
type Statement struct {
	Operations []StatementOperation
	RawPayload string
}

// PaymentRequest is the bank-agnostic payment submission payload
type PaymentRequest struct {
	DocumentNumber string
	DocumentDate   time.Time
	Amount         decimal.Decimal
	Purpose        string
	PayerAccount   string
	Recipient      PaymentRecipient
	Priority       int
	VATType        string
	VATAmount      *decimal.Decimal
}

// TokenPair is the result of an OAuth code exchange or refresh
type TokenPair struct {
	AccessToken  string
	RefreshToken string
	ExpiresIn    int64 // Seconds
}

// OAuthRequest carries the per-integration OAuth parameters for a
// token-endpoint call
type OAuthRequest struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
	Sandbox      bool
}

// ---------------------------------------------------------------------------
// BankProvider
// ---------------------------------------------------------------------------

// BankProvider adapts one bank's REST contract to our domain calls. One
// implementation per bank code; all calls are authenticated with a token
// supplied by the caller, never stored in the adapter.
type BankProvider interface {
	// BankCode returns the bank this adapter handles
	BankCode() BankCode

	// SupportsPayments returns true if the bank exposes a programmatic
	// payment submission API
	SupportsPayments() bool

	// AuthorizeURL builds the bank's OAuth authorize redirect
	AuthorizeURL(req OAuthRequest, state string) string

	// ExchangeAuthCode exchanges an authorization code for a token pair
	ExchangeAuthCode(ctx context.Context, req OAuthRequest, code string) (*TokenPair, error)

	// RefreshToken exchanges a refresh token for a fresh token pair
	RefreshToken(ctx context.Context, req OAuthRequest, refreshToken string) (*TokenPair, error)

	// ListAccounts lists the accounts visible to the token
	ListAccounts(ctx context.Context, token string, sandbox bool) ([]ExternalAccount, error)

	// FetchStatement fetches the statement for an account/date window
	FetchStatement(ctx context.Context, token string, sandbox bool, accountNumber string, from, to time.Time) (*Statement, error)

	// SubmitPayment submits a payment order and returns the bank-assigned
	// payment id
	SubmitPayment(ctx context.Context, token string, sandbox bool, req PaymentRequest) (string, error)

	// GetPaymentStatus returns the bank's raw status string for a payment
	GetPaymentStatus(ctx context.Context, token string, sandbox bool, paymentID string) (string, error)

	// CancelPayment requests cancellation of an in-flight payment
	CancelPayment(ctx context.Context, token string, sandbox bool, paymentID string) error
}

// BankProviderRegistry resolves the adapter for a bank code
type BankProviderRegistry interface {
	// Provider returns the adapter for the given bank code
	Provider(code BankCode) (BankProvider, error)

	// Providers returns all registered adapters
	Providers() []BankProvider
}

// MapBankPaymentStatus maps the bank status vocabulary onto the local
// payment order state machine
func MapBankPaymentStatus(bankStatus string) (PaymentOrderStatus, bool) {
	switch bankStatus {
	case "CREATED":
		return PaymentOrderStatusSent, true
	case "ACCEPTED":
		return PaymentOrderStatusAccepted, true
	case "PROCESSING":
		return PaymentOrderStatusProcessing, true
	case "EXECUTED":
		return PaymentOrderStatusExecuted, true
	case "REJECTED":
		return PaymentOrderStatusRejected, true
	case "CANCELLED":
		return PaymentOrderStatusCancelled, true
	}
	return "", false
}
