package banking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/mock"

	"github.com/bankbridge/backend/internal/domain/banking"
)

// =============================================================================
// Repository mocks
// =============================================================================

type MockIntegrationRepo struct {
	mock.Mock
}

func (m *MockIntegrationRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankIntegration, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankIntegration), args.Error(1)
}

func (m *MockIntegrationRepo) FindByBankCode(ctx context.Context, tenantID uuid.UUID, code banking.BankCode) (*banking.BankIntegration, error) {
	args := m.Called(ctx, tenantID, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankIntegration), args.Error(1)
}

func (m *MockIntegrationRepo) FindByOAuthState(ctx context.Context, state string) (*banking.BankIntegration, error) {
	args := m.Called(ctx, state)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankIntegration), args.Error(1)
}

func (m *MockIntegrationRepo) Save(ctx context.Context, integration *banking.BankIntegration) error {
	args := m.Called(ctx, integration)
	return args.Error(0)
}

type MockAccountRepo struct {
	mock.Mock
}

func (m *MockAccountRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankAccount, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankAccount), args.Error(1)
}

func (m *MockAccountRepo) FindByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) ([]banking.BankAccount, error) {
	args := m.Called(ctx, tenantID, integrationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.BankAccount), args.Error(1)
}

func (m *MockAccountRepo) CountByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID) (int64, error) {
	args := m.Called(ctx, tenantID, integrationID)
	return args.Get(0).(int64), args.Error(1)
}

func (m *MockAccountRepo) Save(ctx context.Context, account *banking.BankAccount) error {
	args := m.Called(ctx, account)
	return args.Error(0)
}

type MockTransactionRepo struct {
	mock.Mock
}

func (m *MockTransactionRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.BankTransaction, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepo) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*banking.BankTransaction, error) {
	args := m.Called(ctx, tenantID, externalID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepo) FindNewUncategorized(ctx context.Context, tenantID uuid.UUID, accountID *uuid.UUID, limit int) ([]banking.BankTransaction, error) {
	args := m.Called(ctx, tenantID, accountID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepo) FindTenantsWithUncategorized(ctx context.Context, limit int) ([]uuid.UUID, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]uuid.UUID), args.Error(1)
}

func (m *MockTransactionRepo) FindRecentByCounterpartyINN(ctx context.Context, tenantID uuid.UUID, inn string, operationType banking.OperationType, limit int) ([]banking.BankTransaction, error) {
	args := m.Called(ctx, tenantID, inn, operationType, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.BankTransaction), args.Error(1)
}

func (m *MockTransactionRepo) Save(ctx context.Context, tx *banking.BankTransaction) error {
	args := m.Called(ctx, tx)
	return args.Error(0)
}

type MockOrderRepo struct {
	mock.Mock
}

func (m *MockOrderRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*banking.PaymentOrder, error) {
	args := m.Called(ctx, tenantID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.PaymentOrder), args.Error(1)
}

func (m *MockOrderRepo) FindInFlight(ctx context.Context, limit int) ([]banking.PaymentOrder, error) {
	args := m.Called(ctx, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.PaymentOrder), args.Error(1)
}

func (m *MockOrderRepo) Save(ctx context.Context, order *banking.PaymentOrder) error {
	args := m.Called(ctx, order)
	return args.Error(0)
}

type MockSyncLogRepo struct {
	mock.Mock
}

func (m *MockSyncLogRepo) FindByIntegration(ctx context.Context, tenantID, integrationID uuid.UUID, limit int) ([]banking.BankSyncLog, error) {
	args := m.Called(ctx, tenantID, integrationID, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.BankSyncLog), args.Error(1)
}

func (m *MockSyncLogRepo) Save(ctx context.Context, log *banking.BankSyncLog) error {
	args := m.Called(ctx, log)
	return args.Error(0)
}

// =============================================================================
// Provider mocks
// =============================================================================

type MockBankProvider struct {
	mock.Mock
}

func (m *MockBankProvider) BankCode() banking.BankCode {
	args := m.Called()
	return args.Get(0).(banking.BankCode)
}

func (m *MockBankProvider) SupportsPayments() bool {
	args := m.Called()
	return args.Bool(0)
}

func (m *MockBankProvider) AuthorizeURL(req banking.OAuthRequest, state string) string {
	args := m.Called(req, state)
	return args.String(0)
}

func (m *MockBankProvider) ExchangeAuthCode(ctx context.Context, req banking.OAuthRequest, code string) (*banking.TokenPair, error) {
	args := m.Called(ctx, req, code)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.TokenPair), args.Error(1)
}

func (m *MockBankProvider) RefreshToken(ctx context.Context, req banking.OAuthRequest, refreshToken string) (*banking.TokenPair, error) {
	args := m.Called(ctx, req, refreshToken)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.TokenPair), args.Error(1)
}

func (m *MockBankProvider) ListAccounts(ctx context.Context, token string, sandbox bool) ([]banking.ExternalAccount, error) {
	args := m.Called(ctx, token, sandbox)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]banking.ExternalAccount), args.Error(1)
}

func (m *MockBankProvider) FetchStatement(ctx context.Context, token string, sandbox bool, accountNumber string, from, to time.Time) (*banking.Statement, error) {
	args := m.Called(ctx, token, sandbox, accountNumber, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*banking.Statement), args.Error(1)
}

func (m *MockBankProvider) SubmitPayment(ctx context.Context, token string, sandbox bool, req banking.PaymentRequest) (string, error) {
	args := m.Called(ctx, token, sandbox, req)
	return args.String(0), args.Error(1)
}

func (m *MockBankProvider) GetPaymentStatus(ctx context.Context, token string, sandbox bool, paymentID string) (string, error) {
	args := m.Called(ctx, token, sandbox, paymentID)
	return args.String(0), args.Error(1)
}

func (m *MockBankProvider) CancelPayment(ctx context.Context, token string, sandbox bool, paymentID string) error {
	args := m.Called(ctx, token, sandbox, paymentID)
	return args.Error(0)
}

// stubRegistry returns the same provider for every bank code
type stubRegistry struct {
	provider banking.BankProvider
}

func (r *stubRegistry) Provider(code banking.BankCode) (banking.BankProvider, error) {
	if r.provider == nil {
		return nil, banking.ErrBankNotConfigured
	}
	return r.provider, nil
}

func (r *stubRegistry) Providers() []banking.BankProvider {
	if r.provider == nil {
		return nil
	}
	return []banking.BankProvider{r.provider}
}

// =============================================================================
// Supporting mocks
// =============================================================================

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) ArchiveStatement(ctx context.Context, tenantID, integrationID uuid.UUID, accountNumber string, fetchedAt time.Time, payload []byte) error {
	args := m.Called(ctx, tenantID, integrationID, accountNumber, fetchedAt, payload)
	return args.Error(0)
}

type stubIdempotencyStore struct {
	seen map[string]bool
}

func newStubIdempotencyStore() *stubIdempotencyStore {
	return &stubIdempotencyStore{seen: make(map[string]bool)}
}

func (s *stubIdempotencyStore) MarkProcessed(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	if s.seen[key] {
		return false, nil
	}
	s.seen[key] = true
	return true, nil
}

func (s *stubIdempotencyStore) IsProcessed(ctx context.Context, key string) (bool, error) {
	return s.seen[key], nil
}

func (s *stubIdempotencyStore) Close() error { return nil }
