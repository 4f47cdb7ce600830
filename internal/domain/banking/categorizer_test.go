package banking

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubTransactionRepo implements BankTransactionRepository for categorizer tests
type stubTransactionRepo struct {
	history []BankTransaction
	lastINN string
	lastOp  OperationType
}

func (s *stubTransactionRepo) FindByIDForTenant(ctx context.Context, tenantID, id uuid.UUID) (*BankTransaction, error) {
	return nil, nil
}

func (s *stubTransactionRepo) FindByExternalID(ctx context.Context, tenantID uuid.UUID, externalID string) (*BankTransaction, error) {
	return nil, nil
}

func (s *stubTransactionRepo) FindNewUncategorized(ctx context.Context, tenantID uuid.UUID, accountID *uuid.UUID, limit int) ([]BankTransaction, error) {
	return nil, nil
}

func (s *stubTransactionRepo) FindTenantsWithUncategorized(ctx context.Context, limit int) ([]uuid.UUID, error) {
	return nil, nil
}

func (s *stubTransactionRepo) FindRecentByCounterpartyINN(ctx context.Context, tenantID uuid.UUID, inn string, operationType OperationType, limit int) ([]BankTransaction, error) {
	s.lastINN = inn
	s.lastOp = operationType
	if len(s.history) > limit {
		return s.history[:limit], nil
	}
	return s.history, nil
}

func (s *stubTransactionRepo) Save(ctx context.Context, tx *BankTransaction) error {
	return nil
}

func newTestTransaction(t *testing.T, opType OperationType, purpose, inn string) *BankTransaction {
	t.Helper()
	tx, err := NewBankTransaction(uuid.New(), uuid.New(), uuid.NewString(), time.Now(), opType, decimal.NewFromInt(1000))
	require.NoError(t, err)
	tx.Purpose = purpose
	tx.Counterparty.INN = inn
	return tx
}

func categorizedTx(code string) BankTransaction {
	return BankTransaction{
		CategoryCode:     &code,
		ProcessingStatus: ProcessingStatusProcessed,
	}
}

func TestCategorizer_KeywordStrategy(t *testing.T) {
	c := NewCategorizer(&stubTransactionRepo{})

	tests := []struct {
		name        string
		opType      OperationType
		purpose     string
		wantCode    string
		wantNil     bool
		wantConf    float64
		wantMatched int
	}{
		{
			name:        "single rent keyword on debit",
			opType:      OperationTypeDebit,
			purpose:     "Аренда офиса за январь",
			wantCode:    "RENT",
			wantConf:    0.7,
			wantMatched: 1,
		},
		{
			name:        "income rule on credit",
			opType:      OperationTypeCredit,
			purpose:     "Оплата по договору №42",
			wantCode:    "SALES",
			wantConf:    0.7,
			wantMatched: 1,
		},
		{
			name:    "income rule never matches debit",
			opType:  OperationTypeDebit,
			purpose: "Выручка",
			wantNil: true,
		},
		{
			name:        "two keywords beat one regardless of order",
			opType:      OperationTypeDebit,
			purpose:     "Доставка и перевозка товара транспортной компанией",
			wantCode:    "TRANSPORT", // 3 transport keywords vs 1 supplies keyword
			wantConf:    1.0,         // capped at 1.0
			wantMatched: 3,
		},
		{
			name:    "empty purpose yields nothing",
			opType:  OperationTypeDebit,
			purpose: "",
			wantNil: true,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			tx := newTestTransaction(t, tc.opType, tc.purpose, "")
			result := c.categorizeByKeywords(tx)
			if tc.wantNil {
				assert.Nil(t, result)
				return
			}
			require.NotNil(t, result)
			assert.Equal(t, tc.wantCode, result.CategoryCode)
			assert.InDelta(t, tc.wantConf, result.Confidence, 0.0001)
			assert.Len(t, result.MatchedSignals, tc.wantMatched)
		})
	}
}

func TestCategorizer_KeywordTieBreakByTableOrder(t *testing.T) {
	c := NewCategorizer(&stubTransactionRepo{})

	// "налог" (TAXES) and "товар" (SUPPLIES) each match one keyword;
	// TAXES is declared earlier and must win the tie.
	tx := newTestTransaction(t, OperationTypeDebit, "Налог на товар", "")
	result := c.categorizeByKeywords(tx)
	require.NotNil(t, result)
	assert.Equal(t, "TAXES", result.CategoryCode)
}

func TestCategorizer_MixedDirectionKeywords(t *testing.T) {
	c := NewCategorizer(&stubTransactionRepo{})

	// Purpose carries both a sales keyword (income-only) and a rent
	// keyword (expense-only). On a debit, only expense rules apply.
	tx := newTestTransaction(t, OperationTypeDebit, "Оплата по договору №12 аренда офиса", "")
	result := c.categorizeByKeywords(tx)
	require.NotNil(t, result)
	assert.Equal(t, "RENT", result.CategoryCode)
}

func TestCategorizer_HistoryStrategy(t *testing.T) {
	t.Run("modal category share becomes confidence", func(t *testing.T) {
		repo := &stubTransactionRepo{}
		for i := 0; i < 8; i++ {
			repo.history = append(repo.history, categorizedTx("RENT"))
		}
		repo.history = append(repo.history, categorizedTx("UTILITIES"), categorizedTx("SUPPLIES"))

		c := NewCategorizer(repo)
		tx := newTestTransaction(t, OperationTypeDebit, "Платеж", "7701234567")

		result, err := c.categorizeByHistory(context.Background(), tx)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "RENT", result.CategoryCode)
		assert.InDelta(t, 0.8, result.Confidence, 0.0001)
		assert.Equal(t, "7701234567", repo.lastINN)
		assert.Equal(t, OperationTypeDebit, repo.lastOp)
	})

	t.Run("tie broken by first-encountered category", func(t *testing.T) {
		repo := &stubTransactionRepo{history: []BankTransaction{
			categorizedTx("UTILITIES"),
			categorizedTx("RENT"),
			categorizedTx("RENT"),
			categorizedTx("UTILITIES"),
		}}
		c := NewCategorizer(repo)
		tx := newTestTransaction(t, OperationTypeDebit, "Платеж", "7701234567")

		result, err := c.categorizeByHistory(context.Background(), tx)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "UTILITIES", result.CategoryCode)
	})

	t.Run("no INN yields nothing", func(t *testing.T) {
		c := NewCategorizer(&stubTransactionRepo{})
		tx := newTestTransaction(t, OperationTypeDebit, "Платеж", "")

		result, err := c.categorizeByHistory(context.Background(), tx)
		require.NoError(t, err)
		assert.Nil(t, result)
	})

	t.Run("no prior history yields nothing", func(t *testing.T) {
		c := NewCategorizer(&stubTransactionRepo{})
		tx := newTestTransaction(t, OperationTypeDebit, "Платеж", "7701234567")

		result, err := c.categorizeByHistory(context.Background(), tx)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestCategorizer_AutoCategorize_CombinationPolicy(t *testing.T) {
	t.Run("trusted history short-circuits keywords", func(t *testing.T) {
		repo := &stubTransactionRepo{}
		for i := 0; i < 8; i++ {
			repo.history = append(repo.history, categorizedTx("RENT"))
		}
		repo.history = append(repo.history, categorizedTx("UTILITIES"), categorizedTx("SUPPLIES"))

		c := NewCategorizer(repo)
		// The purpose would match TAXES by keyword, but 0.8 history wins
		// without the keyword strategy being consulted.
		tx := newTestTransaction(t, OperationTypeDebit, "Налог на имущество", "7701234567")

		result, err := c.AutoCategorize(context.Background(), tx)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "RENT", result.CategoryCode)
		assert.InDelta(t, 0.8, result.Confidence, 0.0001)
	})

	t.Run("higher confidence wins below trust threshold", func(t *testing.T) {
		// History: 3/5 UTILITIES = 0.6; keywords: 2 matches = 0.9
		repo := &stubTransactionRepo{history: []BankTransaction{
			categorizedTx("UTILITIES"),
			categorizedTx("UTILITIES"),
			categorizedTx("UTILITIES"),
			categorizedTx("RENT"),
			categorizedTx("SUPPLIES"),
		}}
		c := NewCategorizer(repo)
		tx := newTestTransaction(t, OperationTypeDebit, "Аренда по арендному договору", "7701234567")

		result, err := c.AutoCategorize(context.Background(), tx)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "RENT", result.CategoryCode)
		assert.InDelta(t, 0.9, result.Confidence, 0.0001)
	})

	t.Run("single strategy result wins", func(t *testing.T) {
		c := NewCategorizer(&stubTransactionRepo{})
		tx := newTestTransaction(t, OperationTypeDebit, "Аренда офиса", "")

		result, err := c.AutoCategorize(context.Background(), tx)
		require.NoError(t, err)
		require.NotNil(t, result)
		assert.Equal(t, "RENT", result.CategoryCode)
	})

	t.Run("no signal returns nil", func(t *testing.T) {
		c := NewCategorizer(&stubTransactionRepo{})
		tx := newTestTransaction(t, OperationTypeDebit, "xyz", "")

		result, err := c.AutoCategorize(context.Background(), tx)
		require.NoError(t, err)
		assert.Nil(t, result)
	})
}

func TestCategoryName(t *testing.T) {
	assert.Equal(t, "Аренда помещений", CategoryName("RENT"))
	assert.Equal(t, "CUSTOM", CategoryName("CUSTOM"))
}
