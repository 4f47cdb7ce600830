package banking

import (
	"context"
	"fmt"
	"strings"
)

const (
	// historyTrustThreshold short-circuits the keyword strategy: a
	// counterparty categorized this consistently is trusted outright.
	historyTrustThreshold = 0.7

	// historySampleSize bounds how far back the history strategy looks
	historySampleSize = 10
)

// CategorizationResult is one automatic categorization guess
type CategorizationResult struct {
	CategoryCode   string   `json:"category_code"`
	CategoryName   string   `json:"category_name"`
	Confidence     float64  `json:"confidence"` // In [0, 1]
	MatchedSignals []string `json:"matched_signals"`
}

// keywordRule maps purpose-text substrings to a category for one
// operation direction. Rule order is significant: among rules with the
// same matched-keyword count, the first declared wins.
type keywordRule struct {
	categoryCode string
	categoryName string
	direction    OperationType
	keywords     []string
}

// keywordRules is the fixed, ordered categorization table. Income rules
// only match credits, expense rules only match debits.
var keywordRules = []keywordRule{
	// Expense rules (debits)
	{"RENT", "Аренда помещений", OperationTypeDebit, []string{"аренда", "арендн"}},
	{"SALARY", "Заработная плата", OperationTypeDebit, []string{"зарплат", "заработн", "аванс сотрудник"}},
	{"TAXES", "Налоги и взносы", OperationTypeDebit, []string{"налог", "ндфл", "страхов взнос", "пени"}},
	{"SUPPLIES", "Закупка товаров и материалов", OperationTypeDebit, []string{"товар", "материал", "закупк", "поставк"}},
	{"UTILITIES", "Коммунальные услуги", OperationTypeDebit, []string{"коммунальн", "электроэнерг", "отоплен", "водоснабж"}},
	{"BANK_FEES", "Банковские комиссии", OperationTypeDebit, []string{"комисси", "обслуживание счета", "рко"}},
	{"COMMUNICATIONS", "Связь и интернет", OperationTypeDebit, []string{"интернет", "связь", "телефони"}},
	{"TRANSPORT", "Транспорт и доставка", OperationTypeDebit, []string{"доставк", "транспорт", "перевозк", "топлив"}},
	{"ADVERTISING", "Реклама и маркетинг", OperationTypeDebit, []string{"реклам", "маркетинг", "продвижен"}},

	// Income rules (credits)
	{"SALES", "Выручка от продаж", OperationTypeCredit, []string{"оплата по договору", "оплата по счету", "оплата товар", "оплата услуг", "выручка"}},
	{"CLIENT_REFUNDS", "Возвраты от поставщиков", OperationTypeCredit, []string{"возврат"}},
	{"LOANS", "Кредиты и займы", OperationTypeCredit, []string{"кредит", "займ", "заем"}},
	{"INTEREST", "Проценты по депозитам", OperationTypeCredit, []string{"процент", "депозит"}},
}

// Categorizer assigns spending/income categories to ingested transactions
// using keyword rules and counterparty payment history, each with a
// confidence score.
type Categorizer struct {
	transactions BankTransactionRepository
}

// NewCategorizer creates a categorizer backed by the transaction history
func NewCategorizer(transactions BankTransactionRepository) *Categorizer {
	return &Categorizer{transactions: transactions}
}

// AutoCategorize returns the best categorization guess for a transaction,
// or nil when neither strategy produced a signal. History is consulted
// first; a sufficiently consistent counterparty wins outright, otherwise
// the higher-confidence strategy wins.
func (c *Categorizer) AutoCategorize(ctx context.Context, tx *BankTransaction) (*CategorizationResult, error) {
	history, err := c.categorizeByHistory(ctx, tx)
	if err != nil {
		return nil, err
	}
	if history != nil && history.Confidence >= historyTrustThreshold {
		return history, nil
	}

	keyword := c.categorizeByKeywords(tx)

	switch {
	case history == nil:
		return keyword, nil
	case keyword == nil:
		return history, nil
	case keyword.Confidence > history.Confidence:
		return keyword, nil
	default:
		return history, nil
	}
}

// categorizeByKeywords scans the ordered rule table for the transaction's
// direction. The rule matching the most keywords wins; ties are broken by
// table order. Confidence = min(0.5 + 0.2 * matched, 1.0).
func (c *Categorizer) categorizeByKeywords(tx *BankTransaction) *CategorizationResult {
	purpose := strings.ToLower(tx.Purpose)
	if purpose == "" {
		return nil
	}

	var best *CategorizationResult
	bestCount := 0
	for _, rule := range keywordRules {
		if rule.direction != tx.OperationType {
			continue
		}
		var matched []string
		for _, kw := range rule.keywords {
			if strings.Contains(purpose, kw) {
				matched = append(matched, kw)
			}
		}
		if len(matched) > bestCount {
			bestCount = len(matched)
			best = &CategorizationResult{
				CategoryCode:   rule.categoryCode,
				CategoryName:   rule.categoryName,
				Confidence:     keywordConfidence(len(matched)),
				MatchedSignals: matched,
			}
		}
	}
	return best
}

// categorizeByHistory samples the counterparty's most recent processed,
// categorized transactions in the same direction. Confidence is the share
// of the most frequent category; ties go to the first-encountered
// category in the frequency scan.
func (c *Categorizer) categorizeByHistory(ctx context.Context, tx *BankTransaction) (*CategorizationResult, error) {
	inn := tx.Counterparty.INN
	if inn == "" {
		return nil, nil
	}

	sample, err := c.transactions.FindRecentByCounterpartyINN(ctx, tx.TenantID, inn, tx.OperationType, historySampleSize)
	if err != nil {
		return nil, fmt.Errorf("history categorization: %w", err)
	}
	if len(sample) == 0 {
		return nil, nil
	}

	counts := make(map[string]int)
	var topCode string
	topCount := 0
	for _, prev := range sample {
		if prev.CategoryCode == nil {
			continue
		}
		code := *prev.CategoryCode
		counts[code]++
		if counts[code] > topCount {
			topCount = counts[code]
			topCode = code
		}
	}
	if topCount == 0 {
		return nil, nil
	}

	return &CategorizationResult{
		CategoryCode: topCode,
		CategoryName: CategoryName(topCode),
		Confidence:   float64(topCount) / float64(len(sample)),
		MatchedSignals: []string{
			fmt.Sprintf("counterparty %s: %d/%d %s", inn, topCount, len(sample), topCode),
		},
	}, nil
}

// keywordConfidence computes the keyword strategy confidence
func keywordConfidence(matched int) float64 {
	conf := 0.5 + 0.2*float64(matched)
	if conf > 1.0 {
		return 1.0
	}
	return conf
}

// CategoryName returns the display name for a category code, falling back
// to the code itself for manually assigned categories outside the table
func CategoryName(code string) string {
	for _, rule := range keywordRules {
		if rule.categoryCode == code {
			return rule.categoryName
		}
	}
	return code
}

// KnownCategoryCodes lists the codes of the built-in rule table
func KnownCategoryCodes() []string {
	codes := make([]string, 0, len(keywordRules))
	for _, rule := range keywordRules {
		codes = append(codes, rule.categoryCode)
	}
	return codes
}
