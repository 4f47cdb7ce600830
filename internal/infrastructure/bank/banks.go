package bank

import (
	"github.com/bankbridge/backend/internal/domain/banking"
)

// Endpoints is the static OAuth and API configuration for one bank. The
// table below is process-wide immutable configuration, injected into the
// adapter constructors; it is never mutated at runtime.
type Endpoints struct {
	AuthorizeURL      string
	TokenURL          string
	Scope             string
	APIBaseURL        string
	SandboxAPIBaseURL string
	SupportsPayments  bool
}

// Registry is the immutable per-bank configuration table keyed by bank code
type Registry map[banking.BankCode]Endpoints

// DefaultRegistry returns the built-in bank configuration table
func DefaultRegistry() Registry {
	return Registry{
		banking.BankCodeTinkoff: {
			AuthorizeURL:      "https://id.tinkoff.ru/auth/authorize",
			TokenURL:          "https://id.tinkoff.ru/auth/token",
			Scope:             "opensme/inquiries opensme/payments",
			APIBaseURL:        "https://business.tinkoff.ru/openapi/api/v1",
			SandboxAPIBaseURL: "https://business.tinkoff.ru/openapi/sandbox/api/v1",
			SupportsPayments:  true,
		},
		banking.BankCodeSber: {
			AuthorizeURL:      "https://sbi.sberbank.ru:9443/ic/sso/api/v2/oauth/authorize",
			TokenURL:          "https://fintech.sberbank.ru:9443/ic/sso/api/v2/oauth/token",
			Scope:             "openapi statements",
			APIBaseURL:        "https://fintech.sberbank.ru:9443/fintech/api/v1",
			SandboxAPIBaseURL: "https://iftfintech.testsbi.sberbank.ru:9443/fintech/api/v1",
			SupportsPayments:  false,
		},
		banking.BankCodeAlfa: {
			AuthorizeURL:      "https://sandbox.alfabank.ru/oidc/authorize",
			TokenURL:          "https://sandbox.alfabank.ru/oidc/token",
			Scope:             "openid accounts statements",
			APIBaseURL:        "https://baas.alfabank.ru/api/v1",
			SandboxAPIBaseURL: "https://sandbox.alfabank.ru/api/v1",
			SupportsPayments:  false,
		},
	}
}
