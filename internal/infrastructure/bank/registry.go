package bank

import (
	"fmt"
	"sort"
	"time"

	"github.com/bankbridge/backend/internal/domain/banking"
)

// ProviderRegistry holds the bank adapters keyed by bank code
type ProviderRegistry struct {
	providers map[banking.BankCode]banking.BankProvider
}

// NewProviderRegistry builds the adapters for every bank in the endpoint
// registry that has a wire adapter implemented. Banks listed without an
// adapter (statement import via manual upload only) are skipped.
func NewProviderRegistry(endpoints Registry) (*ProviderRegistry, error) {
	return NewProviderRegistryWithTimeout(endpoints, 0)
}

// NewProviderRegistryWithTimeout builds the registry with an explicit
// per-request HTTP timeout for every adapter. Zero keeps the adapter
// default.
func NewProviderRegistryWithTimeout(endpoints Registry, timeout time.Duration) (*ProviderRegistry, error) {
	r := &ProviderRegistry{
		providers: make(map[banking.BankCode]banking.BankProvider),
	}

	if ep, ok := endpoints[banking.BankCodeTinkoff]; ok {
		cfg := TinkoffConfigFromEndpoints(ep)
		cfg.Timeout = timeout
		adapter, err := NewTinkoffAdapter(cfg)
		if err != nil {
			return nil, fmt.Errorf("bank: failed to build tinkoff adapter: %w", err)
		}
		r.register(adapter)
	}

	return r, nil
}

func (r *ProviderRegistry) register(p banking.BankProvider) {
	r.providers[p.BankCode()] = p
}

// Provider returns the adapter for the given bank code
func (r *ProviderRegistry) Provider(code banking.BankCode) (banking.BankProvider, error) {
	p, ok := r.providers[code]
	if !ok {
		return nil, fmt.Errorf("%w: %s", banking.ErrBankNotConfigured, code)
	}
	return p, nil
}

// Providers returns all registered adapters in stable order
func (r *ProviderRegistry) Providers() []banking.BankProvider {
	result := make([]banking.BankProvider, 0, len(r.providers))
	for _, p := range r.providers {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].BankCode() < result[j].BankCode()
	})
	return result
}

// Ensure ProviderRegistry implements BankProviderRegistry
var _ banking.BankProviderRegistry = (*ProviderRegistry)(nil)
