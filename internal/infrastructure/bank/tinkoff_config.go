package bank

import (
	"errors"
	"time"
)

// Tinkoff adapter errors
var (
	ErrTinkoffMissingAuthorizeURL = errors.New("tinkoff: missing authorize URL")
	ErrTinkoffMissingTokenURL     = errors.New("tinkoff: missing token URL")
	ErrTinkoffMissingAPIBaseURL   = errors.New("tinkoff: missing API base URL")
)

// TinkoffConfig holds the endpoint configuration for the Tinkoff adapter
type TinkoffConfig struct {
	AuthorizeURL      string
	TokenURL          string
	Scope             string
	APIBaseURL        string
	SandboxAPIBaseURL string
	Timeout           time.Duration
}

// Validate checks that all required endpoints are configured
func (c *TinkoffConfig) Validate() error {
	if c.AuthorizeURL == "" {
		return ErrTinkoffMissingAuthorizeURL
	}
	if c.TokenURL == "" {
		return ErrTinkoffMissingTokenURL
	}
	if c.APIBaseURL == "" {
		return ErrTinkoffMissingAPIBaseURL
	}
	if c.SandboxAPIBaseURL == "" {
		c.SandboxAPIBaseURL = c.APIBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	return nil
}

// TinkoffConfigFromEndpoints builds a TinkoffConfig from the static bank
// registry entry
func TinkoffConfigFromEndpoints(ep Endpoints) *TinkoffConfig {
	return &TinkoffConfig{
		AuthorizeURL:      ep.AuthorizeURL,
		TokenURL:          ep.TokenURL,
		Scope:             ep.Scope,
		APIBaseURL:        ep.APIBaseURL,
		SandboxAPIBaseURL: ep.SandboxAPIBaseURL,
	}
}
