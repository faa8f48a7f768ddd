// Package credential resolves the gateway API key on behalf of the client.
// The key is looked up on every request and never cached or logged here.
package credential

import (
	"context"
	"errors"
	"fmt"

	"sms-hub/internal/config"
)

// ErrNotFound is returned when a resolver has no value for the API key.
var ErrNotFound = errors.New("credential not found")

// Resolver returns the current gateway API key.
type Resolver interface {
	APIKey(ctx context.Context) (string, error)
}

// Static resolves to a fixed value, typically read from config or the environment.
type Static string

func (s Static) APIKey(context.Context) (string, error) {
	if s == "" {
		return "", ErrNotFound
	}
	return string(s), nil
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context) (string, error)

func (f ResolverFunc) APIKey(ctx context.Context) (string, error) {
	return f(ctx)
}

// New builds the resolver selected by cfg.Credentials.Source.
func New(cfg *config.Config) (Resolver, error) {
	switch cfg.Credentials.Source {
	case "", "config":
		return Static(cfg.Kavenegar.APIKey), nil
	case "keyring":
		return NewKeyring(KeyringConfig{
			Service: cfg.Credentials.KeyringService,
			Key:     cfg.Credentials.KeyringKey,
			FileDir: cfg.Credentials.KeyringDir,
		})
	default:
		return nil, fmt.Errorf("unknown credential source %q", cfg.Credentials.Source)
	}
}
