package credential

import (
	"context"
	"errors"
	"fmt"

	"github.com/99designs/keyring"
)

// KeyringConfig points at the entry holding the API key in the system keyring.
type KeyringConfig struct {
	Service string
	Key     string
	FileDir string
}

// Keyring resolves the API key from the system keyring.
type Keyring struct {
	ring keyring.Keyring
	key  string
}

// NewKeyring opens the system keyring, falling back to an encrypted file backend.
func NewKeyring(cfg KeyringConfig) (*Keyring, error) {
	if cfg.Service == "" {
		cfg.Service = "sms-hub"
	}
	if cfg.FileDir == "" {
		cfg.FileDir = "~/.config/sms-hub/credentials"
	}

	ring, err := keyring.Open(keyring.Config{
		ServiceName: cfg.Service,
		AllowedBackends: []keyring.BackendType{
			keyring.KeychainBackend,
			keyring.SecretServiceBackend,
			keyring.WinCredBackend,
			keyring.PassBackend,
			keyring.FileBackend,
		},
		FileDir:                  cfg.FileDir,
		FilePasswordFunc:         keyring.FixedStringPrompt(cfg.Service + "-file-key"),
		KeychainTrustApplication: true,
	})
	if err != nil {
		return nil, fmt.Errorf("opening keyring: %w", err)
	}
	return NewKeyringWith(ring, cfg.Key), nil
}

// NewKeyringWith wraps an already opened keyring.
func NewKeyringWith(ring keyring.Keyring, key string) *Keyring {
	return &Keyring{ring: ring, key: key}
}

func (k *Keyring) APIKey(context.Context) (string, error) {
	item, err := k.ring.Get(k.key)
	if err != nil {
		if errors.Is(err, keyring.ErrKeyNotFound) {
			return "", ErrNotFound
		}
		return "", fmt.Errorf("getting credential %q: %w", k.key, err)
	}
	if len(item.Data) == 0 {
		return "", ErrNotFound
	}
	return string(item.Data), nil
}
