package credential

import (
	"context"
	"errors"
	"testing"

	"github.com/99designs/keyring"

	"sms-hub/internal/config"
)

func TestStatic(t *testing.T) {
	key, err := Static("abc").APIKey(context.Background())
	if err != nil || key != "abc" {
		t.Errorf("Expected 'abc', got %q (%v)", key, err)
	}

	if _, err := Static("").APIKey(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Expected ErrNotFound for empty key, got %v", err)
	}
}

func TestKeyringResolver(t *testing.T) {
	ring := keyring.NewArrayKeyring(nil)
	k := NewKeyringWith(ring, "kavenegar_api_key")

	if _, err := k.APIKey(context.Background()); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Expected ErrNotFound before the key is stored, got %v", err)
	}

	if err := ring.Set(keyring.Item{Key: "kavenegar_api_key", Data: []byte("secret")}); err != nil {
		t.Fatalf("Set: %v", err)
	}

	key, err := k.APIKey(context.Background())
	if err != nil {
		t.Fatalf("APIKey: %v", err)
	}
	if key != "secret" {
		t.Errorf("Expected 'secret', got %q", key)
	}
}

func TestNewFromConfig(t *testing.T) {
	cfg := &config.Config{
		Kavenegar:   config.KavenegarConfig{APIKey: "from-config"},
		Credentials: config.CredentialsConfig{Source: "config"},
	}
	r, err := New(cfg)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	key, err := r.APIKey(context.Background())
	if err != nil || key != "from-config" {
		t.Errorf("Expected 'from-config', got %q (%v)", key, err)
	}

	cfg.Credentials.Source = "vault"
	if _, err := New(cfg); err == nil {
		t.Error("Expected error for unknown credential source")
	}
}
