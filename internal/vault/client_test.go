package vault

import (
	"context"
	"testing"

	"options-relay/config"
)

func TestLoadReturnsFallbackWhenDisabled(t *testing.T) {
	c, err := NewClient(config.VaultConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}

	fallback := Credentials{BrokerAppID: "1089", JWTSigningSecret: "dev-secret", OperatorPasswordHash: "hash"}
	got, err := c.Load(context.Background(), fallback)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got != fallback {
		t.Fatalf("Load() = %+v, want fallback %+v", got, fallback)
	}
}

func TestHealthIsNilWhenDisabled(t *testing.T) {
	c, err := NewClient(config.VaultConfig{Enabled: false})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if err := c.Health(context.Background()); err != nil {
		t.Fatalf("Health() on disabled client = %v, want nil", err)
	}
}

func TestIsEnabled(t *testing.T) {
	c, _ := NewClient(config.VaultConfig{Enabled: false})
	if c.IsEnabled() {
		t.Fatal("expected disabled client to report IsEnabled() == false")
	}
}
