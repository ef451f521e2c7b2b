// Package vault loads the relay's startup secrets — the broker app_id, the
// JWT signing secret, and the operator's bcrypt password hash — from
// HashiCorp Vault when enabled, falling back to the values already read
// from config/env otherwise. Grounded on internal/vault/client.go's Client
// (api.DefaultConfig + TLS, Logical().ReadWithContext against a KV-v2 path,
// an in-memory cache so repeated Load calls don't round-trip to Vault),
// narrowed from a per-user exchange-API-key store to this relay's single
// set of process-lifetime secrets.
package vault

import (
	"context"
	"fmt"
	"sync"

	"github.com/hashicorp/vault/api"

	"options-relay/config"
)

// Credentials is the full set of secrets the relay needs at startup.
type Credentials struct {
	BrokerAppID          string
	JWTSigningSecret     string
	OperatorPasswordHash string
}

// Client wraps a Vault KV-v2 read for Credentials.
type Client struct {
	client *api.Client
	cfg    config.VaultConfig

	mu     sync.RWMutex
	cached *Credentials
}

// NewClient constructs a Client. When cfg.Enabled is false, Load always
// returns its fallback argument unchanged and no Vault connection is made.
func NewClient(cfg config.VaultConfig) (*Client, error) {
	if !cfg.Enabled {
		return &Client{cfg: cfg}, nil
	}

	vc := api.DefaultConfig()
	vc.Address = cfg.Address

	client, err := api.NewClient(vc)
	if err != nil {
		return nil, fmt.Errorf("vault: new client: %w", err)
	}
	client.SetToken(cfg.Token)

	return &Client{client: client, cfg: cfg}, nil
}

// Load returns the relay's Credentials, reading from Vault on first call
// and caching thereafter. fallback is returned as-is when Vault is
// disabled, and used to fill any field Vault's secret doesn't set.
func (c *Client) Load(ctx context.Context, fallback Credentials) (Credentials, error) {
	if !c.cfg.Enabled {
		return fallback, nil
	}

	c.mu.RLock()
	if c.cached != nil {
		cached := *c.cached
		c.mu.RUnlock()
		return cached, nil
	}
	c.mu.RUnlock()

	path := fmt.Sprintf("%s/data/%s", c.cfg.MountPath, c.cfg.SecretPath)
	secret, err := c.client.Logical().ReadWithContext(ctx, path)
	if err != nil {
		return Credentials{}, fmt.Errorf("vault: read %s: %w", path, err)
	}
	if secret == nil || secret.Data == nil {
		return Credentials{}, fmt.Errorf("vault: no secret at %s", path)
	}

	data, ok := secret.Data["data"].(map[string]interface{})
	if !ok {
		return Credentials{}, fmt.Errorf("vault: unexpected secret shape at %s", path)
	}

	creds := Credentials{
		BrokerAppID:          orString(data, "broker_app_id", fallback.BrokerAppID),
		JWTSigningSecret:     orString(data, "jwt_signing_secret", fallback.JWTSigningSecret),
		OperatorPasswordHash: orString(data, "operator_password_hash", fallback.OperatorPasswordHash),
	}

	c.mu.Lock()
	c.cached = &creds
	c.mu.Unlock()

	return creds, nil
}

// Health reports whether Vault is reachable and unsealed. A disabled
// client is always healthy.
func (c *Client) Health(ctx context.Context) error {
	if !c.cfg.Enabled {
		return nil
	}
	health, err := c.client.Sys().Health()
	if err != nil {
		return fmt.Errorf("vault: health check: %w", err)
	}
	if health.Sealed {
		return fmt.Errorf("vault: sealed")
	}
	return nil
}

// IsEnabled reports whether this Client talks to a real Vault server.
func (c *Client) IsEnabled() bool {
	return c.cfg.Enabled
}

func orString(data map[string]interface{}, key, fallback string) string {
	if v, ok := data[key].(string); ok && v != "" {
		return v
	}
	return fallback
}
