package store

import (
	"context"
	"testing"

	"options-relay/config"
)

func TestNewDBRejectsMalformedDSN(t *testing.T) {
	_, err := NewDB(context.Background(), config.DatabaseConfig{DSN: "postgres://%zz"})
	if err == nil {
		t.Fatal("expected a malformed DSN to be rejected before any network call")
	}
}
