package cache

import (
	"context"
	"testing"

	"options-relay/config"
	"options-relay/internal/logging"
)

func newTestService(t *testing.T) *Service {
	t.Helper()
	log := logging.New(logging.Config{Level: "ERROR"})
	s, err := NewService(config.RedisConfig{Enabled: false}, log)
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return s
}

func TestDisabledServiceRejectsEveryOperation(t *testing.T) {
	s := newTestService(t)
	ctx := context.Background()

	if err := s.LockContract(ctx, 1); err != ErrUnavailable {
		t.Fatalf("LockContract() = %v, want ErrUnavailable", err)
	}
	if err := s.ReleaseContract(ctx, 1); err != ErrUnavailable {
		t.Fatalf("ReleaseContract() = %v, want ErrUnavailable", err)
	}
	if err := s.PutAnalysisSnapshot(ctx, AnalysisSnapshot{Asset: "R_100"}); err != ErrUnavailable {
		t.Fatalf("PutAnalysisSnapshot() = %v, want ErrUnavailable", err)
	}
	if _, err := s.GetAnalysisSnapshot(ctx, "R_100"); err != ErrUnavailable {
		t.Fatalf("GetAnalysisSnapshot() = %v, want ErrUnavailable", err)
	}
}

func TestDisabledServiceReportsUnhealthy(t *testing.T) {
	s := newTestService(t)
	if s.IsHealthy() {
		t.Fatal("expected a disabled service to report unhealthy")
	}
}

// The circuit breaker opens after maxFailures consecutive failures and
// closes again on the next recorded success, independent of any real Redis
// round trip.
func TestCircuitBreakerOpensAfterMaxFailuresAndRecovers(t *testing.T) {
	s := newTestService(t)
	s.maxFailures = 3
	s.healthy = true

	for i := 0; i < 2; i++ {
		s.recordFailure()
	}
	if !s.IsHealthy() {
		t.Fatal("expected circuit to still be closed below maxFailures")
	}

	s.recordFailure()
	if s.IsHealthy() {
		t.Fatal("expected circuit to open once failures reach maxFailures")
	}

	s.recordSuccess()
	if !s.IsHealthy() {
		t.Fatal("expected circuit to close on recorded success")
	}
	if s.failureCount != 0 {
		t.Fatalf("failureCount = %d, want 0 after recordSuccess", s.failureCount)
	}
}

func TestCloseOnDisabledServiceIsNoop(t *testing.T) {
	s := newTestService(t)
	if err := s.Close(); err != nil {
		t.Fatalf("Close() on disabled service = %v, want nil", err)
	}
}
