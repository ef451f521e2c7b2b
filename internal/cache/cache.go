// Package cache provides the relay's Redis-backed contract dedup lock and
// analysis snapshot cache. Grounded on internal/cache/cache_service.go's
// CacheService (redis.NewClient wiring, a circuit breaker that marks the
// client unhealthy after repeated failures and retries on a backoff, JSON
// Get/Set helpers), generalized from a settings cache to the relay's own
// two concerns: claiming a contractId exactly once (§4.3: "No two open
// contracts may share the same contractId") and serving the last analysis
// snapshot per asset to the REST status surface without round-tripping
// through a worker.
package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"options-relay/config"
	"options-relay/internal/logging"
)

// contractLockTTL bounds how long a contractId claim survives if the relay
// crashes before releasing it; a contract's life cycle (open -> sold or
// expired) never legitimately takes this long.
const contractLockTTL = 24 * time.Hour

const contractLockPrefix = "options-relay:contract:"

const analysisSnapshotPrefix = "options-relay:analysis:"

// Service wraps a Redis client with the same degrade-on-failure posture as
// the teacher's CacheService: once a configured number of consecutive
// operations fail, the circuit opens and every call short-circuits with
// ErrUnavailable until a background health check succeeds again.
type Service struct {
	client *redis.Client
	cfg    config.RedisConfig
	log    *logging.Logger

	mu           sync.RWMutex
	healthy      bool
	failureCount int
	lastCheck    time.Time

	maxFailures   int
	checkInterval time.Duration
}

// ErrUnavailable is returned by every Service method while the circuit
// breaker is open.
var ErrUnavailable = fmt.Errorf("cache: redis unavailable (circuit breaker open)")

// ErrContractAlreadyLocked is returned by LockContract when another holder
// already owns the contractId's lock.
var ErrContractAlreadyLocked = fmt.Errorf("cache: contract already locked")

// NewService connects to Redis and returns a Service. A failed initial ping
// does not prevent construction; the service starts in degraded mode and
// retries on its own schedule, matching the teacher's "graceful degradation"
// posture for a dependency that is not required for every code path.
func NewService(cfg config.RedisConfig, log *logging.Logger) (*Service, error) {
	if !cfg.Enabled {
		return &Service{cfg: cfg, log: log.WithComponent("cache")}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:         cfg.Address,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     cfg.PoolSize,
		MinIdleConns: 2,
		MaxRetries:   3,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	s := &Service{
		client:        client,
		cfg:           cfg,
		log:           log.WithComponent("cache"),
		maxFailures:   3,
		checkInterval: 30 * time.Second,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		s.log.Warn("initial redis connection failed, starting in degraded mode", "error", err)
		return s, nil
	}

	s.healthy = true
	s.lastCheck = time.Now()
	return s, nil
}

// IsHealthy reports whether the circuit breaker is currently closed.
func (s *Service) IsHealthy() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.healthy
}

func (s *Service) recordFailure() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failureCount++
	if s.failureCount >= s.maxFailures && s.healthy {
		s.log.Warn("cache circuit breaker open", "failures", s.failureCount)
	}
	if s.failureCount >= s.maxFailures {
		s.healthy = false
	}
}

func (s *Service) recordSuccess() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.healthy {
		s.log.Info("cache circuit breaker closed, redis recovered")
	}
	s.healthy = true
	s.failureCount = 0
	s.lastCheck = time.Now()
}

func (s *Service) checkHealth(ctx context.Context) {
	s.mu.RLock()
	due := !s.healthy && time.Since(s.lastCheck) >= s.checkInterval
	s.mu.RUnlock()
	if !due {
		return
	}
	go func() {
		pingCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.client.Ping(pingCtx).Err(); err == nil {
			s.recordSuccess()
		}
	}()
}

func (s *Service) ready(ctx context.Context) error {
	if !s.cfg.Enabled {
		return ErrUnavailable
	}
	s.checkHealth(ctx)
	if !s.IsHealthy() {
		return ErrUnavailable
	}
	return nil
}

// LockContract atomically claims a contractId via SETNX, enforcing that no
// two open contracts ever share the same id (§4.3). The lock expires on its
// own after contractLockTTL so a crashed relay doesn't permanently strand a
// contractId; ReleaseContract is still the normal path, called once a
// contract reaches a terminal state (sold or expired).
func (s *Service) LockContract(ctx context.Context, contractID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}

	key := fmt.Sprintf("%s%d", contractLockPrefix, contractID)
	ok, err := s.client.SetNX(ctx, key, time.Now().Unix(), contractLockTTL).Result()
	if err != nil {
		s.recordFailure()
		return fmt.Errorf("cache: lock contract %d: %w", contractID, err)
	}
	s.recordSuccess()
	if !ok {
		return ErrContractAlreadyLocked
	}
	return nil
}

// ReleaseContract drops a contractId's lock once the contract is sold or
// expired, freeing the id for reuse by the upstream (ids are recycled across
// long enough horizons that an un-released lock would eventually collide).
func (s *Service) ReleaseContract(ctx context.Context, contractID int64) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	key := fmt.Sprintf("%s%d", contractLockPrefix, contractID)
	if err := s.client.Del(ctx, key).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("cache: release contract %d: %w", contractID, err)
	}
	s.recordSuccess()
	return nil
}

// AnalysisSnapshot is the last published analysis_data payload for one
// asset, served back to REST callers via GetAnalysisSnapshot without
// touching the asset's worker goroutine.
type AnalysisSnapshot struct {
	Asset     string      `json:"asset"`
	Data      interface{} `json:"data"`
	UpdatedAt int64       `json:"updated_at"`
}

const analysisSnapshotTTL = 10 * time.Minute

// PutAnalysisSnapshot caches the latest analysis_data event for an asset.
func (s *Service) PutAnalysisSnapshot(ctx context.Context, snap AnalysisSnapshot) error {
	if err := s.ready(ctx); err != nil {
		return err
	}
	encoded, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("cache: marshal analysis snapshot: %w", err)
	}
	key := analysisSnapshotPrefix + snap.Asset
	if err := s.client.Set(ctx, key, encoded, analysisSnapshotTTL).Err(); err != nil {
		s.recordFailure()
		return fmt.Errorf("cache: put analysis snapshot %s: %w", snap.Asset, err)
	}
	s.recordSuccess()
	return nil
}

// GetAnalysisSnapshot returns the last cached analysis snapshot for an
// asset. redis.Nil (no snapshot cached yet) is surfaced unwrapped so callers
// can special-case "not yet available" without treating it as a failure.
func (s *Service) GetAnalysisSnapshot(ctx context.Context, asset string) (AnalysisSnapshot, error) {
	if err := s.ready(ctx); err != nil {
		return AnalysisSnapshot{}, err
	}
	key := analysisSnapshotPrefix + asset
	raw, err := s.client.Get(ctx, key).Bytes()
	if err != nil {
		if err == redis.Nil {
			return AnalysisSnapshot{}, err
		}
		s.recordFailure()
		return AnalysisSnapshot{}, fmt.Errorf("cache: get analysis snapshot %s: %w", asset, err)
	}
	s.recordSuccess()

	var snap AnalysisSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return AnalysisSnapshot{}, fmt.Errorf("cache: unmarshal analysis snapshot %s: %w", asset, err)
	}
	return snap, nil
}

// Close releases the underlying Redis connection pool.
func (s *Service) Close() error {
	if s.client == nil {
		return nil
	}
	return s.client.Close()
}
