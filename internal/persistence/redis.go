package persistence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/spec-kit/field-audit-service/internal/config"
	"github.com/spec-kit/field-audit-service/internal/domain"
)

// Redis wraps the go-redis client.
type Redis struct {
	Client *redis.Client
}

// NewRedis connects to Redis using the provided configuration. An empty
// address disables Redis.
func NewRedis(cfg config.RedisConfig, logger *zap.Logger) *Redis {
	if cfg.Addr == "" {
		logger.Warn("REDIS_ADDR not provided; escalation status kept in memory")
		return &Redis{}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		logger.Warn("unable to reach redis", zap.Error(err))
	} else {
		logger.Info("connected to redis")
	}

	return &Redis{Client: client}
}

// Enabled reports whether a client is configured.
func (r *Redis) Enabled() bool {
	return r != nil && r.Client != nil
}

// Close closes the client.
func (r *Redis) Close() {
	if r.Enabled() {
		_ = r.Client.Close()
	}
}

// Ping verifies Redis connectivity.
func (r *Redis) Ping(ctx context.Context) error {
	if !r.Enabled() {
		return errors.New("redis client not configured")
	}
	return r.Client.Ping(ctx).Err()
}

const escalationStatusKey = "field-audit:escalation:last-run"

// EscalationStatusStore keeps the latest escalation run in Redis so every
// replica reports the same status.
type EscalationStatusStore struct {
	client redis.Cmdable
	key    string
}

// NewEscalationStatusStore returns a store writing under the default key.
func NewEscalationStatusStore(client redis.Cmdable) *EscalationStatusStore {
	return &EscalationStatusStore{client: client, key: escalationStatusKey}
}

// SaveRun overwrites the stored run.
func (s *EscalationStatusStore) SaveRun(ctx context.Context, run domain.EscalationRun) error {
	payload, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("encode escalation run: %w", err)
	}
	return s.client.Set(ctx, s.key, payload, 0).Err()
}

// LastRun returns the stored run, or nil when none was recorded.
func (s *EscalationStatusStore) LastRun(ctx context.Context) (*domain.EscalationRun, error) {
	payload, err := s.client.Get(ctx, s.key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var run domain.EscalationRun
	if err := json.Unmarshal(payload, &run); err != nil {
		return nil, fmt.Errorf("decode escalation run: %w", err)
	}
	return &run, nil
}
