package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/noah-isme/section-swap-api/internal/dto"
	appErrors "github.com/noah-isme/section-swap-api/pkg/errors"
)

// MatchFlagRepository caches batch-checker output in Redis, one key per
// batch. A nil client degrades to a permanent miss so the service can run
// without Redis.
type MatchFlagRepository struct {
	client *redis.Client
	logger *zap.Logger
}

// NewMatchFlagRepository constructs the cache repository.
func NewMatchFlagRepository(client *redis.Client, logger *zap.Logger) *MatchFlagRepository {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &MatchFlagRepository{client: client, logger: logger}
}

func matchFlagKey(batch string) string {
	if batch == "" {
		batch = "all"
	}
	return fmt.Sprintf("matchflags:%s", batch)
}

// GetFlags retrieves the cached flag map for a batch.
func (r *MatchFlagRepository) GetFlags(ctx context.Context, batch string) (dto.MatchFlags, error) {
	if r.client == nil {
		return nil, appErrors.ErrCacheMiss
	}

	raw, err := r.client.Get(ctx, matchFlagKey(batch)).Bytes()
	if err != nil {
		if err == redis.Nil {
			return nil, appErrors.ErrCacheMiss
		}
		return nil, fmt.Errorf("redis get %s: %w", matchFlagKey(batch), err)
	}

	var flags dto.MatchFlags
	if err := json.Unmarshal(raw, &flags); err != nil {
		return nil, fmt.Errorf("unmarshal match flags for %s: %w", batch, err)
	}
	return flags, nil
}

// SetFlags stores the flag map with the given TTL.
func (r *MatchFlagRepository) SetFlags(ctx context.Context, batch string, flags dto.MatchFlags, ttl time.Duration) error {
	if r.client == nil {
		return nil
	}

	payload, err := json.Marshal(flags)
	if err != nil {
		return fmt.Errorf("marshal match flags for %s: %w", batch, err)
	}

	if err := r.client.Set(ctx, matchFlagKey(batch), payload, ttl).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", matchFlagKey(batch), err)
	}
	return nil
}

// InvalidateFlags removes the cached flags for one batch, or every batch
// when batch is empty.
func (r *MatchFlagRepository) InvalidateFlags(ctx context.Context, batch string) error {
	if r.client == nil {
		return nil
	}
	if batch != "" {
		if err := r.client.Del(ctx, matchFlagKey(batch)).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", matchFlagKey(batch), err)
		}
		return nil
	}

	iter := r.client.Scan(ctx, 0, "matchflags:*", 0).Iterator()
	for iter.Next(ctx) {
		if err := r.client.Del(ctx, iter.Val()).Err(); err != nil {
			return fmt.Errorf("redis delete %s: %w", iter.Val(), err)
		}
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("redis scan match flags: %w", err)
	}
	return nil
}

// Close releases the underlying Redis connection if present.
func (r *MatchFlagRepository) Close() error {
	if r.client == nil {
		return nil
	}
	return r.client.Close()
}
