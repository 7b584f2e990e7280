// Copyright 2025 Oliver Andrich
// Licensed under the EUPL-1.2

package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/kaminskia1/excel-autograder/internal/models"
	"github.com/redis/go-redis/v9"
)

// RedisTracker keeps the last-sent timestamp in Redis under a key that
// expires together with the cooldown. The user row is updated as well so
// the account API keeps reporting it.
type RedisTracker struct {
	client   *redis.Client
	users    *UserTracker
	cooldown time.Duration
}

// NewRedisTracker connects to the Redis instance at url and verifies the
// connection.
func NewRedisTracker(ctx context.Context, url string, cooldown time.Duration, store SentStore) (*RedisTracker, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping Redis: %w", err)
	}

	return &RedisTracker{
		client:   client,
		users:    NewUserTracker(store),
		cooldown: cooldown,
	}, nil
}

// LastSent reads the timestamp from Redis and falls back to the user row on
// a miss.
func (t *RedisTracker) LastSent(ctx context.Context, user *models.User) (*time.Time, error) {
	val, err := t.client.Get(ctx, lastSentKey(user.UUID)).Result()
	if errors.Is(err, redis.Nil) {
		return t.users.LastSent(ctx, user)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get last sent time: %w", err)
	}

	at, err := time.Parse(time.RFC3339Nano, val)
	if err != nil {
		return nil, fmt.Errorf("failed to parse last sent time: %w", err)
	}
	return &at, nil
}

// MarkSent stores at in Redis and on the user row.
func (t *RedisTracker) MarkSent(ctx context.Context, user *models.User, at time.Time) error {
	at = at.UTC()
	if t.cooldown > 0 {
		err := t.client.Set(ctx, lastSentKey(user.UUID), at.Format(time.RFC3339Nano), t.cooldown).Err()
		if err != nil {
			return fmt.Errorf("failed to store last sent time: %w", err)
		}
	}
	return t.users.MarkSent(ctx, user, at)
}

// Close closes the Redis connection.
func (t *RedisTracker) Close() error {
	return t.client.Close()
}

func lastSentKey(userUUID string) string {
	return fmt.Sprintf("verification:last_sent:%s", userUUID)
}
