// Package redislock implements the sync lock on a Redis key.
package redislock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// Locker holds the sync lock as a key with a TTL equal to the staleness
// window, so a crashed holder's lock expires on its own.
type Locker struct {
	client     *redis.Client
	key        string
	staleAfter time.Duration
}

func New(client *redis.Client, key string, staleAfter time.Duration) *Locker {
	return &Locker{client: client, key: key, staleAfter: staleAfter}
}

// Connect opens a client for addr and checks that the server answers.
func Connect(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connect to redis: %w", err)
	}
	return client, nil
}

func (l *Locker) Acquire(ctx context.Context) (bool, error) {
	ok, err := l.client.SetNX(ctx, l.key, uuid.NewString(), l.staleAfter).Result()
	if err != nil {
		return false, fmt.Errorf("set lock key: %w", err)
	}
	return ok, nil
}

// Release deletes the key whoever holds it.
func (l *Locker) Release(ctx context.Context) error {
	if err := l.client.Del(ctx, l.key).Err(); err != nil {
		return fmt.Errorf("delete lock key: %w", err)
	}
	return nil
}
