package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix = "cinememe:crop:"

	// maxUpdateAttempts bounds the optimistic retries of Update.
	maxUpdateAttempts = 5
)

type RedisOptions struct {
	Addr     string
	Password string
	DB       int
	TTL      time.Duration
}

// RedisStore keeps sessions in Redis so that any instance behind a load
// balancer can continue a crop. Every save refreshes the expiry. Update
// watches the key, so a write from another instance in between forces a
// re-read instead of being lost. Save and Delete are last-writer-wins.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(ctx context.Context, opts RedisOptions) (*RedisStore, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     opts.Addr,
		Password: opts.Password,
		DB:       opts.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("could not reach redis at %s: %w", opts.Addr, err)
	}
	return NewRedisStoreFromClient(client, opts.TTL), nil
}

func NewRedisStoreFromClient(client *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{client: client, ttl: ttl}
}

func (r *RedisStore) Save(ctx context.Context, s *Session) error {
	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal crop session: %w", err)
	}
	if err := r.client.Set(ctx, key(s.MemeID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("could not save crop session %s: %w", s.MemeID, err)
	}
	return nil
}

func (r *RedisStore) Load(ctx context.Context, memeID string) (*Session, error) {
	data, err := r.client.Get(ctx, key(memeID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, memeID)
	}
	if err != nil {
		return nil, fmt.Errorf("could not load crop session %s: %w", memeID, err)
	}
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("unmarshal crop session: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Update(ctx context.Context, memeID string, fn func(s *Session) error) error {
	k := key(memeID)
	txf := func(tx *redis.Tx) error {
		data, err := tx.Get(ctx, k).Bytes()
		if errors.Is(err, redis.Nil) {
			return fmt.Errorf("%w: %s", ErrNotFound, memeID)
		}
		if err != nil {
			return fmt.Errorf("could not load crop session %s: %w", memeID, err)
		}
		var s Session
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("unmarshal crop session: %w", err)
		}
		if err := fn(&s); err != nil {
			return err
		}
		updated, err := json.Marshal(&s)
		if err != nil {
			return fmt.Errorf("marshal crop session: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, k, updated, r.ttl)
			return nil
		})
		return err
	}

	for attempt := 0; attempt < maxUpdateAttempts; attempt++ {
		err := r.client.Watch(ctx, txf, k)
		if !errors.Is(err, redis.TxFailedErr) {
			return err
		}
		slog.Debug("crop session changed during update, retrying", "id", memeID, "attempt", attempt+1)
	}
	return fmt.Errorf("%w: %s", ErrConflict, memeID)
}

func (r *RedisStore) Delete(ctx context.Context, memeID string) error {
	if err := r.client.Del(ctx, key(memeID)).Err(); err != nil {
		return fmt.Errorf("could not delete crop session %s: %w", memeID, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}

func key(memeID string) string {
	return keyPrefix + memeID
}
