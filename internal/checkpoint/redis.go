package checkpoint

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps checkpoints under "{prefix}:checkpoint:{trigger}", which
// lets several hub processes share one window.
type RedisStore struct {
	client *redis.Client
	prefix string
}

func NewRedisStore(addr, prefix string) (*RedisStore, error) {
	if addr == "" {
		return nil, errors.New("redis address is required")
	}
	return NewRedisStoreWithClient(redis.NewClient(&redis.Options{Addr: addr}), prefix), nil
}

// NewRedisStoreWithClient wraps an existing go-redis client.
func NewRedisStoreWithClient(client *redis.Client, prefix string) *RedisStore {
	if prefix == "" {
		prefix = "smshub"
	}
	return &RedisStore{client: client, prefix: prefix}
}

func (r *RedisStore) key(trigger string) string {
	return fmt.Sprintf("%s:checkpoint:%s", r.prefix, trigger)
}

func (r *RedisStore) Load(ctx context.Context, trigger string) (State, error) {
	raw, err := r.client.Get(ctx, r.key(trigger)).Result()
	if errors.Is(err, redis.Nil) {
		return State{}, nil
	}
	if err != nil {
		return State{}, fmt.Errorf("loading checkpoint %q: %w", trigger, err)
	}

	var state State
	if err := json.Unmarshal([]byte(raw), &state); err != nil {
		return State{}, fmt.Errorf("decoding checkpoint %q: %w", trigger, err)
	}
	return state, nil
}

func (r *RedisStore) Save(ctx context.Context, trigger string, state State) error {
	raw, err := json.Marshal(state)
	if err != nil {
		return fmt.Errorf("encoding checkpoint %q: %w", trigger, err)
	}
	if err := r.client.Set(ctx, r.key(trigger), raw, 0).Err(); err != nil {
		return fmt.Errorf("saving checkpoint %q: %w", trigger, err)
	}
	return nil
}

func (r *RedisStore) Close() error {
	return r.client.Close()
}
