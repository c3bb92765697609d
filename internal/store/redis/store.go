package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/MrSnakeDoc/ledctl/internal/actuator"
	"github.com/MrSnakeDoc/ledctl/internal/journal"
)

// Store mirrors toggle events into Redis. It is a journal.Sink; nothing is
// ever read back into the actuator state.
type Store struct {
	client *redis.Client
}

// NewStore creates a new Redis store
func NewStore(client *redis.Client) *Store {
	return &Store{
		client: client,
	}
}

var _ journal.Sink = (*Store)(nil)

// Write bumps the toggle counter, records the level and publishes the event
// in a single round trip.
func (s *Store) Write(ctx context.Context, ev journal.Event) error {
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("failed to marshal toggle event: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Incr(ctx, TogglesKey(ev.Name))
	pipe.Set(ctx, LevelKey(ev.Name), actuator.Text(ev.On), 0)
	pipe.Publish(ctx, ChannelEvents, payload)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to record toggle event: %w", err)
	}
	return nil
}

// ToggleCount returns how many toggles were recorded for the named actuator.
func (s *Store) ToggleCount(ctx context.Context, name string) (int64, error) {
	n, err := s.client.Get(ctx, TogglesKey(name)).Int64()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return 0, nil
		}
		return 0, fmt.Errorf("failed to get toggle count: %w", err)
	}
	return n, nil
}

// LastLevel returns the last recorded level text ("ON"/"OFF") for the named
// actuator, or "" when nothing was recorded yet.
func (s *Store) LastLevel(ctx context.Context, name string) (string, error) {
	v, err := s.client.Get(ctx, LevelKey(name)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", nil
		}
		return "", fmt.Errorf("failed to get last level: %w", err)
	}
	return v, nil
}

// Ping checks the connection.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}
