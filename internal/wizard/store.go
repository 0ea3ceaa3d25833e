package wizard

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyPrefix     = "wizard:"
	updateRetries = 10
)

// Store persists wizard state as JSON in Redis with a sliding TTL.
type Store struct {
	client *redis.Client
	ttl    time.Duration
}

// NewStore instantiates the store.
func NewStore(client *redis.Client, ttl time.Duration) *Store {
	return &Store{client: client, ttl: ttl}
}

// Load returns the session's state, or a fresh one when none is stored.
func (s *Store) Load(ctx context.Context, sessionID string) (State, error) {
	return s.load(ctx, s.client, sessionID)
}

// Update applies fn to the stored state inside an optimistic transaction and
// saves the result. Concurrent writers are retried.
func (s *Store) Update(ctx context.Context, sessionID string, fn func(*State) error) (State, error) {
	key := keyPrefix + sessionID
	var out State
	txf := func(tx *redis.Tx) error {
		st, err := s.load(ctx, tx, sessionID)
		if err != nil {
			return err
		}
		if err := fn(&st); err != nil {
			return err
		}
		raw, err := json.Marshal(st)
		if err != nil {
			return fmt.Errorf("wizard: encode state: %w", err)
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, raw, s.ttl)
			return nil
		})
		if err == nil {
			out = st
		}
		return err
	}
	for range updateRetries {
		err := s.client.Watch(ctx, txf, key)
		if errors.Is(err, redis.TxFailedErr) {
			continue
		}
		return out, err
	}
	return State{}, fmt.Errorf("wizard: update %s: too much contention", sessionID)
}

// Delete drops the session's state.
func (s *Store) Delete(ctx context.Context, sessionID string) error {
	return s.client.Del(ctx, keyPrefix+sessionID).Err()
}

func (s *Store) load(ctx context.Context, c redis.Cmdable, sessionID string) (State, error) {
	payload, err := c.Get(ctx, keyPrefix+sessionID).Bytes()
	if errors.Is(err, redis.Nil) {
		return newState(), nil
	}
	if err != nil {
		return State{}, fmt.Errorf("wizard: load state: %w", err)
	}
	var st State
	if err := json.Unmarshal(payload, &st); err != nil {
		return State{}, fmt.Errorf("wizard: decode state: %w", err)
	}
	if st.Selections == nil {
		st.Selections = []Selection{}
	}
	return st, nil
}
