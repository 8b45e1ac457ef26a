package trace

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dyluth/warren/pkg/maze"
	"github.com/redis/go-redis/v9"
)

// RedisStore keeps the trace in Redis, namespaced by session name.
// Observations are hashes, the recording order is a list of ids, and every
// new observation is published on the session's event channel.
type RedisStore struct {
	rdb     *redis.Client
	session string
}

// NewRedisStore creates a store for the given session.
// Returns an error if session is empty.
func NewRedisStore(opts *redis.Options, session string) (*RedisStore, error) {
	if session == "" {
		return nil, fmt.Errorf("session name cannot be empty")
	}

	return &RedisStore{
		rdb:     redis.NewClient(opts),
		session: session,
	}, nil
}

// Session returns the session namespace of this store.
func (s *RedisStore) Session() string {
	return s.session
}

// Close implements Store.
func (s *RedisStore) Close() error {
	return s.rdb.Close()
}

// Ping implements Store.
func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

// Record implements Store. The sequence number comes from an INCR on the
// session counter; the hash write, list append and event publish happen in
// one MULTI/EXEC.
func (s *RedisStore) Record(ctx context.Context, plan maze.Plan, labels []maze.Label) (maze.Observation, error) {
	if err := maze.ValidateResult(plan, labels); err != nil {
		return maze.Observation{}, fmt.Errorf("%w: %v", ErrMalformedObservation, err)
	}

	n, err := s.rdb.Incr(ctx, SeqKey(s.session)).Result()
	if err != nil {
		return maze.Observation{}, fmt.Errorf("failed to allocate sequence number: %w", err)
	}

	o, err := newObservation(int(n-1), plan, labels)
	if err != nil {
		return maze.Observation{}, err
	}

	hash, err := ObservationToHash(o)
	if err != nil {
		return maze.Observation{}, fmt.Errorf("failed to serialize observation: %w", err)
	}

	event, err := json.Marshal(o)
	if err != nil {
		return maze.Observation{}, fmt.Errorf("failed to marshal observation for event: %w", err)
	}

	_, err = s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, ObservationKey(s.session, o.ID), hash)
		pipe.RPush(ctx, OrderKey(s.session), o.ID)
		pipe.Publish(ctx, ObservationEventsChannel(s.session), event)
		return nil
	})
	if err != nil {
		return maze.Observation{}, fmt.Errorf("failed to write observation to Redis: %w", err)
	}

	return o, nil
}

// Len implements Store.
func (s *RedisStore) Len(ctx context.Context) (int, error) {
	n, err := s.rdb.LLen(ctx, OrderKey(s.session)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to read trace length: %w", err)
	}
	return int(n), nil
}

// Range implements Store.
func (s *RedisStore) Range(ctx context.Context, start, stop int) ([]maze.Observation, error) {
	n, err := s.Len(ctx)
	if err != nil {
		return nil, err
	}
	start, stop = clampRange(start, stop, n)
	if start == stop {
		return []maze.Observation{}, nil
	}

	ids, err := s.rdb.LRange(ctx, OrderKey(s.session), int64(start), int64(stop-1)).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read trace order: %w", err)
	}

	cmds := make([]*redis.MapStringStringCmd, len(ids))
	_, err = s.rdb.Pipelined(ctx, func(pipe redis.Pipeliner) error {
		for i, id := range ids {
			cmds[i] = pipe.HGetAll(ctx, ObservationKey(s.session, id))
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to read observations from Redis: %w", err)
	}

	out := make([]maze.Observation, 0, len(ids))
	for i, cmd := range cmds {
		hash := cmd.Val()
		if len(hash) == 0 {
			return nil, fmt.Errorf("observation %s listed in trace but missing", ids[i])
		}
		o, err := HashToObservation(hash)
		if err != nil {
			return nil, fmt.Errorf("failed to deserialize observation: %w", err)
		}
		out = append(out, o)
	}
	return out, nil
}

// Get implements Store.
func (s *RedisStore) Get(ctx context.Context, id string) (maze.Observation, error) {
	hash, err := s.rdb.HGetAll(ctx, ObservationKey(s.session, id)).Result()
	if err != nil {
		return maze.Observation{}, fmt.Errorf("failed to read observation from Redis: %w", err)
	}
	if len(hash) == 0 {
		return maze.Observation{}, ErrNotFound
	}

	o, err := HashToObservation(hash)
	if err != nil {
		return maze.Observation{}, fmt.Errorf("failed to deserialize observation: %w", err)
	}
	return o, nil
}

// Scan implements Store using SCAN so large traces do not block the server.
func (s *RedisStore) Scan(ctx context.Context, prefix string) ([]string, error) {
	keyPrefix := ObservationKeyPrefix(s.session)
	iter := s.rdb.Scan(ctx, 0, keyPrefix+prefix+"*", 0).Iterator()

	var ids []string
	for iter.Next(ctx) {
		ids = append(ids, strings.TrimPrefix(iter.Val(), keyPrefix))
	}
	if err := iter.Err(); err != nil {
		return nil, fmt.Errorf("failed to scan observations: %w", err)
	}

	sort.Strings(ids)
	return ids, nil
}

// Subscription is an active Pub/Sub subscription to observation events.
// Caller must call Close() when done.
type Subscription struct {
	events <-chan maze.Observation
	errors <-chan error
	cancel func()
	once   sync.Once
}

// Events returns the channel of newly recorded observations. It is closed
// when the subscription ends.
func (s *Subscription) Events() <-chan maze.Observation {
	return s.events
}

// Errors returns non-fatal decoding errors; offending messages are skipped.
func (s *Subscription) Errors() <-chan error {
	return s.errors
}

// Close stops the subscription. Safe to call multiple times.
func (s *Subscription) Close() error {
	s.once.Do(s.cancel)
	return nil
}

// Subscribe streams observations recorded in this session from now on.
// Delivery is at-most-once, as with any Redis Pub/Sub consumer.
func (s *RedisStore) Subscribe(ctx context.Context) (*Subscription, error) {
	pubsub := s.rdb.Subscribe(ctx, ObservationEventsChannel(s.session))

	// Wait for the subscription to be confirmed so no event is missed
	// between returning and the first receive.
	if _, err := pubsub.Receive(ctx); err != nil {
		pubsub.Close()
		return nil, fmt.Errorf("failed to subscribe to observation events: %w", err)
	}

	eventsChan := make(chan maze.Observation, 10)
	errorsChan := make(chan error, 10)
	subCtx, cancelFunc := context.WithCancel(ctx)

	go func() {
		defer close(eventsChan)
		defer close(errorsChan)
		defer pubsub.Close()

		ch := pubsub.Channel()
		for {
			select {
			case <-subCtx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}

				var o maze.Observation
				if err := json.Unmarshal([]byte(msg.Payload), &o); err != nil {
					select {
					case errorsChan <- fmt.Errorf("failed to unmarshal observation event: %w", err):
					case <-subCtx.Done():
						return
					}
					continue
				}

				select {
				case eventsChan <- o:
				case <-subCtx.Done():
					return
				}
			}
		}
	}()

	return &Subscription{
		events: eventsChan,
		errors: errorsChan,
		cancel: cancelFunc,
	}, nil
}

// IsNotFound reports whether err means the observation does not exist.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound) || errors.Is(err, redis.Nil)
}
