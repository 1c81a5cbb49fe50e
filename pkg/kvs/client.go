package kvs

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

// pollInterval is the safety-net cadence for wait-create lookups and barrier
// waits. Wakeups normally arrive over Pub/Sub; the ticker closes the race
// where a writer commits between our existence check and our subscribe.
const pollInterval = 200 * time.Millisecond

// Client provides namespace-scoped coordination operations on Redis.
// It is safe for concurrent use from multiple goroutines.
type Client struct {
	rdb       *redis.Client
	namespace string
}

// NewClient creates a client for the given namespace. An empty namespace
// selects DefaultNamespace.
func NewClient(redisOpts *redis.Options, namespace string) (*Client, error) {
	if redisOpts == nil {
		return nil, fmt.Errorf("redis options cannot be nil")
	}
	if namespace == "" {
		namespace = DefaultNamespace
	}

	return &Client{
		rdb:       redis.NewClient(redisOpts),
		namespace: namespace,
	}, nil
}

// Namespace returns the namespace this client operates in.
func (c *Client) Namespace() string {
	return c.namespace
}

// Close closes the Redis connection. Implements io.Closer.
func (c *Client) Close() error {
	return c.rdb.Close()
}

// Ping verifies Redis connectivity. Useful for health checks.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// CommitOwner durably records rank as the owner of topic and announces the
// key creation. The write and the announcement go through a single MULTI/EXEC
// transaction and the call does not return until the server has applied it,
// so a consumer that observes the key afterwards is guaranteed the record is
// durable. Writing the same topic twice is last-writer-wins.
func (c *Client) CommitOwner(ctx context.Context, topic string, rank uint32) error {
	key := OwnerKey(c.namespace, topic)

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, strconv.FormatUint(uint64(rank), 10), 0)
	pipe.Publish(ctx, KeyEventsChannel(c.namespace), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to commit owner of %q: %w", topic, err)
	}
	return nil
}

// LookupOwner retrieves the raw ownership record for topic without waiting.
// When no record exists the returned error is redis.Nil: callers should check
// IsNotFound on the returned error.
func (c *Client) LookupOwner(ctx context.Context, topic string) (string, error) {
	val, err := c.rdb.Get(ctx, OwnerKey(c.namespace, topic)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", err
		}
		return "", fmt.Errorf("failed to look up owner of %q: %w", topic, err)
	}
	return val, nil
}

// WaitOwner blocks until an ownership record exists for topic and returns its
// raw value. There is no timeout: a consumer waiting on a producer that never
// publishes blocks until its context is cancelled.
func (c *Client) WaitOwner(ctx context.Context, topic string) (string, error) {
	return c.waitCreate(ctx, OwnerKey(c.namespace, topic))
}

// RegisterPeer records the fetch address of rank so that consumers can reach
// it. The announcement wakes any consumer already waiting on the peer record.
func (c *Client) RegisterPeer(ctx context.Context, rank uint32, addr string) error {
	if addr == "" {
		return fmt.Errorf("peer address cannot be empty")
	}
	key := PeerKey(c.namespace, rank)

	pipe := c.rdb.TxPipeline()
	pipe.Set(ctx, key, addr, 0)
	pipe.Publish(ctx, KeyEventsChannel(c.namespace), key)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to register peer %d: %w", rank, err)
	}
	return nil
}

// UnregisterPeer removes the fetch address of rank. Called on teardown so
// consumers do not resolve a dead address.
func (c *Client) UnregisterPeer(ctx context.Context, rank uint32) error {
	if err := c.rdb.Del(ctx, PeerKey(c.namespace, rank)).Err(); err != nil {
		return fmt.Errorf("failed to unregister peer %d: %w", rank, err)
	}
	return nil
}

// WaitPeer blocks until rank has a registered fetch address and returns it.
func (c *Client) WaitPeer(ctx context.Context, rank uint32) (string, error) {
	return c.waitCreate(ctx, PeerKey(c.namespace, rank))
}

// AcquireRank allocates the next free rank in the namespace. Used when the
// job launcher does not provide one through the environment.
func (c *Client) AcquireRank(ctx context.Context) (uint32, error) {
	n, err := c.rdb.Incr(ctx, RankCounterKey(c.namespace)).Result()
	if err != nil {
		return 0, fmt.Errorf("failed to acquire rank: %w", err)
	}
	return uint32(n - 1), nil
}

// Owners returns all ownership records in the namespace as topic -> rank.
// Non-integer values are skipped. Intended for inspection tooling, not the
// hook path.
func (c *Client) Owners(ctx context.Context) (map[string]uint32, error) {
	prefix := ownerKeyPrefix(c.namespace)
	owners := make(map[string]uint32)

	var cursor uint64
	for {
		keys, next, err := c.rdb.Scan(ctx, cursor, prefix+"*", 100).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan ownership records: %w", err)
		}
		for _, key := range keys {
			val, err := c.rdb.Get(ctx, key).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue // deleted between scan and get
				}
				return nil, fmt.Errorf("failed to read ownership record %q: %w", key, err)
			}
			rank, err := strconv.ParseUint(val, 10, 32)
			if err != nil {
				continue
			}
			owners[strings.TrimPrefix(key, prefix)] = uint32(rank)
		}
		cursor = next
		if cursor == 0 {
			return owners, nil
		}
	}
}

// Barrier joins the named n-party barrier and blocks until all n participants
// have arrived. There is no timeout. The barrier counter is left behind in
// Redis; reusing a name within one namespace requires all participants to
// agree on it, matching the semantics of a job-wide startup barrier.
func (c *Client) Barrier(ctx context.Context, name string, n int) error {
	if n < 1 {
		return fmt.Errorf("barrier size must be at least 1, got %d", n)
	}

	// Subscribe before incrementing so the release message cannot be missed.
	pubsub := c.rdb.Subscribe(ctx, BarrierChannel(c.namespace, name))
	defer pubsub.Close()
	ch := pubsub.Channel()

	key := BarrierKey(c.namespace, name)
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("failed to join barrier %q: %w", name, err)
	}
	if count >= int64(n) {
		if err := c.rdb.Publish(ctx, BarrierChannel(c.namespace, name), "release").Err(); err != nil {
			return fmt.Errorf("failed to release barrier %q: %w", name, err)
		}
		return nil
	}

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ch:
		case <-ticker.C:
		}

		count, err := c.rdb.Get(ctx, key).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return fmt.Errorf("failed to check barrier %q: %w", name, err)
		}
		if count >= int64(n) {
			return nil
		}
	}
}

// waitCreate implements the wait-create read: return the value of key as soon
// as it exists, blocking until then. The check-subscribe-recheck sequence
// closes the race against a writer committing between the first GET and the
// subscription becoming active; the poll ticker covers dropped Pub/Sub
// messages (Redis Pub/Sub is at-most-once).
func (c *Client) waitCreate(ctx context.Context, key string) (string, error) {
	val, err := c.rdb.Get(ctx, key).Result()
	if err == nil {
		return val, nil
	}
	if !errors.Is(err, redis.Nil) {
		return "", fmt.Errorf("failed to read %q: %w", key, err)
	}

	pubsub := c.rdb.Subscribe(ctx, KeyEventsChannel(c.namespace))
	defer pubsub.Close()
	ch := pubsub.Channel()

	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	for {
		val, err := c.rdb.Get(ctx, key).Result()
		if err == nil {
			return val, nil
		}
		if !errors.Is(err, redis.Nil) {
			return "", fmt.Errorf("failed to read %q: %w", key, err)
		}

		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-ch:
		case <-ticker.C:
		}
	}
}

// IsNotFound returns true if the error is a Redis "key not found" error.
func IsNotFound(err error) bool {
	return errors.Is(err, redis.Nil)
}
