package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aretw0/arbor/pkg/codec"
	"github.com/aretw0/arbor/pkg/domain"
	backend "github.com/redis/go-redis/v9"
)

// DefaultPrefix namespaces every key written by the store.
const DefaultPrefix = "arbor:graph:"

// GraphStore implements ports.GraphStore using Redis.
// Graphs are stored as JSON documents; a sorted set indexes the names.
// Every Save and Delete is announced on a pub/sub channel so other
// replicas can reload through Watch.
type GraphStore struct {
	client *backend.Client
	prefix string
	ttl    time.Duration
}

type Option func(*GraphStore)

// WithTTL sets the expiration for stored graphs.
func WithTTL(ttl time.Duration) Option {
	return func(s *GraphStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix.
func WithPrefix(prefix string) Option {
	return func(s *GraphStore) {
		s.prefix = prefix
	}
}

// New creates a new Redis store with options.
func New(address, password string, db int, opts ...Option) *GraphStore {
	rdb := backend.NewClient(&backend.Options{
		Addr:     address,
		Password: password,
		DB:       db,
	})
	return NewFromClient(rdb, opts...)
}

// NewFromClient creates a new Redis store from an existing client.
func NewFromClient(client *backend.Client, opts ...Option) *GraphStore {
	store := &GraphStore{
		client: client,
		prefix: DefaultPrefix,
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

// Client returns the underlying client, e.g. to share it with a Locker.
func (s *GraphStore) Client() *backend.Client {
	return s.client
}

func (s *GraphStore) key(name string) string {
	return s.prefix + "doc:" + name
}

func (s *GraphStore) indexKey() string {
	return s.prefix + "index"
}

func (s *GraphStore) channel() string {
	return s.prefix + "changes"
}

// Save persists the graph to Redis.
func (s *GraphStore) Save(ctx context.Context, name string, g *domain.Graph) error {
	data, err := codec.Marshal(g)
	if err != nil {
		return fmt.Errorf("failed to marshal graph: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.key(name), data, s.ttl)

	// Score = expiry. Without TTL the entry never expires.
	score := float64(time.Now().Add(s.ttl).Unix())
	if s.ttl == 0 {
		score = 4102444800 // 2100-01-01
	}
	pipe.ZAdd(ctx, s.indexKey(), backend.Z{Score: score, Member: name})
	pipe.Publish(ctx, s.channel(), name)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to save to redis: %w", err)
	}
	return nil
}

// Load retrieves a graph from Redis.
func (s *GraphStore) Load(ctx context.Context, name string) (*domain.Graph, error) {
	val, err := s.client.Get(ctx, s.key(name)).Bytes()
	if err != nil {
		if errors.Is(err, backend.Nil) {
			return nil, fmt.Errorf("%w: %s", domain.ErrGraphNotFound, name)
		}
		return nil, fmt.Errorf("failed to get from redis: %w", err)
	}

	g, err := codec.Unmarshal(val)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal graph %s: %w", name, err)
	}
	return g, nil
}

// Delete removes a graph.
func (s *GraphStore) Delete(ctx context.Context, name string) error {
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, s.key(name))
	pipe.ZRem(ctx, s.indexKey(), name)
	pipe.Publish(ctx, s.channel(), name)

	_, err := pipe.Exec(ctx)
	return err
}

// List returns the stored graph names, pruning expired index entries first.
func (s *GraphStore) List(ctx context.Context) ([]string, error) {
	now := float64(time.Now().Unix())
	err := s.client.ZRemRangeByScore(ctx, s.indexKey(), "-inf", fmt.Sprintf("%f", now)).Err()
	if err != nil {
		return nil, fmt.Errorf("failed to prune expired graphs: %w", err)
	}

	names, err := s.client.ZRange(ctx, s.indexKey(), 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list graphs: %w", err)
	}
	sort.Strings(names)
	return names, nil
}

// Watch implements ports.Watchable. It signals once per Save or Delete made
// by any client sharing the prefix, until ctx is done.
func (s *GraphStore) Watch(ctx context.Context) (<-chan struct{}, error) {
	sub := s.client.Subscribe(ctx, s.channel())
	// Wait for the subscription to be confirmed so no change is missed.
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("failed to subscribe: %w", err)
	}

	out := make(chan struct{}, 1)
	go func() {
		defer close(out)
		defer sub.Close()
		msgs := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case _, ok := <-msgs:
				if !ok {
					return
				}
				select {
				case out <- struct{}{}:
				default:
					// A signal is already pending.
				}
			}
		}
	}()
	return out, nil
}

// Close closes the redis client.
func (s *GraphStore) Close() error {
	return s.client.Close()
}
