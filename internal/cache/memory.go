package cache

import (
	"context"
	"time"

	"github.com/viccon/sturdyc"
)

const (
	memoryShards          = 8
	memoryEvictionPercent = 10
)

// MemoryStore keeps entries in a sharded in-process cache. Expiry is the
// TTL given at construction; the per-write ttl argument is ignored.
type MemoryStore struct {
	client *sturdyc.Client[[]byte]
}

// NewMemoryStore creates an in-process cache holding up to capacity entries
func NewMemoryStore(capacity int, ttl time.Duration) *MemoryStore {
	return &MemoryStore{
		client: sturdyc.New[[]byte](capacity, memoryShards, ttl, memoryEvictionPercent),
	}
}

func (s *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	v, ok := s.client.Get(key)
	if !ok {
		return nil, ErrMiss
	}
	return v, nil
}

func (s *MemoryStore) Set(ctx context.Context, key string, value []byte, _ time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.client.Set(key, value)
	return nil
}

func (s *MemoryStore) Delete(ctx context.Context, keys ...string) error {
	for _, k := range keys {
		s.client.Delete(k)
	}
	return nil
}

func (s *MemoryStore) Ping(ctx context.Context) error {
	return ctx.Err()
}

// Len returns the number of live entries
func (s *MemoryStore) Len() int {
	return s.client.Size()
}

func (s *MemoryStore) Close() error {
	return nil
}
