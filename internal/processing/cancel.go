package processing

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// CancelRegistry holds cooperative cancellation flags for processing sessions
type CancelRegistry interface {
	Cancel(ctx context.Context, sessionID string) error
	IsCancelled(ctx context.Context, sessionID string) (bool, error)
	Clear(ctx context.Context, sessionID string) error
}

// MemoryCancelRegistry keeps flags in process memory
type MemoryCancelRegistry struct {
	mu    sync.Mutex
	flags map[string]bool
}

// NewMemoryCancelRegistry creates an empty registry
func NewMemoryCancelRegistry() *MemoryCancelRegistry {
	return &MemoryCancelRegistry{flags: make(map[string]bool)}
}

func (r *MemoryCancelRegistry) Cancel(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.flags[sessionID] = true
	return nil
}

func (r *MemoryCancelRegistry) IsCancelled(_ context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.flags[sessionID], nil
}

func (r *MemoryCancelRegistry) Clear(_ context.Context, sessionID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.flags, sessionID)
	return nil
}

// DefaultCancelTTL bounds how long a cancellation flag outlives its session
const DefaultCancelTTL = 24 * time.Hour

// RedisCancelRegistry shares flags across processes through Redis keys
type RedisCancelRegistry struct {
	client redis.UniversalClient
	prefix string
	ttl    time.Duration
}

// NewRedisCancelRegistry creates a registry storing flags under prefix
func NewRedisCancelRegistry(client redis.UniversalClient, prefix string, ttl time.Duration) *RedisCancelRegistry {
	if prefix == "" {
		prefix = "brandlens:cancel:"
	}
	if ttl <= 0 {
		ttl = DefaultCancelTTL
	}
	return &RedisCancelRegistry{client: client, prefix: prefix, ttl: ttl}
}

func (r *RedisCancelRegistry) key(sessionID string) string {
	return r.prefix + sessionID
}

func (r *RedisCancelRegistry) Cancel(ctx context.Context, sessionID string) error {
	if err := r.client.Set(ctx, r.key(sessionID), "1", r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to set cancellation flag: %w", err)
	}
	return nil
}

func (r *RedisCancelRegistry) IsCancelled(ctx context.Context, sessionID string) (bool, error) {
	n, err := r.client.Exists(ctx, r.key(sessionID)).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read cancellation flag: %w", err)
	}
	return n > 0, nil
}

func (r *RedisCancelRegistry) Clear(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, r.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("failed to clear cancellation flag: %w", err)
	}
	return nil
}
