package memory

import (
	"context"
	"sync"

	"github.com/marcelsud/chat-webhooks/webhook"
)

// Repository is an in-process webhook.Repository, used when no Redis is configured and in tests
type Repository struct {
	mu     sync.RWMutex
	values map[string]string
}

var _ webhook.Repository = (*Repository)(nil)

// NewRepository creates an empty in-memory repository
func NewRepository() *Repository {
	return &Repository{values: make(map[string]string)}
}

func (r *Repository) Get(ctx context.Context, key string) (string, bool, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	value, found := r.values[key]
	return value, found, nil
}

func (r *Repository) Set(ctx context.Context, key string, value string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.values[key] = value
	return nil
}

func (r *Repository) Remove(ctx context.Context, key string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.values, key)
	return nil
}

func (r *Repository) Close(ctx context.Context) error {
	return nil
}
