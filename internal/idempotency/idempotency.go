package idempotency

import (
	"context"
	"time"

	redisadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/redis"
)

// pendingTTL bounds how long a key stays claimed if its owner dies before
// recording a response.
const pendingTTL = time.Minute

// Store is the persistence behind Idempotency; the Redis adapter
// implements it.
type Store interface {
	Get(ctx context.Context, key string) (*redisadapter.IdempResponse, error)
	Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error)
	Save(ctx context.Context, key string, resp redisadapter.IdempResponse, ttl time.Duration) error
	Release(ctx context.Context, key string) error
}

type Idempotency struct {
	store Store
	ttl   time.Duration
}

func NewIdempotency(store Store, ttl time.Duration) *Idempotency {
	return &Idempotency{store: store, ttl: ttl}
}

// Response is a recorded reply. Pending is set while the request that owns
// the key has not finished.
type Response struct {
	Status  int
	Result  []byte
	Pending bool
}

// Claim makes the caller the owner of key. Only one caller can hold a key;
// the owner must later Set or Release it.
func (i *Idempotency) Claim(ctx context.Context, key string) (bool, error) {
	return i.store.Reserve(ctx, key, pendingTTL)
}

// Get returns what is recorded for key, or nil when there is nothing.
func (i *Idempotency) Get(ctx context.Context, key string) (*Response, error) {
	resp, err := i.store.Get(ctx, key)
	if err != nil || resp == nil {
		return nil, err
	}
	return &Response{Status: resp.Status, Result: resp.Result, Pending: resp.Pending}, nil
}

// Set records the owner's final response.
func (i *Idempotency) Set(ctx context.Context, key string, resp Response) error {
	return i.store.Save(ctx, key, redisadapter.IdempResponse{Status: resp.Status, Result: resp.Result}, i.ttl)
}

func (i *Idempotency) Release(ctx context.Context, key string) error {
	return i.store.Release(ctx, key)
}
