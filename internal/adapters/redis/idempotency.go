package redis

import (
	"context"
	"encoding/json"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
)

const idempotencyPrefix = "idemp:"

// Idempotency stores the first response produced for an Idempotency-Key.
type Idempotency struct {
	client *redis.Client
}

func NewIdempotency(client *redis.Client) *Idempotency {
	return &Idempotency{client: client}
}

// IdempResponse is either the recorded response or, while the first request
// is still running, a pending marker.
type IdempResponse struct {
	Status  int    `json:"status"`
	Result  []byte `json:"result"`
	Pending bool   `json:"pending,omitempty"`
}

// Get returns nil without an error when nothing is recorded for key.
func (i *Idempotency) Get(ctx context.Context, key string) (*IdempResponse, error) {
	val, err := i.client.Get(ctx, idempotencyPrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "get idempotent response")
	}
	var resp IdempResponse
	if err := json.Unmarshal(val, &resp); err != nil {
		return nil, errors.Wrap(err, "decode idempotent response")
	}
	return &resp, nil
}

// Reserve writes a pending marker for key unless something is already
// recorded, and reports whether this caller now owns the key.
func (i *Idempotency) Reserve(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	data, err := json.Marshal(IdempResponse{Pending: true})
	if err != nil {
		return false, errors.Wrap(err, "encode pending marker")
	}
	err = i.client.SetArgs(ctx, idempotencyPrefix+key, data, redis.SetArgs{Mode: "NX", TTL: ttl}).Err()
	if errors.Is(err, redis.Nil) {
		return false, nil
	}
	if err != nil {
		return false, errors.Wrap(err, "reserve idempotency key")
	}
	return true, nil
}

// Save replaces the pending marker with the final response.
func (i *Idempotency) Save(ctx context.Context, key string, resp IdempResponse, ttl time.Duration) error {
	data, err := json.Marshal(resp)
	if err != nil {
		return errors.Wrap(err, "encode idempotent response")
	}
	return errors.Wrap(i.client.Set(ctx, idempotencyPrefix+key, data, ttl).Err(), "store idempotent response")
}

// Release drops the key so the request can be retried.
func (i *Idempotency) Release(ctx context.Context, key string) error {
	return errors.Wrap(i.client.Del(ctx, idempotencyPrefix+key).Err(), "release idempotency key")
}
