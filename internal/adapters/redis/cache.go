package redis

import (
	"context"
	"strconv"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
)

const (
	lessonsKey    = "lessons:all"
	lessonsGenKey = "lessons:gen"
)

// setIfGeneration writes the listing only while lessons:gen still holds the
// generation the caller read before querying the store.
var setIfGeneration = redis.NewScript(`
local cur = redis.call('GET', KEYS[1]) or '0'
if cur ~= ARGV[1] then
	return 0
end
local ttl = tonumber(ARGV[3])
if ttl > 0 then
	redis.call('SET', KEYS[2], ARGV[2], 'PX', ttl)
else
	redis.call('SET', KEYS[2], ARGV[2])
end
return 1
`)

// Cache holds the lesson listing. Entries are BSON so that lesson fields
// unknown to the service survive the round trip.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewCache(client *redis.Client, ttl time.Duration) *Cache {
	return &Cache{client: client, ttl: ttl}
}

type lessonsEntry struct {
	Lessons []domain.Lesson `bson:"lessons"`
}

func (c *Cache) Lessons(ctx context.Context) ([]domain.Lesson, bool, error) {
	raw, err := c.client.Get(ctx, lessonsKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Wrap(err, "get cached lessons")
	}
	var entry lessonsEntry
	if err := bson.Unmarshal(raw, &entry); err != nil {
		return nil, false, errors.Wrap(err, "decode cached lessons")
	}
	if entry.Lessons == nil {
		entry.Lessons = []domain.Lesson{}
	}
	return entry.Lessons, true, nil
}

func (c *Cache) Generation(ctx context.Context) (int64, error) {
	gen, err := c.client.Get(ctx, lessonsGenKey).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, errors.Wrap(err, "get lessons generation")
	}
	return gen, nil
}

// SetLessons stores lessons if no invalidation happened since gen was read,
// and reports whether it did.
func (c *Cache) SetLessons(ctx context.Context, gen int64, lessons []domain.Lesson) (bool, error) {
	raw, err := bson.Marshal(lessonsEntry{Lessons: lessons})
	if err != nil {
		return false, errors.Wrap(err, "encode lessons")
	}
	stored, err := setIfGeneration.Run(ctx, c.client,
		[]string{lessonsGenKey, lessonsKey},
		strconv.FormatInt(gen, 10), raw, c.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, errors.Wrap(err, "set cached lessons")
	}
	return stored == 1, nil
}

// Invalidate advances the generation and drops the listing in one
// transaction.
func (c *Cache) Invalidate(ctx context.Context) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, lessonsGenKey)
		pipe.Del(ctx, lessonsKey)
		return nil
	})
	return errors.Wrap(err, "invalidate cached lessons")
}
