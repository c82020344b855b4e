// Command seed loads the lesson catalog into the store.
package main

import (
	"context"
	_ "embed"
	"encoding/json"
	"flag"
	"log"
	"os"

	"github.com/cockroachdb/errors"
	"github.com/redis/go-redis/v9"
	mongoadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/mongo"
	redisadapter "github.com/robertarktes/afterschool-bookings/internal/adapters/redis"
	"github.com/robertarktes/afterschool-bookings/internal/config"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

//go:embed lessons.json
var defaultLessons []byte

func main() {
	file := flag.String("file", "", "JSON file with an array of lessons (defaults to the built-in catalog)")
	reset := flag.Bool("reset", false, "delete existing lessons first")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	logger := observability.NewLogger(cfg.LogLevel)

	data := defaultLessons
	if *file != "" {
		if data, err = os.ReadFile(*file); err != nil {
			log.Fatalf("failed to read %s: %v", *file, err)
		}
	}
	lessons, err := parseLessons(data)
	if err != nil {
		log.Fatalf("failed to parse lessons: %v", err)
	}

	ctx := context.Background()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(cfg.MongoURI).SetTimeout(cfg.MongoTimeout))
	if err != nil {
		log.Fatalf("failed to connect to mongo: %v", err)
	}
	defer client.Disconnect(ctx)
	repo := mongoadapter.NewLessonRepository(client.Database(cfg.MongoDatabase), logger)

	var cache invalidator
	if cfg.RedisAddr != "" {
		redisClient := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
		defer redisClient.Close()
		cache = redisadapter.NewCache(redisClient, cfg.LessonsCacheTTL)
	}

	if err := seed(ctx, repo, cache, lessons, *reset, logger); err != nil {
		log.Fatalf("failed to seed lessons: %v", err)
	}
}

type lessonWriter interface {
	Upsert(ctx context.Context, lesson domain.Lesson) error
	DeleteAll(ctx context.Context) (int64, error)
}

type invalidator interface {
	Invalidate(ctx context.Context) error
}

// seed writes lessons and then drops the cached listing so running API
// instances serve the new catalog. cache may be nil.
func seed(ctx context.Context, repo lessonWriter, cache invalidator, lessons []domain.Lesson, reset bool, logger observability.Logger) error {
	if reset {
		n, err := repo.DeleteAll(ctx)
		if err != nil {
			return errors.Wrap(err, "clear lessons")
		}
		logger.WithField("deleted", n).Info("cleared lessons")
	}
	for _, l := range lessons {
		if err := repo.Upsert(ctx, l); err != nil {
			return errors.Wrapf(err, "seed lesson %q", l.Subject)
		}
	}
	logger.WithField("count", len(lessons)).Info("seeded lessons")

	if cache != nil {
		if err := cache.Invalidate(ctx); err != nil {
			return errors.Wrap(err, "invalidate lesson cache")
		}
	}
	return nil
}

// parseLessons reads a JSON array of lesson documents. Ids are optional;
// fields other than the known ones are kept.
func parseLessons(data []byte) ([]domain.Lesson, error) {
	var docs []map[string]interface{}
	if err := json.Unmarshal(data, &docs); err != nil {
		return nil, errors.Wrap(err, "decode json")
	}
	lessons := make([]domain.Lesson, 0, len(docs))
	for i, doc := range docs {
		if raw, ok := doc["_id"].(string); ok {
			id, err := domain.ParseID(raw)
			if err != nil {
				return nil, errors.Wrapf(err, "lesson %d", i)
			}
			doc["_id"] = id
		}
		if _, ok := doc["spaces"]; ok {
			patch, err := domain.LessonPatch{"spaces": doc["spaces"]}.Normalize()
			if err != nil {
				return nil, errors.Wrapf(err, "lesson %d", i)
			}
			doc["spaces"] = patch["spaces"]
		}
		raw, err := bson.Marshal(doc)
		if err != nil {
			return nil, errors.Wrapf(err, "lesson %d", i)
		}
		var l domain.Lesson
		if err := bson.Unmarshal(raw, &l); err != nil {
			return nil, errors.Wrapf(err, "lesson %d", i)
		}
		lessons = append(lessons, l)
	}
	return lessons, nil
}
