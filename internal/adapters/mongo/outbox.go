package mongo

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const OutboxCollection = "outbox"

const (
	OutboxStatusNew       = "NEW"
	OutboxStatusPublished = "PUBLISHED"
)

type OutboxRecord struct {
	ID            string     `bson:"_id"`
	AggregateType string     `bson:"aggregate_type"`
	AggregateID   string     `bson:"aggregate_id"`
	EventType     string     `bson:"event_type"`
	Payload       []byte     `bson:"payload"`
	CreatedAt     time.Time  `bson:"created_at"`
	PublishedAt   *time.Time `bson:"published_at,omitempty"`
	Status        string     `bson:"status"`
	DedupeKey     string     `bson:"dedupe_key"`
}

// EventPayload is the JSON body published for order events.
type EventPayload struct {
	OrderID    string    `json:"order_id"`
	LessonIDs  []string  `json:"lesson_ids"`
	Spaces     int       `json:"spaces"`
	OccurredAt time.Time `json:"occurred_at"`
}

type OutboxRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewOutboxRepository(db *mongo.Database, logger observability.Logger) *OutboxRepository {
	return &OutboxRepository{
		coll:   db.Collection(OutboxCollection),
		logger: logger,
	}
}

func (r *OutboxRepository) Append(ctx context.Context, event domain.Event) error {
	lessonIDs := make([]string, len(event.LessonIDs))
	for i, id := range event.LessonIDs {
		lessonIDs[i] = id.Hex()
	}
	payload, err := json.Marshal(EventPayload{
		OrderID:    event.OrderID.Hex(),
		LessonIDs:  lessonIDs,
		Spaces:     event.Spaces,
		OccurredAt: event.OccurredAt.UTC(),
	})
	if err != nil {
		return err
	}

	rec := OutboxRecord{
		ID:            uuid.NewString(),
		AggregateType: "order",
		AggregateID:   event.OrderID.Hex(),
		EventType:     event.Type,
		Payload:       payload,
		CreatedAt:     event.OccurredAt.UTC(),
		Status:        OutboxStatusNew,
		DedupeKey:     uuid.NewString(),
	}
	if _, err := r.coll.InsertOne(ctx, rec); err != nil {
		return storeError(err, "insert outbox record")
	}
	return nil
}

// GetUnpublished returns up to limit NEW records, oldest first.
func (r *OutboxRepository) GetUnpublished(ctx context.Context, limit int) ([]OutboxRecord, error) {
	opts := options.Find().
		SetSort(bson.D{{Key: "created_at", Value: 1}}).
		SetLimit(int64(limit))
	cursor, err := r.coll.Find(ctx, bson.M{"status": OutboxStatusNew}, opts)
	if err != nil {
		return nil, storeError(err, "find outbox records")
	}
	var records []OutboxRecord
	if err := cursor.All(ctx, &records); err != nil {
		return nil, storeError(err, "decode outbox records")
	}
	return records, nil
}

func (r *OutboxRepository) MarkPublished(ctx context.Context, id string, publishedAt time.Time) error {
	_, err := r.coll.UpdateOne(ctx,
		bson.M{"_id": id, "status": OutboxStatusNew},
		bson.M{"$set": bson.M{"status": OutboxStatusPublished, "published_at": publishedAt}},
	)
	return storeError(err, "mark outbox record published")
}

func (r *OutboxRepository) EnsureIndexes(ctx context.Context) error {
	_, err := r.coll.Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "status", Value: 1}, {Key: "created_at", Value: 1}},
	})
	return storeError(err, "create outbox index")
}
