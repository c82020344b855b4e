package mongo

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const LessonsCollection = "lessons"

type LessonRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewLessonRepository(db *mongo.Database, logger observability.Logger) *LessonRepository {
	return &LessonRepository{
		coll:   db.Collection(LessonsCollection),
		logger: logger,
	}
}

func (r *LessonRepository) List(ctx context.Context) ([]domain.Lesson, error) {
	defer observe("lessons.list", time.Now())

	cursor, err := r.coll.Find(ctx, bson.M{})
	if err != nil {
		r.logger.WithError(err).Error("failed to list lessons")
		return nil, storeError(err, "find lessons")
	}
	lessons := []domain.Lesson{}
	if err := cursor.All(ctx, &lessons); err != nil {
		return nil, storeError(err, "decode lessons")
	}
	return lessons, nil
}

// Update applies patch with $set and returns the document as it is after
// the update.
func (r *LessonRepository) Update(ctx context.Context, id primitive.ObjectID, patch domain.LessonPatch) (*domain.Lesson, error) {
	defer observe("lessons.update", time.Now())

	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var lesson domain.Lesson
	err := r.coll.FindOneAndUpdate(ctx, bson.M{"_id": id}, bson.M{"$set": bson.M(patch)}, opts).Decode(&lesson)
	if err != nil {
		if !errors.Is(err, mongo.ErrNoDocuments) {
			r.logger.WithError(err).WithField("lesson_id", id.Hex()).Error("failed to update lesson")
		}
		return nil, storeError(err, "update lesson")
	}
	return &lesson, nil
}

// IncrementSpaces adds delta to the lesson's seat count. A lesson that no
// longer exists is skipped silently.
func (r *LessonRepository) IncrementSpaces(ctx context.Context, id primitive.ObjectID, delta int) error {
	defer observe("lessons.inc_spaces", time.Now())

	res, err := r.coll.UpdateOne(ctx, bson.M{"_id": id}, bson.M{"$inc": bson.M{"spaces": delta}})
	if err != nil {
		r.logger.WithError(err).WithField("lesson_id", id.Hex()).Error("failed to increment lesson spaces")
		return storeError(err, "increment spaces")
	}
	if res.MatchedCount == 0 {
		r.logger.WithField("lesson_id", id.Hex()).Warn("seat restore skipped, lesson not found")
	}
	return nil
}

// Upsert replaces the lesson with the same id, or inserts it.
func (r *LessonRepository) Upsert(ctx context.Context, lesson domain.Lesson) error {
	if lesson.ID.IsZero() {
		lesson.ID = primitive.NewObjectID()
	}
	_, err := r.coll.ReplaceOne(ctx, bson.M{"_id": lesson.ID}, lesson, options.Replace().SetUpsert(true))
	return storeError(err, "upsert lesson")
}

func (r *LessonRepository) DeleteAll(ctx context.Context) (int64, error) {
	res, err := r.coll.DeleteMany(ctx, bson.M{})
	if err != nil {
		return 0, storeError(err, "delete lessons")
	}
	return res.DeletedCount, nil
}
