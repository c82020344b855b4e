package mongo

import (
	"context"
	"time"

	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
)

const OrdersCollection = "orders"

type OrderRepository struct {
	coll   *mongo.Collection
	logger observability.Logger
}

func NewOrderRepository(db *mongo.Database, logger observability.Logger) *OrderRepository {
	return &OrderRepository{
		coll:   db.Collection(OrdersCollection),
		logger: logger,
	}
}

func (r *OrderRepository) Insert(ctx context.Context, order domain.Order) error {
	defer observe("orders.insert", time.Now())

	_, err := r.coll.InsertOne(ctx, order)
	if err != nil {
		r.logger.WithError(err).Error("failed to insert order")
		return storeError(err, "insert order")
	}
	return nil
}

func (r *OrderRepository) Get(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	defer observe("orders.get", time.Now())

	var order domain.Order
	if err := r.coll.FindOne(ctx, bson.M{"_id": id}).Decode(&order); err != nil {
		return nil, storeError(err, "get order")
	}
	return &order, nil
}

func (r *OrderRepository) Delete(ctx context.Context, id primitive.ObjectID) error {
	defer observe("orders.delete", time.Now())

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": id})
	if err != nil {
		r.logger.WithError(err).WithField("order_id", id.Hex()).Error("failed to delete order")
		return storeError(err, "delete order")
	}
	if res.DeletedCount == 0 {
		return storeError(mongo.ErrNoDocuments, "delete order")
	}
	return nil
}

// ListWithLessons returns every order joined with the lessons its
// lessonIds still resolve to.
func (r *OrderRepository) ListWithLessons(ctx context.Context) ([]domain.OrderWithLessons, error) {
	defer observe("orders.list", time.Now())

	pipeline := mongo.Pipeline{
		{{Key: "$lookup", Value: bson.D{
			{Key: "from", Value: LessonsCollection},
			{Key: "localField", Value: "lessonIds"},
			{Key: "foreignField", Value: "_id"},
			{Key: "as", Value: "lessons"},
		}}},
	}
	cursor, err := r.coll.Aggregate(ctx, pipeline)
	if err != nil {
		r.logger.WithError(err).Error("failed to list orders")
		return nil, storeError(err, "aggregate orders")
	}
	orders := []domain.OrderWithLessons{}
	if err := cursor.All(ctx, &orders); err != nil {
		return nil, storeError(err, "decode orders")
	}
	return orders, nil
}
