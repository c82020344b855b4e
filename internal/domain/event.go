package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

const (
	EventOrderPlaced   = "order.placed"
	EventOrderCanceled = "order.canceled"
)

// Event is an order lifecycle notification recorded for later publishing.
type Event struct {
	Type       string
	OrderID    primitive.ObjectID
	LessonIDs  []primitive.ObjectID
	Spaces     int
	OccurredAt time.Time
}
