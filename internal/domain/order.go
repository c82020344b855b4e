package domain

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type Order struct {
	ID          primitive.ObjectID   `bson:"_id" json:"_id"`
	Name        string               `bson:"name" json:"name"`
	PhoneNumber string               `bson:"phoneNumber" json:"phoneNumber"`
	LessonIDs   []primitive.ObjectID `bson:"lessonIds" json:"lessonIds"`
	Spaces      int                  `bson:"spaces" json:"spaces"`
	OrderDate   time.Time            `bson:"orderDate" json:"orderDate"`
}

// OrderWithLessons is an order joined with the lessons it still resolves to.
type OrderWithLessons struct {
	Order   `bson:",inline"`
	Lessons []Lesson `bson:"lessons" json:"lessons"`
}

func NewOrder(name, phone string, lessonIDs []primitive.ObjectID, spaces int, now time.Time) Order {
	return Order{
		ID:          primitive.NewObjectID(),
		Name:        name,
		PhoneNumber: phone,
		LessonIDs:   lessonIDs,
		Spaces:      spaces,
		OrderDate:   now.UTC().Truncate(time.Millisecond),
	}
}
