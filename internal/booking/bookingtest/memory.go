// Package bookingtest provides in-memory stores for exercising the booking
// service without a database.
package bookingtest

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Store keeps lessons, orders and events in memory. It implements
// booking.LessonStore, booking.OrderStore and booking.EventLog.
type Store struct {
	mu         sync.Mutex
	lessons    map[primitive.ObjectID]domain.Lesson
	lessonSeq  []primitive.ObjectID
	orders     map[primitive.ObjectID]domain.Order
	orderSeq   []primitive.ObjectID
	events     []domain.Event
	failLesson map[primitive.ObjectID]error
	err        error
}

func NewStore() *Store {
	return &Store{
		lessons:    make(map[primitive.ObjectID]domain.Lesson),
		orders:     make(map[primitive.ObjectID]domain.Order),
		failLesson: make(map[primitive.ObjectID]error),
	}
}

// AddLesson stores l, assigning an id when it has none.
func (s *Store) AddLesson(l domain.Lesson) domain.Lesson {
	s.mu.Lock()
	defer s.mu.Unlock()
	if l.ID.IsZero() {
		l.ID = primitive.NewObjectID()
	}
	if _, ok := s.lessons[l.ID]; !ok {
		s.lessonSeq = append(s.lessonSeq, l.ID)
	}
	s.lessons[l.ID] = l
	return l
}

func (s *Store) Lesson(id primitive.ObjectID) (domain.Lesson, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	l, ok := s.lessons[id]
	return l, ok
}

func (s *Store) Orders() []domain.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]domain.Order, 0, len(s.orderSeq))
	for _, id := range s.orderSeq {
		if o, ok := s.orders[id]; ok {
			out = append(out, o)
		}
	}
	return out
}

func (s *Store) Events() []domain.Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Event(nil), s.events...)
}

// FailIncrement makes IncrementSpaces on lesson id return err.
func (s *Store) FailIncrement(id primitive.ObjectID, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failLesson[id] = err
}

// SetError makes every store call return err until cleared with nil.
func (s *Store) SetError(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.err = err
}

func (s *Store) List(ctx context.Context) ([]domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.Lesson, 0, len(s.lessonSeq))
	for _, id := range s.lessonSeq {
		if l, ok := s.lessons[id]; ok {
			out = append(out, l)
		}
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, id primitive.ObjectID, patch domain.LessonPatch) (*domain.Lesson, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	l, ok := s.lessons[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "lesson %s", id.Hex())
	}
	updated, err := mergeLesson(l, patch)
	if err != nil {
		return nil, err
	}
	s.lessons[id] = updated
	return &updated, nil
}

// mergeLesson applies patch the way a $set would, by round-tripping the
// lesson through a BSON document.
func mergeLesson(l domain.Lesson, patch domain.LessonPatch) (domain.Lesson, error) {
	raw, err := bson.Marshal(l)
	if err != nil {
		return l, err
	}
	var doc bson.M
	if err := bson.Unmarshal(raw, &doc); err != nil {
		return l, err
	}
	for k, v := range patch {
		doc[k] = v
	}
	if raw, err = bson.Marshal(doc); err != nil {
		return l, err
	}
	var out domain.Lesson
	if err := bson.Unmarshal(raw, &out); err != nil {
		return l, err
	}
	return out, nil
}

func (s *Store) IncrementSpaces(ctx context.Context, id primitive.ObjectID, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if err := s.failLesson[id]; err != nil {
		return err
	}
	// $inc on a missing document matches nothing and is not an error.
	if l, ok := s.lessons[id]; ok {
		l.Spaces += delta
		s.lessons[id] = l
	}
	return nil
}

func (s *Store) Insert(ctx context.Context, order domain.Order) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.orders[order.ID]; ok {
		return errors.Newf("duplicate order %s", order.ID.Hex())
	}
	s.orders[order.ID] = order
	s.orderSeq = append(s.orderSeq, order.ID)
	return nil
}

func (s *Store) Get(ctx context.Context, id primitive.ObjectID) (*domain.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	o, ok := s.orders[id]
	if !ok {
		return nil, errors.Wrapf(domain.ErrNotFound, "order %s", id.Hex())
	}
	return &o, nil
}

func (s *Store) Delete(ctx context.Context, id primitive.ObjectID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	if _, ok := s.orders[id]; !ok {
		return errors.Wrapf(domain.ErrNotFound, "order %s", id.Hex())
	}
	delete(s.orders, id)
	return nil
}

// ListWithLessons joins like $lookup: each distinct referenced lesson that
// still exists appears once, in collection order rather than lessonIds order.
func (s *Store) ListWithLessons(ctx context.Context) ([]domain.OrderWithLessons, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]domain.OrderWithLessons, 0, len(s.orders))
	for _, id := range s.orderSeq {
		o, ok := s.orders[id]
		if !ok {
			continue
		}
		view := domain.OrderWithLessons{Order: o, Lessons: []domain.Lesson{}}
		wanted := make(map[primitive.ObjectID]bool, len(o.LessonIDs))
		for _, lid := range o.LessonIDs {
			wanted[lid] = true
		}
		for _, lid := range s.lessonSeq {
			if l, ok := s.lessons[lid]; ok && wanted[lid] {
				view.Lessons = append(view.Lessons, l)
			}
		}
		out = append(out, view)
	}
	return out, nil
}

func (s *Store) Append(ctx context.Context, event domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}
