// Package booking holds the lesson catalog and order ledger operations.
//
// Placement only records an order; it never checks or decrements lesson
// seats. Cancellation adds exactly one seat back to every referenced lesson,
// whatever the order's recorded seat count, and then deletes the order.
// Outside transaction mode the increments and the delete are independent
// writes, so a failure part way through leaves them partially applied.
package booking

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/go-playground/validator/v10"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

type LessonStore interface {
	List(ctx context.Context) ([]domain.Lesson, error)
	Update(ctx context.Context, id primitive.ObjectID, patch domain.LessonPatch) (*domain.Lesson, error)
	IncrementSpaces(ctx context.Context, id primitive.ObjectID, delta int) error
}

type OrderStore interface {
	Insert(ctx context.Context, order domain.Order) error
	Get(ctx context.Context, id primitive.ObjectID) (*domain.Order, error)
	Delete(ctx context.Context, id primitive.ObjectID) error
	ListWithLessons(ctx context.Context) ([]domain.OrderWithLessons, error)
}

// EventLog records order lifecycle events for asynchronous publishing.
type EventLog interface {
	Append(ctx context.Context, event domain.Event) error
}

// TxRunner runs fn so that every store call made with the context it is
// given commits or aborts together.
type TxRunner interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// LessonCache holds the lesson listing. Every Invalidate advances the
// generation; SetLessons stores a listing only while the generation is still
// the one read before the store was queried, so a slow reader cannot put back
// a listing older than the last write.
type LessonCache interface {
	Lessons(ctx context.Context) ([]domain.Lesson, bool, error)
	Generation(ctx context.Context) (int64, error)
	SetLessons(ctx context.Context, gen int64, lessons []domain.Lesson) (bool, error)
	Invalidate(ctx context.Context) error
}

type Service struct {
	lessons  LessonStore
	orders   OrderStore
	events   EventLog
	tx       TxRunner
	cache    LessonCache
	logger   observability.Logger
	now      func() time.Time
	validate *validator.Validate
	tracer   trace.Tracer
}

type Option func(*Service)

// WithTransactions makes CancelOrder run its reads and writes in a single
// store transaction.
func WithTransactions(tx TxRunner) Option {
	return func(s *Service) { s.tx = tx }
}

func WithLessonCache(c LessonCache) Option {
	return func(s *Service) { s.cache = c }
}

func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

func NewService(lessons LessonStore, orders OrderStore, events EventLog, logger observability.Logger, opts ...Option) *Service {
	s := &Service{
		lessons:  lessons,
		orders:   orders,
		events:   events,
		tx:       noTx{},
		cache:    noCache{},
		logger:   logger,
		now:      time.Now,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		tracer:   otel.Tracer("booking"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Service) ListLessons(ctx context.Context) ([]domain.Lesson, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ListLessons")
	defer span.End()

	if lessons, ok, err := s.cache.Lessons(ctx); err != nil {
		s.logger.WithError(err).Warn("lesson cache read failed")
	} else if ok {
		span.SetAttributes(attribute.Bool("cache.hit", true))
		return lessons, nil
	}

	gen, genErr := s.cache.Generation(ctx)
	if genErr != nil {
		s.logger.WithError(genErr).Warn("lesson cache generation read failed")
	}

	lessons, err := s.lessons.List(ctx)
	if err != nil {
		return nil, spanError(span, errors.Wrap(err, "list lessons"))
	}
	if genErr == nil {
		if _, err := s.cache.SetLessons(ctx, gen, lessons); err != nil {
			s.logger.WithError(err).Warn("lesson cache write failed")
		}
	}
	return lessons, nil
}

func (s *Service) UpdateLesson(ctx context.Context, id string, patch domain.LessonPatch) (*domain.Lesson, error) {
	ctx, span := s.tracer.Start(ctx, "booking.UpdateLesson", trace.WithAttributes(attribute.String("lesson.id", id)))
	defer span.End()

	lessonID, err := domain.ParseID(id)
	if err != nil {
		return nil, spanError(span, err)
	}
	patch, err = patch.Normalize()
	if err != nil {
		return nil, spanError(span, err)
	}

	lesson, err := s.lessons.Update(ctx, lessonID, patch)
	if err != nil {
		return nil, spanError(span, errors.Wrapf(err, "update lesson %s", id))
	}
	s.invalidateLessons(ctx)
	return lesson, nil
}

type PlaceOrderInput struct {
	Name        string   `json:"name" validate:"required"`
	PhoneNumber string   `json:"phoneNumber" validate:"required"`
	LessonIDs   []string `json:"lessonIds" validate:"required,min=1"`
	Spaces      int      `json:"spaces" validate:"gte=1"`
}

// PlaceOrder records an order. Referenced lessons are neither checked for
// existence nor for free seats, and their seat counts are left untouched.
func (s *Service) PlaceOrder(ctx context.Context, in PlaceOrderInput) (*domain.Order, error) {
	ctx, span := s.tracer.Start(ctx, "booking.PlaceOrder")
	defer span.End()

	if err := s.validate.Struct(in); err != nil {
		return nil, spanError(span, errors.Mark(errors.Wrap(err, "place order"), domain.ErrInvalidInput))
	}
	lessonIDs, err := domain.ParseIDs(in.LessonIDs)
	if err != nil {
		return nil, spanError(span, err)
	}

	order := domain.NewOrder(in.Name, in.PhoneNumber, lessonIDs, in.Spaces, s.now())
	if err := s.orders.Insert(ctx, order); err != nil {
		return nil, spanError(span, errors.Wrap(err, "insert order"))
	}
	span.SetAttributes(attribute.String("order.id", order.ID.Hex()))

	s.recordEvent(ctx, domain.EventOrderPlaced, order)
	return &order, nil
}

func (s *Service) ListOrders(ctx context.Context) ([]domain.OrderWithLessons, error) {
	ctx, span := s.tracer.Start(ctx, "booking.ListOrders")
	defer span.End()

	orders, err := s.orders.ListWithLessons(ctx)
	if err != nil {
		return nil, spanError(span, errors.Wrap(err, "list orders"))
	}
	return orders, nil
}

// CancelOrder gives back one seat on each lesson the order references and
// deletes the order.
func (s *Service) CancelOrder(ctx context.Context, id string) error {
	ctx, span := s.tracer.Start(ctx, "booking.CancelOrder", trace.WithAttributes(attribute.String("order.id", id)))
	defer span.End()

	orderID, err := domain.ParseID(id)
	if err != nil {
		return spanError(span, err)
	}

	var canceled *domain.Order
	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		order, err := s.orders.Get(ctx, orderID)
		if err != nil {
			return errors.Wrapf(err, "get order %s", id)
		}
		for _, lessonID := range order.LessonIDs {
			if err := s.lessons.IncrementSpaces(ctx, lessonID, 1); err != nil {
				return errors.Wrapf(err, "restore seat on lesson %s", lessonID.Hex())
			}
		}
		if err := s.orders.Delete(ctx, orderID); err != nil {
			return errors.Wrapf(err, "delete order %s", id)
		}
		canceled = order
		return nil
	})
	if err != nil {
		// Seats may already have been restored even though the order remains.
		s.invalidateLessons(ctx)
		return spanError(span, err)
	}

	s.invalidateLessons(ctx)
	observability.SeatsRestored.Add(float64(len(canceled.LessonIDs)))
	s.recordEvent(ctx, domain.EventOrderCanceled, *canceled)
	return nil
}

func (s *Service) recordEvent(ctx context.Context, eventType string, order domain.Order) {
	if eventType == domain.EventOrderPlaced {
		observability.OrdersPlaced.Inc()
	}
	if s.events == nil {
		return
	}
	event := domain.Event{
		Type:       eventType,
		OrderID:    order.ID,
		LessonIDs:  order.LessonIDs,
		Spaces:     order.Spaces,
		OccurredAt: s.now(),
	}
	if err := s.events.Append(ctx, event); err != nil {
		s.logger.WithError(err).WithFields(map[string]interface{}{
			"event":    eventType,
			"order_id": order.ID.Hex(),
		}).Error("failed to record order event")
	}
}

func (s *Service) invalidateLessons(ctx context.Context) {
	if err := s.cache.Invalidate(ctx); err != nil {
		s.logger.WithError(err).Warn("lesson cache invalidation failed")
	}
}

func spanError(span trace.Span, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())
	return err
}

type noTx struct{}

func (noTx) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

type noCache struct{}

func (noCache) Lessons(context.Context) ([]domain.Lesson, bool, error) { return nil, false, nil }
func (noCache) Generation(context.Context) (int64, error)             { return 0, nil }
func (noCache) SetLessons(context.Context, int64, []domain.Lesson) (bool, error) {
	return false, nil
}
func (noCache) Invalidate(context.Context) error { return nil }
