package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/robertarktes/afterschool-bookings/internal/adapters/mongo"
	"github.com/robertarktes/afterschool-bookings/internal/booking"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	mongodriver "go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

func setupMongo(t *testing.T) *mongodriver.Database {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	endpoint, err := container.Endpoint(ctx, "mongodb")
	require.NoError(t, err)

	client, err := mongodriver.Connect(ctx, options.Client().ApplyURI(endpoint).SetTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(ctx) })

	return client.Database("afterSchoolDB_test")
}

func TestLessonRepository_UpdateAndIncrement(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	logger := observability.NewNopLogger()
	repo := mongo.NewLessonRepository(db, logger)

	lesson := domain.Lesson{ID: primitive.NewObjectID(), Subject: "Math", Location: "London", Price: 100, Spaces: 5, Extra: bson.M{"icon": "fa-calculator"}}
	require.NoError(t, repo.Upsert(ctx, lesson))

	updated, err := repo.Update(ctx, lesson.ID, domain.LessonPatch{"spaces": 3, "location": "Hendon"})
	require.NoError(t, err)
	assert.Equal(t, 3, updated.Spaces)
	assert.Equal(t, "Hendon", updated.Location)
	assert.Equal(t, "Math", updated.Subject)
	assert.Equal(t, "fa-calculator", updated.Extra["icon"])

	_, err = repo.Update(ctx, primitive.NewObjectID(), domain.LessonPatch{"spaces": 1})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, repo.IncrementSpaces(ctx, lesson.ID, 1))
	require.NoError(t, repo.IncrementSpaces(ctx, primitive.NewObjectID(), 1))

	lessons, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, 4, lessons[0].Spaces)
}

func TestOrderRepository_LookupAndDelete(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	logger := observability.NewNopLogger()
	lessons := mongo.NewLessonRepository(db, logger)
	orders := mongo.NewOrderRepository(db, logger)

	l1 := domain.Lesson{ID: primitive.NewObjectID(), Subject: "Math", Spaces: 5}
	require.NoError(t, lessons.Upsert(ctx, l1))

	order := domain.NewOrder("Ada", "07123456789", []primitive.ObjectID{l1.ID, primitive.NewObjectID()}, 2, time.Now())
	require.NoError(t, orders.Insert(ctx, order))

	got, err := orders.Get(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, order.LessonIDs, got.LessonIDs)
	assert.True(t, order.OrderDate.Equal(got.OrderDate))

	list, err := orders.ListWithLessons(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	require.Len(t, list[0].Lessons, 1)
	assert.Equal(t, l1.ID, list[0].Lessons[0].ID)

	require.NoError(t, orders.Delete(ctx, order.ID))
	assert.ErrorIs(t, orders.Delete(ctx, order.ID), domain.ErrNotFound)
	_, err = orders.Get(ctx, order.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestService_CancelAgainstMongo(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	logger := observability.NewNopLogger()
	lessons := mongo.NewLessonRepository(db, logger)
	orders := mongo.NewOrderRepository(db, logger)
	outbox := mongo.NewOutboxRepository(db, logger)
	require.NoError(t, outbox.EnsureIndexes(ctx))
	svc := booking.NewService(lessons, orders, outbox, logger)

	l1 := domain.Lesson{ID: primitive.NewObjectID(), Subject: "Math", Spaces: 0}
	l2 := domain.Lesson{ID: primitive.NewObjectID(), Subject: "Art", Spaces: 7}
	require.NoError(t, lessons.Upsert(ctx, l1))
	require.NoError(t, lessons.Upsert(ctx, l2))

	order, err := svc.PlaceOrder(ctx, booking.PlaceOrderInput{
		Name: "Ada", PhoneNumber: "1", LessonIDs: []string{l1.ID.Hex(), l2.ID.Hex()}, Spaces: 5,
	})
	require.NoError(t, err)
	require.NoError(t, svc.CancelOrder(ctx, order.ID.Hex()))

	list, err := svc.ListLessons(ctx)
	require.NoError(t, err)
	spaces := map[primitive.ObjectID]int{}
	for _, l := range list {
		spaces[l.ID] = l.Spaces
	}
	assert.Equal(t, 1, spaces[l1.ID])
	assert.Equal(t, 8, spaces[l2.ID])

	pending, err := outbox.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	require.Len(t, pending, 2)
	assert.ElementsMatch(t,
		[]string{domain.EventOrderPlaced, domain.EventOrderCanceled},
		[]string{pending[0].EventType, pending[1].EventType})

	require.NoError(t, outbox.MarkPublished(ctx, pending[0].ID, time.Now()))
	pending, err = outbox.GetUnpublished(ctx, 10)
	require.NoError(t, err)
	assert.Len(t, pending, 1)
}

func TestLessonRepository_SeedReset(t *testing.T) {
	db := setupMongo(t)
	ctx := context.Background()
	repo := mongo.NewLessonRepository(db, observability.NewNopLogger())

	require.NoError(t, repo.Upsert(ctx, domain.Lesson{Subject: "Chess", Spaces: 5}))
	require.NoError(t, repo.Upsert(ctx, domain.Lesson{Subject: "Drama", Spaces: 5}))

	n, err := repo.DeleteAll(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	list, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, list)
}
