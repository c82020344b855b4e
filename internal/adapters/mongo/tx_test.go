package mongo_test

import (
	"context"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
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

// setupReplicaSet starts a single-node replica set, which transactions
// require.
func setupReplicaSet(t *testing.T) *mongodriver.Client {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping container test in short mode")
	}
	ctx := context.Background()

	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: testcontainers.ContainerRequest{
			Image:        "mongo:7",
			ExposedPorts: []string{"27017/tcp"},
			Cmd:          []string{"--replSet", "rs0", "--bind_ip_all"},
			WaitingFor:   wait.ForLog("Waiting for connections").WithStartupTimeout(time.Minute),
		},
		Started: true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { container.Terminate(ctx) })

	code, _, err := container.Exec(ctx, []string{"mongosh", "--quiet", "--eval",
		"rs.initiate({_id: 'rs0', members: [{_id: 0, host: 'localhost:27017'}]})"})
	require.NoError(t, err)
	require.Equal(t, 0, code)

	endpoint, err := container.Endpoint(ctx, "mongodb")
	require.NoError(t, err)
	client, err := mongodriver.Connect(ctx, options.Client().
		ApplyURI(endpoint).
		SetDirect(true).
		SetTimeout(10*time.Second))
	require.NoError(t, err)
	t.Cleanup(func() { client.Disconnect(ctx) })

	require.Eventually(t, func() bool {
		var hello bson.M
		if err := client.Database("admin").RunCommand(ctx, bson.D{{Key: "hello", Value: 1}}).Decode(&hello); err != nil {
			return false
		}
		primary, _ := hello["isWritablePrimary"].(bool)
		return primary
	}, 30*time.Second, 250*time.Millisecond)
	return client
}

// failingIncrements fails the nth IncrementSpaces call.
type failingIncrements struct {
	*mongo.LessonRepository
	failOn int
	calls  int
}

func (f *failingIncrements) IncrementSpaces(ctx context.Context, id primitive.ObjectID, delta int) error {
	f.calls++
	if f.calls == f.failOn {
		return errors.New("increment failed")
	}
	return f.LessonRepository.IncrementSpaces(ctx, id, delta)
}

func TestTxRunner_CancelRollsBack(t *testing.T) {
	client := setupReplicaSet(t)
	db := client.Database("afterSchoolDB_tx_test")
	ctx := context.Background()
	logger := observability.NewNopLogger()
	lessons := mongo.NewLessonRepository(db, logger)
	orders := mongo.NewOrderRepository(db, logger)

	l1 := domain.Lesson{ID: primitive.NewObjectID(), Subject: "Math", Spaces: 0}
	l2 := domain.Lesson{ID: primitive.NewObjectID(), Subject: "Art", Spaces: 7}
	require.NoError(t, lessons.Upsert(ctx, l1))
	require.NoError(t, lessons.Upsert(ctx, l2))

	failing := &failingIncrements{LessonRepository: lessons, failOn: 2}
	svc := booking.NewService(failing, orders, nil, logger, booking.WithTransactions(mongo.NewTxRunner(client)))

	order, err := svc.PlaceOrder(ctx, booking.PlaceOrderInput{
		Name: "Ada", PhoneNumber: "1", LessonIDs: []string{l1.ID.Hex(), l2.ID.Hex()}, Spaces: 1,
	})
	require.NoError(t, err)

	require.Error(t, svc.CancelOrder(ctx, order.ID.Hex()))

	list, err := lessons.List(ctx)
	require.NoError(t, err)
	spaces := map[primitive.ObjectID]int{}
	for _, l := range list {
		spaces[l.ID] = l.Spaces
	}
	assert.Equal(t, 0, spaces[l1.ID], "first increment must be rolled back")
	assert.Equal(t, 7, spaces[l2.ID])

	_, err = orders.Get(ctx, order.ID)
	assert.NoError(t, err, "order must survive the aborted cancel")

	failing.failOn = 0
	require.NoError(t, svc.CancelOrder(ctx, order.ID.Hex()))
	list, err = lessons.List(ctx)
	require.NoError(t, err)
	for _, l := range list {
		spaces[l.ID] = l.Spaces
	}
	assert.Equal(t, 1, spaces[l1.ID])
	assert.Equal(t, 8, spaces[l2.ID])
}
