package mongo

import (
	"time"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/x/mongo/driver/topology"
)

// storeError classifies driver errors into the domain taxonomy.
func storeError(err error, op string) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, mongo.ErrNoDocuments) {
		return errors.Wrap(domain.ErrNotFound, op)
	}
	var selErr topology.ServerSelectionError
	if mongo.IsNetworkError(err) || mongo.IsTimeout(err) ||
		errors.Is(err, mongo.ErrClientDisconnected) || errors.As(err, &selErr) {
		return errors.Mark(errors.Wrap(err, op), domain.ErrUnavailable)
	}
	return errors.Wrap(err, op)
}

func observe(op string, start time.Time) {
	observability.StoreOpDuration.WithLabelValues(op).Observe(time.Since(start).Seconds())
}
