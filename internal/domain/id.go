package domain

import (
	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ParseID parses a store identifier. Malformed input is reported as
// ErrInvalidInput so callers can reject it before touching the store.
func ParseID(s string) (primitive.ObjectID, error) {
	id, err := primitive.ObjectIDFromHex(s)
	if err != nil {
		return primitive.NilObjectID, errors.Mark(errors.Wrapf(err, "invalid id %q", s), ErrInvalidInput)
	}
	return id, nil
}

func ParseIDs(ss []string) ([]primitive.ObjectID, error) {
	ids := make([]primitive.ObjectID, len(ss))
	for i, s := range ss {
		id, err := ParseID(s)
		if err != nil {
			return nil, err
		}
		ids[i] = id
	}
	return ids, nil
}
