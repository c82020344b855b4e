package domain

import (
	"encoding/json"
	"math"

	"github.com/cockroachdb/errors"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Lesson is a bookable catalog item. Fields the service does not know about
// are kept in Extra and written back unchanged.
type Lesson struct {
	ID       primitive.ObjectID `bson:"_id,omitempty"`
	Subject  string             `bson:"subject,omitempty"`
	Location string             `bson:"location,omitempty"`
	Price    float64            `bson:"price,omitempty"`
	Spaces   int                `bson:"spaces"`
	Image    string             `bson:"image,omitempty"`
	Extra    bson.M             `bson:",inline"`
}

func (l Lesson) MarshalJSON() ([]byte, error) {
	out := make(map[string]interface{}, len(l.Extra)+6)
	for k, v := range l.Extra {
		out[k] = v
	}
	out["_id"] = l.ID
	out["spaces"] = l.Spaces
	if l.Subject != "" {
		out["subject"] = l.Subject
	}
	if l.Location != "" {
		out["location"] = l.Location
	}
	if l.Price != 0 {
		out["price"] = l.Price
	}
	if l.Image != "" {
		out["image"] = l.Image
	}
	return json.Marshal(out)
}

// LessonPatch is a field-level merge applied to a lesson document.
type LessonPatch map[string]interface{}

// Normalize checks the patch and coerces spaces to an integer. The
// resulting seat count is not range checked.
func (p LessonPatch) Normalize() (LessonPatch, error) {
	if len(p) == 0 {
		return nil, errors.Mark(errors.New("empty lesson patch"), ErrInvalidInput)
	}
	out := make(LessonPatch, len(p))
	for k, v := range p {
		switch k {
		case "_id", "id":
			return nil, errors.Mark(errors.Newf("field %q is immutable", k), ErrInvalidInput)
		case "spaces":
			n, err := toInt(v)
			if err != nil {
				return nil, errors.Mark(errors.Wrap(err, "spaces"), ErrInvalidInput)
			}
			out[k] = n
		default:
			out[k] = v
		}
	}
	return out, nil
}

func toInt(v interface{}) (int, error) {
	switch n := v.(type) {
	case int:
		return n, nil
	case int32:
		return int(n), nil
	case int64:
		return int(n), nil
	case float64:
		if n != math.Trunc(n) || math.IsInf(n, 0) {
			return 0, errors.Newf("%v is not an integer", n)
		}
		return int(n), nil
	case json.Number:
		i, err := n.Int64()
		if err != nil {
			return 0, errors.Newf("%s is not an integer", n)
		}
		return int(i), nil
	default:
		return 0, errors.Newf("unexpected type %T", v)
	}
}
