package main

import (
	"context"
	"testing"

	"github.com/cockroachdb/errors"
	"github.com/robertarktes/afterschool-bookings/internal/domain"
	"github.com/robertarktes/afterschool-bookings/internal/observability"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLessons_Default(t *testing.T) {
	lessons, err := parseLessons(defaultLessons)
	require.NoError(t, err)
	require.Len(t, lessons, 10)
	for _, l := range lessons {
		assert.NotEmpty(t, l.Subject)
		assert.Equal(t, 5, l.Spaces)
		assert.True(t, l.ID.IsZero())
	}
}

func TestParseLessons_KeepsIDsAndExtraFields(t *testing.T) {
	lessons, err := parseLessons([]byte(`[{"_id":"65a1f0c2e4b0a1b2c3d4e5f6","subject":"Art","spaces":3,"icon":"fa-paint"}]`))
	require.NoError(t, err)
	require.Len(t, lessons, 1)
	assert.Equal(t, "65a1f0c2e4b0a1b2c3d4e5f6", lessons[0].ID.Hex())
	assert.Equal(t, 3, lessons[0].Spaces)
	assert.Equal(t, "fa-paint", lessons[0].Extra["icon"])
}

func TestParseLessons_Rejects(t *testing.T) {
	_, err := parseLessons([]byte(`[{"_id":"nope"}]`))
	assert.Error(t, err)

	_, err = parseLessons([]byte(`[{"spaces":2.5}]`))
	assert.Error(t, err)
}

type fakeRepo struct {
	lessons []domain.Lesson
	cleared bool
	failAt  int
}

func (r *fakeRepo) Upsert(_ context.Context, l domain.Lesson) error {
	if r.failAt > 0 && len(r.lessons)+1 == r.failAt {
		return errors.New("write failed")
	}
	r.lessons = append(r.lessons, l)
	return nil
}

func (r *fakeRepo) DeleteAll(context.Context) (int64, error) {
	n := int64(len(r.lessons))
	r.lessons, r.cleared = nil, true
	return n, nil
}

type fakeCache struct{ invalidated int }

func (c *fakeCache) Invalidate(context.Context) error {
	c.invalidated++
	return nil
}

func TestSeed_ResetsAndInvalidatesCache(t *testing.T) {
	repo := &fakeRepo{lessons: []domain.Lesson{{Subject: "Old"}}}
	cache := &fakeCache{}
	lessons := []domain.Lesson{{Subject: "Math"}, {Subject: "Art"}}

	require.NoError(t, seed(context.Background(), repo, cache, lessons, true, observability.NewNopLogger()))
	assert.True(t, repo.cleared)
	assert.Equal(t, lessons, repo.lessons)
	assert.Equal(t, 1, cache.invalidated)
}

func TestSeed_WithoutCache(t *testing.T) {
	repo := &fakeRepo{}
	require.NoError(t, seed(context.Background(), repo, nil, []domain.Lesson{{Subject: "Math"}}, false, observability.NewNopLogger()))
	assert.False(t, repo.cleared)
	assert.Len(t, repo.lessons, 1)
}

func TestSeed_WriteFailureSkipsInvalidation(t *testing.T) {
	repo := &fakeRepo{failAt: 2}
	cache := &fakeCache{}
	err := seed(context.Background(), repo, cache, []domain.Lesson{{Subject: "Math"}, {Subject: "Art"}}, false, observability.NewNopLogger())
	assert.ErrorContains(t, err, "Art")
	assert.Equal(t, 0, cache.invalidated)
}
