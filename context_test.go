package inproc_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/bjaus/inproc"
)

func TestSetValueGetValue_roundTrip(t *testing.T) {
	t.Parallel()

	type userID string

	ctx := inproc.SetValue[userID](context.Background(), "user-123")

	val, ok := inproc.GetValue[userID](ctx)
	assert.True(t, ok)
	assert.Equal(t, userID("user-123"), val)
}

func TestGetValue_missing_returns_false(t *testing.T) {
	t.Parallel()

	type missing struct{}

	_, ok := inproc.GetValue[missing](context.Background())
	assert.False(t, ok)
}

func TestSetValue_distinctTypesDoNotCollide(t *testing.T) {
	t.Parallel()

	type a string
	type b string

	ctx := inproc.SetValue[a](context.Background(), "A")
	ctx = inproc.SetValue[b](ctx, "B")

	va, _ := inproc.GetValue[a](ctx)
	vb, _ := inproc.GetValue[b](ctx)
	assert.Equal(t, a("A"), va)
	assert.Equal(t, b("B"), vb)
}

func TestMatchedRoute_outsideDispatch(t *testing.T) {
	t.Parallel()

	_, ok := inproc.MatchedRoute(context.Background())
	assert.False(t, ok)
}
