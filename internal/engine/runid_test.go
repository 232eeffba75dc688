package engine

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUUIDv7Source_GeneratesValidSortableIDs(t *testing.T) {
	src := UUIDv7Source{}

	a := src.NewRunID()
	b := src.NewRunID()

	ua, err := uuid.Parse(a)
	require.NoError(t, err)
	ub, err := uuid.Parse(b)
	require.NoError(t, err)

	assert.Equal(t, uuid.Version(7), ua.Version())
	assert.Equal(t, uuid.Version(7), ub.Version())
	assert.NotEqual(t, a, b)
	assert.Less(t, a, b, "UUIDv7 run IDs sort by creation time")
}

func TestFixedSource_ReturnsIDsInOrder(t *testing.T) {
	src := NewFixedSource("run-1", "run-2")

	assert.Equal(t, "run-1", src.NewRunID())
	assert.Equal(t, "run-2", src.NewRunID())
}

func TestFixedSource_PanicsWhenExhausted(t *testing.T) {
	src := NewFixedSource("run-1")
	src.NewRunID()

	assert.Panics(t, func() { src.NewRunID() })
}
