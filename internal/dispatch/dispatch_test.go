package dispatch

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRun_InvokesInOrder(t *testing.T) {
	rec := NewRecorder()

	outcomes := Run(context.Background(), []string{"restart nginx", "reload app", "flush cache"}, rec.Func())

	assert.Equal(t, []string{"restart nginx", "reload app", "flush cache"}, rec.Calls())
	require.Len(t, outcomes, 3)
	for _, o := range outcomes {
		assert.True(t, o.OK())
	}
}

func TestRun_AtMostOncePerName(t *testing.T) {
	rec := NewRecorder()

	outcomes := Run(context.Background(), []string{"a", "b", "a", "c", "b"}, rec.Func())

	assert.Equal(t, []string{"a", "b", "c"}, rec.Calls())
	assert.Len(t, outcomes, 3)
}

func TestRun_DedupIsUnicodeFormInsensitive(t *testing.T) {
	rec := NewRecorder()
	nfc := "café"
	nfd := "café"

	outcomes := Run(context.Background(), []string{nfc, nfd}, rec.Func())

	assert.Equal(t, []string{nfc}, rec.Calls(), "second spelling must be recognized as the same handler")
	assert.Len(t, outcomes, 1)
}

func TestRun_FailureDoesNotStopSiblings(t *testing.T) {
	rec := NewRecorder()
	boom := errors.New("unit restart failed")
	rec.FailWith("svc1", boom)

	outcomes := Run(context.Background(), []string{"svc1", "svc2"}, rec.Func())

	assert.Equal(t, []string{"svc1", "svc2"}, rec.Calls(), "svc2 must still be invoked")
	require.Len(t, outcomes, 2)
	assert.Equal(t, "svc1", outcomes[0].Handler)
	assert.ErrorIs(t, outcomes[0].Err, boom)
	assert.Equal(t, "svc2", outcomes[1].Handler)
	assert.True(t, outcomes[1].OK())
}

func TestRun_EmptyNames(t *testing.T) {
	outcomes := Run(context.Background(), nil, Discard)
	assert.Empty(t, outcomes)
}

func TestCanonicalName_NFC(t *testing.T) {
	nfc := "café"
	nfd := "café"
	assert.Equal(t, CanonicalName(nfc), CanonicalName(nfd))
	assert.Equal(t, nfc, CanonicalName(nfd))
}
