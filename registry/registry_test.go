package registry

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nylonring/nylon-ring-host/abi"
)

func TestRegisterUnaryDuplicateFails(t *testing.T) {
	r := New()
	_, err := r.RegisterUnary(42)
	require.NoError(t, err)

	_, err = r.RegisterUnary(42)
	assert.Error(t, err)
}

func TestTakeUnaryRemovesEntry(t *testing.T) {
	r := New()
	ch, err := r.RegisterUnary(7)
	require.NoError(t, err)

	assert.True(t, r.Has(7))

	got, ok := r.TakeUnary(7)
	require.True(t, ok)
	assert.Equal(t, ch, got)
	assert.False(t, r.Has(7))

	_, ok = r.TakeUnary(7)
	assert.False(t, ok, "second take must not find the already-removed slot")
}

func TestStreamOrderingAndTerminalClose(t *testing.T) {
	r := New()
	sink, err := r.RegisterStream(99)
	require.NoError(t, err)

	sink.Push(Delivery{Status: abi.StatusOk, Payload: []byte("frame-1")})
	sink.Push(Delivery{Status: abi.StatusOk, Payload: []byte("frame-2")})
	sink.Push(Delivery{Status: abi.StatusStreamEnd, Payload: nil})

	// Post-closure delivery must be dropped (P4 / law: idempotence of close).
	assert.False(t, sink.Push(Delivery{Status: abi.StatusOk, Payload: []byte("late")}))

	ctx := context.Background()
	d1, ok, err := sink.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "frame-1", string(d1.Payload))

	d2, ok, _ := sink.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, "frame-2", string(d2.Payload))

	d3, ok, _ := sink.Next(ctx)
	require.True(t, ok)
	assert.Equal(t, abi.StatusStreamEnd, d3.Status)

	_, ok, err = sink.Next(ctx)
	assert.False(t, ok)
	assert.NoError(t, err)
}

func TestStreamNextRespectsContextCancellation(t *testing.T) {
	r := New()
	sink, err := r.RegisterStream(5)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, ok, err := sink.Next(ctx)
	assert.False(t, ok)
	assert.Error(t, err)
}

func TestWalkReportsShapePerSID(t *testing.T) {
	r := New()
	_, err := r.RegisterUnary(1)
	require.NoError(t, err)
	_, err = r.RegisterStream(2)
	require.NoError(t, err)

	entries := r.Walk()
	got := map[uint64]string{}
	for _, e := range entries {
		got[e.SID] = e.Shape
	}
	assert.Equal(t, map[uint64]string{1: "unary", 2: "stream"}, got)
}

func TestRemoveIfStreamOnlyAffectsStreams(t *testing.T) {
	r := New()
	_, err := r.RegisterUnary(1)
	require.NoError(t, err)

	r.removeIfStream(1)
	assert.True(t, r.Has(1), "removeIfStream must not remove a unary completion")
}
