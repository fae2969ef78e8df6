package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/state"
)

func newTestRouter() (*Router, *registry.Registry, *state.Store) {
	reg := registry.New()
	store := state.New()
	return New(reg, store, nil), reg, store
}

func TestSendResultDeliversToUnarySlot(t *testing.T) {
	r, reg, _ := newTestRouter()
	ch, err := reg.RegisterUnary(1)
	require.NoError(t, err)

	r.SendResult(1, abi.StatusOk, abi.ByteViewFromBytes([]byte("hello")))

	d := <-ch
	assert.Equal(t, abi.StatusOk, d.Status)
	assert.Equal(t, "hello", string(d.Payload))
	assert.False(t, reg.Has(1), "unary slot must be gone after delivery")
}

func TestSendResultDeliversToStreamAndClosesOnTerminal(t *testing.T) {
	r, reg, store := newTestRouter()
	sink, err := reg.RegisterStream(2)
	require.NoError(t, err)
	store.Set(2, "k", []byte("v"))

	r.SendResult(2, abi.StatusOk, abi.ByteViewFromBytes([]byte("frame")))
	r.SendResult(2, abi.StatusStreamEnd, abi.ByteView{})

	ctx := context.Background()
	d1, ok, err := sink.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "frame", string(d1.Payload))

	d2, ok, err := sink.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, abi.StatusStreamEnd, d2.Status)

	assert.False(t, reg.Has(2), "registry entry must be removed after StreamEnd")
	assert.Equal(t, 0, store.KeyCount(2), "state must be cleared alongside registry on terminal delivery")
}

func TestSendResultOnUnknownSidIsANoop(t *testing.T) {
	r, _, _ := newTestRouter()
	assert.NotPanics(t, func() {
		r.SendResult(999, abi.StatusOk, abi.ByteView{})
	})
}

func TestSetStateAndGetStateRoundTrip(t *testing.T) {
	r, _, _ := newTestRouter()
	prior := r.SetState(1, "seq", []byte{0x01})
	assert.Nil(t, prior)

	got := r.GetState(1, "seq")
	assert.Equal(t, []byte{0x01}, got)

	prior = r.SetState(1, "seq", []byte{0x02})
	assert.Equal(t, []byte{0x01}, prior)
}

func TestSendResultRoutesToFastSlotBeforeSharedRegistry(t *testing.T) {
	r, reg, store := newTestRouter()
	_, err := reg.RegisterUnary(3)
	require.NoError(t, err)
	store.Set(3, "k", []byte("v"))

	slot, release := registry.PinFastSlot(3)
	defer release()

	r.SendResult(3, abi.StatusOk, abi.ByteViewFromBytes([]byte("fast")))

	d, ok := slot.Poll()
	require.True(t, ok)
	assert.Equal(t, "fast", string(d.Payload))

	// A fast-slot delivery is the one-shot completion of a unary call, so
	// the fallback sharded registration and its state are cleaned up
	// immediately even though the status was Ok, not just on a terminal
	// error/StreamEnd.
	assert.False(t, reg.Has(3), "fallback sharded slot must be cleaned up once the fast slot claims delivery")
	assert.Equal(t, 0, store.KeyCount(3), "state must be cleared alongside the fallback registration")
}
