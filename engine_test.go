package ring

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/nylonring/nylon-ring-host/internal/refplugin"
	"github.com/nylonring/nylon-ring-host/plugin"
)

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	reg, store, r := NewComponents(Config{})
	rp := refplugin.New()
	h, err := plugin.NewInProcess(rp.Info(), r, nil)
	require.NoError(t, err)

	e, err := NewInProcess(reg, store, r, h, Config{})
	require.NoError(t, err)
	t.Cleanup(func() { _ = e.Unload() })
	return e
}

func TestCallResponseEcho(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	status, payload, err := e.CallResponse(ctx, "echo", nil, []byte("hello"))
	require.NoError(t, err)
	assert.Equal(t, "Ok", status.String())
	assert.Equal(t, "hello", string(payload))
}

func TestCallResponseUnknownEntryIsInvalid(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	status, _, err := e.CallResponse(ctx, "no-such-entry", nil, nil)
	assert.Equal(t, "Invalid", status.String())
	require.Error(t, err)
}

func TestCallStreamCounterUsesStateStore(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	recv, err := e.CallStream(ctx, "counter-stream", nil, nil)
	require.NoError(t, err)

	status, err := e.SendStreamData(recv.SID(), nil)
	require.NoError(t, err)
	assert.Equal(t, "Ok", status.String())

	frame1, payload1, ok, err := recv.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ok", frame1.String())
	assert.Equal(t, byte(1), payload1[0])

	_, err = e.SendStreamData(recv.SID(), nil)
	require.NoError(t, err)

	frame2, payload2, ok, err := recv.Next(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, "Ok", frame2.String())
	assert.Equal(t, byte(2), payload2[0])
}

func TestCallStreamDeliversFiveFramesThenEnd(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	recv, err := e.CallStream(ctx, "stream5", nil, nil)
	require.NoError(t, err)

	var frames []byte
	for {
		status, payload, ok, err := recv.Next(ctx)
		require.NoError(t, err)
		if !ok {
			t.Fatal("stream ended without a terminal frame")
		}
		if status.Terminal() {
			break
		}
		frames = append(frames, payload[0])
	}
	assert.Equal(t, []byte{1, 2, 3, 4, 5}, frames)
}

func TestCallHandlerPanicConvertsToErrAndSurvives(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	status, _, err := e.CallResponse(ctx, "boom", nil, nil)
	assert.Equal(t, "Err", status.String())
	require.Error(t, err)

	// The host process, and the engine, must still be usable afterward.
	status, payload, err := e.CallResponse(ctx, "echo", nil, []byte("still alive"))
	require.NoError(t, err)
	assert.Equal(t, "Ok", status.String())
	assert.Equal(t, "still alive", string(payload))
}

func TestCallResponseFastHonorsSameThreadContract(t *testing.T) {
	e := newTestEngine(t)

	status, payload, err := e.CallResponseFast("echo", nil, []byte("fast"))
	require.NoError(t, err)
	assert.Equal(t, "Ok", status.String())
	assert.Equal(t, "fast", string(payload))
}

func TestCallResponseFastFallsBackWhenContractViolated(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.DisableFastPathWarn = true

	status, payload, err := e.CallResponseFast("echo-async", nil, []byte("slow"))
	require.NoError(t, err)
	assert.Equal(t, "Ok", status.String())
	assert.Equal(t, "slow", string(payload))
}

func TestCallRawFastHonorsSameThreadContract(t *testing.T) {
	e := newTestEngine(t)

	status, payload, err := e.CallRawFast("echo", []byte("raw-fast"))
	require.NoError(t, err)
	assert.Equal(t, "Ok", status.String())
	assert.Equal(t, "raw-fast", string(payload))
}

func TestCallRawFastFallsBackWhenContractViolated(t *testing.T) {
	e := newTestEngine(t)
	e.cfg.DisableFastPathWarn = true

	status, payload, err := e.CallRawFast("echo-async", []byte("raw-slow"))
	require.NoError(t, err)
	assert.Equal(t, "Ok", status.String())
	assert.Equal(t, "raw-slow", string(payload))
}

func TestConcurrentCallResponsesAllComplete(t *testing.T) {
	e := newTestEngine(t)
	ctx := context.Background()

	const n = 500
	var wg sync.WaitGroup
	errs := make([]error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, err := e.CallResponse(ctx, "echo", nil, []byte{byte(i)})
			errs[i] = err
		}(i)
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}
