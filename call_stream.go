package ring

import (
	"context"

	"github.com/nylonring/nylon-ring-host/abi"
	"github.com/nylonring/nylon-ring-host/registry"
	"github.com/nylonring/nylon-ring-host/ringerr"
)

// StreamReceiver is the caller-side handle for an open bidirectional
// stream's inbound frames.
type StreamReceiver struct {
	sid  uint64
	sink *registry.StreamSink
	e    *Engine
}

// SID returns the stream's identifier, needed by SendStreamData/CloseStream.
func (s *StreamReceiver) SID() uint64 { return s.sid }

// Next blocks for the stream's next frame, or until ctx is cancelled. ok is
// false once the stream has delivered its terminal frame and been drained.
func (s *StreamReceiver) Next(ctx context.Context) (status abi.Status, payload []byte, ok bool, err error) {
	ctx, cancel := s.e.withCallTimeout(ctx)
	defer cancel()

	d, ok, err := s.sink.Next(ctx)
	if err != nil {
		return abi.StatusErr, nil, false, ringerr.NewCancelled(err.Error())
	}
	if !ok {
		return 0, nil, false, nil
	}
	return d.Status, d.Payload, true, nil
}

// CallStream opens a bidirectional stream: it registers a stream sink,
// invokes the plugin's Handle entry point to start the exchange, and
// returns a StreamReceiver for the caller to read frames from.
func (e *Engine) CallStream(ctx context.Context, entry string, req *abi.Request, payload []byte) (*StreamReceiver, error) {
	if err := ctx.Err(); err != nil {
		return nil, ringerr.NewCancelled(err.Error())
	}

	id := e.alloc.Next()
	sink, err := e.reg.RegisterStream(id)
	if err != nil {
		return nil, ringerr.NewInternal("registering stream completion", err)
	}

	status := e.invokePlugin(id, func() abi.Status { return e.plugin.Handle(id, entry, req, payload) })
	if status == abi.StatusInvalid {
		e.reg.Remove(id)
		return nil, ringerr.NewInvalidEntryPoint(entry)
	}
	if status == abi.StatusUnsupported {
		e.reg.Remove(id)
		return nil, ringerr.NewUnsupported(entry)
	}

	return &StreamReceiver{sid: id, sink: sink, e: e}, nil
}

// SendStreamData delivers one more frame of caller-sent data to an open
// stream's plugin side via StreamData.
func (e *Engine) SendStreamData(sid uint64, data []byte) (abi.Status, error) {
	if !e.reg.Has(sid) {
		return abi.StatusErr, ringerr.NewStreamClosed("sid has no open stream")
	}
	status := e.invokePlugin(sid, func() abi.Status { return e.plugin.StreamData(sid, data) })
	return status, statusError(status, "")
}

// CloseStream informs the plugin the caller side of an open stream is done
// sending, via StreamClose. It does not itself remove the registry entry;
// the plugin's own terminal send_result, routed through the Router, does
// that.
func (e *Engine) CloseStream(sid uint64) (abi.Status, error) {
	if !e.reg.Has(sid) {
		return abi.StatusErr, ringerr.NewStreamClosed("sid has no open stream")
	}
	status := e.invokePlugin(sid, func() abi.Status { return e.plugin.StreamClose(sid) })
	return status, statusError(status, "")
}
