// Command nylonhostdemo exercises the dispatcher against the in-process
// reference plugin: a unary echo, a per-SID counter call, and a five-frame
// stream, logging each step with the configured slog logger.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/nylonring/nylon-ring-host/internal/refplugin"
	"github.com/nylonring/nylon-ring-host/plugin"

	ring "github.com/nylonring/nylon-ring-host"
)

func main() {
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))

	reg, store, r := ring.NewComponents(ring.Config{Logger: logger})
	rp := refplugin.New()
	h, err := plugin.NewInProcess(rp.Info(), r, logger)
	if err != nil {
		fatal(logger, "loading reference plugin", err)
	}

	e, err := ring.NewInProcess(reg, store, r, h, ring.Config{Logger: logger})
	if err != nil {
		fatal(logger, "starting engine", err)
	}
	defer e.Unload()

	ctx := context.Background()

	status, payload, err := e.CallResponse(ctx, "echo", nil, []byte("hello from nylonhostdemo"))
	if err != nil {
		fatal(logger, "echo call", err)
	}
	logger.Info("echo complete", "status", status.String(), "payload", string(payload))

	counterRecv, err := e.CallStream(ctx, "counter-stream", nil, nil)
	if err != nil {
		fatal(logger, "counter stream open", err)
	}
	for i := 0; i < 3; i++ {
		if _, err := e.SendStreamData(counterRecv.SID(), nil); err != nil {
			fatal(logger, "counter send", err)
		}
		_, payload, ok, err := counterRecv.Next(ctx)
		if err != nil {
			fatal(logger, "counter frame", err)
		}
		if !ok {
			fatal(logger, "counter frame", fmt.Errorf("stream ended early"))
		}
		logger.Info("counter complete", "count", payload[0])
	}
	if _, err := e.CloseStream(counterRecv.SID()); err != nil {
		fatal(logger, "counter close", err)
	}

	recv, err := e.CallStream(ctx, "stream5", nil, nil)
	if err != nil {
		fatal(logger, "stream open", err)
	}
	for {
		status, payload, ok, err := recv.Next(ctx)
		if err != nil {
			fatal(logger, "stream frame", err)
		}
		if !ok {
			break
		}
		if status.Terminal() {
			logger.Info("stream closed", "status", status.String())
			break
		}
		logger.Info("stream frame", "payload", payload)
	}

	report := e.Diagnostics()
	fmt.Printf("diagnostics: %d live SIDs at shutdown\n", len(report.LiveSIDs))
}

func fatal(logger *slog.Logger, step string, err error) {
	logger.Error("nylonhostdemo failed", "step", step, "error", err)
	os.Exit(1)
}
