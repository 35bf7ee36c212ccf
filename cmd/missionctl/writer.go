package main

import (
	"fmt"
	"net"
	"os"
	"strconv"

	greptime "github.com/GreptimeTeam/greptimedb-ingester-go"

	"droneops-mission/internal/config"
	"droneops-mission/internal/events"
	"droneops-mission/internal/metrics"
	"droneops-mission/internal/monitor"
	"droneops-mission/internal/telemetry"
)

// writerOptions selects the event sinks. Nil fields are skipped.
type writerOptions struct {
	JSON     bool   // plain JSON instead of the colorized console
	LogFile  string // JSONL export
	Greptime events.Ingester
	Metrics  *metrics.Collector
	Monitor  *monitor.Monitor
}

// newEventWriter fans events out to the console (or the TUI), an optional
// JSONL file, GreptimeDB and the metrics collector. The returned cleanup
// closes any files.
func newEventWriter(opts writerOptions) (events.Writer, func(), error) {
	cleanup := func() {}
	var ws []events.Writer
	switch {
	case opts.Monitor != nil:
		ws = append(ws, opts.Monitor)
	case opts.JSON:
		ws = append(ws, events.NewJSONWriter(os.Stdout))
	default:
		ws = append(ws, events.NewStdoutWriter(os.Stdout))
	}
	if opts.LogFile != "" {
		fw, err := events.NewFileWriter(opts.LogFile)
		if err != nil {
			return nil, nil, err
		}
		ws = append(ws, fw)
		cleanup = func() { fw.Close() }
	}
	if opts.Greptime != nil {
		ws = append(ws, events.NewGreptimeWriter(opts.Greptime, 0))
	}
	if opts.Metrics != nil {
		ws = append(ws, opts.Metrics)
	}
	if len(ws) == 1 {
		return ws[0], cleanup, nil
	}
	return events.NewMultiWriter(ws...), cleanup, nil
}

// newGreptimeClient connects the ingester to the configured gRPC endpoint.
func newGreptimeClient(gc config.GreptimeConfig) (*greptime.Client, error) {
	host, portStr, err := net.SplitHostPort(gc.Endpoint)
	if err != nil {
		return nil, fmt.Errorf("greptime endpoint %q: %w", gc.Endpoint, err)
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return nil, fmt.Errorf("greptime endpoint %q: bad port: %w", gc.Endpoint, err)
	}
	cfg := greptime.NewConfig(host).WithPort(port).WithDatabase(gc.Database)
	return greptime.NewClient(cfg)
}

// newStore returns a GreptimeDB-backed store when an endpoint is
// configured and an in-memory store otherwise. client is nil for the
// in-memory store.
func newStore(gc config.GreptimeConfig) (telemetry.Store, *greptime.Client, error) {
	if !gc.Enabled() {
		return telemetry.NewMemoryStore(), nil, nil
	}
	client, err := newGreptimeClient(gc)
	if err != nil {
		return nil, nil, err
	}
	store := telemetry.NewGreptimeStore(client, telemetry.GreptimeOptions{
		HTTPEndpoint: gc.HTTP,
		Database:     gc.Database,
		Table:        gc.Table,
	})
	return store, client, nil
}
