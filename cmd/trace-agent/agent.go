// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/bureau-foundation/trace-agent/lib/clock"
	"github.com/bureau-foundation/trace-agent/lib/config"
	"github.com/bureau-foundation/trace-agent/lib/ingest"
	"github.com/bureau-foundation/trace-agent/lib/inventory"
	"github.com/bureau-foundation/trace-agent/lib/queue"
	"github.com/bureau-foundation/trace-agent/lib/trace"
)

// ControlPlane is everything the agent calls on the control plane.
// *controlplane.Client satisfies it.
type ControlPlane interface {
	TelemetrySubmitter
	HostNotifier
	HostsFetcher
}

// traceSource is a Listener or FileTail.
type traceSource interface {
	Serve(ctx context.Context) error
	Dropped() uint64
	Malformed() uint64
}

// Agent wires the trace source, queue, inventory, and the three
// control-plane actors together.
type Agent struct {
	inventory    *inventory.Inventory
	traces       *queue.Queue[trace.Record]
	source       traceSource
	controlPlane ControlPlane
	clock        clock.Clock
	interval     time.Duration
	stats        forwarderStats
	logger       *slog.Logger
}

// newAgent builds the agent from a validated configuration. For TCP
// and UDP the socket is bound here, so a bind failure is returned
// before any actor starts.
func newAgent(ctx context.Context, cfg *config.Config, controlPlane ControlPlane, clk clock.Clock, logger *slog.Logger) (*Agent, error) {
	agent := &Agent{
		inventory:    inventory.New(),
		traces:       queue.New[trace.Record](cfg.QueueSize),
		controlPlane: controlPlane,
		clock:        clk,
		interval:     cfg.RefreshInterval(),
		logger:       logger,
	}

	sourceLogger := logger.With("component", "source")
	switch cfg.RemoteLogProto {
	case config.ProtocolTCP, config.ProtocolUDP:
		listener, err := ingest.Listen(ctx, ingest.ListenerConfig{
			Network:      cfg.RemoteLogProto,
			Port:         cfg.RemoteLogPort,
			MaxLineBytes: cfg.MaxLineBytes,
		}, agent.traces, sourceLogger)
		if err != nil {
			return nil, err
		}
		agent.source = listener
	case config.ProtocolFile:
		tail, err := ingest.NewFileTail(ingest.FileTailConfig{
			Path:           cfg.LogFilePath,
			Delimiter:      cfg.LogFileDelimiter,
			Field:          cfg.LogFileField,
			StartAt:        cfg.LogFileStartAt,
			CheckpointPath: cfg.LogFileCheckpointPath,
			PollInterval:   cfg.PollInterval(),
			MaxLineBytes:   cfg.MaxLineBytes,
			Clock:          clk,
		}, agent.traces, sourceLogger)
		if err != nil {
			return nil, err
		}
		agent.source = tail
	default:
		return nil, fmt.Errorf("unsupported remote-log-proto %q", cfg.RemoteLogProto)
	}
	return agent, nil
}

// Run starts every actor and blocks until ctx is cancelled and all of
// them have returned.
func (a *Agent) Run(ctx context.Context) error {
	var waitGroup sync.WaitGroup
	var sourceErr error

	waitGroup.Add(4)
	go func() {
		defer waitGroup.Done()
		sourceErr = a.source.Serve(ctx)
	}()
	go func() {
		defer waitGroup.Done()
		runForwarder(ctx, a.traces, a.inventory, a.controlPlane, &a.stats, a.logger.With("component", "forwarder"))
	}()
	go func() {
		defer waitGroup.Done()
		runNotifier(ctx, a.inventory, a.controlPlane, a.logger.With("component", "notifier"))
	}()
	go func() {
		defer waitGroup.Done()
		runPoller(ctx, a.inventory, a.controlPlane, a.clock, a.interval, a.logger.With("component", "poller"))
	}()

	waitGroup.Wait()

	state := a.inventory.Snapshot()
	a.logger.Info("trace agent stopped",
		"forwarded", a.stats.forwarded.Load(),
		"filtered", a.stats.filtered.Load(),
		"failed", a.stats.failed.Load(),
		"dropped", a.source.Dropped(),
		"malformed", a.source.Malformed(),
		"discovered_hosts", len(state.Discovered),
	)
	return sourceErr
}
