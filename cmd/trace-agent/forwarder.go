// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"sync/atomic"

	"github.com/bureau-foundation/trace-agent/lib/inventory"
	"github.com/bureau-foundation/trace-agent/lib/queue"
	"github.com/bureau-foundation/trace-agent/lib/telemetry"
	"github.com/bureau-foundation/trace-agent/lib/trace"
)

// TelemetrySubmitter sends one telemetry document to the control
// plane. Tests substitute a fake.
type TelemetrySubmitter interface {
	SubmitTelemetry(ctx context.Context, document *telemetry.Document) error
}

// forwarderStats counts trace outcomes. Read concurrently.
type forwarderStats struct {
	forwarded atomic.Uint64
	filtered  atomic.Uint64
	failed    atomic.Uint64
}

// runForwarder drains traces until ctx is cancelled.
func runForwarder(ctx context.Context, traces *queue.Queue[trace.Record], hosts *inventory.Inventory, submitter TelemetrySubmitter, stats *forwarderStats, logger *slog.Logger) {
	for {
		record, err := traces.Pop(ctx)
		if err != nil {
			return
		}
		forwardTrace(ctx, record, hosts, submitter, stats, logger)
	}
}

// forwardTrace handles one trace: records its host, and submits it as
// telemetry if the host is traced. Every failure is logged and the
// trace dropped.
func forwardTrace(ctx context.Context, record trace.Record, hosts *inventory.Inventory, submitter TelemetrySubmitter, stats *forwarderStats, logger *slog.Logger) {
	host := record.Request.Host
	if host == "" {
		stats.failed.Add(1)
		logger.Warn("trace has no request host, skipping", "request_id", record.RequestID)
		return
	}

	if hosts.Observe(host) {
		logger.Info("discovered new host", "host", host)
	}

	if !hosts.IsTraced(host) {
		stats.filtered.Add(1)
		logger.Debug("host not traced, dropping trace", "host", host, "request_id", record.RequestID)
		return
	}

	document, err := telemetry.Build(record)
	if err != nil {
		stats.failed.Add(1)
		logger.Warn("building telemetry failed", "host", host, "request_id", record.RequestID, "error", err)
		return
	}

	if err := submitter.SubmitTelemetry(ctx, document); err != nil {
		if ctx.Err() != nil {
			return
		}
		stats.failed.Add(1)
		logger.Warn("submitting telemetry failed", "host", host, "request_id", record.RequestID, "error", err)
		return
	}
	stats.forwarded.Add(1)
	logger.Debug("telemetry submitted", "host", host, "request_id", record.RequestID)
}
