// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"
	"time"

	"github.com/bureau-foundation/trace-agent/lib/clock"
	"github.com/bureau-foundation/trace-agent/lib/inventory"
)

// HostsFetcher retrieves the control plane's allow list.
type HostsFetcher interface {
	FetchHostsToTrace(ctx context.Context) ([]string, error)
}

// runPoller refreshes the allow list immediately and then on every
// tick until ctx is cancelled. A failed poll keeps the previous list.
func runPoller(ctx context.Context, hosts *inventory.Inventory, fetcher HostsFetcher, clk clock.Clock, interval time.Duration, logger *slog.Logger) {
	ticker := clk.NewTicker(interval)
	defer ticker.Stop()

	for {
		pollAllowList(ctx, hosts, fetcher, logger)
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

func pollAllowList(ctx context.Context, hosts *inventory.Inventory, fetcher HostsFetcher, logger *slog.Logger) {
	allowed, err := fetcher.FetchHostsToTrace(ctx)
	if err != nil {
		if ctx.Err() == nil {
			logger.Warn("fetching hosts to trace failed, keeping previous list", "error", err)
		}
		return
	}
	hosts.ReplaceAllowList(allowed)

	state := hosts.Snapshot()
	logger.Debug("allow list refreshed",
		"traced", state.ToTrace,
		"discovered", len(state.Discovered),
		"pending_notification", len(state.ToNotify),
	)
}
