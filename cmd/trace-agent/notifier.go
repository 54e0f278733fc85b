// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"log/slog"

	"github.com/bureau-foundation/trace-agent/lib/inventory"
)

// HostNotifier announces newly discovered hosts to the control plane.
type HostNotifier interface {
	SubmitDiscoveredHosts(ctx context.Context, hosts []string) error
}

// runNotifier announces hosts one at a time as they are discovered.
// A failed announcement returns the host to unknown; it is announced
// again only if a later trace observes it.
func runNotifier(ctx context.Context, hosts *inventory.Inventory, notifier HostNotifier, logger *slog.Logger) {
	for {
		host, err := hosts.NextDiscovered(ctx)
		if err != nil {
			return
		}

		if err := notifier.SubmitDiscoveredHosts(ctx, []string{host}); err != nil {
			hosts.MarkNotifyFailed(host)
			if ctx.Err() != nil {
				return
			}
			logger.Warn("announcing discovered host failed", "host", host, "error", err)
			continue
		}
		hosts.MarkNotified(host)
		logger.Info("announced discovered host", "host", host)
	}
}
