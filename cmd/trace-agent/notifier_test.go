// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/trace-agent/lib/inventory"
	"github.com/bureau-foundation/trace-agent/lib/testutil"
)

// startNotifier runs the notifier until the test ends.
func startNotifier(t *testing.T, hosts *inventory.Inventory, fake *fakeControlPlane) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runNotifier(ctx, hosts, fake, testLogger())
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "notifier exit")
	})
}

// waitForState waits until check passes on the inventory. The actors
// update it after their control-plane call returns, so the fake's
// channels alone do not order the change.
func waitForState(t *testing.T, hosts *inventory.Inventory, check func(inventory.State) bool) {
	t.Helper()
	testutil.RequireEventually(t, 5*time.Second, func() bool {
		return check(hosts.Snapshot())
	}, "waiting for inventory state")
}

func TestNotifierMarksNotified(t *testing.T) {
	hosts := inventory.New()
	fake := newFakeControlPlane()
	startNotifier(t, hosts, fake)

	hosts.Observe("api.example.com")
	if host := testutil.RequireReceive(t, fake.announced, 5*time.Second, "announcement"); host != "api.example.com" {
		t.Fatalf("announced %q", host)
	}
	waitForState(t, hosts, func(state inventory.State) bool {
		return slices.Equal(state.Discovered, []string{"api.example.com"}) && len(state.ToNotify) == 0
	})

	if hosts.Observe("api.example.com") {
		t.Fatal("announced host reported as new again")
	}
}

func TestNotifierFailureReturnsHostToUnknown(t *testing.T) {
	hosts := inventory.New()
	fake := newFakeControlPlane()
	fake.notifyErr = errors.New("HTTP 500")
	startNotifier(t, hosts, fake)

	hosts.Observe("flaky.example.com")
	testutil.RequireReceive(t, fake.announced, 5*time.Second, "failed announcement")
	waitForState(t, hosts, func(state inventory.State) bool {
		return len(state.ToNotify) == 0
	})

	state := hosts.Snapshot()
	if len(state.Discovered) != 0 {
		t.Fatalf("failed host marked discovered: %+v", state)
	}
	// No retry without a new sighting.
	testutil.RequireNoReceive(t, fake.announced, 50*time.Millisecond, "notifier retried without a sighting")

	if !hosts.Observe("flaky.example.com") {
		t.Fatal("host not new after failed announcement")
	}
	testutil.RequireReceive(t, fake.announced, 5*time.Second, "announcement after new sighting")
}
