// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"errors"
	"slices"
	"testing"
	"time"

	"github.com/bureau-foundation/trace-agent/lib/clock"
	"github.com/bureau-foundation/trace-agent/lib/inventory"
	"github.com/bureau-foundation/trace-agent/lib/testutil"
)

const testInterval = 30 * time.Second

// startPoller runs the poller on a fake clock until the test ends and
// waits for its first fetch.
func startPoller(t *testing.T, hosts *inventory.Inventory, fake *fakeControlPlane) *clock.FakeClock {
	t.Helper()
	clk := clock.Fake(time.Unix(1700000000, 0))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		runPoller(ctx, hosts, fake, clk, testInterval, testLogger())
		close(done)
	}()
	t.Cleanup(func() {
		cancel()
		testutil.RequireClosed(t, done, 5*time.Second, "poller exit")
	})
	testutil.RequireReceive(t, fake.fetched, 5*time.Second, "initial fetch")
	return clk
}

// tick advances past one interval and waits for the resulting fetch.
func tick(t *testing.T, clk *clock.FakeClock, fake *fakeControlPlane) []string {
	t.Helper()
	clk.WaitForTimers(1)
	clk.Advance(testInterval)
	return testutil.RequireReceive(t, fake.fetched, 5*time.Second, "fetch after tick")
}

func TestPollerFetchesImmediately(t *testing.T) {
	hosts := inventory.New()
	fake := newFakeControlPlane()
	fake.setAllowList("api.example.com")
	startPoller(t, hosts, fake)

	waitForState(t, hosts, func(state inventory.State) bool {
		return slices.Equal(state.ToTrace, []string{"api.example.com"})
	})
}

func TestPollerRefreshesOnTick(t *testing.T) {
	hosts := inventory.New()
	fake := newFakeControlPlane()
	fake.setAllowList("a.example.com")
	clk := startPoller(t, hosts, fake)

	testutil.RequireNoReceive(t, fake.fetched, 20*time.Millisecond, "fetch before the interval elapsed")

	fake.setAllowList("b.example.com", "c.example.com")
	if fetched := tick(t, clk, fake); len(fetched) != 2 {
		t.Fatalf("fetched %v", fetched)
	}
	waitForState(t, hosts, func(state inventory.State) bool {
		return slices.Equal(state.ToTrace, []string{"b.example.com", "c.example.com"})
	})
	if hosts.IsTraced("a.example.com") {
		t.Fatal("host removed from the allow list is still traced")
	}
}

func TestPollerKeepsListOnFailure(t *testing.T) {
	hosts := inventory.New()
	fake := newFakeControlPlane()
	fake.setAllowList("api.example.com")
	clk := startPoller(t, hosts, fake)
	waitForState(t, hosts, func(state inventory.State) bool {
		return len(state.ToTrace) == 1
	})

	fake.setFetchErr(errors.New("HTTP 503"))
	tick(t, clk, fake)
	if !hosts.IsTraced("api.example.com") {
		t.Fatal("failed poll cleared the allow list")
	}

	fake.setFetchErr(nil)
	fake.setAllowList()
	tick(t, clk, fake)
	waitForState(t, hosts, func(state inventory.State) bool {
		return len(state.ToTrace) == 0
	})
}
