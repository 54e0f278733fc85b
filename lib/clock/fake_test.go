// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"testing"
	"time"
)

var epoch = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func TestFakeClockTicker(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	for i := 0; i < 3; i++ {
		c.Advance(time.Second)
		select {
		case <-ticker.C:
		default:
			t.Fatalf("tick %d missing", i)
		}
	}
}

func TestFakeClockTickerDropsUnreadTicks(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	defer ticker.Stop()

	// Five intervals elapse but the channel buffers one tick.
	c.Advance(5 * time.Second)

	<-ticker.C
	select {
	case <-ticker.C:
		t.Fatal("expected buffered ticks to be dropped")
	default:
	}
}

func TestFakeClockTickerStop(t *testing.T) {
	c := Fake(epoch)
	ticker := c.NewTicker(time.Second)
	ticker.Stop()

	c.Advance(2 * time.Second)
	select {
	case <-ticker.C:
		t.Fatal("stopped ticker fired")
	default:
	}
}

func TestFakeClockTickerPanicsOnNonPositive(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic for zero interval")
		}
	}()
	Fake(epoch).NewTicker(0)
}

func TestFakeClockWaitForTimers(t *testing.T) {
	c := Fake(epoch)
	armed := make(chan *Ticker, 1)

	go func() {
		armed <- c.NewTicker(time.Minute)
	}()

	c.WaitForTimers(1)
	c.Advance(time.Minute)

	ticker := <-armed
	defer ticker.Stop()
	select {
	case <-ticker.C:
	default:
		t.Fatal("ticker armed from another goroutine did not fire")
	}
}

func TestFakeClockTickersFireInOrder(t *testing.T) {
	c := Fake(epoch)
	fast := c.NewTicker(time.Second)
	slow := c.NewTicker(3 * time.Second)
	defer fast.Stop()
	defer slow.Stop()

	c.Advance(3 * time.Second)
	if got := <-fast.C; !got.Equal(epoch.Add(time.Second)) {
		t.Fatalf("fast tick at %v, want the first interval", got)
	}
	if got := <-slow.C; !got.Equal(epoch.Add(3 * time.Second)) {
		t.Fatalf("slow tick at %v", got)
	}

	// Both keep running after firing.
	c.Advance(3 * time.Second)
	if got := <-slow.C; !got.Equal(epoch.Add(6 * time.Second)) {
		t.Fatalf("second slow tick at %v", got)
	}
}

func TestClocksImplementInterface(t *testing.T) {
	var _ Clock = Fake(epoch)
	var _ Clock = Real()
}
