// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package clock

import (
	"slices"
	"sync"
	"time"
)

// FakeClock is a Clock whose time moves only when Advance is called.
// Safe for concurrent use.
type FakeClock struct {
	mu      sync.Mutex
	now     time.Time
	tickers []*fakeTicker
	changed *sync.Cond
}

type fakeTicker struct {
	next     time.Time
	interval time.Duration
	channel  chan time.Time
}

// Fake returns a FakeClock set to initial.
func Fake(initial time.Time) *FakeClock {
	c := &FakeClock{now: initial}
	c.changed = sync.NewCond(&c.mu)
	return c
}

// NewTicker returns a Ticker that fires each time the clock crosses a
// multiple of d from now.
func (c *FakeClock) NewTicker(d time.Duration) *Ticker {
	if d <= 0 {
		panic("clock: non-positive interval for NewTicker")
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	ticker := &fakeTicker{
		next:     c.now.Add(d),
		interval: d,
		channel:  make(chan time.Time, 1),
	}
	c.tickers = append(c.tickers, ticker)
	c.changed.Broadcast()

	return &Ticker{
		C: ticker.channel,
		stop: func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			c.tickers = slices.DeleteFunc(c.tickers, func(t *fakeTicker) bool { return t == ticker })
			c.changed.Broadcast()
		},
	}
}

// Advance moves the clock forward by d. Every ticker fires once per
// interval crossed, in time order; a tick that finds the channel full
// is dropped.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
	for {
		var earliest *fakeTicker
		for _, ticker := range c.tickers {
			if ticker.next.After(c.now) {
				continue
			}
			if earliest == nil || ticker.next.Before(earliest.next) {
				earliest = ticker
			}
		}
		if earliest == nil {
			return
		}
		select {
		case earliest.channel <- earliest.next:
		default:
		}
		earliest.next = earliest.next.Add(earliest.interval)
	}
}

// WaitForTimers blocks until at least n tickers are running. Tests use
// it to make sure a goroutine has armed its ticker before advancing.
func (c *FakeClock) WaitForTimers(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for len(c.tickers) < n {
		c.changed.Wait()
	}
}
