// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package clock provides an injectable time source so the agent's
// periodic loops (the hosts-to-trace poller and the log-file tail) can
// be driven deterministically in tests.
//
// Production code holds a [Clock] and receives [Real]. Tests hand in
// [Fake], call [FakeClock.WaitForTimers] until the loop under test has
// armed its ticker, then [FakeClock.Advance] to fire it:
//
//	c := clock.Fake(time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC))
//	go poller.Run(ctx)
//	c.WaitForTimers(1)
//	c.Advance(30 * time.Second)
package clock
