// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package inventory tracks which API hosts the agent has seen, which
// of those the control plane has been told about, and which the
// control plane wants traced.
//
// A host moves through three states:
//
//	unknown --Observe--> pending --MarkNotified--> discovered
//	                        |
//	                        +--MarkNotifyFailed--> unknown
//
// Observe is the only transition out of unknown, and it pushes the
// host onto the discovery queue in the same critical section, so a
// host is queued at most once per trip through pending. The allow
// list is independent of these states and is replaced wholesale by
// the poller.
//
// All methods are safe for concurrent use. No method performs I/O
// while holding the lock.
package inventory

import (
	"context"
	"sort"
	"sync"
)

// Wildcard in the allow list marks every host as traced.
const Wildcard = "*"

// Inventory is the shared host state. The zero value is not usable;
// call New.
type Inventory struct {
	mu         sync.Mutex
	discovered map[string]struct{}
	toNotify   map[string]struct{}
	toTrace    map[string]struct{}

	// pending is the discovery queue, in sighting order. It is
	// unbounded: its length is limited by the number of distinct
	// hosts.
	pending []string
	notify  chan struct{}
}

// State is a point-in-time copy of the inventory. Host lists are
// sorted.
type State struct {
	Discovered []string
	ToNotify   []string
	ToTrace    []string
	Pending    int
}

// New returns an empty inventory.
func New() *Inventory {
	return &Inventory{
		discovered: make(map[string]struct{}),
		toNotify:   make(map[string]struct{}),
		toTrace:    make(map[string]struct{}),
		notify:     make(chan struct{}, 1),
	}
}

// Observe records a sighting of host. It returns true when the host
// was unknown; the host is then pending and queued for notification.
func (inv *Inventory) Observe(host string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()

	if _, ok := inv.discovered[host]; ok {
		return false
	}
	if _, ok := inv.toNotify[host]; ok {
		return false
	}
	inv.toNotify[host] = struct{}{}
	inv.pending = append(inv.pending, host)
	inv.signal()
	return true
}

// MarkNotified records that the control plane accepted host.
func (inv *Inventory) MarkNotified(host string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.toNotify, host)
	inv.discovered[host] = struct{}{}
}

// MarkNotifyFailed returns host to unknown so that its next sighting
// queues it again.
func (inv *Inventory) MarkNotifyFailed(host string) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	delete(inv.toNotify, host)
}

// ReplaceAllowList replaces the set of traced hosts.
func (inv *Inventory) ReplaceAllowList(hosts []string) {
	toTrace := make(map[string]struct{}, len(hosts))
	for _, host := range hosts {
		toTrace[host] = struct{}{}
	}
	inv.mu.Lock()
	inv.toTrace = toTrace
	inv.mu.Unlock()
}

// IsTraced reports whether host is on the allow list, directly or via
// the wildcard entry.
func (inv *Inventory) IsTraced(host string) bool {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if _, ok := inv.toTrace[Wildcard]; ok {
		return true
	}
	_, ok := inv.toTrace[host]
	return ok
}

// NextDiscovered removes and returns the oldest queued host, waiting
// until one is available or ctx is done.
func (inv *Inventory) NextDiscovered(ctx context.Context) (string, error) {
	for {
		if host, ok := inv.popPending(); ok {
			return host, nil
		}
		select {
		case <-inv.notify:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
}

func (inv *Inventory) popPending() (string, bool) {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	if len(inv.pending) == 0 {
		return "", false
	}
	host := inv.pending[0]
	inv.pending = inv.pending[1:]
	if len(inv.pending) == 0 {
		inv.pending = nil
	} else {
		inv.signal()
	}
	return host, true
}

// Snapshot returns a copy of the current state.
func (inv *Inventory) Snapshot() State {
	inv.mu.Lock()
	defer inv.mu.Unlock()
	return State{
		Discovered: sortedKeys(inv.discovered),
		ToNotify:   sortedKeys(inv.toNotify),
		ToTrace:    sortedKeys(inv.toTrace),
		Pending:    len(inv.pending),
	}
}

// signal wakes one NextDiscovered waiter. Caller holds mu.
func (inv *Inventory) signal() {
	select {
	case inv.notify <- struct{}{}:
	default:
	}
}

func sortedKeys(set map[string]struct{}) []string {
	keys := make([]string, 0, len(set))
	for key := range set {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}
