// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package queue provides a bounded FIFO queue shared between one or
// more producers that must never block and consumers that wait for
// work.
//
// When the queue is full, Offer rejects the new item and counts it as
// dropped: the newest data is lost rather than stalling the producer.
// Capacity is fixed at construction.
//
// All methods are safe for concurrent use.
package queue

import (
	"context"
	"fmt"
	"sync"
)

// Queue is a bounded FIFO queue of T.
//
// The notify channel (capacity 1) wakes a waiting Pop. A Pop that
// takes an item while others remain re-signals so a second waiter
// does not sleep on a non-empty queue.
type Queue[T any] struct {
	mu       sync.Mutex
	items    []T
	capacity int
	dropped  uint64
	notify   chan struct{}
}

// New creates a Queue holding at most capacity items. The capacity
// must be positive.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic(fmt.Sprintf("queue: capacity must be positive, got %d", capacity))
	}
	return &Queue[T]{
		items:    make([]T, 0, capacity),
		capacity: capacity,
		notify:   make(chan struct{}, 1),
	}
}

// Offer appends item without blocking. It returns false, and
// increments the Dropped counter, when the queue is full.
func (q *Queue[T]) Offer(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.items) >= q.capacity {
		q.dropped++
		return false
	}
	q.items = append(q.items, item)
	q.signal()
	return true
}

// Pop removes and returns the oldest item, waiting until one is
// available or ctx is done.
func (q *Queue[T]) Pop(ctx context.Context) (T, error) {
	for {
		if item, ok := q.TryPop(); ok {
			return item, nil
		}
		select {
		case <-q.notify:
		case <-ctx.Done():
			var zero T
			return zero, ctx.Err()
		}
	}
}

// TryPop removes and returns the oldest item without waiting. The
// boolean is false when the queue is empty.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	var zero T
	if len(q.items) == 0 {
		return zero, false
	}
	item := q.items[0]
	q.items[0] = zero // release for GC
	q.items = q.items[1:]
	if len(q.items) == 0 {
		// Start over at the front of a fresh backing array.
		q.items = make([]T, 0, q.capacity)
	} else {
		q.signal()
	}
	return item, true
}

// Len returns the number of queued items.
func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns the number of items rejected by Offer since
// creation.
func (q *Queue[T]) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// signal performs a non-blocking send on notify. Caller holds mu.
func (q *Queue[T]) signal() {
	select {
	case q.notify <- struct{}{}:
	default:
	}
}
