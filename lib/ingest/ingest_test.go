// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package ingest

import (
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/trace-agent/lib/trace"
)

// traceLine returns a valid trace JSON line (without newline).
func traceLine(requestID, host string) string {
	return fmt.Sprintf(`{"destination":"10.0.0.9:443","requestID":%q,"source":"10.0.0.1:5000","scheme":"https","requestHost":%q,"requestMethod":"GET","requestPath":"/v1","responseStatus":200,"requestheaders":[],"requestpayload":"","responseheaders":[],"responsepayload":""}`, requestID, host)
}

// channelSink delivers records on a buffered channel. It rejects the
// first rejectFirst offers, and any offer when the channel is full.
type channelSink struct {
	records chan trace.Record

	mu          sync.Mutex
	rejectFirst int
}

func newChannelSink(capacity int) *channelSink {
	return &channelSink{records: make(chan trace.Record, capacity)}
}

func (s *channelSink) Offer(record trace.Record) bool {
	s.mu.Lock()
	if s.rejectFirst > 0 {
		s.rejectFirst--
		s.mu.Unlock()
		return false
	}
	s.mu.Unlock()
	select {
	case s.records <- record:
		return true
	default:
		return false
	}
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
