// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package ingest receives gateway trace lines and hands decoded
// records to a [Sink].
//
// Two sources exist. [Listener] accepts newline-delimited traces over
// TCP (one goroutine per connection, order preserved within a
// connection) or UDP (each datagram may carry several lines).
// [FileTail] follows a log file the gateway writes, where each line
// is an envelope with the trace JSON in one delimited field.
//
// Neither source ever blocks on the sink. A record the sink rejects
// is counted as dropped and logged at debug level; a line that fails
// to decode is counted as malformed and logged at warn level. Both
// keep running after either.
package ingest

import "github.com/bureau-foundation/trace-agent/lib/trace"

// Sink accepts decoded records. Offer must not block; false means the
// record was discarded.
type Sink interface {
	Offer(record trace.Record) bool
}
