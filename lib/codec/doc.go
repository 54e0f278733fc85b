// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package codec holds the agent's CBOR configuration.
//
// JSON is reserved for the wire formats the agent does not own: trace
// lines from the gateway and the control plane's HTTP API. CBOR is used
// for the agent's own on-disk state (the log-file tail checkpoint).
// Encoding uses Core Deterministic Encoding (RFC 8949 §4.2) so the same
// state always produces the same bytes.
package codec
