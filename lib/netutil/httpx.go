// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package netutil provides socket and HTTP I/O helpers shared by the
// agent's listener and control-plane client.
//
// HTTP response helpers (ReadResponse, DecodeResponse, ErrorBody)
// bound every response body read so a misbehaving control plane cannot
// exhaust memory. ErrorBody is further bounded to a size that fits in
// a log line.
//
// ReuseAddrListenConfig returns a net.ListenConfig that sets
// SO_REUSEADDR before bind, so a restarted agent can rebind its port
// while old connections linger in TIME_WAIT.
//
// IsExpectedCloseError classifies errors that mean a peer went away
// normally rather than something the operator should look at.
package netutil

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
)

// MaxResponseSize bounds JSON response body reads: 16 MB. The largest
// legitimate response is a host allow list, which is far smaller.
const MaxResponseSize int64 = 16 << 20

// MaxErrorBodySize bounds the part of an error response kept for
// diagnostics.
const MaxErrorBodySize int64 = 4 << 10

// ReadResponse reads a response body up to MaxResponseSize bytes.
func ReadResponse(body io.Reader) ([]byte, error) {
	return io.ReadAll(io.LimitReader(body, MaxResponseSize))
}

// DecodeResponse reads a JSON response body (up to MaxResponseSize
// bytes) and decodes it into v.
func DecodeResponse(body io.Reader, v any) error {
	data, err := ReadResponse(body)
	if err != nil {
		return fmt.Errorf("reading response body: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decoding response body: %w", err)
	}
	return nil
}

// ErrorBody reads at most MaxErrorBodySize bytes of an error response
// and returns them with surrounding whitespace removed. Read errors
// are ignored: a partial body is still useful in an error message.
func ErrorBody(body io.Reader) string {
	data, _ := io.ReadAll(io.LimitReader(body, MaxErrorBodySize))
	return strings.TrimSpace(string(data))
}
