// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package netutil

import (
	"bytes"
	"fmt"
	"strings"
	"testing"
)

func TestReadResponse(t *testing.T) {
	t.Run("normal body", func(t *testing.T) {
		data, err := ReadResponse(strings.NewReader(`{"hosts":["a"]}`))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if string(data) != `{"hosts":["a"]}` {
			t.Fatalf("got %q", data)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		if _, err := ReadResponse(&failReader{}); err == nil {
			t.Fatal("expected error from failing reader")
		}
	})
}

func TestDecodeResponse(t *testing.T) {
	t.Run("valid JSON", func(t *testing.T) {
		var result struct {
			Hosts []string `json:"hosts"`
		}
		if err := DecodeResponse(strings.NewReader(`{"hosts":["a.example.com","b.example.com"]}`), &result); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if len(result.Hosts) != 2 || result.Hosts[1] != "b.example.com" {
			t.Fatalf("hosts: got %v", result.Hosts)
		}
	})

	t.Run("invalid JSON", func(t *testing.T) {
		err := DecodeResponse(strings.NewReader(`<html>`), &struct{}{})
		if err == nil || !strings.Contains(err.Error(), "decoding response body") {
			t.Fatalf("expected decode error, got %v", err)
		}
	})

	t.Run("read error propagates", func(t *testing.T) {
		err := DecodeResponse(&failReader{}, &struct{}{})
		if err == nil || !strings.Contains(err.Error(), "reading response body") {
			t.Fatalf("expected read error, got %v", err)
		}
	})
}

func TestErrorBody(t *testing.T) {
	t.Run("trims whitespace", func(t *testing.T) {
		if got := ErrorBody(strings.NewReader("  token rejected\n")); got != "token rejected" {
			t.Fatalf("got %q", got)
		}
	})

	t.Run("bounded", func(t *testing.T) {
		large := bytes.Repeat([]byte("x"), int(MaxErrorBodySize)*2)
		if got := ErrorBody(bytes.NewReader(large)); int64(len(got)) != MaxErrorBodySize {
			t.Fatalf("got %d bytes, want %d", len(got), MaxErrorBodySize)
		}
	})

	t.Run("read error returns empty", func(t *testing.T) {
		if got := ErrorBody(&failReader{}); got != "" {
			t.Fatalf("expected empty from failing reader, got %q", got)
		}
	})
}

// failReader always returns an error on Read.
type failReader struct{}

func (*failReader) Read([]byte) (int, error) {
	return 0, fmt.Errorf("simulated read failure")
}
