// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package main

import (
	"context"
	"encoding/base64"
	"io"
	"log/slog"
	"sync"

	"github.com/bureau-foundation/trace-agent/lib/telemetry"
	"github.com/bureau-foundation/trace-agent/lib/trace"
)

// fakeControlPlane records calls and returns configured errors. Each
// call is also delivered on the matching channel so tests can wait
// for it.
type fakeControlPlane struct {
	mu         sync.Mutex
	documents  []*telemetry.Document
	discovered []string
	allowList  []string
	submitErr  error
	notifyErr  error
	fetchErr   error
	fetchCalls int
	submitted  chan *telemetry.Document
	announced  chan string
	fetched    chan []string
}

func newFakeControlPlane() *fakeControlPlane {
	return &fakeControlPlane{
		submitted: make(chan *telemetry.Document, 100),
		announced: make(chan string, 100),
		fetched:   make(chan []string, 100),
	}
}

func (f *fakeControlPlane) SubmitTelemetry(ctx context.Context, document *telemetry.Document) error {
	f.mu.Lock()
	err := f.submitErr
	if err == nil {
		f.documents = append(f.documents, document)
	}
	f.mu.Unlock()
	if err == nil {
		f.submitted <- document
	}
	return err
}

func (f *fakeControlPlane) SubmitDiscoveredHosts(ctx context.Context, hosts []string) error {
	f.mu.Lock()
	err := f.notifyErr
	if err == nil {
		f.discovered = append(f.discovered, hosts...)
	}
	f.mu.Unlock()
	for _, host := range hosts {
		f.announced <- host
	}
	return err
}

func (f *fakeControlPlane) FetchHostsToTrace(ctx context.Context) ([]string, error) {
	f.mu.Lock()
	f.fetchCalls++
	err := f.fetchErr
	hosts := append([]string(nil), f.allowList...)
	f.mu.Unlock()
	if err != nil {
		f.fetched <- nil
		return nil, err
	}
	f.fetched <- hosts
	return hosts, nil
}

func (f *fakeControlPlane) setAllowList(hosts ...string) {
	f.mu.Lock()
	f.allowList = hosts
	f.mu.Unlock()
}

func (f *fakeControlPlane) setFetchErr(err error) {
	f.mu.Lock()
	f.fetchErr = err
	f.mu.Unlock()
}

func (f *fakeControlPlane) documentCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.documents)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testRecord(requestID, host string) trace.Record {
	return trace.Record{
		RequestID:   requestID,
		Source:      "10.0.0.1",
		Destination: host,
		Scheme:      "http",
		Request: trace.Request{
			Method:  "GET",
			Path:    "/v1",
			Host:    host,
			Headers: []string{base64.StdEncoding.EncodeToString([]byte("Accept:*/*"))},
		},
		Response: trace.Response{Status: "200"},
	}
}
