// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/bureau-foundation/trace-agent/lib/trace"
)

func encode(s string) string {
	return base64.StdEncoding.EncodeToString([]byte(s))
}

func sampleRecord() trace.Record {
	return trace.Record{
		RequestID:   "r1",
		Source:      "10.0.0.1:51234",
		Destination: "10.0.0.9:443",
		Scheme:      "https",
		Request: trace.Request{
			Method:  "POST",
			Path:    "/v1/orders",
			Host:    "api.example.com",
			Headers: []string{encode("Content-Type:application/json")},
			Payload: encode(`{"id":1}`),
		},
		Response: trace.Response{
			Status:  "201",
			Headers: []string{encode("Location:/v1/orders/1")},
			Payload: "",
		},
	}
}

func TestBuildCopiesIdentity(t *testing.T) {
	document, err := Build(sampleRecord())
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if document.RequestID != "r1" {
		t.Errorf("RequestID = %q, want r1", document.RequestID)
	}
	if document.Request.Host != "api.example.com" {
		t.Errorf("Request.Host = %q", document.Request.Host)
	}
	if document.Response.StatusCode != "201" {
		t.Errorf("Response.StatusCode = %q, want 201", document.Response.StatusCode)
	}
	if document.DestinationAddress != "10.0.0.9:443" || document.SourceAddress != "10.0.0.1:51234" {
		t.Errorf("addresses = %q -> %q", document.SourceAddress, document.DestinationAddress)
	}
	if document.DestinationNamespace != "" {
		t.Errorf("DestinationNamespace = %q, want empty", document.DestinationNamespace)
	}
	if document.Request.Method != "POST" || document.Request.Path != "/v1/orders" || document.Scheme != "https" {
		t.Errorf("request line = %s %s %s", document.Scheme, document.Request.Method, document.Request.Path)
	}
	if string(document.Request.Common.Body) != `{"id":1}` {
		t.Errorf("request body = %q", document.Request.Common.Body)
	}
	if document.Request.Common.Version != Version || document.Response.Common.Version != Version {
		t.Errorf("version not stamped")
	}
}

func TestBuildHeaders(t *testing.T) {
	record := sampleRecord()
	record.Request.Headers = []string{
		encode("X-First:1"),
		encode("no-colon-here"),
		encode("Date:Mon, 19 Oct 2026 10:00:00 GMT"),
		encode("Empty:"),
		encode("X-Last:3"),
	}

	document, err := Build(record)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	want := []Header{
		{Key: "X-First", Value: "1"},
		{Key: "Date", Value: "Mon, 19 Oct 2026 10:00:00 GMT"},
		{Key: "Empty", Value: ""},
		{Key: "X-Last", Value: "3"},
	}
	got := document.Request.Common.Headers
	if len(got) != len(want) {
		t.Fatalf("got %d headers, want %d: %+v", len(got), len(want), got)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("header %d = %+v, want %+v", i, got[i], want[i])
		}
	}
}

func TestBuildHeaderCountMatchesValidEntries(t *testing.T) {
	for count := 0; count < 20; count++ {
		record := sampleRecord()
		record.Response.Headers = nil
		for i := 0; i < count; i++ {
			record.Response.Headers = append(record.Response.Headers, encode("k:v"), encode("junk"))
		}
		document, err := Build(record)
		if err != nil {
			t.Fatalf("Build with %d headers: %v", count, err)
		}
		if len(document.Response.Common.Headers) != count {
			t.Fatalf("%d valid entries produced %d headers", count, len(document.Response.Common.Headers))
		}
	}
}

func TestBuildBodyLimit(t *testing.T) {
	tests := []struct {
		name      string
		body      string
		truncated bool
	}{
		{name: "empty", body: "", truncated: false},
		{name: "at limit", body: strings.Repeat("a", MaxBodySize), truncated: false},
		{name: "over limit", body: strings.Repeat("a", MaxBodySize+1), truncated: true},
		// Two bytes per character: over the limit in bytes, at the
		// limit in characters.
		{name: "multibyte at limit", body: strings.Repeat("é", MaxBodySize), truncated: false},
		{name: "multibyte over limit", body: strings.Repeat("é", MaxBodySize+1), truncated: true},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			record := sampleRecord()
			record.Response.Payload = encode(test.body)

			document, err := Build(record)
			if err != nil {
				t.Fatalf("Build: %v", err)
			}
			common := document.Response.Common
			if common.TruncatedBody != test.truncated {
				t.Fatalf("TruncatedBody = %v, want %v", common.TruncatedBody, test.truncated)
			}
			if test.truncated && len(common.Body) != 0 {
				t.Fatalf("truncated document still carries %d body bytes", len(common.Body))
			}
			if !test.truncated && string(common.Body) != test.body {
				t.Fatalf("body altered: got %d bytes, want %d", len(common.Body), len(test.body))
			}
		})
	}
}

func TestBuildErrors(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*trace.Record)
	}{
		{name: "request body not base64", mutate: func(r *trace.Record) { r.Request.Payload = "!!!" }},
		{name: "response body not utf8", mutate: func(r *trace.Record) {
			r.Response.Payload = base64.StdEncoding.EncodeToString([]byte{0xff, 0xfe})
		}},
		{name: "header not base64", mutate: func(r *trace.Record) { r.Request.Headers = []string{"%%%"} }},
		{name: "header not utf8", mutate: func(r *trace.Record) {
			r.Response.Headers = []string{base64.StdEncoding.EncodeToString([]byte{'k', ':', 0xc3})}
		}},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			record := sampleRecord()
			test.mutate(&record)
			document, err := Build(record)
			if err == nil {
				t.Fatalf("expected error, got document %+v", document)
			}
			if !errors.Is(err, ErrBuild) {
				t.Fatalf("error %v does not wrap ErrBuild", err)
			}
		})
	}
}

func TestDocumentJSON(t *testing.T) {
	record := sampleRecord()
	record.Request.Payload = encode("hello")

	document, err := Build(record)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	data, err := json.Marshal(document)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	for _, fragment := range []string{
		`"requestID":"r1"`,
		`"destinationNamespace":""`,
		`"statusCode":"201"`,
		`"TruncatedBody":false`,
		`"body":"aGVsbG8="`,
		`"headers":[{"key":"Content-Type","value":"application/json"}]`,
		`"version":"0.0.1"`,
	} {
		if !bytes.Contains(data, []byte(fragment)) {
			t.Errorf("JSON missing %s:\n%s", fragment, data)
		}
	}

	// An empty response body is an empty string, never null.
	if !bytes.Contains(data, []byte(`"response":{"statusCode":"201","common":{"TruncatedBody":false,"body":""`)) {
		t.Errorf("empty body not encoded as empty string:\n%s", data)
	}
}

func TestBuildFromDecodedLine(t *testing.T) {
	line := `{"destination":"api.example.com","requestID":"r1","source":"10.0.0.1","scheme":"http","requestHost":"api.example.com","requestMethod":"GET","requestPath":"/v1","responseStatus":200,"requestheaders":[],"requestpayload":"","responseheaders":[],"responsepayload":""}`
	record, err := trace.Decode([]byte(line))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	document, err := Build(record)
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if document.Request.Host != "api.example.com" || document.Response.StatusCode != "200" || document.RequestID != "r1" {
		t.Fatalf("document does not match input: %+v", document)
	}
	if len(document.Request.Common.Headers) != 0 || document.Request.Common.Headers == nil {
		t.Fatalf("expected empty, non-nil header list")
	}
}
