// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

// Version is the telemetry schema version stamped on every document.
const Version = "0.0.1"

// MaxBodySize is the largest body, in characters, that is forwarded.
const MaxBodySize = 1000 * 1000

// Document is one request/response exchange in the control plane's
// schema. Field names are the control plane's JSON names.
type Document struct {
	RequestID          string `json:"requestID"`
	Scheme             string `json:"scheme"`
	DestinationAddress string `json:"destinationAddress"`
	// DestinationNamespace is always empty: a gateway agent has no
	// namespace to report.
	DestinationNamespace string   `json:"destinationNamespace"`
	SourceAddress        string   `json:"sourceAddress"`
	Request              Request  `json:"request"`
	Response             Response `json:"response"`
}

// Request is the request half of a Document.
type Request struct {
	Method string `json:"method"`
	Path   string `json:"path"`
	Host   string `json:"host"`
	Common Common `json:"common"`
}

// Response is the response half of a Document.
type Response struct {
	StatusCode string `json:"statusCode"`
	Common     Common `json:"common"`
}

// Common carries the headers and body shared by both halves. Body is
// marshalled as base64, which is how the control plane models it.
type Common struct {
	TruncatedBody bool     `json:"TruncatedBody"`
	Body          []byte   `json:"body"`
	Headers       []Header `json:"headers"`
	Version       string   `json:"version"`
}

// Header is one decoded header. Order in Common.Headers follows the
// order the gateway reported.
type Header struct {
	Key   string `json:"key"`
	Value string `json:"value"`
}
