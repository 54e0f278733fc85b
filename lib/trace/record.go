// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trace

// Record is one captured request/response exchange.
type Record struct {
	RequestID   string
	Source      string
	Destination string
	Scheme      string
	Request     Request
	Response    Response
}

// Request is the request half of a Record. Headers are base64-encoded
// "key:value" strings; Payload is the base64-encoded body.
type Request struct {
	Method  string
	Path    string
	Host    string
	Headers []string
	Payload string
}

// Response is the response half of a Record. Status is the decimal
// status code as sent by the gateway.
type Response struct {
	Status  string
	Headers []string
	Payload string
}
