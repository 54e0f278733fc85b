// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package trace decodes the per-request trace lines a gateway emits
// into [Record] values.
//
// A trace line is one JSON object:
//
//	{"destination": "...", "requestID": "...", "source": "...",
//	 "scheme": "http", "requestHost": "api.example.com",
//	 "requestMethod": "GET", "requestPath": "/v1",
//	 "responseStatus": 200,
//	 "requestheaders": ["<base64 key:value>", ...],
//	 "requestpayload": "<base64>",
//	 "responseheaders": [...], "responsepayload": "<base64>"}
//
// Headers and payloads stay base64-encoded in the Record; turning them
// into telemetry is the job of package telemetry. Gateways that write
// traces into a log file wrap the object in a delimited envelope, which
// [DecodeEnvelope] unwraps.
//
// Every decode failure wraps [ErrDecode]. Callers log and drop the
// line; a bad line is never fatal and never retried.
package trace
