// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package telemetry

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/bureau-foundation/trace-agent/lib/trace"
)

// ErrBuild is wrapped by every error returned from Build.
var ErrBuild = errors.New("telemetry: build failed")

// Build converts record into a Document. It fails when a header or body
// is not valid base64-encoded UTF-8; the caller skips such a trace.
func Build(record trace.Record) (*Document, error) {
	requestCommon, err := buildCommon(record.Request.Headers, record.Request.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: request %s: %v", ErrBuild, record.RequestID, err)
	}
	responseCommon, err := buildCommon(record.Response.Headers, record.Response.Payload)
	if err != nil {
		return nil, fmt.Errorf("%w: response %s: %v", ErrBuild, record.RequestID, err)
	}

	return &Document{
		RequestID:            record.RequestID,
		Scheme:               record.Scheme,
		DestinationAddress:   record.Destination,
		DestinationNamespace: "",
		SourceAddress:        record.Source,
		Request: Request{
			Method: record.Request.Method,
			Path:   record.Request.Path,
			Host:   record.Request.Host,
			Common: requestCommon,
		},
		Response: Response{
			StatusCode: record.Response.Status,
			Common:     responseCommon,
		},
	}, nil
}

func buildCommon(encodedHeaders []string, encodedBody string) (Common, error) {
	headers, err := decodeHeaders(encodedHeaders)
	if err != nil {
		return Common{}, err
	}
	body, truncated, err := decodeBody(encodedBody)
	if err != nil {
		return Common{}, err
	}
	return Common{
		TruncatedBody: truncated,
		Body:          body,
		Headers:       headers,
		Version:       Version,
	}, nil
}

// decodeHeaders decodes base64 "key:value" entries. The entry is split
// at its first colon so values containing colons (dates, URLs) survive
// intact. Entries with no colon are dropped.
func decodeHeaders(encoded []string) ([]Header, error) {
	headers := make([]Header, 0, len(encoded))
	for index, entry := range encoded {
		raw, err := base64.StdEncoding.DecodeString(entry)
		if err != nil {
			return nil, fmt.Errorf("header %d: %w", index, err)
		}
		if !utf8.Valid(raw) {
			return nil, fmt.Errorf("header %d: not valid UTF-8", index)
		}
		key, value, found := strings.Cut(string(raw), ":")
		if !found {
			continue
		}
		headers = append(headers, Header{Key: key, Value: value})
	}
	return headers, nil
}

// decodeBody decodes a base64 body. A body over MaxBodySize characters
// is reported as truncated and returned empty.
func decodeBody(encoded string) ([]byte, bool, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, false, fmt.Errorf("body: %w", err)
	}
	if !utf8.Valid(raw) {
		return nil, false, errors.New("body: not valid UTF-8")
	}
	// A body of at most MaxBodySize bytes has at most MaxBodySize
	// characters.
	if len(raw) > MaxBodySize && utf8.RuneCount(raw) > MaxBodySize {
		return []byte{}, true, nil
	}
	return raw, false, nil
}
