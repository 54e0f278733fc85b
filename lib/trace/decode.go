// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package trace

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

// ErrDecode is wrapped by every error returned from Decode and
// DecodeEnvelope.
var ErrDecode = errors.New("trace: decode failed")

// wireRecord mirrors the gateway's JSON. Pointer fields are required;
// a nil pointer after unmarshalling means the key was absent.
type wireRecord struct {
	Destination     *string     `json:"destination"`
	RequestID       *string     `json:"requestID"`
	Source          *string     `json:"source"`
	Scheme          *string     `json:"scheme"`
	RequestHost     *string     `json:"requestHost"`
	RequestMethod   *string     `json:"requestMethod"`
	RequestPath     *string     `json:"requestPath"`
	ResponseStatus  *statusCode `json:"responseStatus"`
	RequestHeaders  []string    `json:"requestheaders"`
	RequestPayload  string      `json:"requestpayload"`
	ResponseHeaders []string    `json:"responseheaders"`
	ResponsePayload string      `json:"responsepayload"`
}

// statusCode accepts 200, "200", and integral floats such as 200.0 or
// 2e2, which are normalized to "200". A fractional status is rejected.
type statusCode string

func (s *statusCode) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '"' {
		var text string
		if err := json.Unmarshal(data, &text); err != nil {
			return err
		}
		*s = statusCode(text)
		return nil
	}
	var number json.Number
	if err := json.Unmarshal(data, &number); err != nil {
		return fmt.Errorf("responseStatus must be a number or string: %w", err)
	}
	if _, err := strconv.ParseInt(number.String(), 10, 64); err == nil {
		*s = statusCode(number.String())
		return nil
	}
	value, err := strconv.ParseFloat(number.String(), 64)
	if err != nil || value != math.Trunc(value) || math.Abs(value) > math.MaxInt32 {
		return fmt.Errorf("responseStatus %s is not an integer", number)
	}
	*s = statusCode(strconv.FormatInt(int64(value), 10))
	return nil
}

// Decode parses one trace line. Surrounding whitespace, including the
// trailing newline, is ignored.
func Decode(line []byte) (Record, error) {
	line = bytes.TrimSpace(line)
	if len(line) == 0 {
		return Record{}, fmt.Errorf("%w: empty line", ErrDecode)
	}

	var wire wireRecord
	if err := json.Unmarshal(line, &wire); err != nil {
		return Record{}, fmt.Errorf("%w: %v", ErrDecode, err)
	}

	var missing []string
	require := func(key string, present bool) {
		if !present {
			missing = append(missing, key)
		}
	}
	require("destination", wire.Destination != nil)
	require("requestID", wire.RequestID != nil)
	require("source", wire.Source != nil)
	require("scheme", wire.Scheme != nil)
	require("requestHost", wire.RequestHost != nil)
	require("requestMethod", wire.RequestMethod != nil)
	require("requestPath", wire.RequestPath != nil)
	require("responseStatus", wire.ResponseStatus != nil)
	if len(missing) > 0 {
		return Record{}, fmt.Errorf("%w: missing keys %s", ErrDecode, strings.Join(missing, ", "))
	}

	return Record{
		RequestID:   *wire.RequestID,
		Source:      *wire.Source,
		Destination: *wire.Destination,
		Scheme:      *wire.Scheme,
		Request: Request{
			Method:  *wire.RequestMethod,
			Path:    *wire.RequestPath,
			Host:    *wire.RequestHost,
			Headers: wire.RequestHeaders,
			Payload: wire.RequestPayload,
		},
		Response: Response{
			Status:  string(*wire.ResponseStatus),
			Headers: wire.ResponseHeaders,
			Payload: wire.ResponsePayload,
		},
	}, nil
}

// DecodeEnvelope unwraps a log-file envelope and decodes the trace
// inside it. The line is split on delimiter and the JSON object is
// everything from the field-th delimiter onward, so delimiters inside
// the object itself are preserved. field 0 means the whole line.
func DecodeEnvelope(line []byte, delimiter string, field int) (Record, error) {
	if field < 0 {
		return Record{}, fmt.Errorf("%w: negative envelope field %d", ErrDecode, field)
	}
	if delimiter == "" || field == 0 {
		return Decode(line)
	}

	pieces := bytes.SplitN(line, []byte(delimiter), field+1)
	if len(pieces) <= field {
		return Record{}, fmt.Errorf("%w: envelope has %d fields, wanted field %d", ErrDecode, len(pieces), field)
	}
	return Decode(pieces[field])
}
