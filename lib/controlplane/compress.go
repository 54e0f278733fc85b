// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import (
	"bytes"
	"fmt"

	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/zstd"
)

// Compression selects the Content-Encoding of request bodies.
type Compression string

const (
	CompressionNone Compression = ""
	CompressionGzip Compression = "gzip"
	CompressionZstd Compression = "zstd"
)

// ParseCompression validates a configured compression name. "none"
// is accepted as an alias for the empty string.
func ParseCompression(name string) (Compression, error) {
	switch name {
	case "", "none":
		return CompressionNone, nil
	case "gzip":
		return CompressionGzip, nil
	case "zstd":
		return CompressionZstd, nil
	default:
		return "", fmt.Errorf("unknown compression %q (want gzip or zstd)", name)
	}
}

// zstdEncoder is shared across requests; EncodeAll is safe for
// concurrent use.
var zstdEncoder *zstd.Encoder

func init() {
	var err error
	zstdEncoder, err = zstd.NewWriter(nil,
		zstd.WithEncoderLevel(zstd.SpeedDefault),
		zstd.WithEncoderConcurrency(1),
	)
	if err != nil {
		panic("controlplane: zstd encoder initialization failed: " + err.Error())
	}
}

// encode compresses body according to compression. The returned
// encoding is the Content-Encoding value, empty for none.
func encode(compression Compression, body []byte) ([]byte, string, error) {
	switch compression {
	case CompressionNone:
		return body, "", nil
	case CompressionGzip:
		var buffer bytes.Buffer
		writer := gzip.NewWriter(&buffer)
		if _, err := writer.Write(body); err != nil {
			return nil, "", fmt.Errorf("gzip: %w", err)
		}
		if err := writer.Close(); err != nil {
			return nil, "", fmt.Errorf("gzip: %w", err)
		}
		return buffer.Bytes(), "gzip", nil
	case CompressionZstd:
		return zstdEncoder.EncodeAll(body, make([]byte, 0, len(body)/2)), "zstd", nil
	default:
		return nil, "", fmt.Errorf("unknown compression %q", compression)
	}
}
