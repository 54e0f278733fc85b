// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

//go:build !linux

package ingest

// watchFile has no change notification outside Linux. The returned
// channel never fires and FileTail relies on its poll ticker.
func watchFile(path string) (<-chan struct{}, func(), error) {
	return nil, func() {}, nil
}
