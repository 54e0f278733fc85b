// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package version reports build information for the trace agent.
//
// [GitCommit], [BuildTime], and [Version] are injected at build time
// via -ldflags -X. When GitCommit is not injected, the VCS revision
// recorded by the Go toolchain is used if present.
//
//   - [Info] -- "0.1.0-dev (abc1234, 2026-10-19T...)" for --version
//   - [Full] -- Info plus Go version and GOOS/GOARCH
//   - [Attrs] -- the same facts as slog attributes for the startup log
package version
