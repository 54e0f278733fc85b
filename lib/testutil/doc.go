// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package testutil provides shared test helpers for the agent's
// packages.
//
// [RequireReceive], [RequireClosed], and [RequireNoReceive] wrap the
// select-with-timeout pattern so that individual tests do not call
// time.After directly. [RequireEventually] polls state that another
// goroutine owns. These are the only place in the test suite that uses
// real wall-clock timeouts; all other timing goes through lib/clock.
//
// [WriteFile] and [AppendFile] create and grow fixture files under
// t.TempDir(), used by configuration and file-tail tests.
//
// All helpers call t.Fatalf on failure rather than returning errors,
// since test setup failures are not recoverable.
package testutil
