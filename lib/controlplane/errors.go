// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package controlplane

import "fmt"

// StatusError is returned when the control plane answers with a
// non-2xx status.
type StatusError struct {
	// Operation names the call, e.g. "submit telemetry".
	Operation  string
	StatusCode int
	// Body is the start of the response body, for diagnostics.
	Body string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("controlplane: %s: HTTP %d", e.Operation, e.StatusCode)
	}
	return fmt.Sprintf("controlplane: %s: HTTP %d: %s", e.Operation, e.StatusCode, e.Body)
}
