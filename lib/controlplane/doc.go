// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package controlplane is the agent's HTTP client for the APIClarity
// control plane.
//
// Three operations are exposed: submitting one telemetry document,
// announcing newly discovered hosts, and fetching the list of hosts
// the control plane wants traced. Every request is JSON, carries the
// trace-source token in [TokenHeader], and is bounded by the
// configured timeout. Calls never retry; the agent's loops decide
// what to do with a failure.
//
// For https base URLs, [New] dials the control plane and completes a
// verified TLS handshake before returning, using the system trust
// pool plus an optional PEM file and an optional expected hostname.
// The same verified TLS configuration serves every later request.
//
// A response outside 2xx is returned as a [*StatusError].
package controlplane
