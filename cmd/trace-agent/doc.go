// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// trace-agent receives HTTP traces from an API gateway and forwards
// them to an APIClarity control plane.
//
// The gateway writes one JSON trace per line to a TCP or UDP socket,
// or to a log file the agent follows. Each trace's destination host
// is tracked: hosts never seen before are announced to the control
// plane, and only traces for hosts on the control plane's allow list
// are converted to telemetry and submitted.
//
// Four actors share an inventory of hosts and a bounded trace queue:
//
//   - the source (listener or file tail) decodes lines into the queue,
//     dropping traces when it is full;
//   - the forwarder drains the queue, records hosts, filters by the
//     allow list, and submits telemetry;
//   - the notifier announces newly discovered hosts;
//   - the poller refreshes the allow list on a fixed interval.
//
// None of the actors retries a failed control plane call. SIGINT or
// SIGTERM stops all four and the process exits once they have.
//
// Configuration is read from --config (default ./config.yaml) and
// the file named by CONFIG_PATH; see lib/config for keys.
package main
