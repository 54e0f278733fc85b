// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package telemetry maps decoded trace records into the telemetry
// document the control plane ingests at POST /api/telemetry.
//
// [Build] is a pure function of its input. It decodes the base64
// header entries and bodies carried by a [trace.Record], drops header
// entries that are not "key:value", and enforces the body limit: a
// body longer than [MaxBodySize] characters is never transmitted, the
// document instead carries TruncatedBody with an empty body.
package telemetry
