// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package config loads the trace agent's configuration.
//
// Configuration is built in layers, each overriding only the keys it
// names:
//
//  1. [Default] values.
//  2. The file passed to [Load] (the --config flag).
//  3. The overlay file named by the CONFIG_PATH environment variable,
//     if set. An overlay that cannot be read is an error rather than
//     being silently skipped.
//
// Files are YAML. Files ending in .json or .jsonc are JSON with
// comments and trailing commas allowed. Keys are hyphenated, e.g.
// "apiclarity-url".
//
// Path fields support ${VAR} and ${VAR:-default} expansion against
// the process environment after all layers are applied.
//
// [Config.Validate] normalizes and checks the merged result.
// [Config.Redacted] renders it for the startup log with the token
// masked. [Config.Token] resolves the token, unsealing it when a
// sealed token file is configured.
package config
