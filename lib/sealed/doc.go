// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

// Package sealed keeps the control-plane token encrypted at rest. It
// wraps filippo.io/age for the operations the agent needs: generate
// an x25519 keypair, encrypt to one or more recipients, and decrypt a
// sealed file with an identity file.
//
// Sealed files hold base64 text so they survive config management
// tools that mangle binary content. Identity files use age's own
// format (comment lines allowed), as written by age-keygen.
//
// Key exports:
//
//   - [GenerateKeypair] -- new age x25519 keypair
//   - [Encrypt] -- encrypt to age public key recipients
//   - [DecryptFile] -- decrypt a sealed file with an identity file
package sealed
