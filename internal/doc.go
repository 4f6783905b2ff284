// Package internal contains helpers that are private to the gateway module:
// key derivation, secure random generation and log-safe credential digests.
//
// # Sub-packages
//
//   - flows: pure-function orchestrators behind every Engine operation
//
// # What this package must NOT do
//
//   - Export types that appear in the public gateway API.
//   - Log or return raw key material.
package internal
