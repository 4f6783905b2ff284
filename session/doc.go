// Package session provides the session record model, its authenticated cookie
// codec and the authoritative stores that back it.
//
// # Token format
//
// A token is base64url(version || nonce || ciphertext), sealed with
// XChaCha20-Poly1305 and the version byte bound as additional data. The
// plaintext is the compact binary record (schema v1 and v2). Decoding is
// closed-world: unknown versions and anything failing authentication are
// rejected with [ErrInvalidSession].
//
// Tokens written by the previous gateway (base64 JSON) are accepted only when
// the codec is built with [WithLegacyDecode]. Such records carry
// [LegacyVersion] and must be re-issued by the caller.
//
// # Stores
//
// [RedisStore] and [MemoryStore] implement [Store]. The store is authoritative:
// a token whose id is absent from the store is revoked.
//
// # What this package must NOT do
//
//   - Import the gateway root, cookie, tenant or onboarding packages.
//   - Decide routing or tenant authorization.
//   - Log token material.
package session
