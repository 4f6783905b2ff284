// Package fingerprint binds a session to the client that created it and
// detects token reuse from a different client.
//
// A fingerprint is a keyed BLAKE3 digest over a per-session salt and a fixed,
// ordered list of request headers. [Validator] fails open when a fingerprint
// cannot be computed or is absent (the caller backfills it) and fails closed
// only on a definite mismatch.
package fingerprint
