// Package flows contains the orchestrators behind every Engine operation.
//
// Each flow function (RunResolve, RunCreate, RunAdvance, ...) accepts a typed
// dependency struct and returns a result value. Flows own nothing: the
// session store, cookie manager, codec, fingerprint validator and tenant
// resolver stay with the Engine and are reached only through the deps.
//
// # What this package must NOT do
//
//   - Hold mutable state between calls.
//   - Import the root gateway package (no import cycles).
//   - Emit an audit event that a component already emitted.
package flows
