// Package middleware adapts the gateway engine to net/http.
//
// # Handlers
//
//   - [Gate] resolves the session of every request, runs the onboarding
//     gate and either redirects or injects a [gateway.SessionContext].
//   - [RequireTenant] rejects requests that reach a handler without a
//     resolved tenant context.
//
// # Architecture boundaries
//
// This package translates HTTP semantics into Engine calls. Session,
// fingerprint, tenant and onboarding decisions are all made by the Engine.
//
// # What this package must NOT do
//
//   - Decode session cookies directly.
//   - Infer a tenant from the URL or from the session alone.
//   - Serve a request as authenticated after GetSessionContext failed.
package middleware
