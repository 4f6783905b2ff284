// Package tenant resolves the authorization scope of a request.
//
// A [Context] is derived from the session's bound tenant and the subject's
// membership row, and flows through request handling explicitly via
// [WithContext] / [Require]. There is no process-wide "current tenant".
//
// # What this package must NOT do
//
//   - Trust a tenant id supplied by the client outside the session record.
//   - Produce a Context when the membership is missing or the role unknown.
package tenant
