// Package audit implements async event dispatching for security-relevant
// session and onboarding events.
//
// # Components
//
//   - [Sink]: interface for event consumers (channel, JSON writer, zerolog, no-op).
//   - [Dispatcher]: buffered async relay that drops when full and counts drops.
//   - [Event]: structured audit record with type, subject, tenant, session, IP and metadata.
//
// # Architecture boundaries
//
// This package owns event buffering and sink delivery. It does NOT decide which
// events to emit; the Engine and the fingerprint validator do.
//
// # What this package must NOT do
//
//   - Filter or suppress events based on business logic.
//   - Block a request path on a slow sink.
//   - Import the gateway root or any sibling package.
package audit
