// Package gateway is the session gateway in front of the multi-tenant
// application: it turns an inbound request into a validated session and
// tenant context, and decides whether the request may reach tenant data or
// must continue onboarding.
//
// Every request passes through the same pipeline: the cookie manager
// extracts candidate credentials, the codec opens them, the session store
// confirms the session is still live, the fingerprint validator checks the
// client, the tenant resolver binds the membership and the onboarding gate
// admits or redirects.
//
// # Architecture boundaries
//
// gateway is the public surface. It exposes [Engine], [Builder], [Config]
// and the sentinel errors. Each pipeline stage lives in its own package
// (session, cookie, bootstrap, fingerprint, tenant, onboarding, audit) and
// depends on no other stage's internals. Orchestration lives under
// internal/flows.
//
// # What this package must NOT do
//
//   - Treat any decode or fingerprint failure as authenticated.
//   - Infer tenant membership from the session alone.
//   - Hold ambient tenant state; a [tenant.Context] exists only per request.
//   - Block a request on audit delivery.
package gateway
