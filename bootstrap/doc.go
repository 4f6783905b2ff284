// Package bootstrap implements the one-time URL parameter used to hand a
// session to another subdomain when cookies cannot yet be shared.
//
// Tokens are HS256 JWTs that name the session id, live at most [MaxTTL] and
// are redeemable once: the jti is recorded in a [Ledger] on first use.
// Tokens are never logged; log lines carry a short digest instead.
package bootstrap
