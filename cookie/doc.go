// Package cookie propagates session credentials between the gateway and the
// browser.
//
// [Manager] writes the HttpOnly session cookie (and, during a migration
// window, the legacy-named copy), a JS-readable onboarding status cookie and
// the signed fingerprint salt cookie. Cookies are scoped to the parent
// domain so every subdomain of the application sees the same session.
//
// Reads return [Candidate] values in priority order; bootstrap query
// parameters are redeemed lazily so a valid cookie never burns one.
package cookie
