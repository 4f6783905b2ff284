// Package onboarding implements the onboarding state machine and the route
// gate that keeps a session on its current onboarding step.
//
// States only move forward one step at a time, re-submitting the current
// step is a no-op, and COMPLETE requires a bound tenant. [Gate.Admit] is a
// pure decision over a session record and a path; it never redirects to a
// target it would itself refuse.
package onboarding
