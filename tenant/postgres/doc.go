// Package postgres provides a PostgreSQL-backed tenant.MembershipLoader and
// helpers for running tenant-scoped transactions under row level security.
package postgres
