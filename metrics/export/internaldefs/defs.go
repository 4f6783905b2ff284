package internaldefs

import (
	gateway "github.com/KuolDimDeng/Dott-Project-sub054"
)

// CounterDef names one engine counter for export.
type CounterDef struct {
	ID   gateway.MetricID
	Name string
	Help string
}

// HistogramDef names one engine histogram for export.
type HistogramDef struct {
	ID   gateway.MetricID
	Name string
	Help string
}

// CounterDefs lists every exported counter in stable order.
var CounterDefs = []CounterDef{
	{ID: gateway.MetricSessionCreated, Name: "sessiongate_session_created_total", Help: "Sessions issued."},
	{ID: gateway.MetricSessionRefreshed, Name: "sessiongate_session_refreshed_total", Help: "Sliding and explicit session refreshes."},
	{ID: gateway.MetricSessionInvalidated, Name: "sessiongate_session_invalidated_total", Help: "Sessions removed from the store."},
	{ID: gateway.MetricSessionResolved, Name: "sessiongate_session_resolved_total", Help: "Requests resolved to a valid session."},
	{ID: gateway.MetricSessionAnonymous, Name: "sessiongate_session_anonymous_total", Help: "Requests treated as carrying no session."},
	{ID: gateway.MetricSessionRevoked, Name: "sessiongate_session_revoked_total", Help: "Valid tokens whose session was gone from the store."},
	{ID: gateway.MetricDecodeFailure, Name: "sessiongate_decode_failure_total", Help: "Session tokens rejected by the codec."},
	{ID: gateway.MetricLegacyReissued, Name: "sessiongate_legacy_reissued_total", Help: "Legacy sessions re-issued in the current scheme."},
	{ID: gateway.MetricForcedSync, Name: "sessiongate_forced_sync_total", Help: "Session cookies overwritten from the store copy."},
	{ID: gateway.MetricFingerprintMismatch, Name: "sessiongate_fingerprint_mismatch_total", Help: "Suspected session hijacks."},
	{ID: gateway.MetricFingerprintBackfill, Name: "sessiongate_fingerprint_backfill_total", Help: "Fingerprints bound to sessions issued without one."},
	{ID: gateway.MetricFingerprintFailOpen, Name: "sessiongate_fingerprint_fail_open_total", Help: "Fingerprint checks that could not verify and failed open."},
	{ID: gateway.MetricBootstrapAccepted, Name: "sessiongate_bootstrap_accepted_total", Help: "Bootstrap parameters redeemed."},
	{ID: gateway.MetricBootstrapRejected, Name: "sessiongate_bootstrap_rejected_total", Help: "Invalid or replayed bootstrap parameters."},
	{ID: gateway.MetricOnboardingAdvanced, Name: "sessiongate_onboarding_advanced_total", Help: "Accepted onboarding transitions."},
	{ID: gateway.MetricOnboardingRejected, Name: "sessiongate_onboarding_rejected_total", Help: "Rejected onboarding transitions."},
	{ID: gateway.MetricOnboardingRedirect, Name: "sessiongate_onboarding_redirect_total", Help: "Requests redirected by the onboarding gate."},
	{ID: gateway.MetricOnboardingBypass, Name: "sessiongate_onboarding_bypass_total", Help: "Redirects that denied skipping an onboarding step."},
	{ID: gateway.MetricTenantRequired, Name: "sessiongate_tenant_required_total", Help: "Sessions resolved without a bound tenant."},
	{ID: gateway.MetricMembershipMissing, Name: "sessiongate_membership_missing_total", Help: "Sessions naming a tenant without a membership row."},
	{ID: gateway.MetricStoreUnavailable, Name: "sessiongate_store_unavailable_total", Help: "Session store failures during resolution."},
}

// HistogramDefs lists every exported histogram.
var HistogramDefs = []HistogramDef{
	{ID: gateway.MetricResolveLatency, Name: "sessiongate_resolve_latency_seconds", Help: "GetSessionContext latency histogram."},
}

// AuditDroppedName is the counter for events the audit dispatcher dropped.
const (
	AuditDroppedName = "sessiongate_audit_dropped_total"
	AuditDroppedHelp = "Dropped audit events due to dispatcher backpressure."
)

// HistogramBounds are the upper bounds of the engine histogram buckets, in
// seconds.
var HistogramBounds = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5}

// HistogramBoundSuffix names each bucket, +Inf included, for exporters
// that flatten buckets into separate instruments.
var HistogramBoundSuffix = []string{
	"0_005",
	"0_01",
	"0_025",
	"0_05",
	"0_1",
	"0_25",
	"0_5",
	"inf",
}

// NormalizeBuckets pads or truncates raw to the fixed bucket count.
func NormalizeBuckets(raw []uint64) [8]uint64 {
	var out [8]uint64
	for i := 0; i < len(out) && i < len(raw); i++ {
		out[i] = raw[i]
	}
	return out
}

// CumulativeBuckets turns per-bucket counts into running totals.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
