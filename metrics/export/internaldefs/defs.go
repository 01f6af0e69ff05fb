package internaldefs

import (
	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

// Namespace prefixes every exported series.
const Namespace = "econtact"

type CounterDef struct {
	ID   econtact.MetricID
	Name string
	Help string
}

type HistogramDef struct {
	ID   econtact.MetricID
	Name string
	Help string
}

var CounterDefs = []CounterDef{
	{ID: econtact.MetricLoginSuccess, Name: "econtact_login_success_total", Help: "Successful logins."},
	{ID: econtact.MetricLoginFailure, Name: "econtact_login_failure_total", Help: "Rejected logins."},
	{ID: econtact.MetricLoginRateLimited, Name: "econtact_login_rate_limited_total", Help: "Logins refused by throttling."},
	{ID: econtact.MetricRefreshSuccess, Name: "econtact_refresh_success_total", Help: "Refresh tokens exchanged for a new pair."},
	{ID: econtact.MetricRefreshFailure, Name: "econtact_refresh_failure_total", Help: "Rejected refresh requests."},
	{ID: econtact.MetricRefreshReuseDetected, Name: "econtact_refresh_reuse_detected_total", Help: "Refresh tokens presented after being consumed or revoked."},
	{ID: econtact.MetricLogout, Name: "econtact_logout_total", Help: "Logout requests."},
	{ID: econtact.MetricTokenRevoked, Name: "econtact_token_revoked_total", Help: "Tokens inserted into the denylist."},
	{ID: econtact.MetricRevokedTokenRejected, Name: "econtact_revoked_token_rejected_total", Help: "Requests rejected because the access token was revoked."},
	{ID: econtact.MetricValidateFailure, Name: "econtact_validate_failure_total", Help: "Access tokens that were missing, malformed or expired."},
	{ID: econtact.MetricRevocationFailOpen, Name: "econtact_revocation_fail_open_total", Help: "Denylist lookups allowed through while Redis was unavailable."},
	{ID: econtact.MetricRevocationStoreError, Name: "econtact_revocation_store_error_total", Help: "Denylist operations that failed."},
}

var HistogramDefs = []HistogramDef{
	{ID: econtact.MetricValidateLatency, Name: "econtact_validate_latency_seconds", Help: "Access token validation latency."},
}

// AuditDroppedName is the counter for audit events lost to backpressure.
const AuditDroppedName = "econtact_audit_dropped_total"

// HistogramBounds are the upper bounds, in seconds, of the engine's
// fixed latency buckets.
var HistogramBounds = []string{
	"0.005",
	"0.01",
	"0.025",
	"0.05",
	"0.1",
	"0.25",
	"0.5",
	"+Inf",
}

// HistogramBoundSuffix names each bound in instrument names, where dots
// and plus signs are not allowed.
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

// CumulativeBuckets converts per-bucket counts into the running totals
// Prometheus expects.
func CumulativeBuckets(raw [8]uint64) [8]uint64 {
	var out [8]uint64
	var running uint64
	for i := 0; i < len(raw); i++ {
		running += raw[i]
		out[i] = running
	}
	return out
}
