package prometheus

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	econtact "github.com/ThanhNhiet/E-Contact-Book-CoolKing-sub001"
)

type fakeSource struct {
	snapshot econtact.MetricsSnapshot
	dropped  uint64
}

func (f fakeSource) MetricsSnapshot() econtact.MetricsSnapshot { return f.snapshot }
func (f fakeSource) AuditDropped() uint64                      { return f.dropped }

func TestRenderEmptyWhenMetricsDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: econtact.MetricsSnapshot{
			Counters:   map[econtact.MetricID]uint64{},
			Histograms: map[econtact.MetricID][]uint64{},
		},
	})

	if got := exp.Render(); got != "" {
		t.Fatalf("expected empty output for disabled metrics, got:\n%s", got)
	}
}

func TestRenderIncludesCountersAndHistogram(t *testing.T) {
	exp := New(fakeSource{
		snapshot: econtact.MetricsSnapshot{
			Counters: map[econtact.MetricID]uint64{
				econtact.MetricRevokedTokenRejected: 7,
				econtact.MetricRevocationFailOpen:   1,
			},
			Histograms: map[econtact.MetricID][]uint64{
				econtact.MetricValidateLatency: {1, 2, 3, 4, 5, 6, 7, 8},
			},
		},
		dropped: 2,
	})

	out := exp.Render()
	for _, want := range []string{
		"econtact_revoked_token_rejected_total 7",
		"econtact_revocation_fail_open_total 1",
		"econtact_login_success_total 0",
		"# TYPE econtact_validate_latency_seconds histogram",
		`econtact_validate_latency_seconds_bucket{le="0.005"} 1`,
		`econtact_validate_latency_seconds_bucket{le="+Inf"} 36`,
		"econtact_validate_latency_seconds_count 36",
		"econtact_audit_dropped_total 2",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("expected %q in output, got:\n%s", want, out)
		}
	}
}

func TestRenderSkipsHistogramWhenLatencyDisabled(t *testing.T) {
	exp := New(fakeSource{
		snapshot: econtact.MetricsSnapshot{
			Counters:   map[econtact.MetricID]uint64{econtact.MetricLogout: 3},
			Histograms: map[econtact.MetricID][]uint64{},
		},
	})
	out := exp.Render()
	if strings.Contains(out, "validate_latency") {
		t.Fatalf("unexpected histogram in output:\n%s", out)
	}
	if !strings.Contains(out, "econtact_logout_total 3") {
		t.Fatalf("expected logout counter, got:\n%s", out)
	}
}

func TestHandlerWritesPrometheusContentType(t *testing.T) {
	exp := New(fakeSource{
		snapshot: econtact.MetricsSnapshot{
			Counters:   map[econtact.MetricID]uint64{econtact.MetricLoginSuccess: 1},
			Histograms: map[econtact.MetricID][]uint64{},
		},
	})

	rec := httptest.NewRecorder()
	exp.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if got := rec.Header().Get("Content-Type"); !strings.Contains(got, "text/plain") {
		t.Fatalf("expected prometheus content type, got %q", got)
	}
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
