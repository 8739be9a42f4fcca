package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/mohammed-shakir/catalog-gateway/internal/core/observability"
)

func assertHasMetricLine(t *testing.T, body, metric string, wantLabels ...string) {
	t.Helper()
	for ln := range strings.SplitSeq(body, "\n") {
		if !strings.HasPrefix(ln, metric+"{") {
			continue
		}
		ok := true
		for _, s := range wantLabels {
			if !strings.Contains(ln, s) {
				ok = false
				break
			}
		}
		if ok && (len(ln) > 0 && ln[len(ln)-1] >= '0' && ln[len(ln)-1] <= '9') {
			return
		}
	}
	t.Fatalf("expected a %s line with labels %v; got:\n%s", metric, wantLabels, body)
}

func Test_AppMetrics_CustomRegistry_Smoke(t *testing.T) {
	p := Init(Config{Enabled: true, Build: BuildInfo{Version: "test"}})
	observability.Init(p.Registerer(), true)
	observability.SetScenario("cache")

	start := time.Now()
	observability.ObserveHTTP("POST", "/collections", 200, time.Since(start).Seconds())
	observability.ObserveUpstreamLatency("cmr", 0.010)
	observability.IncCacheHit("")
	observability.IncCacheMiss("")
	observability.ObserveCacheOp("mget", nil, 0.002)
	observability.IncInvalidationEvent("invalid")

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	mustContain := []string{
		`upstream_latency_seconds_bucket`,
		`redis_operation_duration_seconds_count`,
		`cache_results_total{outcome="hit",scenario="cache"} 1`,
		`cache_results_total{outcome="miss",scenario="cache"} 1`,
		`metadata_invalidation_events_total{result="invalid"} 1`,
	}
	for _, s := range mustContain {
		if !strings.Contains(body, s) {
			t.Fatalf("expected metrics to contain %q;\n---\n%s", s, body)
		}
	}

	assertHasMetricLine(t, body, "http_requests_total",
		`route="/collections"`, `status="200"`, `scenario="cache"`)
	assertHasMetricLine(t, body, "app_build_info",
		`version="test"`)
}
