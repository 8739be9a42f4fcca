package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func scrape(t *testing.T, p *Provider) (int, string) {
	t.Helper()
	rr := httptest.NewRecorder()
	p.Handler().ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	return rr.Code, rr.Body.String()
}

func TestProvider_ServesRuntimeAndBuildInfo(t *testing.T) {
	p := Init(Config{Enabled: true, Build: BuildInfo{Version: "1.2.3", Revision: "abc", Branch: "main", BuildDate: "today"}})

	code, body := scrape(t, p)
	if code != http.StatusOK {
		t.Fatalf("status=%d", code)
	}
	if !strings.Contains(body, "go_goroutines") {
		t.Fatal("missing go runtime collector")
	}
	if !strings.Contains(body, `app_build_info{branch="main",build_date="today",revision="abc",version="1.2.3"} 1`) {
		t.Fatalf("build info missing:\n%s", body)
	}
}

func TestProvider_RegisterToleratesDuplicates(t *testing.T) {
	p := Init(Config{Enabled: true})
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "gateway_test_total", Help: "test"})
	p.Register(c)
	p.Register(c)
	c.Inc()

	if n, err := testutil.GatherAndCount(p.Gatherer(), "gateway_test_total"); err != nil || n != 1 {
		t.Fatalf("count=%d err=%v", n, err)
	}
}

func TestProvider_DisabledHandlerIs404(t *testing.T) {
	p := Init(Config{})
	if code, _ := scrape(t, p); code != http.StatusNotFound {
		t.Fatalf("status=%d", code)
	}
}
