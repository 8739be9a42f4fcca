package executor

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/mohammed-shakir/catalog-gateway/internal/core/httpclient"
)

func TestWrite_StripsHopByHop_AndForwardsVary(t *testing.T) {
	up := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Connection", "keep-alive, X-Internal")
		w.Header().Set("X-Internal", "1")
		w.Header().Set("Vary", "Accept")
		w.Header().Set("Content-Type", "application/vnd.nasa.cmr.umm_results+json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"items":[]}`))
	}))
	defer up.Close()

	exec := New(nil, httpclient.NewOutbound(5*time.Second), nil)
	resp := exec.ExecuteAnonymous(context.Background(), up.URL)

	rr := httptest.NewRecorder()
	Write(rr, resp)

	res := rr.Result()
	defer func() { _ = res.Body.Close() }()
	if res.StatusCode != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.StatusCode)
	}
	if res.Header.Get("Connection") != "" || res.Header.Get("X-Internal") != "" {
		t.Fatalf("expected hop-by-hop headers to be stripped: %v", res.Header)
	}
	if res.Header.Get("Vary") != "Accept" {
		t.Fatalf("expected Vary: Accept to be forwarded")
	}
	if res.Header.Get("Content-Type") != "application/vnd.nasa.cmr.umm_results+json" {
		t.Fatalf("expected Content-Type to be forwarded, got %q", res.Header.Get("Content-Type"))
	}
	if rr.Body.String() != `{"items":[]}` {
		t.Fatalf("body=%q", rr.Body.String())
	}
}

func TestWrite_DefaultsContentTypeOnErrors(t *testing.T) {
	rr := httptest.NewRecorder()
	Write(rr, ErrorBody(http.StatusBadRequest, "Invalid request", "body is not JSON"))
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr.Header().Get("Content-Type") != "application/json" {
		t.Fatalf("content-type=%q", rr.Header().Get("Content-Type"))
	}
}
