package observability_test

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nowplaying/internal/adapters/observability"
	"nowplaying/internal/domain"
)

func TestMetricsRegistryAndHandler(t *testing.T) {
	reg := observability.InitRegistry()

	// record samples so vectors are exported
	observability.ObserveHTTP("/test", "GET", 200, 12*time.Millisecond)
	observability.ObserveLoadMore("busy")

	mh := observability.MetricsHandler(reg)
	req := httptest.NewRequest("GET", "/metrics", nil)
	rr := httptest.NewRecorder()
	mh.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("metrics status: %d", rr.Code)
	}
	body, _ := io.ReadAll(rr.Body)
	out := string(body)
	for _, name := range []string{"nowplaying_http_requests_total", "nowplaying_load_more_total"} {
		if !strings.Contains(out, name) {
			t.Fatalf("expected %s in output", name)
		}
	}
}

type statusErr int

func (s statusErr) Error() string   { return fmt.Sprintf("status %d", int(s)) }
func (s statusErr) HTTPStatus() int { return int(s) }

func TestLabelErr(t *testing.T) {
	cases := map[string]error{
		"none":      nil,
		"empty":     fmt.Errorf("search: %w", domain.ErrEmptyResult),
		"status":    fmt.Errorf("wrapped: %w", statusErr(502)),
		"transport": errors.New("dial tcp: connection refused"),
	}
	for want, err := range cases {
		if got := observability.LabelErr(err); got != want {
			t.Fatalf("LabelErr(%v) = %q, want %q", err, got, want)
		}
	}
}
