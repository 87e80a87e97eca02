package metrics

import (
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestObservePollAndTransitions(t *testing.T) {
	m := New()
	m.ObservePoll(10*time.Millisecond, nil)
	m.ObservePoll(10*time.Millisecond, errors.New("boom"))
	m.ObservePoll(10*time.Millisecond, nil)

	if got := testutil.ToFloat64(m.PollTicks.WithLabelValues("ok")); got != 2 {
		t.Fatalf("ok ticks = %v", got)
	}
	if got := testutil.ToFloat64(m.PollTicks.WithLabelValues("error")); got != 1 {
		t.Fatalf("error ticks = %v", got)
	}

	m.ObserveTransition("delivered", nil)
	m.ObserveTransition("pending", errors.New("illegal"))
	if got := testutil.ToFloat64(m.OrderTransitions.WithLabelValues("pending", "rejected")); got != 1 {
		t.Fatalf("rejected transitions = %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.ObserveHTTP("GET", "/api/products", 200, 5*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `grocery_http_requests_total{method="GET",route="/api/products",status="200"} 1`) {
		t.Fatalf("metrics output missing request counter:\n%s", body)
	}
}
