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

func TestRecorderCounters(t *testing.T) {
	r := New()

	r.ObserveFetch(true)
	r.ObserveFetch(false)
	r.ObserveFetch(true)
	if got := testutil.ToFloat64(r.fetches.WithLabelValues("ok")); got != 2 {
		t.Fatalf("expected 2 ok fetches, got %f", got)
	}

	r.ObserveTransform(true, 744)
	r.ObserveTransform(false, 0)
	if got := testutil.ToFloat64(r.rowsWritten); got != 744 {
		t.Fatalf("expected 744 rows, got %f", got)
	}
	if got := testutil.ToFloat64(r.transforms.WithLabelValues("error")); got != 1 {
		t.Fatalf("expected 1 failed transform, got %f", got)
	}

	r.ObserveValidation(false, 3)
	r.ObserveValidation(true, 0)
	if got := testutil.ToFloat64(r.validations.WithLabelValues("invalid")); got != 1 {
		t.Fatalf("expected 1 invalid file, got %f", got)
	}
	if got := testutil.ToFloat64(r.defects); got != 3 {
		t.Fatalf("expected 3 defects, got %f", got)
	}

	r.ObserveRun(2*time.Second, errors.New("boom"))
	if got := testutil.ToFloat64(r.lastRunSuccess); got != 0 {
		t.Fatalf("expected failed last run, got %f", got)
	}
	r.ObserveRun(time.Second, nil)
	if got := testutil.ToFloat64(r.lastRunSuccess); got != 1 {
		t.Fatalf("expected successful last run, got %f", got)
	}
	if samples := testutil.CollectAndCount(r.runDuration); samples != 1 {
		t.Fatalf("expected one histogram series, got %d", samples)
	}
}

func TestNilRecorder(t *testing.T) {
	var r *Recorder
	r.ObserveFetch(true)
	r.ObserveTransform(true, 1)
	r.ObserveValidation(false, 1)
	r.ObserveRun(time.Second, nil)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	if rec.Code != 200 {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	r := New()
	r.ObserveFetch(true)

	rec := httptest.NewRecorder()
	r.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), `consumption_fetch_total{result="ok"} 1`) {
		t.Fatalf("fetch counter missing from output:\n%s", body)
	}
}
