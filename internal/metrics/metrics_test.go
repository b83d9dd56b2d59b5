package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestHandler(t *testing.T) {
	CacheHitsTotal.WithLabelValues("profile", "dict").Inc()
	CacheInvalidationsTotal.WithLabelValues("system", "descendant").Inc()
	ResolutionErrorsTotal.WithLabelValues("image").Inc()

	req := httptest.NewRequest("GET", "/metrics", nil)
	w := httptest.NewRecorder()
	Handler().ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("StatusCode = %d, want 200", w.Code)
	}
	body := w.Body.String()
	for _, name := range []string{
		"bootforge_cache_hits_total",
		"bootforge_cache_invalidations_total",
		"bootforge_resolution_errors_total",
	} {
		if !strings.Contains(body, name) {
			t.Errorf("metrics output missing %s", name)
		}
	}
}

func TestCounterValue(t *testing.T) {
	before, err := CounterValue(CacheMissesTotal, "menu", "scalar")
	if err != nil {
		t.Fatal(err)
	}
	CacheMissesTotal.WithLabelValues("menu", "scalar").Add(3)

	after, err := CounterValue(CacheMissesTotal, "menu", "scalar")
	if err != nil {
		t.Fatal(err)
	}
	if after-before != 3 {
		t.Errorf("delta = %v, want 3", after-before)
	}
	if got := testutil.ToFloat64(CacheMissesTotal.WithLabelValues("menu", "scalar")); got != after {
		t.Errorf("testutil.ToFloat64 = %v, CounterValue = %v", got, after)
	}
}

func TestCounterValueBadLabels(t *testing.T) {
	if _, err := CounterValue(CacheHitsTotal, "only-one"); err == nil {
		t.Error("expected error for wrong label cardinality")
	}
}
