package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecordRebuild(t *testing.T) {
	before := testutil.ToFloat64(treeRebuildsTotal.WithLabelValues("manual", "success"))
	RecordRebuild("manual", 10*time.Millisecond, true)
	after := testutil.ToFloat64(treeRebuildsTotal.WithLabelValues("manual", "success"))
	if after != before+1 {
		t.Errorf("rebuild counter = %v, want %v", after, before+1)
	}
}

func TestRecordSidecar(t *testing.T) {
	before := testutil.ToFloat64(sidecarTasksTotal)
	RecordSidecar(4, true)
	RecordSidecar(9, false)
	if got := testutil.ToFloat64(sidecarTasksTotal); got != before+4 {
		t.Errorf("sidecar tasks = %v, want %v", got, before+4)
	}
}

func TestMiddlewareUsesLabel(t *testing.T) {
	h := Middleware(func(*http.Request) string { return "/api/v1/tree" })(
		http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		}))

	before := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/tree", "404"))
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/tree?x=1", nil))
	after := testutil.ToFloat64(httpRequestsTotal.WithLabelValues("GET", "/api/v1/tree", "404"))
	if after != before+1 {
		t.Errorf("http counter = %v, want %v", after, before+1)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	SetTreeSize(7)
	rec := httptest.NewRecorder()
	Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if !strings.Contains(rec.Body.String(), "tide_tree_size 7") {
		t.Error("expected tide_tree_size in metrics output")
	}
}
