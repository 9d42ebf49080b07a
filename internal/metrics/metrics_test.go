package metrics

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRegister_Twice(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestObserveProvider(t *testing.T) {
	before := testutil.ToFloat64(ProviderRequests.WithLabelValues("PlaceCall", "error"))
	ObserveProvider("PlaceCall", errors.New("boom"))
	after := testutil.ToFloat64(ProviderRequests.WithLabelValues("PlaceCall", "error"))
	if after-before != 1 {
		t.Fatalf("expected +1, got %v", after-before)
	}
}

func TestHandler_ServesCounters(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("register: %v", err)
	}
	ObserveTransition("ringing", "in-progress")

	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "callcenter_call_transitions_total") {
		t.Fatalf("expected transitions counter in output")
	}
}
