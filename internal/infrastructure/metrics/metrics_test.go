package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectors_NilSafe(t *testing.T) {
	var c *Collectors

	// None of these may panic.
	c.WriteSubmitted(true)
	c.BackpressureWait()
	c.FlushPublished(3)
	c.FlushFailed()
	c.SetPendingDevices(2)
	c.MessageRouted("device_event")
	c.StateChanged("lights")
	c.SetDevices("lights", 4)
	c.SetConnectionState("connected", []string{"connected", "disconnected"})
	c.ConnectFailed("4")
}

func TestCollectors_CommandBuffer(t *testing.T) {
	c := New(prometheus.NewRegistry())

	c.WriteSubmitted(false)
	c.WriteSubmitted(true)
	c.WriteSubmitted(true)
	c.FlushPublished(2)
	c.FlushFailed()
	c.BackpressureWait()

	if got := testutil.ToFloat64(c.writesSubmitted); got != 3 {
		t.Errorf("writes_submitted_total = %v, want 3", got)
	}
	if got := testutil.ToFloat64(c.writesCoalesced); got != 2 {
		t.Errorf("writes_coalesced_total = %v, want 2", got)
	}
	if got := testutil.ToFloat64(c.flushes); got != 1 {
		t.Errorf("flushes_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.flushErrors); got != 1 {
		t.Errorf("flush_errors_total = %v, want 1", got)
	}
	if got := testutil.ToFloat64(c.backpressureWaits); got != 1 {
		t.Errorf("backpressure_waits_total = %v, want 1", got)
	}
}

func TestCollectors_ConnectionState(t *testing.T) {
	c := New(nil)
	all := []string{"disconnected", "connecting", "connected", "failed"}

	c.SetConnectionState("connecting", all)
	c.SetConnectionState("connected", all)

	for _, s := range all {
		want := 0.0
		if s == "connected" {
			want = 1
		}
		if got := testutil.ToFloat64(c.connectionState.WithLabelValues(s)); got != want {
			t.Errorf("state{%s} = %v, want %v", s, got, want)
		}
	}
}

func TestHandler_ExposesRegisteredCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := New(reg)
	c.MessageRouted("device_list")

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if body := rec.Body.String(); !strings.Contains(body, `nhc2_router_messages_total{kind="device_list"} 1`) {
		t.Errorf("metrics output missing router counter:\n%s", body)
	}
}

func TestRouter_Healthz(t *testing.T) {
	reg := prometheus.NewRegistry()
	ready := false
	h := Router(reg, func() bool { return ready })

	get := func(path string) int {
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
		return rec.Code
	}

	if code := get("/healthz"); code != http.StatusServiceUnavailable {
		t.Errorf("/healthz before ready = %d, want 503", code)
	}
	ready = true
	if code := get("/healthz"); code != http.StatusOK {
		t.Errorf("/healthz when ready = %d, want 200", code)
	}
	if code := get("/metrics"); code != http.StatusOK {
		t.Errorf("/metrics = %d, want 200", code)
	}
	if code := get("/nope"); code != http.StatusNotFound {
		t.Errorf("/nope = %d, want 404", code)
	}
}
