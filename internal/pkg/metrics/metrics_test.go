package metrics

import (
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

func find(t *testing.T, reg *prometheus.Registry, name string, labels map[string]string) *dto.Metric {
	t.Helper()
	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("failed to gather metrics: %v", err)
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	next:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue next
				}
			}
			return m
		}
	}
	t.Fatalf("metric %s%v not found", name, labels)
	return nil
}

func TestRecordEvent(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordEvent("joinChat", "ok")
	c.RecordEvent("joinChat", "ok")
	c.RecordEvent("unknown", "ignored")

	if v := find(t, reg, "chatr_events_total", map[string]string{"event": "joinChat", "status": "ok"}).GetCounter().GetValue(); v != 2 {
		t.Errorf("joinChat/ok = %v, want 2", v)
	}
	if v := find(t, reg, "chatr_events_total", map[string]string{"event": "unknown"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("unknown = %v, want 1", v)
	}
}

func TestRecordNotification(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.RecordNotification("sendToUser", nil)
	c.RecordNotification("sendToUser", errors.New("gone"))

	if v := find(t, reg, "chatr_notifications_total", map[string]string{"kind": "sendToUser", "result": "failed"}).GetCounter().GetValue(); v != 1 {
		t.Errorf("failed = %v, want 1", v)
	}
}

func TestConnectionsGauge(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)

	c.ConnectionOpened()
	c.ConnectionOpened()
	c.ConnectionClosed()

	if v := find(t, reg, "chatr_ws_connections", nil).GetGauge().GetValue(); v != 1 {
		t.Errorf("connections = %v, want 1", v)
	}
}

func TestHandler_ServesMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := NewCollector(reg)
	c.RecordSweep(3, 1)

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()
	Handler(reg).ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	body, _ := io.ReadAll(w.Body)
	if !strings.Contains(string(body), `chatr_swept_records_total{partition="users"} 3`) {
		t.Errorf("body missing sweep counter:\n%s", body)
	}
}
