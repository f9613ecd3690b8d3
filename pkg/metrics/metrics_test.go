package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorTracksNetwork(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCommsCollector(reg)
	if err != nil {
		t.Fatalf("NewCommsCollector: %v", err)
	}

	n, err := comms.NewNetwork(comms.Config{BaseLatency: 0.5, Key: []byte("k")},
		comms.WithSeed(1), comms.WithRecorder(collector), comms.WithLogger(logger.Discard()))
	if err != nil {
		t.Fatal(err)
	}
	_, _ = n.RegisterEndpoint("HQ")

	n.Send("Drone0", "HQ", "a", 0)
	n.Send("Drone1", "HQ", "b", 0)
	n.Send("Drone2", "Nowhere", "c", 0)

	if got := testutil.ToFloat64(collector.InFlightGauge); got != 3 {
		t.Errorf("Expected 3 in flight, got %v", got)
	}

	n.Step(1)

	if got := testutil.ToFloat64(collector.Messages.WithLabelValues(OutcomeSent)); got != 3 {
		t.Errorf("Expected 3 sent, got %v", got)
	}
	if got := testutil.ToFloat64(collector.Messages.WithLabelValues(OutcomeDelivered)); got != 2 {
		t.Errorf("Expected 2 delivered, got %v", got)
	}
	if got := testutil.ToFloat64(collector.Messages.WithLabelValues(OutcomeUndeliverable)); got != 1 {
		t.Errorf("Expected 1 undeliverable, got %v", got)
	}
	if got := testutil.ToFloat64(collector.InFlightGauge); got != 0 {
		t.Errorf("Expected empty in-flight gauge, got %v", got)
	}
	if got := testutil.CollectAndCount(collector.Latency); got != 1 {
		t.Errorf("Expected one latency histogram, got %d", got)
	}
}

func TestCollectorReusesRegistration(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewCommsCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	second, err := NewCommsCollector(reg)
	if err != nil {
		t.Fatalf("second registration should reuse collectors: %v", err)
	}

	first.MessageDropped(comms.Message{})
	if got := testutil.ToFloat64(second.Messages.WithLabelValues(OutcomeDropped)); got != 1 {
		t.Errorf("Expected shared counter, got %v", got)
	}
}

func TestHandler(t *testing.T) {
	reg := prometheus.NewRegistry()
	collector, err := NewCommsCollector(reg)
	if err != nil {
		t.Fatal(err)
	}
	collector.MessageSent(comms.Message{})

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body := rec.Body.String()
	if !strings.Contains(body, `dronecomms_messages_total{outcome="sent"} 1`) {
		t.Errorf("metrics output missing sent counter:\n%s", body)
	}
}
