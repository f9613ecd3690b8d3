// Package metrics exports transport statistics to Prometheus.
package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/picogrid/drone-comms-sim/pkg/comms"
	"github.com/picogrid/drone-comms-sim/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// CommsCollector bundles the transport metrics and implements
// comms.Recorder so a Network can drive them directly.
type CommsCollector struct {
	gatherer prometheus.Gatherer

	Messages      *prometheus.CounterVec
	Latency       prometheus.Histogram
	InFlightGauge prometheus.Gauge
}

var _ comms.Recorder = (*CommsCollector)(nil)

// Outcome label values of the messages counter
const (
	OutcomeSent          = "sent"
	OutcomeDropped       = "dropped"
	OutcomeDelivered     = "delivered"
	OutcomeUndeliverable = "undeliverable"
)

// NewCommsCollector registers the transport metrics against reg, defaulting
// to the global Prometheus registry when nil.
func NewCommsCollector(reg prometheus.Registerer) (*CommsCollector, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	gatherer := prometheus.DefaultGatherer
	if g, ok := reg.(prometheus.Gatherer); ok {
		gatherer = g
	}

	messages, err := registerCounterVec(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "dronecomms_messages_total",
		Help: "Messages handled by the radio network, labeled by outcome.",
	}, []string{"outcome"}), "dronecomms_messages_total")
	if err != nil {
		return nil, err
	}

	latency, err := registerHistogram(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "dronecomms_delivery_latency_seconds",
		Help:    "Simulated transit time of delivered messages.",
		Buckets: []float64{0.05, 0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 1, 2},
	}), "dronecomms_delivery_latency_seconds")
	if err != nil {
		return nil, err
	}

	inFlight, err := registerGauge(reg, prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "dronecomms_messages_in_flight",
		Help: "Messages scheduled but not yet delivered.",
	}), "dronecomms_messages_in_flight")
	if err != nil {
		return nil, err
	}

	return &CommsCollector{
		gatherer:      gatherer,
		Messages:      messages,
		Latency:       latency,
		InFlightGauge: inFlight,
	}, nil
}

func (c *CommsCollector) MessageSent(comms.Message) {
	c.Messages.WithLabelValues(OutcomeSent).Inc()
}

func (c *CommsCollector) MessageDropped(comms.Message) {
	c.Messages.WithLabelValues(OutcomeDropped).Inc()
}

func (c *CommsCollector) MessageDelivered(_ comms.Message, latency float64) {
	c.Messages.WithLabelValues(OutcomeDelivered).Inc()
	c.Latency.Observe(latency)
}

func (c *CommsCollector) MessageUndeliverable(comms.Message) {
	c.Messages.WithLabelValues(OutcomeUndeliverable).Inc()
}

func (c *CommsCollector) InFlight(n int) {
	c.InFlightGauge.Set(float64(n))
}

// Handler exposes a ready-to-use /metrics handler.
func (c *CommsCollector) Handler() http.Handler {
	gatherer := c.gatherer
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// Serve exposes /metrics on addr until ctx is cancelled
func (c *CommsCollector) Serve(ctx context.Context, addr string) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Networkf("Serving metrics on http://%s/metrics", addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}

func registerCounterVec(reg prometheus.Registerer, vec *prometheus.CounterVec, name string) (*prometheus.CounterVec, error) {
	if err := reg.Register(vec); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(*prometheus.CounterVec); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return vec, nil
}

func registerHistogram(reg prometheus.Registerer, h prometheus.Histogram, name string) (prometheus.Histogram, error) {
	if err := reg.Register(h); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Histogram); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return h, nil
}

func registerGauge(reg prometheus.Registerer, gauge prometheus.Gauge, name string) (prometheus.Gauge, error) {
	if err := reg.Register(gauge); err != nil {
		if are, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := are.ExistingCollector.(prometheus.Gauge); ok {
				return existing, nil
			}
			return nil, fmt.Errorf("collector %s already registered with incompatible type", name)
		}
		return nil, err
	}
	return gauge, nil
}
