// Package comms models a lossy, latency-afflicted radio network between
// named endpoints. Messages are scheduled with a sampled delivery time and
// handed to their destination in batches as simulation time advances.
package comms

import (
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/picogrid/drone-comms-sim/pkg/logger"
)

var (
	// ErrEndpointExists is returned when registering a name twice
	ErrEndpointExists = errors.New("endpoint already registered")
	// ErrUnknownEndpoint marks a message whose destination is not registered
	ErrUnknownEndpoint = errors.New("unknown endpoint")
	// ErrInvalidConfig wraps transport configuration errors
	ErrInvalidConfig = errors.New("invalid network config")
)

// Config holds the transport parameters
type Config struct {
	BaseLatency     float64 `yaml:"base_latency" json:"base_latency"`         // seconds
	Jitter          float64 `yaml:"jitter" json:"jitter"`                     // seconds, uniform +/-
	DropProbability float64 `yaml:"drop_probability" json:"drop_probability"` // 0..1
	Key             []byte  `yaml:"-" json:"-"`
}

// Validate checks the transport parameters
func (c Config) Validate() error {
	if c.BaseLatency < 0 {
		return fmt.Errorf("%w: base latency must be >= 0, got %g", ErrInvalidConfig, c.BaseLatency)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("%w: jitter must be >= 0, got %g", ErrInvalidConfig, c.Jitter)
	}
	if c.DropProbability < 0 || c.DropProbability > 1 {
		return fmt.Errorf("%w: drop probability must be within [0, 1], got %g", ErrInvalidConfig, c.DropProbability)
	}
	if len(c.Key) == 0 {
		return fmt.Errorf("%w: cipher key must not be empty", ErrInvalidConfig)
	}
	return nil
}

// Option configures a Network
type Option func(*Network)

// WithRand injects the random source used for drop and latency sampling
func WithRand(rng *rand.Rand) Option {
	return func(n *Network) {
		if rng != nil {
			n.rng = rng
		}
	}
}

// WithSeed makes the network deterministic for a given seed
func WithSeed(seed uint64) Option {
	return func(n *Network) {
		n.rng = rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	}
}

// WithEventSink sets the lifecycle log destination
func WithEventSink(sink EventSink) Option {
	return func(n *Network) {
		n.sink = sink
	}
}

// WithRecorder attaches a statistics observer
func WithRecorder(rec Recorder) Option {
	return func(n *Network) {
		n.recorder = rec
	}
}

// WithLogger sets the logger used for console narration
func WithLogger(l logger.Logger) Option {
	return func(n *Network) {
		if l != nil {
			n.log = l
		}
	}
}

// Undeliverable is a due message whose destination could not be resolved
type Undeliverable struct {
	Message Message
	Err     error
}

// StepResult lists what happened during one delivery pass
type StepResult struct {
	Time          float64
	Delivered     []Message
	Undeliverable []Undeliverable
}

// Summary is the end-of-run view of the transport
type Summary struct {
	FinalTime     float64            `json:"final_time"`
	Sent          int                `json:"sent"`
	Delivered     int                `json:"delivered"`
	Dropped       int                `json:"dropped"`
	Undeliverable int                `json:"undeliverable"`
	InFlight      int                `json:"in_flight"`
	TotalLatency  float64            `json:"total_latency"`
	Endpoints     []EndpointSnapshot `json:"endpoints"`
}

// AverageLatency returns the mean delivery latency. ok is false when nothing
// has been delivered.
func (s Summary) AverageLatency() (avg float64, ok bool) {
	if s.Delivered == 0 {
		return 0, false
	}
	return s.TotalLatency / float64(s.Delivered), true
}

// Network is the message transport. All methods are safe for concurrent use.
type Network struct {
	mu sync.Mutex

	cfg      Config
	rng      *rand.Rand
	sink     EventSink
	recorder Recorder
	log      logger.Logger

	endpoints map[string]*Endpoint
	order     []*Endpoint

	inFlight []Message
	dropped  []Message

	nextID        uint64
	sent          int
	delivered     int
	undeliverable int
	totalLatency  float64
}

// NewNetwork creates a transport with no endpoints
func NewNetwork(cfg Config, opts ...Option) (*Network, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	key := make([]byte, len(cfg.Key))
	copy(key, cfg.Key)
	cfg.Key = key

	seed := uint64(time.Now().UnixNano())
	n := &Network{
		cfg:       cfg,
		rng:       rand.New(rand.NewPCG(seed, seed>>1)),
		log:       logger.Default(),
		endpoints: make(map[string]*Endpoint),
		nextID:    1,
	}
	for _, opt := range opts {
		opt(n)
	}
	return n, nil
}

// Config returns the transport parameters
func (n *Network) Config() Config {
	return n.cfg
}

// RegisterEndpoint adds a named endpoint. Names are unique.
func (n *Network) RegisterEndpoint(name string) (*Endpoint, error) {
	n.mu.Lock()
	defer n.mu.Unlock()

	if _, exists := n.endpoints[name]; exists {
		return nil, fmt.Errorf("%w: %s", ErrEndpointExists, name)
	}

	ep := newEndpoint(name)
	n.endpoints[name] = ep
	n.order = append(n.order, ep)
	return ep, nil
}

// Endpoint looks up a registered endpoint by name
func (n *Network) Endpoint(name string) (*Endpoint, bool) {
	n.mu.Lock()
	defer n.mu.Unlock()

	ep, ok := n.endpoints[name]
	return ep, ok
}

// Endpoints returns the registered endpoints in registration order
func (n *Network) Endpoints() []*Endpoint {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]*Endpoint, len(n.order))
	copy(out, n.order)
	return out
}

// Send schedules payload from one endpoint to another at simulation time
// now. The message is either dropped on the spot or placed in flight with a
// delivery time no earlier than now. Neither name needs to be registered.
func (n *Network) Send(from, to, payload string, now float64) Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	msg := Message{
		ID:        n.nextID,
		From:      from,
		To:        to,
		Plaintext: payload,
		Encoded:   Transform(payload, n.cfg.Key),
		SendTime:  now,
	}
	n.nextID++
	n.sent++

	// Drop decision is drawn before the latency sample.
	msg.Dropped = n.rng.Float64() < n.cfg.DropProbability
	msg.DeliverTime = now + n.sampleLatency()

	tag, kind := "SEND", EventSend
	if msg.Dropped {
		tag, kind = "DROP SCHEDULED", EventDropScheduled
		n.dropped = append(n.dropped, msg)
	} else {
		n.inFlight = append(n.inFlight, msg)
	}

	n.log.Narratef(now, tag, "%s -> %s  msgId=%d  payload=<ENCRYPTED len=%d>",
		from, to, msg.ID, len(msg.Encoded))

	n.emit(Event{
		Kind:      kind,
		Time:      now,
		MessageID: msg.ID,
		From:      from,
		To:        to,
		Dropped:   msg.Dropped,
		Payload:   payload,
	})

	if n.recorder != nil {
		n.recorder.MessageSent(msg)
		if msg.Dropped {
			n.recorder.MessageDropped(msg)
		}
		n.recorder.InFlight(len(n.inFlight))
	}

	return msg
}

// sampleLatency returns base + U(-jitter, +jitter), never negative
func (n *Network) sampleLatency() float64 {
	latency := n.cfg.BaseLatency
	if n.cfg.Jitter > 0 {
		latency += (n.rng.Float64()*2 - 1) * n.cfg.Jitter
	}
	return max(latency, 0)
}

// Step delivers every in-flight message due at or before now, in the order
// they were sent. Messages not yet due stay in flight.
func (n *Network) Step(now float64) StepResult {
	n.mu.Lock()
	defer n.mu.Unlock()

	result := StepResult{Time: now}
	if len(n.inFlight) == 0 {
		return result
	}

	remaining := n.inFlight[:0:0]
	for _, msg := range n.inFlight {
		if msg.DeliverTime > now {
			remaining = append(remaining, msg)
			continue
		}

		if err := n.deliver(&msg, now); err != nil {
			result.Undeliverable = append(result.Undeliverable, Undeliverable{Message: msg, Err: err})
			continue
		}
		result.Delivered = append(result.Delivered, msg)
	}
	n.inFlight = remaining

	if n.recorder != nil {
		n.recorder.InFlight(len(n.inFlight))
	}
	return result
}

func (n *Network) deliver(msg *Message, now float64) error {
	dest, ok := n.endpoints[msg.To]
	if !ok {
		n.undeliverable++
		n.log.Narratef(now, "DELIVERY FAILED", "unknown node %s for msgId=%d", msg.To, msg.ID)
		if n.recorder != nil {
			n.recorder.MessageUndeliverable(*msg)
		}
		return fmt.Errorf("message %d to %s: %w", msg.ID, msg.To, ErrUnknownEndpoint)
	}

	latency := msg.Latency()
	n.delivered++
	n.totalLatency += latency
	msg.Delivered = true

	plaintext := Transform(msg.Encoded, n.cfg.Key)
	dest.Receive(msg.ID, msg.From, plaintext, msg.DeliverTime, latency)

	n.log.Narratef(now, "DELIVER", "%s -> %s  msgId=%d  latency=%.3f  payload=%q",
		msg.From, msg.To, msg.ID, latency, plaintext)

	n.emit(Event{
		Kind:      EventDeliver,
		Time:      now,
		MessageID: msg.ID,
		From:      msg.From,
		To:        msg.To,
		Latency:   latency,
		Payload:   plaintext,
	})

	if n.recorder != nil {
		n.recorder.MessageDelivered(*msg, latency)
	}
	return nil
}

func (n *Network) emit(ev Event) {
	if n.sink == nil {
		return
	}
	if err := n.sink.Record(ev); err != nil {
		n.log.WithField("msg_id", ev.MessageID).Warnf("Failed to record %s event: %v", ev.Kind, err)
	}
}

// InFlight returns the number of messages awaiting delivery
func (n *Network) InFlight() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.inFlight)
}

// DroppedMessages returns the messages lost at send time, in send order
func (n *Network) DroppedMessages() []Message {
	n.mu.Lock()
	defer n.mu.Unlock()

	out := make([]Message, len(n.dropped))
	copy(out, n.dropped)
	return out
}

// Summary captures delivery statistics and every endpoint inbox
func (n *Network) Summary(finalTime float64) Summary {
	n.mu.Lock()
	defer n.mu.Unlock()

	s := Summary{
		FinalTime:     finalTime,
		Sent:          n.sent,
		Delivered:     n.delivered,
		Dropped:       len(n.dropped),
		Undeliverable: n.undeliverable,
		InFlight:      len(n.inFlight),
		TotalLatency:  n.totalLatency,
		Endpoints:     make([]EndpointSnapshot, 0, len(n.order)),
	}
	for _, ep := range n.order {
		s.Endpoints = append(s.Endpoints, ep.snapshot())
	}
	return s
}
