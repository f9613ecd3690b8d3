package comms

import "sync"

// ReceivedRecord is one entry of an endpoint inbox
type ReceivedRecord struct {
	MessageID   uint64  `json:"message_id"`
	From        string  `json:"from"`
	Payload     string  `json:"payload"`
	ArrivalTime float64 `json:"arrival_time"`
	Latency     float64 `json:"latency"`
}

// Endpoint is a named participant on the network. Its inbox only grows and
// keeps arrival order; duplicates are not filtered.
type Endpoint struct {
	name  string
	mu    sync.RWMutex
	inbox []ReceivedRecord
}

func newEndpoint(name string) *Endpoint {
	return &Endpoint{name: name}
}

// Name returns the endpoint name
func (e *Endpoint) Name() string {
	return e.name
}

// Receive appends a decoded message to the inbox
func (e *Endpoint) Receive(id uint64, from, payload string, arrival, latency float64) {
	e.mu.Lock()
	defer e.mu.Unlock()

	e.inbox = append(e.inbox, ReceivedRecord{
		MessageID:   id,
		From:        from,
		Payload:     payload,
		ArrivalTime: arrival,
		Latency:     latency,
	})
}

// Inbox returns a copy of the received records in arrival order
func (e *Endpoint) Inbox() []ReceivedRecord {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]ReceivedRecord, len(e.inbox))
	copy(out, e.inbox)
	return out
}

// Len returns the number of received records
func (e *Endpoint) Len() int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.inbox)
}

// EndpointSnapshot is an endpoint's inbox captured for a summary
type EndpointSnapshot struct {
	Name  string           `json:"name"`
	Inbox []ReceivedRecord `json:"inbox"`
}

func (e *Endpoint) snapshot() EndpointSnapshot {
	return EndpointSnapshot{Name: e.name, Inbox: e.Inbox()}
}
