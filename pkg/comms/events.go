package comms

// EventKind names a message lifecycle event
type EventKind string

const (
	EventSend          EventKind = "send"
	EventDropScheduled EventKind = "drop_scheduled"
	EventDeliver       EventKind = "deliver"
)

// Event is one row of the message lifecycle log. Latency is zero for send
// and drop events; Payload is always the plaintext.
type Event struct {
	Kind      EventKind
	Time      float64
	MessageID uint64
	From      string
	To        string
	Latency   float64
	Dropped   bool
	Payload   string
}

// EventSink receives lifecycle events in the order they happen
type EventSink interface {
	Record(ev Event) error
}

// Recorder observes transport statistics as they change
type Recorder interface {
	MessageSent(msg Message)
	MessageDropped(msg Message)
	MessageDelivered(msg Message, latency float64)
	MessageUndeliverable(msg Message)
	InFlight(n int)
}

// EventSinkFunc adapts a function to EventSink
type EventSinkFunc func(ev Event) error

func (f EventSinkFunc) Record(ev Event) error { return f(ev) }

// MultiSink fans events out to several sinks. The first error is returned
// after every sink has seen the event.
func MultiSink(sinks ...EventSink) EventSink {
	return EventSinkFunc(func(ev Event) error {
		var first error
		for _, s := range sinks {
			if s == nil {
				continue
			}
			if err := s.Record(ev); err != nil && first == nil {
				first = err
			}
		}
		return first
	})
}
