package comms

// Message is one transmission through the network. Encoded is what travels
// on the wire; Plaintext is kept for the lifecycle log only.
type Message struct {
	ID          uint64  `json:"id"`
	From        string  `json:"from"`
	To          string  `json:"to"`
	Plaintext   string  `json:"plaintext"`
	Encoded     string  `json:"-"`
	SendTime    float64 `json:"send_time"`
	DeliverTime float64 `json:"deliver_time"`
	Delivered   bool    `json:"delivered"`
	Dropped     bool    `json:"dropped"`
}

// Latency is the scheduled transit time of the message
func (m Message) Latency() float64 {
	return m.DeliverTime - m.SendTime
}
