package msg

import "github.com/google/uuid"

// Topic partitions a publisher's broadcast channels.
type Topic int

const (
	// Status carries measurement and result payloads.
	Status Topic = iota
	// Config carries static configuration payloads.
	Config
	// Control carries setpoint payloads.
	Control
)

// Publisher is the interface for objects that broadcast their events.
type Publisher interface {
	Subscribe(uuid.UUID, Topic) (<-chan Msg, error)
	Unsubscribe(uuid.UUID)
}

// Msg is the envelope passed between system components.
type Msg struct {
	sender  uuid.UUID
	topic   Topic
	payload interface{}
}

// New is the Msg factory function.
func New(sender uuid.UUID, topic Topic, payload interface{}) Msg {
	return Msg{sender, topic, payload}
}

// PID returns the sender's PID.
func (m Msg) PID() uuid.UUID {
	return m.sender
}

// Topic returns the channel the message was broadcast on.
func (m Msg) Topic() Topic {
	return m.topic
}

// Payload returns the message data.
func (m Msg) Payload() interface{} {
	return m.payload
}
