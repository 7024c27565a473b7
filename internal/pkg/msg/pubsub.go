package msg

import (
	"sync"

	"github.com/google/uuid"
)

// PubSub distributes messages to topic subscribers. Sends are non-blocking;
// a subscriber that falls behind drops messages rather than stalling the
// publisher.
type PubSub struct {
	mux         *sync.Mutex
	pid         uuid.UUID
	subscribers map[Topic]map[uuid.UUID]chan<- Msg
}

// NewPublisher returns a PubSub broadcasting on behalf of pid.
func NewPublisher(pid uuid.UUID) *PubSub {
	subscribers := make(map[Topic]map[uuid.UUID]chan<- Msg)
	return &PubSub{&sync.Mutex{}, pid, subscribers}
}

// PID returns the publisher's PID.
func (p *PubSub) PID() uuid.UUID {
	return p.pid
}

// Subscribe returns a read only channel carrying messages broadcast on topic.
func (p *PubSub) Subscribe(pid uuid.UUID, topic Topic) (<-chan Msg, error) {
	p.mux.Lock()
	defer p.mux.Unlock()
	ch := make(chan Msg, 50)
	if _, ok := p.subscribers[topic]; !ok {
		p.subscribers[topic] = make(map[uuid.UUID]chan<- Msg)
	}
	p.subscribers[topic][pid] = ch
	return ch, nil
}

// Unsubscribe closes and drops all channels held for pid.
func (p *PubSub) Unsubscribe(pid uuid.UUID) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, subs := range p.subscribers {
		if ch, ok := subs[pid]; ok {
			close(ch)
			delete(subs, pid)
		}
	}
}

// Publish broadcasts payload to all subscribers of topic.
func (p *PubSub) Publish(topic Topic, payload interface{}) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.subscribers[topic] {
		select {
		case ch <- New(p.pid, topic, payload):
		default:
		}
	}
}

// Forward re-broadcasts a message from another publisher, preserving the
// original sender PID.
func (p *PubSub) Forward(m Msg) {
	p.mux.Lock()
	defer p.mux.Unlock()
	for _, ch := range p.subscribers[m.Topic()] {
		select {
		case ch <- m:
		default:
		}
	}
}

// Stop closes all subscriber channels.
func (p *PubSub) Stop() {
	p.mux.Lock()
	defer p.mux.Unlock()
	for topic, subs := range p.subscribers {
		for pid, ch := range subs {
			close(ch)
			delete(subs, pid)
		}
		delete(p.subscribers, topic)
	}
}
