package agent

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/barunaniket/concierge/pkg/observability"
)

// Mailbox is an unbounded FIFO queue owned by one agent. Producers
// append under the lock; the single consumer pops, blocking on the
// notify channel when empty.
type Mailbox struct {
	mu     sync.Mutex
	queue  []*Message
	notify chan struct{}
}

func newMailbox() *Mailbox {
	return &Mailbox{notify: make(chan struct{}, 1)}
}

func (mb *Mailbox) push(m *Message) {
	mb.mu.Lock()
	mb.queue = append(mb.queue, m)
	mb.mu.Unlock()
	select {
	case mb.notify <- struct{}{}:
	default:
	}
}

// Pop removes and returns the oldest message, waiting up to wait for one
// to arrive. It returns false if the mailbox stayed empty or ctx ended.
func (mb *Mailbox) Pop(ctx context.Context, wait time.Duration) (*Message, bool) {
	deadline := time.Now().Add(wait)
	for {
		mb.mu.Lock()
		if len(mb.queue) > 0 {
			m := mb.queue[0]
			mb.queue = mb.queue[1:]
			mb.mu.Unlock()
			return m, true
		}
		mb.mu.Unlock()

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		timer := time.NewTimer(remaining)
		select {
		case <-mb.notify:
			timer.Stop()
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			timer.Stop()
			return nil, false
		}
	}
}

// Len reports the number of queued messages.
func (mb *Mailbox) Len() int {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	return len(mb.queue)
}

func (mb *Mailbox) drain() []*Message {
	mb.mu.Lock()
	defer mb.mu.Unlock()
	dropped := mb.queue
	mb.queue = nil
	return dropped
}

// Bus routes messages between named mailboxes and fans out topic
// publications. All state lives behind one mutex; delivery itself is a
// cheap append so the lock is never held across blocking work.
type Bus struct {
	mu        sync.Mutex
	mailboxes map[string]*Mailbox
	topics    map[string][]string
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{
		mailboxes: make(map[string]*Mailbox),
		topics:    make(map[string][]string),
	}
}

// Register creates a mailbox for name, or returns the existing one.
// Registration is idempotent so reconnecting agents keep their queue.
func (b *Bus) Register(name string) *Mailbox {
	b.mu.Lock()
	defer b.mu.Unlock()
	if mb, ok := b.mailboxes[name]; ok {
		return mb
	}
	mb := newMailbox()
	b.mailboxes[name] = mb
	return mb
}

// Unregister removes name's mailbox and all its topic subscriptions.
// Unread mail is dropped; the count is logged.
func (b *Bus) Unregister(name string) {
	b.mu.Lock()
	mb, ok := b.mailboxes[name]
	delete(b.mailboxes, name)
	for topic, subs := range b.topics {
		b.topics[topic] = removeString(subs, name)
	}
	b.mu.Unlock()
	if ok {
		if dropped := mb.drain(); len(dropped) > 0 {
			log.Printf("[Bus] unregistered %s with %d unread messages dropped", name, len(dropped))
		}
	}
}

// Send delivers a message to its recipient's mailbox.
func (b *Bus) Send(msg *Message) error {
	b.mu.Lock()
	mb, ok := b.mailboxes[msg.Recipient]
	b.mu.Unlock()
	if !ok {
		log.Printf("[Bus] no mailbox for %q, message from %s dropped", msg.Recipient, msg.Sender)
		return ErrUnknownRecipient
	}
	mb.push(msg)
	observability.RecordBusMessage(msg.Recipient, msg.Kind)
	return nil
}

// Broadcast delivers a copy of msg to every mailbox except the sender's.
func (b *Bus) Broadcast(msg *Message) int {
	b.mu.Lock()
	targets := make(map[string]*Mailbox, len(b.mailboxes))
	for name, mb := range b.mailboxes {
		if name != msg.Sender {
			targets[name] = mb
		}
	}
	b.mu.Unlock()
	for name, mb := range targets {
		mb.push(msg.clone(name))
		observability.RecordBusMessage(name, msg.Kind)
	}
	return len(targets)
}

// Subscribe adds name to a topic. Subscribing twice is a no-op.
func (b *Bus) Subscribe(topic, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	for _, s := range b.topics[topic] {
		if s == name {
			return
		}
	}
	b.topics[topic] = append(b.topics[topic], name)
}

// Unsubscribe removes name from a topic.
func (b *Bus) Unsubscribe(topic, name string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.topics[topic] = removeString(b.topics[topic], name)
}

// Publish fans msg out to every subscriber of topic that still has a
// mailbox, returning the number delivered. Publishing to a topic with
// no subscribers is a logged no-op.
func (b *Bus) Publish(topic string, msg *Message) int {
	b.mu.Lock()
	var targets []*Mailbox
	var names []string
	for _, name := range b.topics[topic] {
		if mb, ok := b.mailboxes[name]; ok {
			targets = append(targets, mb)
			names = append(names, name)
		}
	}
	b.mu.Unlock()
	if len(targets) == 0 {
		log.Printf("[Bus] publish to topic %q with no subscribers", topic)
		return 0
	}
	for i, mb := range targets {
		mb.push(msg.clone(names[i]))
		observability.RecordBusMessage(names[i], msg.Kind)
	}
	return len(targets)
}

// QueueDepths snapshots the queued message count per registered agent.
func (b *Bus) QueueDepths() map[string]int {
	b.mu.Lock()
	defer b.mu.Unlock()
	depths := make(map[string]int, len(b.mailboxes))
	for name, mb := range b.mailboxes {
		depths[name] = mb.Len()
	}
	return depths
}

func removeString(xs []string, x string) []string {
	out := xs[:0]
	for _, s := range xs {
		if s != x {
			out = append(out, s)
		}
	}
	return out
}
