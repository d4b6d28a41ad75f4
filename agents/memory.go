package agents

import (
	"context"
	"fmt"
	"log"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryCalendar is an in-memory CalendarBackend for tests and the
// offline demo mode.
type MemoryCalendar struct {
	mu     sync.Mutex
	events map[string]Event
}

// NewMemoryCalendar creates an empty calendar.
func NewMemoryCalendar() *MemoryCalendar {
	return &MemoryCalendar{events: make(map[string]Event)}
}

// Seed inserts an event with a fixed id, for test setup.
func (c *MemoryCalendar) Seed(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ev.ID == "" {
		ev.ID = uuid.New().String()
	}
	c.events[ev.ID] = ev
}

func (c *MemoryCalendar) CreateEvent(_ context.Context, ev Event) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev.ID = uuid.New().String()
	c.events[ev.ID] = ev
	return ev, nil
}

func (c *MemoryCalendar) FindEvents(_ context.Context, query string, max int) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	query = strings.ToLower(query)
	var out []Event
	for _, ev := range c.events {
		if query == "" || strings.Contains(strings.ToLower(ev.Title), query) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	if max > 0 && len(out) > max {
		out = out[:max]
	}
	return out, nil
}

func (c *MemoryCalendar) EventsBetween(_ context.Context, from, to time.Time) ([]Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Event
	for _, ev := range c.events {
		if ev.Start.Before(to) && ev.End.After(from) {
			out = append(out, ev)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out, nil
}

func (c *MemoryCalendar) MoveEvent(_ context.Context, id string, start, end time.Time) (Event, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	ev, ok := c.events[id]
	if !ok {
		return Event{}, fmt.Errorf("event %s not found", id)
	}
	ev.Start, ev.End = start, end
	c.events[id] = ev
	return ev, nil
}

func (c *MemoryCalendar) DeleteEvent(_ context.Context, id string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.events[id]; !ok {
		return fmt.Errorf("event %s not found", id)
	}
	delete(c.events, id)
	return nil
}

// SentMail is one message captured by LogMailer.
type SentMail struct {
	To      string
	Subject string
	Body    string
}

// LogMailer is a MailBackend that logs instead of sending. Tests read
// back what was "sent"; the demo mode uses it to show what would go out.
type LogMailer struct {
	mu   sync.Mutex
	sent []SentMail

	// FailFor lists recipients whose sends should fail.
	FailFor map[string]bool
}

// NewLogMailer creates an empty log mailer.
func NewLogMailer() *LogMailer {
	return &LogMailer{FailFor: make(map[string]bool)}
}

func (m *LogMailer) Send(_ context.Context, to, subject, body string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.FailFor[to] {
		return fmt.Errorf("delivery to %s refused", to)
	}
	m.sent = append(m.sent, SentMail{To: to, Subject: subject, Body: body})
	log.Printf("[LogMailer] to=%s subject=%q", to, subject)
	return nil
}

// Sent returns a copy of everything sent so far.
func (m *LogMailer) Sent() []SentMail {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]SentMail, len(m.sent))
	copy(out, m.sent)
	return out
}
