// Package agents holds the concierge's capability agents: contacts
// lookup, calendar mutation, email dispatch and the reminder
// scheduler. Each one implements agent.Capability and talks to its
// backend through a small interface so tests can run against the
// in-memory fakes.
package agents

import (
	"context"
	"time"
)

// Event is one calendar event as the calendar backend sees it.
type Event struct {
	ID        string
	Title     string
	Start     time.Time
	End       time.Time
	Attendees []string
}

// CalendarBackend abstracts the calendar service.
type CalendarBackend interface {
	// CreateEvent inserts the event and returns it with its assigned id.
	CreateEvent(ctx context.Context, ev Event) (Event, error)

	// FindEvents returns upcoming events whose title contains query
	// (case-insensitive), oldest first. Empty query matches all.
	FindEvents(ctx context.Context, query string, max int) ([]Event, error)

	// EventsBetween returns events overlapping [from, to).
	EventsBetween(ctx context.Context, from, to time.Time) ([]Event, error)

	// MoveEvent updates an event's start and end times.
	MoveEvent(ctx context.Context, id string, start, end time.Time) (Event, error)

	// DeleteEvent removes an event by id.
	DeleteEvent(ctx context.Context, id string) error
}

// MailBackend abstracts outbound mail.
type MailBackend interface {
	// Send delivers one message to a single recipient.
	Send(ctx context.Context, to, subject, body string) error
}
