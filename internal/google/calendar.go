// Package google holds the Google Workspace backends: calendar/v3 for
// the calendar agent and gmail/v1 for the email agent. Both use
// Application Default Credentials unless a credentials file is given.
package google

import (
	"context"
	"fmt"
	"strings"
	"time"

	"google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/barunaniket/concierge/agents"
)

// Calendar implements agents.CalendarBackend against the Google
// Calendar API.
type Calendar struct {
	svc        *calendar.Service
	calendarID string
}

// NewCalendar creates a calendar backend for the given calendar id
// ("primary" for the account's default calendar).
func NewCalendar(ctx context.Context, calendarID, credentialsFile string) (*Calendar, error) {
	var opts []option.ClientOption
	if credentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credentialsFile))
	}
	svc, err := calendar.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create calendar service: %w", err)
	}
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Calendar{svc: svc, calendarID: calendarID}, nil
}

func (c *Calendar) CreateEvent(ctx context.Context, ev agents.Event) (agents.Event, error) {
	item := &calendar.Event{
		Summary: ev.Title,
		Start:   &calendar.EventDateTime{DateTime: ev.Start.Format(time.RFC3339)},
		End:     &calendar.EventDateTime{DateTime: ev.End.Format(time.RFC3339)},
	}
	for _, a := range ev.Attendees {
		item.Attendees = append(item.Attendees, &calendar.EventAttendee{Email: a})
	}
	created, err := c.svc.Events.Insert(c.calendarID, item).Context(ctx).Do()
	if err != nil {
		return agents.Event{}, fmt.Errorf("insert event: %w", err)
	}
	return fromAPIEvent(created)
}

func (c *Calendar) FindEvents(ctx context.Context, query string, max int) ([]agents.Event, error) {
	call := c.svc.Events.List(c.calendarID).
		TimeMin(time.Now().UTC().Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx)
	if max > 0 {
		call = call.MaxResults(int64(max))
	}
	list, err := call.Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	// The API's free-text Q matches more fields than we want; filter on
	// the title here so ambiguity detection sees only title matches.
	query = strings.ToLower(query)
	var out []agents.Event
	for _, item := range list.Items {
		if query != "" && !strings.Contains(strings.ToLower(item.Summary), query) {
			continue
		}
		ev, err := fromAPIEvent(item)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Calendar) EventsBetween(ctx context.Context, from, to time.Time) ([]agents.Event, error) {
	list, err := c.svc.Events.List(c.calendarID).
		TimeMin(from.Format(time.RFC3339)).
		TimeMax(to.Format(time.RFC3339)).
		SingleEvents(true).
		OrderBy("startTime").
		Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	out := make([]agents.Event, 0, len(list.Items))
	for _, item := range list.Items {
		ev, err := fromAPIEvent(item)
		if err != nil {
			continue
		}
		out = append(out, ev)
	}
	return out, nil
}

func (c *Calendar) MoveEvent(ctx context.Context, id string, start, end time.Time) (agents.Event, error) {
	patch := &calendar.Event{
		Start: &calendar.EventDateTime{DateTime: start.Format(time.RFC3339)},
		End:   &calendar.EventDateTime{DateTime: end.Format(time.RFC3339)},
	}
	updated, err := c.svc.Events.Patch(c.calendarID, id, patch).Context(ctx).Do()
	if err != nil {
		return agents.Event{}, fmt.Errorf("patch event %s: %w", id, err)
	}
	return fromAPIEvent(updated)
}

func (c *Calendar) DeleteEvent(ctx context.Context, id string) error {
	if err := c.svc.Events.Delete(c.calendarID, id).Context(ctx).Do(); err != nil {
		return fmt.Errorf("delete event %s: %w", id, err)
	}
	return nil
}

func fromAPIEvent(item *calendar.Event) (agents.Event, error) {
	start, err := parseEventTime(item.Start)
	if err != nil {
		return agents.Event{}, err
	}
	end, err := parseEventTime(item.End)
	if err != nil {
		return agents.Event{}, err
	}
	ev := agents.Event{ID: item.Id, Title: item.Summary, Start: start, End: end}
	for _, a := range item.Attendees {
		ev.Attendees = append(ev.Attendees, a.Email)
	}
	return ev, nil
}

func parseEventTime(t *calendar.EventDateTime) (time.Time, error) {
	if t == nil {
		return time.Time{}, fmt.Errorf("event has no time")
	}
	if t.DateTime != "" {
		return time.Parse(time.RFC3339, t.DateTime)
	}
	// All-day events carry a date only.
	return time.Parse("2006-01-02", t.Date)
}
