package agents

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/barunaniket/concierge/agent"
)

// CalendarName is the calendar agent's bus address.
const CalendarName = "calendar"

const (
	defaultListLimit     = 10
	contactLookupTimeout = 10 * time.Second
)

// CalendarAgent manages events through a CalendarBackend. When an
// attendee is given by name rather than address, it resolves them by
// asking the contacts agent over the bus.
type CalendarAgent struct {
	backend CalendarBackend
	rt      *agent.Runtime
}

// NewCalendarAgent creates a calendar agent over the given backend.
func NewCalendarAgent(backend CalendarBackend) *CalendarAgent {
	return &CalendarAgent{backend: backend}
}

func (a *CalendarAgent) Name() string { return CalendarName }

func (a *CalendarAgent) OnStart(_ context.Context, rt *agent.Runtime) error {
	a.rt = rt
	return nil
}

func (a *CalendarAgent) OnStop(context.Context) error { return nil }

func (a *CalendarAgent) Handle(ctx context.Context, msg *agent.Message) (*agent.Response, error) {
	req, err := agent.DecodeRequest(msg)
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case "schedule_meeting":
		return a.schedule(ctx, req.Parameters)
	case "reschedule_meeting":
		return a.reschedule(ctx, req.Parameters)
	case "select_meeting":
		return a.selectMeeting(ctx, req.Parameters)
	case "cancel_meeting":
		return a.cancel(ctx, req.Parameters)
	case "cancel_meeting_by_id":
		return a.cancelByID(ctx, req.Parameters)
	case "check_availability":
		return a.checkAvailability(ctx, req.Parameters)
	case "list_upcoming_meetings":
		return a.listUpcoming(ctx, req.Parameters)
	default:
		return agent.Errorf("unknown action %q", req.Action), nil
	}
}

func (a *CalendarAgent) schedule(ctx context.Context, params map[string]any) (*agent.Response, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return agent.Errorf("schedule_meeting needs a title"), nil
	}
	start, end, resp := timeRange(params, "start_time", "end_time")
	if resp != nil {
		return resp, nil
	}

	ev := Event{Title: title, Start: start, End: end}
	if attendee, _ := params["attendee"].(string); attendee != "" {
		email, err := a.resolveAttendee(ctx, attendee)
		if err != nil {
			return agent.Errorf("could not resolve attendee %q: %v", attendee, err), nil
		}
		ev.Attendees = append(ev.Attendees, email)
	}

	created, err := a.backend.CreateEvent(ctx, ev)
	if err != nil {
		return nil, fmt.Errorf("create event: %w", err)
	}
	return agent.Success(map[string]any{
		"event_id":   created.ID,
		"title":      created.Title,
		"start_time": created.Start.Format(time.RFC3339),
		"end_time":   created.End.Format(time.RFC3339),
	}), nil
}

// reschedule moves the single upcoming event matching the title. Zero
// matches fail; more than one comes back ambiguous with the candidates
// and the follow-up action carrying the new times.
func (a *CalendarAgent) reschedule(ctx context.Context, params map[string]any) (*agent.Response, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return agent.Errorf("reschedule_meeting needs a title"), nil
	}
	start, end, resp := timeRange(params, "new_start_time", "new_end_time")
	if resp != nil {
		return resp, nil
	}

	matches, err := a.backend.FindEvents(ctx, title, 0)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	switch len(matches) {
	case 0:
		return agent.Errorf("no meeting matched %q", title), nil
	case 1:
		moved, err := a.backend.MoveEvent(ctx, matches[0].ID, start, end)
		if err != nil {
			return nil, fmt.Errorf("move event: %w", err)
		}
		return agent.Success(map[string]any{
			"meeting_id": moved.ID,
			"start_time": moved.Start.Format(time.RFC3339),
			"end_time":   moved.End.Format(time.RFC3339),
		}), nil
	default:
		return &agent.Response{
			Status:   agent.ResponseAmbiguous,
			Message:  fmt.Sprintf("found %d meetings matching %q", len(matches), title),
			Meetings: toMeetings(matches),
			Action:   "select_meeting",
			Params: map[string]any{
				"new_start_time": start.Format(time.RFC3339),
				"new_end_time":   end.Format(time.RFC3339),
			},
		}, nil
	}
}

func (a *CalendarAgent) selectMeeting(ctx context.Context, params map[string]any) (*agent.Response, error) {
	id, _ := params["meeting_id"].(string)
	if id == "" {
		return agent.Errorf("select_meeting needs a meeting_id"), nil
	}
	start, end, resp := timeRange(params, "new_start_time", "new_end_time")
	if resp != nil {
		return resp, nil
	}
	moved, err := a.backend.MoveEvent(ctx, id, start, end)
	if err != nil {
		return nil, fmt.Errorf("move event: %w", err)
	}
	return agent.Success(map[string]any{
		"meeting_id": moved.ID,
		"start_time": moved.Start.Format(time.RFC3339),
		"end_time":   moved.End.Format(time.RFC3339),
	}), nil
}

func (a *CalendarAgent) cancel(ctx context.Context, params map[string]any) (*agent.Response, error) {
	title, _ := params["title"].(string)
	if title == "" {
		return agent.Errorf("cancel_meeting needs a title"), nil
	}
	matches, err := a.backend.FindEvents(ctx, title, 0)
	if err != nil {
		return nil, fmt.Errorf("find events: %w", err)
	}
	switch len(matches) {
	case 0:
		return agent.Errorf("no meeting matched %q", title), nil
	case 1:
		if err := a.backend.DeleteEvent(ctx, matches[0].ID); err != nil {
			return nil, fmt.Errorf("delete event: %w", err)
		}
		return agent.Success(map[string]any{"meeting_id": matches[0].ID, "cancelled": true}), nil
	default:
		return &agent.Response{
			Status:   agent.ResponseAmbiguous,
			Message:  fmt.Sprintf("found %d meetings matching %q", len(matches), title),
			Meetings: toMeetings(matches),
			Action:   "cancel_meeting_by_id",
		}, nil
	}
}

func (a *CalendarAgent) cancelByID(ctx context.Context, params map[string]any) (*agent.Response, error) {
	id, _ := params["meeting_id"].(string)
	if id == "" {
		return agent.Errorf("cancel_meeting_by_id needs a meeting_id"), nil
	}
	if err := a.backend.DeleteEvent(ctx, id); err != nil {
		return nil, fmt.Errorf("delete event: %w", err)
	}
	return agent.Success(map[string]any{"meeting_id": id, "cancelled": true}), nil
}

func (a *CalendarAgent) checkAvailability(ctx context.Context, params map[string]any) (*agent.Response, error) {
	start, end, resp := timeRange(params, "start_time", "end_time")
	if resp != nil {
		return resp, nil
	}
	conflicts, err := a.backend.EventsBetween(ctx, start, end)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	return agent.Success(map[string]any{
		"available": len(conflicts) == 0,
		"conflicts": len(conflicts),
	}), nil
}

func (a *CalendarAgent) listUpcoming(ctx context.Context, params map[string]any) (*agent.Response, error) {
	limit := defaultListLimit
	if v, ok := params["limit"].(float64); ok && v > 0 {
		limit = int(v)
	}
	events, err := a.backend.FindEvents(ctx, "", limit)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	meetings := make([]map[string]any, 0, len(events))
	for _, ev := range events {
		meetings = append(meetings, map[string]any{
			"meeting_id": ev.ID,
			"title":      ev.Title,
			"start_time": ev.Start.Format(time.RFC3339),
			"end_time":   ev.End.Format(time.RFC3339),
		})
	}
	return agent.Success(map[string]any{"count": len(meetings), "meetings": meetings}), nil
}

// resolveAttendee turns a display name into an address by asking the
// contacts agent; values that already look like addresses pass through.
func (a *CalendarAgent) resolveAttendee(ctx context.Context, attendee string) (string, error) {
	if strings.Contains(attendee, "@") {
		return attendee, nil
	}
	resp, err := a.rt.Request(ctx, ContactsName, &agent.Request{
		Action:     "find_contact",
		Parameters: map[string]any{"query": attendee},
	}, contactLookupTimeout)
	if err != nil {
		return "", err
	}
	if resp.Status != agent.ResponseSuccess {
		return "", fmt.Errorf("%s", resp.Message)
	}
	email, _ := resp.Data["email"].(string)
	if email == "" {
		return "", fmt.Errorf("contact has no email address")
	}
	log.Printf("[Agent:%s] resolved attendee %q to %s", CalendarName, attendee, email)
	return email, nil
}

func toMeetings(events []Event) []agent.Meeting {
	out := make([]agent.Meeting, len(events))
	for i, ev := range events {
		out[i] = agent.Meeting{
			ID:        ev.ID,
			Title:     ev.Title,
			StartTime: ev.Start.Format(time.RFC3339),
			EndTime:   ev.End.Format(time.RFC3339),
		}
	}
	return out
}

// timeRange parses two RFC 3339 parameters, returning an error
// response for the sender when either is missing or malformed.
func timeRange(params map[string]any, startKey, endKey string) (time.Time, time.Time, *agent.Response) {
	start, resp := parseTimeParam(params, startKey)
	if resp != nil {
		return time.Time{}, time.Time{}, resp
	}
	end, resp := parseTimeParam(params, endKey)
	if resp != nil {
		return time.Time{}, time.Time{}, resp
	}
	if !end.After(start) {
		return time.Time{}, time.Time{}, agent.Errorf("%s must be after %s", endKey, startKey)
	}
	return start, end, nil
}

func parseTimeParam(params map[string]any, key string) (time.Time, *agent.Response) {
	raw, _ := params[key].(string)
	if raw == "" {
		return time.Time{}, agent.Errorf("missing %s parameter", key)
	}
	t, err := time.Parse(time.RFC3339, raw)
	if err != nil {
		return time.Time{}, agent.Errorf("%s is not an RFC 3339 time: %v", key, err)
	}
	return t, nil
}
