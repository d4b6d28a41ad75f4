package agents

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/barunaniket/concierge/agent"
)

// ReminderName is the reminder scheduler's bus address.
const ReminderName = "reminder"

// Reminder is one scheduled note.
type Reminder struct {
	ID       string `json:"id"`
	Schedule string `json:"schedule"`
	Note     string `json:"note"`
}

// ReminderAgent runs cron schedules and publishes each firing on the
// reminders topic. Other agents (the email agent, typically) subscribe
// and act on them.
type ReminderAgent struct {
	mu        sync.Mutex
	cron      *cron.Cron
	rt        *agent.Runtime
	reminders map[string]Reminder
	entries   map[string]cron.EntryID
	nextID    int
}

// NewReminderAgent creates an empty scheduler.
func NewReminderAgent() *ReminderAgent {
	return &ReminderAgent{
		reminders: make(map[string]Reminder),
		entries:   make(map[string]cron.EntryID),
	}
}

func (a *ReminderAgent) Name() string { return ReminderName }

func (a *ReminderAgent) OnStart(_ context.Context, rt *agent.Runtime) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rt = rt
	a.cron = cron.New()
	// Reminders kept across a restart are rescheduled.
	for id, rem := range a.reminders {
		entryID, err := a.schedule(rem)
		if err != nil {
			return err
		}
		a.entries[id] = entryID
	}
	a.cron.Start()
	return nil
}

func (a *ReminderAgent) OnStop(context.Context) error {
	a.mu.Lock()
	c := a.cron
	a.cron = nil
	a.entries = make(map[string]cron.EntryID)
	a.mu.Unlock()
	if c != nil {
		<-c.Stop().Done()
	}
	return nil
}

func (a *ReminderAgent) Handle(_ context.Context, msg *agent.Message) (*agent.Response, error) {
	req, err := agent.DecodeRequest(msg)
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case "add_reminder":
		return a.add(req.Parameters)
	case "remove_reminder":
		return a.remove(req.Parameters)
	case "list_reminders":
		return a.list(), nil
	default:
		return agent.Errorf("unknown action %q", req.Action), nil
	}
}

func (a *ReminderAgent) add(params map[string]any) (*agent.Response, error) {
	schedule, _ := params["schedule"].(string)
	note, _ := params["note"].(string)
	if schedule == "" || note == "" {
		return agent.Errorf("add_reminder needs schedule and note parameters"), nil
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	a.nextID++
	rem := Reminder{
		ID:       fmt.Sprintf("rem-%d", a.nextID),
		Schedule: schedule,
		Note:     note,
	}
	entryID, err := a.schedule(rem)
	if err != nil {
		return agent.Errorf("invalid schedule %q: %v", schedule, err), nil
	}
	a.reminders[rem.ID] = rem
	a.entries[rem.ID] = entryID
	log.Printf("[Agent:%s] added %s (%s)", ReminderName, rem.ID, schedule)
	return agent.Success(map[string]any{"reminder_id": rem.ID}), nil
}

func (a *ReminderAgent) remove(params map[string]any) (*agent.Response, error) {
	id, _ := params["reminder_id"].(string)
	if id == "" {
		return agent.Errorf("remove_reminder needs a reminder_id"), nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.reminders[id]; !ok {
		return agent.Errorf("no reminder %q", id), nil
	}
	if a.cron != nil {
		a.cron.Remove(a.entries[id])
	}
	delete(a.reminders, id)
	delete(a.entries, id)
	return agent.Success(map[string]any{"removed": id}), nil
}

func (a *ReminderAgent) list() *agent.Response {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Reminder, 0, len(a.reminders))
	for _, rem := range a.reminders {
		out = append(out, rem)
	}
	return agent.Success(map[string]any{"count": len(out), "reminders": out})
}

// schedule registers the cron entry. The caller holds the lock.
func (a *ReminderAgent) schedule(rem Reminder) (cron.EntryID, error) {
	return a.cron.AddFunc(rem.Schedule, func() {
		delivered := a.rt.Publish(RemindersTopic, agent.KindReminder, map[string]string{
			"id":   rem.ID,
			"note": rem.Note,
			"due":  time.Now().UTC().Format(time.RFC3339),
		})
		log.Printf("[Agent:%s] fired %s to %d subscriber(s)", ReminderName, rem.ID, delivered)
	})
}
