package planner

import (
	"fmt"
	"strings"
)

// ActionSpec describes one action an agent accepts, for the planning
// prompt and for validating plans.
type ActionSpec struct {
	Name        string
	Description string
	Parameters  []string
}

// AgentSpec describes one agent's capabilities.
type AgentSpec struct {
	Name        string
	Description string
	Actions     []ActionSpec
}

// Catalog is the set of agents a planner may target.
type Catalog struct {
	agents []AgentSpec
	index  map[string]map[string]bool
}

// NewCatalog builds a catalog from agent specs.
func NewCatalog(agents ...AgentSpec) *Catalog {
	c := &Catalog{agents: agents, index: make(map[string]map[string]bool)}
	for _, a := range agents {
		actions := make(map[string]bool, len(a.Actions))
		for _, act := range a.Actions {
			actions[act.Name] = true
		}
		c.index[a.Name] = actions
	}
	return c
}

// Knows reports whether agent supports action.
func (c *Catalog) Knows(agent, action string) bool {
	return c.index[agent][action]
}

// Agents returns the agent names in catalog order.
func (c *Catalog) Agents() []string {
	out := make([]string, len(c.agents))
	for i, a := range c.agents {
		out[i] = a.Name
	}
	return out
}

// Render writes the catalog as the tool listing embedded in planning
// prompts.
func (c *Catalog) Render() string {
	var b strings.Builder
	for _, a := range c.agents {
		fmt.Fprintf(&b, "- %s: %s\n", a.Name, a.Description)
		for _, act := range a.Actions {
			fmt.Fprintf(&b, "  - %s(%s): %s\n", act.Name, strings.Join(act.Parameters, ", "), act.Description)
		}
	}
	return b.String()
}

// DefaultCatalog describes the built-in concierge agents.
func DefaultCatalog() *Catalog {
	return NewCatalog(
		AgentSpec{
			Name:        "contacts",
			Description: "looks people up in the address book",
			Actions: []ActionSpec{
				{Name: "find_contact", Description: "find a person by name, email or id fragment", Parameters: []string{"query"}},
				{Name: "get_all_contacts", Description: "list every contact's name", Parameters: nil},
			},
		},
		AgentSpec{
			Name:        "calendar",
			Description: "manages calendar events",
			Actions: []ActionSpec{
				{Name: "schedule_meeting", Description: "create an event and invite an attendee", Parameters: []string{"title", "start_time", "end_time", "attendee"}},
				{Name: "reschedule_meeting", Description: "move an event found by title to a new time", Parameters: []string{"title", "new_start_time", "new_end_time"}},
				{Name: "cancel_meeting", Description: "cancel an event found by title", Parameters: []string{"title"}},
				{Name: "check_availability", Description: "check whether a time range is free", Parameters: []string{"start_time", "end_time"}},
				{Name: "list_upcoming_meetings", Description: "list the next events", Parameters: []string{"limit"}},
			},
		},
		AgentSpec{
			Name:        "email",
			Description: "sends email on the user's behalf",
			Actions: []ActionSpec{
				{Name: "send_email", Description: "send an email", Parameters: []string{"to", "subject", "body"}},
			},
		},
		AgentSpec{
			Name:        "reminder",
			Description: "schedules recurring reminders",
			Actions: []ActionSpec{
				{Name: "add_reminder", Description: "schedule a reminder on a cron expression", Parameters: []string{"schedule", "note"}},
				{Name: "remove_reminder", Description: "delete a reminder", Parameters: []string{"reminder_id"}},
				{Name: "list_reminders", Description: "list scheduled reminders", Parameters: nil},
			},
		},
	)
}

const planPromptTemplate = `You are the planning engine of a personal assistant.
Decompose the latest user request into an ordered list of steps over these agents:

%s
Rules:
- Respond with JSON only: {"steps": [{"agent": "...", "action": "...", "parameters": {...}}]}.
- Use a "$agent.key" placeholder (e.g. "$contacts.email") when a parameter
  depends on an earlier step's result.
- Times are RFC 3339. Today is %s.
- If the request needs no agent, return {"steps": []}.

Conversation so far:
%s`

const summaryPromptTemplate = `You are a personal assistant reporting back to the user.
Conversation so far:
%s
The execution outcomes were (JSON): %s
Reply with one or two short plain sentences answering the latest user turn.
Mention failures honestly.`
