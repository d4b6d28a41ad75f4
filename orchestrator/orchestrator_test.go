package orchestrator

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/barunaniket/concierge/agent"
	"github.com/barunaniket/concierge/pkg/session"
	"github.com/barunaniket/concierge/planner"
)

// scriptedCapability answers each action with a scripted handler and
// records every request it saw.
type scriptedCapability struct {
	name    string
	actions map[string]func(params map[string]any) (*agent.Response, error)

	mu   sync.Mutex
	seen []agent.Request
}

func (c *scriptedCapability) Name() string                                  { return c.name }
func (c *scriptedCapability) OnStart(context.Context, *agent.Runtime) error { return nil }
func (c *scriptedCapability) OnStop(context.Context) error                  { return nil }

func (c *scriptedCapability) Handle(_ context.Context, msg *agent.Message) (*agent.Response, error) {
	req, err := agent.DecodeRequest(msg)
	if err != nil {
		return nil, err
	}
	c.mu.Lock()
	c.seen = append(c.seen, *req)
	c.mu.Unlock()
	if fn, ok := c.actions[req.Action]; ok {
		return fn(req.Parameters)
	}
	return agent.Errorf("unsupported action %q", req.Action), nil
}

func (c *scriptedCapability) requests() []agent.Request {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]agent.Request, len(c.seen))
	copy(out, c.seen)
	return out
}

type harness struct {
	orch  *Orchestrator
	store *session.MemoryStore
	mock  *planner.MockPlanner
}

func newHarness(t *testing.T, clarifier Clarifier, caps ...agent.Capability) *harness {
	t.Helper()
	bus := agent.NewBus()
	reg := agent.NewRegistry(bus)
	store := session.NewMemoryStore()
	mock := planner.NewMockPlanner()
	orch := New(mock, store, clarifier, WithStepTimeout(time.Second))

	if _, err := reg.Register(orch); err != nil {
		t.Fatalf("register orchestrator: %v", err)
	}
	for _, c := range caps {
		if _, err := reg.Register(c); err != nil {
			t.Fatalf("register %s: %v", c.Name(), err)
		}
	}
	require.NoError(t, reg.StartAll(context.Background()))
	t.Cleanup(func() { reg.StopAll(context.Background()) })
	return &harness{orch: orch, store: store, mock: mock}
}

func (h *harness) transcript(t *testing.T) []planner.Turn {
	t.Helper()
	turns, err := h.store.History(context.Background(), "s1")
	require.NoError(t, err)
	return turns
}

func TestHandleRequest_ThreadsResultsBetweenSteps(t *testing.T) {
	contacts := &scriptedCapability{name: "contacts", actions: map[string]func(map[string]any) (*agent.Response, error){
		"find_contact": func(map[string]any) (*agent.Response, error) {
			return agent.Success(map[string]any{"email": "jane@example.com", "name": "Jane Doe"}), nil
		},
	}}
	email := &scriptedCapability{name: "email", actions: map[string]func(map[string]any) (*agent.Response, error){
		"send_email": func(map[string]any) (*agent.Response, error) {
			return agent.Success(map[string]any{"sent": true}), nil
		},
	}}
	h := newHarness(t, NoClarifier{}, contacts, email)
	h.mock.Script("email jane", &planner.Plan{Steps: []planner.Step{
		{Agent: "contacts", Action: "find_contact", Parameters: map[string]any{"query": "jane"}},
		{Agent: "email", Action: "send_email", Parameters: map[string]any{
			"to": "$contacts.email", "subject": "hi", "body": "hello",
		}},
	}})

	reply := h.orch.HandleRequest(context.Background(), "s1", "email jane")
	assert.NotEmpty(t, reply)

	sent := email.requests()
	require.Len(t, sent, 1)
	assert.Equal(t, "jane@example.com", sent[0].Parameters["to"])

	turns := h.transcript(t)
	require.Len(t, turns, 2)
	assert.Equal(t, planner.RoleUser, turns[0].Role)
	assert.Equal(t, planner.RoleAssistant, turns[1].Role)
}

// failingPlanner simulates an unreachable or malformed planning backend.
type failingPlanner struct {
	planner.Planner
	err error
}

func (p failingPlanner) CreatePlan(context.Context, []planner.Turn) (*planner.Plan, error) {
	return nil, p.err
}

func TestHandleRequest_PlanFailureAbortsBeforeExecution(t *testing.T) {
	contacts := &scriptedCapability{name: "contacts"}
	h := newHarness(t, NoClarifier{}, contacts)
	h.orch.planner = failingPlanner{Planner: h.mock, err: assert.AnError}

	reply := h.orch.HandleRequest(context.Background(), "s1", "gibberish")
	assert.NotEmpty(t, reply)
	assert.Empty(t, contacts.requests())

	// Even a failed request closes with an assistant turn.
	turns := h.transcript(t)
	require.Len(t, turns, 2)
	assert.Equal(t, planner.RoleAssistant, turns[1].Role)
}

func TestHandleRequest_FailedStepDoesNotAbortPlan(t *testing.T) {
	contacts := &scriptedCapability{name: "contacts", actions: map[string]func(map[string]any) (*agent.Response, error){
		"find_contact": func(map[string]any) (*agent.Response, error) {
			return agent.Errorf("no contact matched"), nil
		},
	}}
	email := &scriptedCapability{name: "email", actions: map[string]func(map[string]any) (*agent.Response, error){
		"send_email": func(map[string]any) (*agent.Response, error) {
			return agent.Success(map[string]any{"sent": true}), nil
		},
	}}
	h := newHarness(t, NoClarifier{}, contacts, email)
	h.mock.Script("email jane", &planner.Plan{Steps: []planner.Step{
		{Agent: "contacts", Action: "find_contact", Parameters: map[string]any{"query": "jane"}},
		{Agent: "email", Action: "send_email", Parameters: map[string]any{"to": "$contacts.email"}},
	}})

	h.orch.HandleRequest(context.Background(), "s1", "email jane")

	// The second step still ran, with the placeholder left literal.
	sent := email.requests()
	require.Len(t, sent, 1)
	assert.Equal(t, "$contacts.email", sent[0].Parameters["to"])
}

func TestHandleRequest_TimeoutMarksStepFailedAndContinues(t *testing.T) {
	slow := &scriptedCapability{name: "calendar", actions: map[string]func(map[string]any) (*agent.Response, error){
		"check_availability": func(map[string]any) (*agent.Response, error) {
			time.Sleep(3 * time.Second)
			return agent.Success(nil), nil
		},
	}}
	email := &scriptedCapability{name: "email", actions: map[string]func(map[string]any) (*agent.Response, error){
		"send_email": func(map[string]any) (*agent.Response, error) {
			return agent.Success(map[string]any{"sent": true}), nil
		},
	}}
	h := newHarness(t, NoClarifier{}, slow, email)
	h.mock.Script("busy friday?", &planner.Plan{Steps: []planner.Step{
		{Agent: "calendar", Action: "check_availability"},
		{Agent: "email", Action: "send_email", Parameters: map[string]any{"to": "a@b.c"}},
	}})

	start := time.Now()
	h.orch.HandleRequest(context.Background(), "s1", "busy friday?")

	assert.GreaterOrEqual(t, time.Since(start), time.Second)
	assert.Len(t, email.requests(), 1)
}

func TestHandleRequest_AmbiguityResolvedThenRetried(t *testing.T) {
	meetings := []agent.Meeting{
		{ID: "m1", Title: "sync with Alice", StartTime: "2026-09-01T10:00:00Z", EndTime: "2026-09-01T10:30:00Z"},
		{ID: "m2", Title: "sync with Alice", StartTime: "2026-09-03T10:00:00Z", EndTime: "2026-09-03T10:30:00Z"},
	}
	calendar := &scriptedCapability{name: "calendar", actions: map[string]func(map[string]any) (*agent.Response, error){
		"reschedule_meeting": func(map[string]any) (*agent.Response, error) {
			return &agent.Response{
				Status:   agent.ResponseAmbiguous,
				Message:  "found 2 meetings matching that title",
				Meetings: meetings,
				Action:   "select_meeting",
				Params: map[string]any{
					"new_start_time": "2026-09-05T15:00:00Z",
					"new_end_time":   "2026-09-05T15:30:00Z",
				},
			}, nil
		},
		"select_meeting": func(params map[string]any) (*agent.Response, error) {
			return agent.Success(map[string]any{"meeting_id": params["meeting_id"]}), nil
		},
	}}
	h := newHarness(t, StaticClarifier{Index: 1}, calendar)
	h.mock.Script("move my sync with alice", &planner.Plan{Steps: []planner.Step{
		{Agent: "calendar", Action: "reschedule_meeting", Parameters: map[string]any{
			"title":          "sync with Alice",
			"new_start_time": "2026-09-05T15:00:00Z",
			"new_end_time":   "2026-09-05T15:30:00Z",
		}},
	}})

	reply := h.orch.HandleRequest(context.Background(), "s1", "move my sync with alice")
	assert.NotEmpty(t, reply)

	reqs := calendar.requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "select_meeting", reqs[1].Action)
	assert.Equal(t, "m2", reqs[1].Parameters["meeting_id"])
	assert.Equal(t, "2026-09-05T15:00:00Z", reqs[1].Parameters["new_start_time"])
	assert.Equal(t, "2026-09-05T15:30:00Z", reqs[1].Parameters["new_end_time"])
}

func TestHandleRequest_AmbiguityWithoutSelectionFailsStep(t *testing.T) {
	calendar := &scriptedCapability{name: "calendar"}
	calendar.actions = map[string]func(map[string]any) (*agent.Response, error){
		"cancel_meeting": func(map[string]any) (*agent.Response, error) {
			return &agent.Response{
				Status:   agent.ResponseAmbiguous,
				Message:  "found 2 meetings",
				Meetings: []agent.Meeting{{ID: "m1"}, {ID: "m2"}},
				Action:   "cancel_meeting_by_id",
			}, nil
		},
	}
	h := newHarness(t, NoClarifier{}, calendar)
	h.mock.Script("cancel my sync", &planner.Plan{Steps: []planner.Step{
		{Agent: "calendar", Action: "cancel_meeting", Parameters: map[string]any{"title": "sync"}},
	}})

	reply := h.orch.HandleRequest(context.Background(), "s1", "cancel my sync")
	assert.NotEmpty(t, reply)
	// Only the original request was sent; there was no follow-up.
	assert.Len(t, calendar.requests(), 1)
}

func TestHandleRequest_EmptyPlanAnswersDirectly(t *testing.T) {
	h := newHarness(t, NoClarifier{})
	h.mock.Script("hello there", &planner.Plan{})

	// parsePlan never yields an empty plan, but CreatePlan may when the
	// planner decides no agent is needed.
	reply := h.orch.HandleRequest(context.Background(), "s1", "hello there")
	assert.NotEmpty(t, reply)
	turns := h.transcript(t)
	require.Len(t, turns, 2)
}

func TestHandleRequest_CapabilityErrorBecomesFailedStep(t *testing.T) {
	broken := &scriptedCapability{name: "contacts", actions: map[string]func(map[string]any) (*agent.Response, error){
		"find_contact": func(map[string]any) (*agent.Response, error) {
			panic("csv not loaded")
		},
	}}
	h := newHarness(t, NoClarifier{}, broken)
	h.mock.Script("find jane", &planner.Plan{Steps: []planner.Step{
		{Agent: "contacts", Action: "find_contact", Parameters: map[string]any{"query": "jane"}},
	}})

	reply := h.orch.HandleRequest(context.Background(), "s1", "find jane")
	assert.NotEmpty(t, reply)
	turns := h.transcript(t)
	require.Len(t, turns, 2)
	assert.Equal(t, planner.RoleAssistant, turns[1].Role)
}

func TestOrchestrator_HandlesBusRequests(t *testing.T) {
	h := newHarness(t, NoClarifier{})
	h.mock.Script("hello", &planner.Plan{})

	msg := agent.NewMessage("console", Name, agent.KindTask, &agent.Request{
		Action:     "user_request",
		Parameters: map[string]any{"text": "hello", "session_id": "s1"},
	}, agent.NewCorrelationID())
	resp, err := h.orch.Handle(context.Background(), msg)
	require.NoError(t, err)
	assert.Equal(t, agent.ResponseSuccess, resp.Status)
	assert.NotEmpty(t, resp.Data["reply"])

	missing := agent.NewMessage("console", Name, agent.KindTask, &agent.Request{
		Action: "user_request",
	}, agent.NewCorrelationID())
	resp, err = h.orch.Handle(context.Background(), missing)
	require.NoError(t, err)
	assert.Equal(t, agent.ResponseError, resp.Status)
}

func TestDescribeOutcomes(t *testing.T) {
	assert.Equal(t, fallbackReply, describeOutcomes(nil))
	assert.Contains(t, describeOutcomes([]StepOutcome{
		{Status: string(agent.ResponseSuccess)},
	}), "1 step(s) completed")
	assert.Contains(t, describeOutcomes([]StepOutcome{
		{Status: string(agent.ResponseSuccess)},
		{Status: "timeout"},
	}), "1 failed")
}
