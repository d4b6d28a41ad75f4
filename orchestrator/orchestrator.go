// Package orchestrator drives plan execution: it asks the planner for
// a step list, executes steps against agents over the bus with
// correlated request/response, threads results between steps, resolves
// ambiguous outcomes through a clarifier, and asks the planner to
// phrase the final reply.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/barunaniket/concierge/agent"
	"github.com/barunaniket/concierge/pkg/observability"
	"github.com/barunaniket/concierge/pkg/session"
	"github.com/barunaniket/concierge/planner"
)

// Name is the orchestrator's bus address.
const Name = "orchestrator"

// DefaultStepTimeout bounds how long one plan step may wait for its
// target agent's reply.
const DefaultStepTimeout = 30 * time.Second

const fallbackReply = "Sorry, something went wrong while handling that request."

// Orchestrator is itself an agent: it lives on the bus so capability
// replies reach it through its own mailbox, and other components can
// address it like any other agent.
type Orchestrator struct {
	planner     planner.Planner
	store       session.Store
	clarifier   Clarifier
	stepTimeout time.Duration
	tracer      trace.Tracer

	rt *agent.Runtime
}

// Option configures the orchestrator.
type Option func(*Orchestrator)

// WithStepTimeout overrides the per-step reply timeout.
func WithStepTimeout(d time.Duration) Option {
	return func(o *Orchestrator) { o.stepTimeout = d }
}

// New creates an orchestrator. Register it with a registry before use.
func New(p planner.Planner, store session.Store, clarifier Clarifier, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		planner:     p,
		store:       store,
		clarifier:   clarifier,
		stepTimeout: DefaultStepTimeout,
		tracer:      otel.Tracer("concierge/orchestrator"),
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *Orchestrator) Name() string { return Name }

func (o *Orchestrator) OnStart(_ context.Context, rt *agent.Runtime) error {
	o.rt = rt
	return nil
}

func (o *Orchestrator) OnStop(context.Context) error { return nil }

// Handle lets other components submit user requests over the bus with
// a {"text": ..., "session_id": ...} parameter tree.
func (o *Orchestrator) Handle(ctx context.Context, msg *agent.Message) (*agent.Response, error) {
	req, err := agent.DecodeRequest(msg)
	if err != nil {
		return nil, err
	}
	switch req.Action {
	case "user_request":
		text, _ := req.Parameters["text"].(string)
		if text == "" {
			return agent.Errorf("user_request needs a text parameter"), nil
		}
		sessionID, _ := req.Parameters["session_id"].(string)
		if sessionID == "" {
			sessionID = "default"
		}
		reply := o.HandleRequest(ctx, sessionID, text)
		return agent.Success(map[string]any{"reply": reply}), nil
	default:
		return agent.Errorf("unknown action %q", req.Action), nil
	}
}

// HandleRequest runs one user utterance through plan, execute and
// summarize. It always produces a reply and always appends both the
// user turn and an assistant turn to the transcript, even on total
// failure.
func (o *Orchestrator) HandleRequest(ctx context.Context, sessionID, text string) (reply string) {
	start := time.Now()
	outcome := "ok"
	defer func() {
		if r := recover(); r != nil {
			log.Printf("[Orchestrator] panic handling request: %v", r)
			reply = fallbackReply
			outcome = "panic"
			o.appendTurn(ctx, sessionID, planner.RoleAssistant, reply)
		}
		observability.RecordRequest(outcome, time.Since(start))
	}()

	ctx, span := o.tracer.Start(ctx, "orchestrator.request",
		trace.WithAttributes(attribute.String("session.id", sessionID)))
	defer span.End()

	o.appendTurn(ctx, sessionID, planner.RoleUser, text)
	transcript, err := o.store.History(ctx, sessionID)
	if err != nil {
		log.Printf("[Orchestrator] loading transcript: %v", err)
		transcript = []planner.Turn{{Role: planner.RoleUser, Text: text}}
	}

	plan, err := o.createPlan(ctx, transcript)
	if err != nil {
		if !errors.Is(err, planner.ErrNoPlan) {
			log.Printf("[Orchestrator] planning failed: %v", err)
			outcome = "plan_failure"
			reply = "Sorry, I couldn't work out how to do that. Could you rephrase?"
			o.appendTurn(ctx, sessionID, planner.RoleAssistant, reply)
			return reply
		}
		// An empty plan is small talk; let the planner answer directly.
		plan = &planner.Plan{}
	}

	outcomes := o.execute(ctx, plan)

	reply, err = o.summarize(ctx, transcript, outcomes)
	if err != nil {
		log.Printf("[Orchestrator] summarizing failed: %v", err)
		outcome = "summary_failure"
		reply = describeOutcomes(outcomes)
	}
	o.appendTurn(ctx, sessionID, planner.RoleAssistant, reply)
	return reply
}

func (o *Orchestrator) createPlan(ctx context.Context, transcript []planner.Turn) (*planner.Plan, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.plan")
	defer span.End()
	plan, err := o.planner.CreatePlan(ctx, transcript)
	if err == nil {
		span.SetAttributes(attribute.Int("plan.steps", len(plan.Steps)))
	}
	return plan, err
}

func (o *Orchestrator) summarize(ctx context.Context, transcript []planner.Turn, outcomes []StepOutcome) (string, error) {
	ctx, span := o.tracer.Start(ctx, "orchestrator.summarize")
	defer span.End()
	return o.planner.Summarize(ctx, transcript, outcomeReport(outcomes))
}

func (o *Orchestrator) appendTurn(ctx context.Context, sessionID, role, text string) {
	if err := o.store.Append(ctx, sessionID, planner.Turn{Role: role, Text: text}); err != nil {
		log.Printf("[Orchestrator] appending %s turn: %v", role, err)
	}
}

// describeOutcomes is the last-resort reply when the planner cannot
// phrase one.
func describeOutcomes(outcomes []StepOutcome) string {
	if len(outcomes) == 0 {
		return fallbackReply
	}
	done, failed := 0, 0
	for _, oc := range outcomes {
		if oc.Failed() {
			failed++
		} else {
			done++
		}
	}
	if failed == 0 {
		return fmt.Sprintf("Done. %d step(s) completed.", done)
	}
	return fmt.Sprintf("Partially done: %d step(s) completed, %d failed.", done, failed)
}
