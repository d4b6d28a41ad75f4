package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/barunaniket/concierge/agent"
	"github.com/barunaniket/concierge/pkg/observability"
	"github.com/barunaniket/concierge/planner"
)

// StepOutcome records one executed step for the summary report.
type StepOutcome struct {
	Agent   string         `json:"agent"`
	Action  string         `json:"action"`
	Status  string         `json:"status"`
	Data    map[string]any `json:"data,omitempty"`
	Message string         `json:"message,omitempty"`
}

// Failed reports whether the step ended without a usable result.
func (oc StepOutcome) Failed() bool {
	switch oc.Status {
	case string(agent.ResponseSuccess), string(agent.ResponsePartial):
		return false
	}
	return true
}

// outcomeReport keys outcomes for the summarizer.
func outcomeReport(outcomes []StepOutcome) map[string]any {
	report := make(map[string]any, len(outcomes))
	for i, oc := range outcomes {
		report[fmt.Sprintf("step_%d_%s_%s", i+1, oc.Agent, oc.Action)] = oc
	}
	return report
}

// execute runs the plan's steps strictly in order. A failed step is
// recorded and the remaining steps still run; later steps that depended
// on its output see their placeholders fall back to literal text.
func (o *Orchestrator) execute(ctx context.Context, plan *planner.Plan) []StepOutcome {
	pc := newPlanContext()
	outcomes := make([]StepOutcome, 0, len(plan.Steps))
	for i, step := range plan.Steps {
		outcome := o.runStep(ctx, pc, step)
		log.Printf("[Orchestrator] step %d/%d %s.%s -> %s", i+1, len(plan.Steps), step.Agent, step.Action, outcome.Status)
		outcomes = append(outcomes, outcome)
	}
	return outcomes
}

func (o *Orchestrator) runStep(ctx context.Context, pc *planContext, step planner.Step) StepOutcome {
	ctx, span := o.tracer.Start(ctx, "orchestrator.step",
		trace.WithAttributes(
			attribute.String("step.agent", step.Agent),
			attribute.String("step.action", step.Action),
		))
	defer span.End()

	start := time.Now()
	params := pc.resolve(step.Parameters)
	outcome := StepOutcome{Agent: step.Agent, Action: step.Action}

	resp, err := o.rt.Request(ctx, step.Agent, &agent.Request{
		Action:     step.Action,
		Parameters: params,
	}, o.stepTimeout)
	if err != nil {
		outcome.Status = "failed"
		if errors.Is(err, agent.ErrReplyTimeout) {
			outcome.Status = "timeout"
		}
		outcome.Message = err.Error()
		observability.RecordStep(step.Agent, step.Action, outcome.Status, time.Since(start))
		return outcome
	}

	switch resp.Status {
	case agent.ResponseAmbiguous:
		outcome = o.clarify(ctx, pc, step, params, resp)
	case agent.ResponseSuccess, agent.ResponsePartial:
		outcome.Status = string(resp.Status)
		outcome.Data = resp.Data
		outcome.Message = resp.Message
		pc.record(step.Agent, params, resp.Data)
	default:
		outcome.Status = string(agent.ResponseError)
		outcome.Message = resp.Message
	}
	observability.RecordStep(step.Agent, step.Action, outcome.Status, time.Since(start))
	return outcome
}

// clarify surfaces an ambiguous outcome's candidates to the clarifier
// and, given a selection, re-issues the step as the follow-up action
// the agent named, carrying the chosen candidate's id plus the original
// parameters. No selection fails the step; the plan continues.
func (o *Orchestrator) clarify(ctx context.Context, pc *planContext, step planner.Step, params map[string]any, resp *agent.Response) StepOutcome {
	outcome := StepOutcome{Agent: step.Agent, Action: step.Action}

	idx, err := o.clarifier.Choose(ctx, resp.Message, resp.Meetings)
	if err != nil || idx < 0 || idx >= len(resp.Meetings) {
		if err != nil && !errors.Is(err, ErrNoSelection) {
			log.Printf("[Orchestrator] clarification failed: %v", err)
		}
		observability.RecordClarification(false)
		outcome.Status = "failed"
		outcome.Message = "ambiguous result was not resolved"
		return outcome
	}
	observability.RecordClarification(true)
	chosen := resp.Meetings[idx]

	followAction := resp.Action
	if followAction == "" {
		followAction = "select_meeting"
	}
	followParams := make(map[string]any, len(resp.Params)+len(params)+1)
	for k, v := range params {
		followParams[k] = v
	}
	for k, v := range resp.Params {
		followParams[k] = v
	}
	followParams["meeting_id"] = chosen.ID

	retry, err := o.rt.Request(ctx, step.Agent, &agent.Request{
		Action:     followAction,
		Parameters: followParams,
	}, o.stepTimeout)
	if err != nil {
		outcome.Status = "failed"
		outcome.Message = err.Error()
		return outcome
	}
	if retry.Status == agent.ResponseSuccess || retry.Status == agent.ResponsePartial {
		outcome.Status = string(retry.Status)
		outcome.Data = retry.Data
		outcome.Message = retry.Message
		pc.record(step.Agent, params, retry.Data)
		return outcome
	}
	outcome.Status = "failed"
	outcome.Message = retry.Message
	return outcome
}
