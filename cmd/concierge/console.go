package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strconv"
	"strings"
	"time"

	"github.com/peterh/liner"

	"github.com/barunaniket/concierge/agent"
	"github.com/barunaniket/concierge/orchestrator"
)

// console is the terminal front end. It runs the REPL, forwards each
// line to the orchestrator as a user_request, and doubles as the
// Clarifier: when a step comes back ambiguous it lists the candidates
// and reads the user's pick from the same prompt. The REPL is blocked
// waiting on the request while that happens, so the prompt is free.
type console struct {
	line *liner.State
}

func newConsole() *console {
	l := liner.NewLiner()
	l.SetCtrlCAborts(true)
	return &console{line: l}
}

func (c *console) Close() { c.line.Close() }

func (c *console) Name() string { return "console" }

func (c *console) OnStart(context.Context, *agent.Runtime) error { return nil }

func (c *console) OnStop(context.Context) error { return nil }

func (c *console) Handle(context.Context, *agent.Message) (*agent.Response, error) {
	return nil, nil
}

// Run reads lines until EOF, interrupt or an exit command. Each
// utterance may fan out into several plan steps, so the reply wait is
// a multiple of the per-step timeout.
func (c *console) Run(ctx context.Context, rt *agent.Runtime, sessionID string, stepTimeout time.Duration) error {
	fmt.Println("Concierge ready. Type a request, or \"exit\" to quit.")
	requestTimeout := 10 * stepTimeout
	for {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		input, err := c.line.Prompt("you> ")
		if err != nil {
			if err == io.EOF || errors.Is(err, liner.ErrPromptAborted) {
				fmt.Println()
				return nil
			}
			return err
		}
		input = strings.TrimSpace(input)
		if input == "" {
			continue
		}
		if input == "exit" || input == "quit" {
			return nil
		}
		c.line.AppendHistory(input)

		resp, err := rt.Request(ctx, orchestrator.Name, &agent.Request{
			Action: "user_request",
			Parameters: map[string]any{
				"text":       input,
				"session_id": sessionID,
			},
		}, requestTimeout)
		if err != nil {
			log.Printf("request failed: %v", err)
			continue
		}
		reply, _ := resp.Data["reply"].(string)
		if reply == "" {
			reply = resp.Message
		}
		fmt.Printf("concierge> %s\n", reply)
	}
}

// Choose implements the disambiguation round-trip.
func (c *console) Choose(_ context.Context, message string, meetings []agent.Meeting) (int, error) {
	fmt.Printf("concierge> %s\n", message)
	for i, m := range meetings {
		fmt.Printf("  %d. %s (%s to %s)\n", i+1, m.Title, m.StartTime, m.EndTime)
	}
	input, err := c.line.Prompt("pick a number> ")
	if err != nil {
		return 0, orchestrator.ErrNoSelection
	}
	n, err := strconv.Atoi(strings.TrimSpace(input))
	if err != nil || n < 1 || n > len(meetings) {
		return 0, orchestrator.ErrNoSelection
	}
	return n - 1, nil
}
