// Package agent provides the messaging and lifecycle core: a mailbox
// bus with topic fan-out, a runtime that drives a capability's receive
// loop and status machine, and a registry that owns the fleet.
package agent

import (
	"context"
	"errors"
)

// Status is the lifecycle state of a running agent.
type Status string

const (
	StatusInitializing Status = "initializing"
	StatusIdle         Status = "idle"
	StatusBusy         Status = "busy"

	// StatusError is sticky: once entered, the agent stops accepting
	// work until Reinitialize is called.
	StatusError Status = "error"
)

var (
	// ErrUnknownRecipient is returned by Bus.Send when no mailbox exists
	// for the addressed agent.
	ErrUnknownRecipient = errors.New("unknown recipient")

	// ErrAgentNotFound is returned by registry lookups for unknown names.
	ErrAgentNotFound = errors.New("agent not found")

	// ErrAgentAlreadyRegistered is returned when a name is registered twice.
	ErrAgentAlreadyRegistered = errors.New("agent already registered")

	// ErrReplyTimeout is returned by Runtime.Request when no response
	// arrives within the deadline.
	ErrReplyTimeout = errors.New("timed out waiting for reply")

	// ErrAgentErrored is returned when work is offered to an agent whose
	// status is StatusError.
	ErrAgentErrored = errors.New("agent is in error state")

	// ErrNotRunning is returned for operations that need a started runtime.
	ErrNotRunning = errors.New("agent is not running")
)

// Capability is the domain behavior hosted by a Runtime. Implementations
// hold their own state; the runtime serializes all calls to Handle, so a
// capability needs no internal locking against its own dispatch.
type Capability interface {
	// Name is the agent's bus address. It must be unique per registry.
	Name() string

	// OnStart runs after the runtime's receive loop is live. The runtime
	// is attached and usable (capabilities may send messages from here).
	// A non-nil error puts the agent into StatusError.
	OnStart(ctx context.Context, rt *Runtime) error

	// OnStop runs during shutdown, after the receive loop has drained.
	OnStop(ctx context.Context) error

	// Handle processes one task and returns the response to send back.
	// A nil response suppresses the reply. A non-nil error marks the
	// agent errored and an error envelope is returned to the sender.
	Handle(ctx context.Context, msg *Message) (*Response, error)
}

// Handler processes messages of one registered kind, bypassing Handle.
type Handler func(ctx context.Context, msg *Message) (*Response, error)
