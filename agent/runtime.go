package agent

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// defaultPollInterval bounds how long the receive loop blocks on an
// empty mailbox before re-checking for shutdown.
const defaultPollInterval = 200 * time.Millisecond

// Runtime hosts one Capability: it owns the mailbox receive loop, the
// status machine, per-kind handlers, and the correlation-id futures for
// request/response exchanges.
type Runtime struct {
	cap Capability

	bus     *Bus
	mailbox *Mailbox

	mu       sync.Mutex
	status   Status
	handlers map[string]Handler
	running  bool
	cancel   context.CancelFunc
	done     chan struct{}

	replies *pending

	// deferred holds messages popped while pumping the mailbox inside
	// Request. The receive loop drains these before the mailbox so
	// arrival order is preserved.
	defMu    sync.Mutex
	deferred []*Message

	pollInterval time.Duration
}

// NewRuntime wraps a capability. The runtime is inert until it is
// attached to a bus and started, normally by a Registry.
func NewRuntime(c Capability) *Runtime {
	r := &Runtime{
		cap:          c,
		status:       StatusInitializing,
		handlers:     make(map[string]Handler),
		replies:      newPending(),
		pollInterval: defaultPollInterval,
	}
	r.handlers[KindTaskResponse] = r.replyHandler
	return r
}

// Name returns the hosted capability's bus address.
func (r *Runtime) Name() string { return r.cap.Name() }

// Status returns the current lifecycle state.
func (r *Runtime) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

func (r *Runtime) setStatus(s Status) {
	r.mu.Lock()
	r.status = s
	r.mu.Unlock()
}

// QueueLen reports the number of unprocessed messages.
func (r *Runtime) QueueLen() int {
	if r.mailbox == nil {
		return 0
	}
	r.defMu.Lock()
	n := len(r.deferred)
	r.defMu.Unlock()
	return n + r.mailbox.Len()
}

// RegisterHandler routes messages of the given kind to h instead of the
// capability's Handle. Registering again for the same kind replaces the
// previous handler.
func (r *Runtime) RegisterHandler(kind string, h Handler) {
	r.mu.Lock()
	r.handlers[kind] = h
	r.mu.Unlock()
}

func (r *Runtime) handlerFor(kind string) (Handler, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.handlers[kind]
	return h, ok
}

// attach binds the runtime to a bus and its mailbox. Called by the
// registry before Start.
func (r *Runtime) attach(bus *Bus, mb *Mailbox) {
	r.bus = bus
	r.mailbox = mb
}

// Start brings the agent up: the receive loop goes live first so the
// capability's OnStart can already exchange messages, then OnStart runs.
// An OnStart failure leaves the agent in StatusError with the loop
// stopped.
func (r *Runtime) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.running {
		r.mu.Unlock()
		return nil
	}
	if r.bus == nil || r.mailbox == nil {
		r.mu.Unlock()
		return fmt.Errorf("agent %s: %w", r.Name(), ErrNotRunning)
	}
	loopCtx, cancel := context.WithCancel(context.Background())
	r.cancel = cancel
	r.done = make(chan struct{})
	r.running = true
	r.status = StatusIdle
	r.mu.Unlock()

	go r.receiveLoop(loopCtx)

	if err := r.cap.OnStart(ctx, r); err != nil {
		r.setStatus(StatusError)
		r.stopLoop()
		return fmt.Errorf("agent %s start: %w", r.Name(), err)
	}
	log.Printf("[Agent:%s] started", r.Name())
	return nil
}

// Stop shuts the receive loop down, waits for in-flight dispatch to
// finish, then runs the capability's OnStop. Queued messages stay in the
// mailbox and survive a later Start.
func (r *Runtime) Stop(ctx context.Context) error {
	if !r.stopLoop() {
		return nil
	}
	err := r.cap.OnStop(ctx)
	log.Printf("[Agent:%s] stopped", r.Name())
	if err != nil {
		return fmt.Errorf("agent %s stop: %w", r.Name(), err)
	}
	return nil
}

func (r *Runtime) stopLoop() bool {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return false
	}
	r.running = false
	cancel, done := r.cancel, r.done
	r.mu.Unlock()
	cancel()
	<-done
	return true
}

// Reinitialize recovers an agent from StatusError by re-running its
// OnStart hook. It fails if the agent is in any other state.
func (r *Runtime) Reinitialize(ctx context.Context) error {
	r.mu.Lock()
	if r.status != StatusError {
		s := r.status
		r.mu.Unlock()
		return fmt.Errorf("agent %s: reinitialize from %s: only error state can be reinitialized", r.Name(), s)
	}
	r.status = StatusInitializing
	wasRunning := r.running
	r.mu.Unlock()

	if !wasRunning {
		loopCtx, cancel := context.WithCancel(context.Background())
		r.mu.Lock()
		r.cancel = cancel
		r.done = make(chan struct{})
		r.running = true
		r.mu.Unlock()
		go r.receiveLoop(loopCtx)
	}

	if err := r.cap.OnStart(ctx, r); err != nil {
		r.setStatus(StatusError)
		return fmt.Errorf("agent %s reinitialize: %w", r.Name(), err)
	}
	r.setStatus(StatusIdle)
	log.Printf("[Agent:%s] reinitialized", r.Name())
	return nil
}

func (r *Runtime) receiveLoop(ctx context.Context) {
	defer close(r.done)
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}
		msg, ok := r.nextMessage(ctx)
		if !ok {
			continue
		}
		r.dispatch(ctx, msg)
	}
}

// nextMessage drains deferred messages before the mailbox so messages
// set aside during a Request pump keep their original order.
func (r *Runtime) nextMessage(ctx context.Context) (*Message, bool) {
	r.defMu.Lock()
	if len(r.deferred) > 0 {
		m := r.deferred[0]
		r.deferred = r.deferred[1:]
		r.defMu.Unlock()
		return m, true
	}
	r.defMu.Unlock()
	return r.mailbox.Pop(ctx, r.pollInterval)
}

// dispatch runs one message through the kind handler or the capability
// and sends the reply. A handler error or panic flips the agent to
// StatusError and returns an error envelope to the sender. An errored
// agent refuses further work until Reinitialize: the message is not
// handled and the sender gets an ErrAgentErrored envelope.
func (r *Runtime) dispatch(ctx context.Context, msg *Message) {
	r.mu.Lock()
	if r.status == StatusError {
		r.mu.Unlock()
		log.Printf("[Agent:%s] refusing %s from %s: %v", r.Name(), msg.Kind, msg.Sender, ErrAgentErrored)
		if msg.Sender != SystemSender && msg.Kind != KindTaskResponse {
			r.reply(msg, Errorf("agent %s: %v", r.Name(), ErrAgentErrored))
		}
		return
	}
	r.status = StatusBusy
	r.mu.Unlock()

	resp, err := r.invoke(ctx, msg)
	if err != nil {
		log.Printf("[Agent:%s] handler error on %s from %s: %v", r.Name(), msg.Kind, msg.Sender, err)
		r.setStatus(StatusError)
		if msg.Sender != SystemSender && msg.Kind != KindTaskResponse {
			r.reply(msg, Errorf("agent %s failed: %v", r.Name(), err))
		}
		return
	}
	if resp != nil && msg.Sender != SystemSender && msg.Kind != KindTaskResponse {
		r.reply(msg, resp)
	}
	r.setStatus(StatusIdle)
}

func (r *Runtime) invoke(ctx context.Context, msg *Message) (resp *Response, err error) {
	defer func() {
		if p := recover(); p != nil {
			resp, err = nil, fmt.Errorf("panic: %v", p)
		}
	}()
	if h, ok := r.handlerFor(msg.Kind); ok {
		return h(ctx, msg)
	}
	return r.cap.Handle(ctx, msg)
}

// reply sends a task_response back to the original sender, echoing the
// request's correlation id.
func (r *Runtime) reply(req *Message, resp *Response) {
	out := NewMessage(r.Name(), req.Sender, KindTaskResponse, resp, req.CorrelationID)
	if err := r.bus.Send(out); err != nil {
		log.Printf("[Agent:%s] reply to %s failed: %v", r.Name(), req.Sender, err)
	}
}

// replyHandler routes incoming task_response messages to their waiting
// Request. Late or unsolicited replies are logged and discarded.
func (r *Runtime) replyHandler(_ context.Context, msg *Message) (*Response, error) {
	resp, err := DecodeResponse(msg)
	if err != nil {
		return nil, err
	}
	if !r.replies.resolve(msg.CorrelationID, resp) {
		log.Printf("[Agent:%s] discarding late reply from %s (corr=%s)", r.Name(), msg.Sender, msg.CorrelationID)
	}
	return nil, nil
}

// Send fires a task at another agent without waiting for a reply.
func (r *Runtime) Send(recipient string, req *Request) error {
	msg := NewMessage(r.Name(), recipient, KindTask, req, NewCorrelationID())
	return r.bus.Send(msg)
}

// Publish fans a payload out to every subscriber of a topic.
func (r *Runtime) Publish(topic, kind string, payload any) int {
	msg := NewMessage(r.Name(), topic, kind, payload, NewCorrelationID())
	return r.bus.Publish(topic, msg)
}

// Subscribe adds this agent to a topic's fan-out list.
func (r *Runtime) Subscribe(topic string) {
	r.bus.Subscribe(topic, r.Name())
}

// Request sends a task to recipient and blocks until the matching
// task_response arrives or the timeout elapses. While waiting it pumps
// this agent's own mailbox so an agent can issue requests from inside
// its own Handle without deadlocking: replies are handled inline and
// unrelated messages are set aside for the receive loop.
func (r *Runtime) Request(ctx context.Context, recipient string, req *Request, timeout time.Duration) (*Response, error) {
	correlationID := NewCorrelationID()
	future := r.replies.add(correlationID)

	msg := NewMessage(r.Name(), recipient, KindTask, req, correlationID)
	if err := r.bus.Send(msg); err != nil {
		r.replies.cancel(correlationID)
		return nil, err
	}

	deadline := time.Now().Add(timeout)
	for {
		select {
		case resp := <-future:
			return resp, nil
		case <-ctx.Done():
			r.replies.cancel(correlationID)
			return nil, ctx.Err()
		default:
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			r.replies.cancel(correlationID)
			return nil, fmt.Errorf("request %s to %s: %w", req.Action, recipient, ErrReplyTimeout)
		}
		wait := r.pollInterval
		if remaining < wait {
			wait = remaining
		}
		in, ok := r.mailbox.Pop(ctx, wait)
		if !ok {
			continue
		}
		if h, found := r.handlerFor(in.Kind); found {
			if _, err := h(ctx, in); err != nil {
				log.Printf("[Agent:%s] handler error on %s while waiting: %v", r.Name(), in.Kind, err)
			}
			continue
		}
		r.defMu.Lock()
		r.deferred = append(r.deferred, in)
		r.defMu.Unlock()
	}
}
