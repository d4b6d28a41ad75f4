package agent

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"github.com/barunaniket/concierge/pkg/observability"
)

// Registry owns the agent fleet: it binds capabilities to the bus,
// starts and stops them as a group, and answers status queries. The
// lock guards only the table; lifecycle hooks run outside it so a slow
// OnStart never blocks lookups.
type Registry struct {
	mu     sync.Mutex
	bus    *Bus
	agents map[string]*Runtime
	order  []string
}

// NewRegistry creates a registry bound to the given bus.
func NewRegistry(bus *Bus) *Registry {
	return &Registry{
		bus:    bus,
		agents: make(map[string]*Runtime),
	}
}

// Register wraps the capability in a runtime and attaches it to the
// bus. The agent is not started; use StartAll or Start on the runtime.
func (r *Registry) Register(c Capability) (*Runtime, error) {
	name := c.Name()
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.agents[name]; ok {
		log.Printf("[Registry] duplicate registration for %q rejected", name)
		return nil, fmt.Errorf("register %s: %w", name, ErrAgentAlreadyRegistered)
	}
	rt := NewRuntime(c)
	rt.attach(r.bus, r.bus.Register(name))
	r.agents[name] = rt
	r.order = append(r.order, name)
	log.Printf("[Registry] registered agent %q", name)
	return rt, nil
}

// Unregister stops the agent and removes it from the bus. The table
// entry is removed first so concurrent lookups never see a half-stopped
// agent.
func (r *Registry) Unregister(ctx context.Context, name string) error {
	r.mu.Lock()
	rt, ok := r.agents[name]
	delete(r.agents, name)
	r.order = removeString(r.order, name)
	r.mu.Unlock()
	if !ok {
		return fmt.Errorf("unregister %s: %w", name, ErrAgentNotFound)
	}
	err := rt.Stop(ctx)
	r.bus.Unregister(name)
	return err
}

// Get looks up an agent's runtime by name.
func (r *Registry) Get(name string) (*Runtime, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rt, ok := r.agents[name]
	if !ok {
		return nil, fmt.Errorf("get %s: %w", name, ErrAgentNotFound)
	}
	return rt, nil
}

// List returns agent names in registration order.
func (r *Registry) List() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]string, len(r.order))
	copy(out, r.order)
	return out
}

func (r *Registry) snapshot() []*Runtime {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]*Runtime, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.agents[name])
	}
	return out
}

// StartAll starts every agent in registration order. A failed start is
// logged and does not stop the rest; all failures are joined.
func (r *Registry) StartAll(ctx context.Context) error {
	var errs []error
	for _, rt := range r.snapshot() {
		if err := rt.Start(ctx); err != nil {
			log.Printf("[Registry] start %s: %v", rt.Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// StopAll stops every agent in reverse registration order.
func (r *Registry) StopAll(ctx context.Context) error {
	rts := r.snapshot()
	var errs []error
	for i := len(rts) - 1; i >= 0; i-- {
		if err := rts[i].Stop(ctx); err != nil {
			log.Printf("[Registry] stop %s: %v", rts[i].Name(), err)
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// AgentState is one row of a registry status report.
type AgentState struct {
	Name       string `json:"name"`
	Status     Status `json:"status"`
	QueueDepth int    `json:"queue_depth"`
}

// Status reports every agent's lifecycle state and queue depth. Depth
// comes from the runtime so messages set aside during a Request pump
// are counted alongside the mailbox. Each snapshot also refreshes the
// per-agent depth gauge.
func (r *Registry) Status() []AgentState {
	rts := r.snapshot()
	out := make([]AgentState, 0, len(rts))
	for _, rt := range rts {
		depth := rt.QueueLen()
		observability.SetQueueDepth(rt.Name(), depth)
		out = append(out, AgentState{
			Name:       rt.Name(),
			Status:     rt.Status(),
			QueueDepth: depth,
		})
	}
	return out
}
