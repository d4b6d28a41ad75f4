package agent

import "sync"

// pending tracks in-flight requests by correlation id. Each id maps to a
// one-shot channel the requester waits on; the receive path resolves it
// when the matching task_response arrives.
type pending struct {
	mu      sync.Mutex
	waiters map[string]chan *Response
}

func newPending() *pending {
	return &pending{waiters: make(map[string]chan *Response)}
}

// add registers a waiter for the correlation id and returns its channel.
func (p *pending) add(correlationID string) <-chan *Response {
	ch := make(chan *Response, 1)
	p.mu.Lock()
	p.waiters[correlationID] = ch
	p.mu.Unlock()
	return ch
}

// resolve delivers resp to the waiter for the correlation id. It returns
// false when no waiter exists (late or unsolicited reply).
func (p *pending) resolve(correlationID string, resp *Response) bool {
	p.mu.Lock()
	ch, ok := p.waiters[correlationID]
	delete(p.waiters, correlationID)
	p.mu.Unlock()
	if !ok {
		return false
	}
	ch <- resp
	return true
}

// cancel abandons the waiter for the correlation id. Any reply arriving
// afterwards is treated as late and discarded by resolve.
func (p *pending) cancel(correlationID string) {
	p.mu.Lock()
	delete(p.waiters, correlationID)
	p.mu.Unlock()
}
