package agent

import (
	"fmt"
	"sync"
	"testing"
)

func TestPending_ResolveDeliversToWaiter(t *testing.T) {
	p := newPending()
	ch := p.add("corr-1")

	if !p.resolve("corr-1", &Response{Status: ResponseSuccess}) {
		t.Fatal("resolve returned false for registered waiter")
	}
	resp := <-ch
	if resp.Status != ResponseSuccess {
		t.Errorf("status = %q, want %q", resp.Status, ResponseSuccess)
	}
}

func TestPending_LateReplyDiscarded(t *testing.T) {
	p := newPending()
	p.add("corr-1")
	p.cancel("corr-1")

	if p.resolve("corr-1", &Response{Status: ResponseSuccess}) {
		t.Error("resolve returned true after cancel")
	}
	if p.resolve("never-registered", &Response{Status: ResponseSuccess}) {
		t.Error("resolve returned true for unknown correlation id")
	}
}

func TestPending_ConcurrentExchangesNotCrossWired(t *testing.T) {
	p := newPending()
	const n = 50

	chans := make([]<-chan *Response, n)
	for i := 0; i < n; i++ {
		chans[i] = p.add(fmt.Sprintf("corr-%d", i))
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			p.resolve(fmt.Sprintf("corr-%d", i), &Response{
				Status: ResponseSuccess,
				Data:   map[string]any{"id": float64(i)},
			})
		}(i)
	}
	wg.Wait()

	for i := 0; i < n; i++ {
		resp := <-chans[i]
		if got := resp.Data["id"]; got != float64(i) {
			t.Errorf("waiter %d got id = %v, want %v", i, got, i)
		}
	}
}
