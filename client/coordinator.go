package client

import (
	"context"
	"sync"
	"sync/atomic"
)

// RefreshFunc performs one refresh cycle and returns the new access token.
// It is responsible for updating or clearing the CredentialStore before it
// returns, so queued requests observe the outcome when they resume.
type RefreshFunc func(ctx context.Context) (string, error)

type refreshResult struct {
	token string
	err   error
}

// Coordinator guarantees at most one refresh in flight. Requests that need
// a refresh while one is running are queued and resolved with its result.
//
// Each finished cycle advances a generation. A request that read the
// generation before it was sent and hits a 401 after a newer cycle has
// finished is handed that cycle's result instead of starting another.
type Coordinator struct {
	mu         sync.Mutex
	refreshing bool
	waiters    []chan refreshResult
	generation uint64
	last       refreshResult

	cycles atomic.Uint64
}

func NewCoordinator() *Coordinator {
	return &Coordinator{}
}

// Refresh runs fn unless a refresh is already in flight, in which case it
// waits for that one. initiator reports whether this call ran fn. A waiter
// whose ctx ends stops waiting without affecting the cycle.
func (c *Coordinator) Refresh(ctx context.Context, fn RefreshFunc) (token string, initiator bool, err error) {
	return c.RefreshAfter(ctx, c.Generation(), fn)
}

// RefreshAfter is Refresh for a caller that observed generation seen
// before sending the request that failed. If a cycle has finished since
// then, its result is returned and fn does not run.
func (c *Coordinator) RefreshAfter(ctx context.Context, seen uint64, fn RefreshFunc) (token string, initiator bool, err error) {
	wait, initiator := c.beginRefresh(seen)
	if !initiator {
		select {
		case res := <-wait:
			return res.token, false, res.err
		case <-ctx.Done():
			return "", false, ctx.Err()
		}
	}

	c.cycles.Add(1)
	token, err = fn(ctx)
	c.endRefresh(refreshResult{token: token, err: err})
	return token, true, err
}

// Refreshing reports whether a cycle is in flight.
func (c *Coordinator) Refreshing() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.refreshing
}

// Generation is the number of refresh cycles finished.
func (c *Coordinator) Generation() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.generation
}

// Cycles is the number of refresh cycles started.
func (c *Coordinator) Cycles() uint64 {
	return c.cycles.Load()
}

func (c *Coordinator) beginRefresh(seen uint64) (<-chan refreshResult, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.refreshing {
		return c.enqueue(), false
	}
	if c.generation != seen {
		settled := make(chan refreshResult, 1)
		settled <- c.last
		return settled, false
	}
	c.refreshing = true
	return nil, true
}

// enqueue registers a waiter. Callers hold c.mu.
func (c *Coordinator) enqueue() <-chan refreshResult {
	ch := make(chan refreshResult, 1)
	c.waiters = append(c.waiters, ch)
	return ch
}

// endRefresh resolves every waiter and clears the flag in one critical
// section, so a request arriving after it starts a fresh cycle.
func (c *Coordinator) endRefresh(res refreshResult) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.generation++
	c.last = res
	c.drain(res)
	c.refreshing = false
}

// drain resolves and forgets all waiters. Callers hold c.mu.
func (c *Coordinator) drain(res refreshResult) {
	for _, ch := range c.waiters {
		ch <- res
	}
	c.waiters = nil
}

func (c *Coordinator) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.waiters)
}
