// Package barrier implements the request barrier: a quiescence
// primitive separating tool-call admission from reload bodies. One
// mutex guards the in-flight request count and the reload flag;
// waiters block on broadcast channels that are re-checked under the
// lock after every wake, so admission (check ready, then increment)
// is a single critical section. Reload attempts are serialized by a
// dedicated mutex.
package barrier

import (
	"context"
	"sync"
	"time"

	"github.com/opencuff/opencuff/errs"
)

// RequestBarrier gates tool calls against plugin reloads: requests are
// admitted only while no reload is in progress, and a reload body runs
// only once every admitted request has drained. The zero value is not
// usable; construct with New.
type RequestBarrier struct {
	queueTimeout time.Duration

	mu             sync.Mutex
	activeRequests int
	reloading      bool
	readyCh        chan struct{} // closed while no reload is in progress; replaced when one begins
	drainCh        chan struct{} // closed while activeRequests == 0; replaced on 0 -> 1

	reloadMu sync.Mutex // serializes concurrent reload attempts
}

// New constructs a RequestBarrier. queueTimeout <= 0 defaults to 5s.
func New(queueTimeout time.Duration) *RequestBarrier {
	if queueTimeout <= 0 {
		queueTimeout = 5 * time.Second
	}
	b := &RequestBarrier{
		queueTimeout: queueTimeout,
		readyCh:      make(chan struct{}),
		drainCh:      make(chan struct{}),
	}
	close(b.readyCh)
	close(b.drainCh)
	return b
}

// RequestScope waits (up to queueTimeout) for any in-progress reload to
// finish, then admits the request. The reloading check and the
// active-count increment happen under one hold of the mutex, so a
// reload beginning between them cannot slip its body past a request it
// never saw. The returned release func must be called exactly once, on
// every exit path; callers should `defer release()` immediately.
func (b *RequestBarrier) RequestScope(ctx context.Context) (release func(), err error) {
	waitCtx, cancel := context.WithTimeout(ctx, b.queueTimeout)
	defer cancel()

	b.mu.Lock()
	for b.reloading {
		ready := b.readyCh
		b.mu.Unlock()
		select {
		case <-ready:
		case <-waitCtx.Done():
			return nil, errs.New(errs.Timeout, "timed out waiting for in-progress reload to finish")
		}
		b.mu.Lock()
	}
	b.activeRequests++
	if b.activeRequests == 1 {
		b.drainCh = make(chan struct{})
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.activeRequests--
		if b.activeRequests == 0 {
			close(b.drainCh)
		}
		b.mu.Unlock()
	}, nil
}

// ReloadScope serializes concurrent reload attempts (at most one
// executing), blocks new requests from entering, and waits for
// in-flight requests to drain before returning control to the caller.
// The returned release func reopens the gate for requests and must be
// called exactly once. Reload draining has no deadline; only ctx
// cancellation can abort the wait, in which case the barrier state is
// restored and RequestScope is immediately available again.
func (b *RequestBarrier) ReloadScope(ctx context.Context) (release func(), err error) {
	b.reloadMu.Lock()

	b.mu.Lock()
	b.reloading = true
	b.readyCh = make(chan struct{})
	for b.activeRequests > 0 {
		drain := b.drainCh
		b.mu.Unlock()
		select {
		case <-drain:
		case <-ctx.Done():
			b.mu.Lock()
			b.reloading = false
			close(b.readyCh)
			b.mu.Unlock()
			b.reloadMu.Unlock()
			return nil, ctx.Err()
		}
		b.mu.Lock()
	}
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		b.reloading = false
		close(b.readyCh)
		b.mu.Unlock()
		b.reloadMu.Unlock()
	}, nil
}

// ActiveRequests returns the current in-flight request count, used by
// tests asserting the "drains to zero before reload" invariant.
func (b *RequestBarrier) ActiveRequests() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.activeRequests
}

// Reloading reports whether a reload scope is currently in progress.
func (b *RequestBarrier) Reloading() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.reloading
}
