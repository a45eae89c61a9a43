package pipeline

import "context"

// Gate is the process-global binary semaphore around document creation.
// The docs upstream fails TLS handshakes under parallel load from one
// process, so at most one goroutine may be inside the gated region at
// any instant regardless of the worker count.
type Gate struct {
	slot chan struct{}
}

// NewGate creates an open gate
func NewGate() *Gate {
	return &Gate{slot: make(chan struct{}, 1)}
}

// Acquire blocks until the gate is free or ctx ends
func (g *Gate) Acquire(ctx context.Context) error {
	select {
	case g.slot <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release opens the gate. Panics when called without a matching Acquire;
// that is a programming error, not a runtime condition.
func (g *Gate) Release() {
	select {
	case <-g.slot:
	default:
		panic("pipeline: gate released without acquire")
	}
}
