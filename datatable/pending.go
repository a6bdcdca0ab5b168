package datatable

import (
	"context"
	"errors"
	"sync"
)

// Pending tracks one state change until its fetch settles.
type Pending struct {
	seq  uint64
	done chan struct{}
	once sync.Once
	err  error
}

func newPending(seq uint64) *Pending {
	return &Pending{seq: seq, done: make(chan struct{})}
}

// settled returns a Pending that is already complete.
func settled(err error) *Pending {
	p := newPending(0)
	p.settle(err)
	return p
}

func (p *Pending) settle(err error) {
	p.once.Do(func() {
		p.err = err
		close(p.done)
	})
}

// Seq returns the request sequence number, or zero when no fetch was issued.
func (p *Pending) Seq() uint64 {
	return p.seq
}

// Done is closed once the request has settled.
func (p *Pending) Done() <-chan struct{} {
	return p.done
}

// Wait blocks until the request settles or ctx ends. It returns the fetch
// error (the table shows an empty page in that case), ErrSuperseded when a
// newer request replaced this one, or a validation error for rejected changes.
func (p *Pending) Wait(ctx context.Context) error {
	select {
	case <-p.done:
		return p.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the settled error, or nil while still running.
func (p *Pending) Err() error {
	select {
	case <-p.done:
		return p.err
	default:
		return nil
	}
}

// Superseded reports whether the result was discarded for a newer request.
func (p *Pending) Superseded() bool {
	return errors.Is(p.Err(), ErrSuperseded)
}
