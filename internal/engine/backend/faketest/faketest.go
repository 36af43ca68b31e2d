// Package faketest provides a scripted, deterministic core.UnitImpl for
// engine tests, mirroring the call-capture shape of the teacher's
// internal/testutil/fakerunner.Runner.
package faketest

import (
	"context"
	"errors"
	"sync"

	"github.com/trly/unitd/internal/engine/core"
)

// Script is a queue of core.RtMsg values a Handle's Wait replays in
// order, one per call, before blocking until ctx is cancelled.
type Script []core.RtMsg

// Backend is a fake core.UnitImpl. StartErr, if set, makes Start fail
// without ever producing a Handle. Script is copied into each Handle
// returned by Start, so the same Backend can be reused across several
// Guard instances (e.g. a unit that is started, stopped, and restarted).
type Backend struct {
	mu       sync.Mutex
	Script   Script
	StartErr error
	StopErr  error
	starts   int
	stops    int
}

// Starts reports how many times Start has been called.
func (b *Backend) Starts() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.starts
}

// Stops reports how many times Stop has been called.
func (b *Backend) Stops() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stops
}

// Start implements core.UnitImpl.
func (b *Backend) Start(ctx context.Context) (core.Handle, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.starts++
	if b.StartErr != nil {
		return nil, b.StartErr
	}
	script := make(Script, len(b.Script))
	copy(script, b.Script)
	return &Handle{script: script}, nil
}

// Stop implements core.UnitImpl.
func (b *Backend) Stop(ctx context.Context, h core.Handle) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.stops++
	return b.StopErr
}

// Handle replays a fixed Script of RtMsg values, then blocks until ctx
// is done.
type Handle struct {
	mu     sync.Mutex
	script Script
	pos    int
}

// ErrScriptExhausted names the condition of a Wait call made after every
// scripted message has been replayed. Nothing in this package returns
// it: Wait blocks on ctx.Done() in that case and returns ctx.Err().
var ErrScriptExhausted = errors.New("faketest: script exhausted")

// Wait implements core.Handle.
func (h *Handle) Wait(ctx context.Context) (core.RtMsg, error) {
	h.mu.Lock()
	if h.pos < len(h.script) {
		msg := h.script[h.pos]
		h.pos++
		h.mu.Unlock()
		return msg, nil
	}
	h.mu.Unlock()

	<-ctx.Done()
	return core.RtMsg{}, ctx.Err()
}
