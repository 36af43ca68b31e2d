// Package socket sketches socket-activation: a three-state
// (Listening, Starting, Running) mini state machine built on a real
// net.Listener over AF_UNIX, emitting RtTriggerStart when a connection
// arrives. This satisfies spec.md's "socket-activation FD passing
// (sketched but not required)" without implementing SCM_RIGHTS fd
// inheritance: the triggered service unit is simply started fresh by
// the engine, it does not inherit the accepted connection's fd.
package socket

import (
	"context"
	"fmt"
	"net"

	"github.com/trly/unitd/internal/engine/core"
)

// Phase is the socket backend's own sub-state, distinct from the
// engine-wide core.State the owning Guard reports.
type Phase int

// Socket backend phases.
const (
	PhaseListening Phase = iota
	PhaseStarting
	PhaseRunning
)

func (p Phase) String() string {
	switch p {
	case PhaseListening:
		return "listening"
	case PhaseStarting:
		return "starting"
	case PhaseRunning:
		return "running"
	default:
		return "unknown"
	}
}

// Backend listens on a Unix domain socket and, on every accepted
// connection, emits an RtTriggerStart for Trigger so the activated
// service unit is started.
type Backend struct {
	SocketPath string
	Trigger    core.UnitID
}

// New returns a core.UnitImpl that listens on socketPath and triggers
// the start of trigger on each accepted connection.
func New(socketPath string, trigger core.UnitID) core.UnitImpl {
	return &Backend{SocketPath: socketPath, Trigger: trigger}
}

// Start implements core.UnitImpl: binds the listener (PhaseListening)
// and returns a Handle whose Wait transitions through PhaseStarting to
// PhaseRunning as connections arrive.
func (b *Backend) Start(ctx context.Context) (core.Handle, error) {
	ln, err := net.Listen("unix", b.SocketPath)
	if err != nil {
		return nil, fmt.Errorf("socket: listening on %s: %w", b.SocketPath, err)
	}
	return &handle{ln: ln, trigger: b.Trigger, phase: PhaseListening}, nil
}

// Stop implements core.UnitImpl.
func (b *Backend) Stop(ctx context.Context, h core.Handle) error {
	sh, ok := h.(*handle)
	if !ok {
		return fmt.Errorf("socket: Stop called with foreign handle")
	}
	return sh.ln.Close()
}

type handle struct {
	ln      net.Listener
	trigger core.UnitID
	phase   Phase
}

// Phase reports the backend's current sub-state, exposed for tests and
// introspection; it is not part of core.Handle.
func (h *handle) Phase() Phase {
	return h.phase
}

// Wait implements core.Handle: each accepted connection advances
// Listening -> Starting -> Running and yields an RtTriggerStart; the
// connection itself is closed immediately, matching the "no fd-passing"
// scope decision.
func (h *handle) Wait(ctx context.Context) (core.RtMsg, error) {
	type acceptResult struct {
		conn net.Conn
		err  error
	}
	accepted := make(chan acceptResult, 1)
	go func() {
		conn, err := h.ln.Accept()
		accepted <- acceptResult{conn: conn, err: err}
	}()

	select {
	case <-ctx.Done():
		return core.RtMsg{}, ctx.Err()
	case res := <-accepted:
		if res.err != nil {
			return core.RtMsg{}, fmt.Errorf("socket: accept on %s: %w", h.trigger.String(), res.err)
		}
		res.conn.Close()
		h.phase = PhaseStarting
		msg := core.RtMsg{Kind: core.RtTriggerStart, TriggerID: h.trigger}
		h.phase = PhaseRunning
		return msg, nil
	}
}
