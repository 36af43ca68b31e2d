// Package guard implements the per-instance Guard state machine: the
// private task that drives one unit through wait-deps -> starting ->
// active -> stopping -> terminal, owning the backend handle and the
// stop/exit select loop.
package guard

import (
	"context"
	"log/slog"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/engine/statestore"
)

// ControlKind discriminates the messages a Guard's control channel
// accepts.
type ControlKind int

// Control message kinds.
const (
	CtrlDepsReady ControlKind = iota
	CtrlStop
	CtrlDepsFailed
)

// ControlMsg is sent to a Guard's control channel by GuardRegistry.
type ControlMsg struct {
	Kind ControlKind
}

// StateSetter is the slice of StateStore a Guard needs: read, write, and
// the CAS used to serialize dead -> Starting.
type StateSetter interface {
	Get(id core.UnitID) core.State
	Set(id core.UnitID, state core.State)
	SetIf(id core.UnitID, newState core.State, pred func(core.State) bool) statestore.CASResult
	Monitor(id core.UnitID, pred func(core.State) bool) <-chan statestore.MonitorOutcome
}

// RemoveSink is the single call a terminal Guard makes back to
// GuardRegistry.
type RemoveSink interface {
	Remove(id core.UnitID)
}

// TriggerSink receives RtTriggerStart requests emitted by socket-activation
// style backends; implemented by the top-level Engine, which turns it into
// a Start(id) call.
type TriggerSink interface {
	Trigger(id core.UnitID, extra map[string]any)
}

type waitResult struct {
	msg core.RtMsg
	err error
}

// Run drives one unit instance to completion. Call it in its own
// goroutine; it returns once the unit reaches a terminal state and has
// deregistered with registry.
func Run(ctx context.Context, desc core.UnitDesc, states StateSetter, registry RemoveSink, triggers TriggerSink, control <-chan ControlMsg, log *slog.Logger) {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("unit", desc.ID.String(), "kind", desc.Kind.String())

	state, ok := waitDeps(ctx, desc.ID, states, registry, control, log)
	if !ok {
		return
	}
	_ = state

	handle, ok := starting(ctx, desc, states, registry, log)
	if !ok {
		return
	}

	running(ctx, desc, handle, states, registry, triggers, control, log)
}

// waitDeps blocks for DepsReady/Stop/DepsFailed. Returns ok=false once a
// terminal decision (Stop/DepsFailed) has already been written and the
// Guard must exit.
func waitDeps(ctx context.Context, id core.UnitID, states StateSetter, registry RemoveSink, control <-chan ControlMsg, log *slog.Logger) (core.State, bool) {
	select {
	case <-ctx.Done():
		registry.Remove(id)
		return core.Uninit, false

	case msg := <-control:
		switch msg.Kind {
		case CtrlDepsReady:
			return core.Uninit, true
		case CtrlStop:
			log.Debug("stop while waiting on dependencies")
			states.Set(id, core.Stopped)
			registry.Remove(id)
			return core.Uninit, false
		case CtrlDepsFailed:
			log.Debug("dependency failure while waiting on dependencies")
			states.Set(id, core.Failed)
			registry.Remove(id)
			return core.Uninit, false
		}
		return core.Uninit, false
	}
}

// starting performs the SetIf(Starting, dead) race and invokes the
// backend. Retries once per observed Stopping (a previous instance is
// draining) by waiting for that instance's terminal write via Monitor,
// then retrying the CAS.
func starting(ctx context.Context, desc core.UnitDesc, states StateSetter, registry RemoveSink, log *slog.Logger) (core.Handle, bool) {
	id := desc.ID
	for {
		res := states.SetIf(id, core.Starting, core.State.IsDead)
		if res.OK {
			handle, err := desc.Backend.Start(ctx)
			if err != nil {
				log.Warn("backend start failed", "err", err)
				states.Set(id, core.Failed)
				registry.Remove(id)
				return nil, false
			}
			states.Set(id, core.Active)
			return handle, true
		}

		switch res.State {
		case core.Stopping:
			log.Debug("observed stopping instance, waiting for it to clear")
			select {
			case <-ctx.Done():
				registry.Remove(id)
				return nil, false
			case <-states.Monitor(id, core.State.IsDead):
			}
			continue
		default:
			log.Error("unexpected state observed entering starting", "observed", res.State.String())
			registry.Remove(id)
			return nil, false
		}
	}
}

// running loops over the control channel and the backend's runtime event
// stream until the unit reaches a terminal state.
func running(ctx context.Context, desc core.UnitDesc, handle core.Handle, states StateSetter, registry RemoveSink, triggers TriggerSink, control <-chan ControlMsg, log *slog.Logger) {
	id := desc.ID
	waitCh := make(chan waitResult)
	done := make(chan struct{})
	defer close(done)

	go func() {
		for {
			msg, err := handle.Wait(ctx)
			select {
			case waitCh <- waitResult{msg: msg, err: err}:
			case <-done:
				return
			}
			if err != nil || msg.Kind == core.RtExit {
				return
			}
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return

		case ctrl := <-control:
			switch ctrl.Kind {
			case CtrlStop:
				states.Set(id, core.Stopping)
				if err := desc.Backend.Stop(ctx, handle); err != nil {
					log.Warn("backend stop failed", "err", err)
					states.Set(id, core.Failed)
				} else {
					states.Set(id, core.Stopped)
				}
				registry.Remove(id)
				return
			default:
				log.Debug("ignoring control message while running", "kind", ctrl.Kind)
			}

		case wr := <-waitCh:
			if wr.err != nil {
				log.Warn("backend wait failed", "err", wr.err)
				states.Set(id, core.Failed)
				registry.Remove(id)
				return
			}
			switch wr.msg.Kind {
			case core.RtExit:
				states.Set(id, wr.msg.ExitState)
				registry.Remove(id)
				return
			case core.RtYield:
				continue
			case core.RtTriggerStart:
				if triggers != nil {
					triggers.Trigger(wr.msg.TriggerID, wr.msg.Extra)
				}
				continue
			}
		}
	}
}
