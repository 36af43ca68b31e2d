// Package guardregistry implements the GuardRegistry actor: the mapping
// from UnitID to the control channel of its live Guard, enforcing
// at-most-one Guard per unit and routing DepsReady/Stop/DepsFailed to the
// right instance.
package guardregistry

import (
	"context"
	"log/slog"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/engine/guard"
)

// StartListAdder is the single call GuardRegistry makes to
// DependencyResolver on Insert.
type StartListAdder interface {
	AddToStartList(id core.UnitID, deps core.UnitDeps)
}

const controlQueueDepth = 4

// Registry is the GuardRegistry actor.
type Registry struct {
	resolver StartListAdder
	states   guard.StateSetter
	triggers guard.TriggerSink
	log      *slog.Logger
	inbox    chan any
}

type containsMsg struct {
	id    core.UnitID
	reply chan bool
}

type insertMsg struct {
	desc core.UnitDesc
}

type removeMsg struct {
	id core.UnitID
}

type depsReadyMsg struct{ id core.UnitID }
type stopMsg struct{ id core.UnitID }
type depsFailedMsg struct{ id core.UnitID }

type dumpMsg struct {
	reply chan []core.UnitID
}

// New builds a GuardRegistry. triggers may be nil if no socket-activation
// style backends are in use.
func New(resolver StartListAdder, states guard.StateSetter, triggers guard.TriggerSink, log *slog.Logger, queueDepth int) *Registry {
	if log == nil {
		log = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Registry{
		resolver: resolver,
		states:   states,
		triggers: triggers,
		log:      log.With("actor", "guardregistry"),
		inbox:    make(chan any, queueDepth),
	}
}

// Run drives the actor loop until ctx is cancelled; it is also the parent
// context every spawned Guard runs under, so cancelling it tears every
// live Guard down without an explicit Stop.
func (reg *Registry) Run(ctx context.Context) {
	live := make(map[core.UnitID]chan guard.ControlMsg)

	send := func(id core.UnitID, msg guard.ControlMsg) {
		ch, ok := live[id]
		if !ok {
			reg.log.Debug("message to unknown/closed guard dropped", "unit", id.String())
			return
		}
		select {
		case ch <- msg:
		case <-ctx.Done():
		}
	}

	for {
		select {
		case <-ctx.Done():
			return

		case m := <-reg.inbox:
			switch msg := m.(type) {
			case containsMsg:
				_, ok := live[msg.id]
				msg.reply <- ok

			case insertMsg:
				if _, ok := live[msg.desc.ID]; ok {
					reg.log.Debug("insert dropped, guard already live", "unit", msg.desc.ID.String())
					continue
				}
				control := make(chan guard.ControlMsg, controlQueueDepth)
				live[msg.desc.ID] = control
				go guard.Run(ctx, msg.desc, reg.states, reg, reg.triggers, control, reg.log)
				reg.resolver.AddToStartList(msg.desc.ID, msg.desc.Deps)

			case removeMsg:
				delete(live, msg.id)

			case depsReadyMsg:
				send(msg.id, guard.ControlMsg{Kind: guard.CtrlDepsReady})

			case stopMsg:
				send(msg.id, guard.ControlMsg{Kind: guard.CtrlStop})

			case depsFailedMsg:
				send(msg.id, guard.ControlMsg{Kind: guard.CtrlDepsFailed})

			case dumpMsg:
				ids := make([]core.UnitID, 0, len(live))
				for id := range live {
					ids = append(ids, id)
				}
				msg.reply <- ids
			}
		}
	}
}

// Contains reports whether id currently has a live Guard.
func (reg *Registry) Contains(id core.UnitID) bool {
	reply := make(chan bool, 1)
	reg.inbox <- containsMsg{id: id, reply: reply}
	return <-reply
}

// Insert creates a fresh Guard for desc if (and only if) none is already
// live for its id, then tells the resolver to start tracking its
// dependencies.
func (reg *Registry) Insert(desc core.UnitDesc) {
	reg.inbox <- insertMsg{desc: desc}
}

// Remove deregisters id's Guard. Called by a Guard on its way out.
func (reg *Registry) Remove(id core.UnitID) {
	reg.inbox <- removeMsg{id: id}
}

// DepsReady forwards to id's Guard; a missing/closed channel is a benign
// no-op.
func (reg *Registry) DepsReady(id core.UnitID) {
	reg.inbox <- depsReadyMsg{id: id}
}

// Stop forwards to id's Guard; stopping a no-longer-running Guard is a
// benign no-op.
func (reg *Registry) Stop(id core.UnitID) {
	reg.inbox <- stopMsg{id: id}
}

// DepsFailed forwards to id's Guard with instructions to transition to
// Failed without ever starting.
func (reg *Registry) DepsFailed(id core.UnitID) {
	reg.inbox <- depsFailedMsg{id: id}
}

// LiveUnits returns the ids of every unit with a live Guard, for the
// debug Dump operation.
func (reg *Registry) LiveUnits() []core.UnitID {
	reply := make(chan []core.UnitID, 1)
	reg.inbox <- dumpMsg{reply: reply}
	return <-reply
}
