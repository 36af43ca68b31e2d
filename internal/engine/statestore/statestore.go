// Package statestore implements the StateStore actor: the authoritative
// UnitID -> State mapping, with unconditional and compare-and-swap writes
// and one-shot state-change monitors. Every write publishes exactly one
// StateChange to the DependencyResolver before the caller's request
// completes.
package statestore

import (
	"context"
	"log/slog"

	"github.com/trly/unitd/internal/engine/core"
)

// Notifier receives one StateChange per state write, in write order.
// Implemented by resolver.Resolver; declared here so statestore need not
// import it.
type Notifier interface {
	StateChange(id core.UnitID, s core.State)
}

// CASResult is returned by SetIf: OK=true and State holding the
// pre-write state on success, OK=false and State holding the observed
// (blocking) state on failure.
type CASResult struct {
	State core.State
	OK    bool
}

// MonitorOutcome is delivered to a Monitor's oneshot channel. FiredImmediately
// is true when the predicate already held at registration time - no future
// event was needed, here is what was observed. It is false when a
// subsequent state write (of any state; the predicate only gated whether
// the observer registered, not what wakes it) delivered State.
type MonitorOutcome struct {
	State            core.State
	FiredImmediately bool
}

// Store is the StateStore actor. Use New and then Run in its own
// goroutine; all exported methods are safe to call concurrently and
// serialize through the actor's inbox.
type Store struct {
	notify Notifier
	log    *slog.Logger
	inbox  chan any
}

type getMsg struct {
	id    core.UnitID
	reply chan core.State
}

type setMsg struct {
	id    core.UnitID
	state core.State
	reply chan struct{}
}

type setIfMsg struct {
	id    core.UnitID
	state core.State
	pred  func(core.State) bool
	reply chan CASResult
}

type monitorMsg struct {
	id    core.UnitID
	pred  func(core.State) bool
	reply chan MonitorOutcome
}

type dumpMsg struct {
	reply chan map[core.UnitID]core.State
}

type observer struct {
	reply chan MonitorOutcome
}

// New builds a StateStore that publishes every write to notify.
func New(notify Notifier, log *slog.Logger, queueDepth int) *Store {
	if log == nil {
		log = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Store{
		notify: notify,
		log:    log.With("actor", "statestore"),
		inbox:  make(chan any, queueDepth),
	}
}

// Run drives the actor loop until ctx is cancelled. Call it in its own
// goroutine; the table is only ever touched from here.
func (s *Store) Run(ctx context.Context) {
	state := make(map[core.UnitID]core.State)
	monitors := make(map[core.UnitID][]observer)

	publish := func(id core.UnitID, newState core.State) {
		for _, obs := range monitors[id] {
			obs.reply <- MonitorOutcome{State: newState}
		}
		delete(monitors, id)
		if s.notify != nil {
			s.notify.StateChange(id, newState)
		}
	}

	for {
		select {
		case <-ctx.Done():
			return
		case m := <-s.inbox:
			switch msg := m.(type) {
			case getMsg:
				msg.reply <- state[msg.id]

			case setMsg:
				state[msg.id] = msg.state
				publish(msg.id, msg.state)
				msg.reply <- struct{}{}

			case setIfMsg:
				cur := state[msg.id]
				if msg.pred(cur) {
					state[msg.id] = msg.state
					publish(msg.id, msg.state)
					msg.reply <- CASResult{State: cur, OK: true}
				} else {
					msg.reply <- CASResult{State: cur, OK: false}
				}

			case monitorMsg:
				cur := state[msg.id]
				if msg.pred(cur) {
					msg.reply <- MonitorOutcome{State: cur, FiredImmediately: true}
					continue
				}
				monitors[msg.id] = append(monitors[msg.id], observer{reply: msg.reply})

			case dumpMsg:
				snap := make(map[core.UnitID]core.State, len(state))
				for k, v := range state {
					snap[k] = v
				}
				msg.reply <- snap
			}
		}
	}
}

// Get returns the current state of id, or Uninit if unknown.
func (s *Store) Get(id core.UnitID) core.State {
	reply := make(chan core.State, 1)
	s.inbox <- getMsg{id: id, reply: reply}
	return <-reply
}

// Set unconditionally writes state and publishes the change.
func (s *Store) Set(id core.UnitID, state core.State) {
	reply := make(chan struct{}, 1)
	s.inbox <- setMsg{id: id, state: state, reply: reply}
	<-reply
}

// SetIf performs a compare-and-swap: if pred holds for the current state
// (Uninit if absent), writes newState and publishes it. This is the
// primitive Guards use to serialize dead -> Starting transitions and
// avoid racing restarts.
func (s *Store) SetIf(id core.UnitID, newState core.State, pred func(core.State) bool) CASResult {
	reply := make(chan CASResult, 1)
	s.inbox <- setIfMsg{id: id, state: newState, pred: pred, reply: reply}
	return <-reply
}

// Monitor registers a one-shot observer for id. If pred already holds for
// the current state, the returned channel fires immediately with
// FiredImmediately=true and State holding that current state - no event
// is queued. Otherwise the observer is queued and fires on the very next
// state write for id, regardless of whether that write's state satisfies
// pred: the predicate only gates registration, not the firing event.
func (s *Store) Monitor(id core.UnitID, pred func(core.State) bool) <-chan MonitorOutcome {
	reply := make(chan MonitorOutcome, 1)
	s.inbox <- monitorMsg{id: id, pred: pred, reply: reply}
	return reply
}

// Dump returns a snapshot of every tracked unit's state, for the debug
// Dump control operation.
func (s *Store) Dump() map[core.UnitID]core.State {
	reply := make(chan map[core.UnitID]core.State, 1)
	s.inbox <- dumpMsg{reply: reply}
	return <-reply
}
