// Package resolver implements the DependencyResolver actor: the static
// reverse dependency graph plus the dynamic set of pending start-waiters,
// and the StateChange dispatch that is the heart of the engine.
package resolver

import (
	"context"
	"log/slog"

	"github.com/trly/unitd/internal/engine/core"
)

// GuardProbe answers "does this unit currently have a live Guard" -
// implemented by guardregistry.Registry.
type GuardProbe interface {
	Contains(id core.UnitID) bool
}

// StateProbe answers "what is this unit's current state" - implemented by
// statestore.Store.
type StateProbe interface {
	Get(id core.UnitID) core.State
}

// GuardSink is the set of messages the resolver emits towards
// GuardRegistry - implemented by guardregistry.Registry.
type GuardSink interface {
	DepsReady(id core.UnitID)
	Stop(id core.UnitID)
	DepsFailed(id core.UnitID)
}

// idSet is a small set-of-UnitID helper used throughout the resolver's
// tables.
type idSet map[core.UnitID]struct{}

func newIDSet(ids []core.UnitID) idSet {
	s := make(idSet, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s idSet) add(id core.UnitID)    { s[id] = struct{}{} }
func (s idSet) remove(id core.UnitID) { delete(s, id) }
func (s idSet) has(id core.UnitID) bool {
	_, ok := s[id]
	return ok
}

// members returns the set's members; order is the Go map iteration order
// and callers must not rely on it (spec: "tie-breaking ... follows the
// iteration order of the reverse set").
func (s idSet) members() []core.UnitID {
	out := make([]core.UnitID, 0, len(s))
	for id := range s {
		out = append(out, id)
	}
	return out
}

// ReverseDepInfo is the "who depends on me" view of one unit's place in
// the static dependency graph.
type ReverseDepInfo struct {
	RequiredBy idSet
	WantedBy   idSet
	Before     idSet
	Conflicts  idSet
}

func newReverseDepInfo() *ReverseDepInfo {
	return &ReverseDepInfo{
		RequiredBy: idSet{},
		WantedBy:   idSet{},
		Before:     idSet{},
		Conflicts:  idSet{},
	}
}

func (r *ReverseDepInfo) empty() bool {
	return len(r.RequiredBy) == 0 && len(r.WantedBy) == 0 && len(r.Before) == 0 && len(r.Conflicts) == 0
}

// StartWaiter records, for a unit currently trying to start but blocked,
// the remaining open blockers. A waiter's blocker set only ever shrinks;
// it releases (DepsReady) or is cancelled (DepsFailed / explicit stop).
type StartWaiter struct {
	Requires  idSet
	Wants     idSet
	After     idSet
	Conflicts idSet
}

func (w *StartWaiter) empty() bool {
	return len(w.Requires) == 0 && len(w.Wants) == 0 && len(w.After) == 0 && len(w.Conflicts) == 0
}

// Resolver is the DependencyResolver actor.
type Resolver struct {
	guards GuardSink
	probe  GuardProbe
	states StateProbe
	log    *slog.Logger
	inbox  chan any
}

type loadMsg struct {
	id   core.UnitID
	deps core.UnitDeps
}

type updateMsg struct {
	id       core.UnitID
	old, new core.UnitDeps
}

type addToStartListMsg struct {
	id   core.UnitID
	deps core.UnitDeps
}

type stateChangeMsg struct {
	id    core.UnitID
	state core.State
}

type removeMsg struct {
	id core.UnitID
}

type dumpMsg struct {
	reply chan map[core.UnitID]ReverseDepInfo
}

// New builds a Resolver. guards, probe and states must already exist:
// the caller constructs GuardRegistry and StateStore first (GuardRegistry
// reaches the resolver back only through an adapter the caller supplies),
// which is what breaks the construction-order cycle between the three
// actors.
func New(guards GuardSink, probe GuardProbe, states StateProbe, log *slog.Logger, queueDepth int) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Resolver{
		guards: guards,
		probe:  probe,
		states: states,
		log:    log.With("actor", "resolver"),
		inbox:  make(chan any, queueDepth),
	}
}

// Run drives the actor loop until ctx is cancelled.
func (r *Resolver) Run(ctx context.Context) {
	reverse := make(map[core.UnitID]*ReverseDepInfo)
	startList := make(map[core.UnitID]*StartWaiter)

	ensure := func(id core.UnitID) *ReverseDepInfo {
		info, ok := reverse[id]
		if !ok {
			info = newReverseDepInfo()
			reverse[id] = info
		}
		return info
	}
	prune := func(id core.UnitID) {
		if info, ok := reverse[id]; ok && info.empty() {
			delete(reverse, id)
		}
	}

	applyLoad := func(id core.UnitID, deps core.UnitDeps) {
		for _, peer := range deps.Requires {
			ensure(peer).RequiredBy.add(id)
		}
		for _, peer := range deps.Wants {
			ensure(peer).WantedBy.add(id)
		}
		for _, peer := range deps.After {
			ensure(peer).Before.add(id)
		}
		for _, peer := range deps.Conflicts {
			ensure(peer).Conflicts.add(id)
		}
	}

	removeEdges := func(id core.UnitID, deps core.UnitDeps) {
		for _, peer := range deps.Requires {
			if info, ok := reverse[peer]; ok {
				info.RequiredBy.remove(id)
				prune(peer)
			}
		}
		for _, peer := range deps.Wants {
			if info, ok := reverse[peer]; ok {
				info.WantedBy.remove(id)
				prune(peer)
			}
		}
		for _, peer := range deps.After {
			if info, ok := reverse[peer]; ok {
				info.Before.remove(id)
				prune(peer)
			}
		}
		for _, peer := range deps.Conflicts {
			if info, ok := reverse[peer]; ok {
				info.Conflicts.remove(id)
				prune(peer)
			}
		}
	}

	release := func(id core.UnitID) {
		delete(startList, id)
		r.guards.DepsReady(id)
	}

	for {
		select {
		case <-ctx.Done():
			return

		case m := <-r.inbox:
			switch msg := m.(type) {
			case loadMsg:
				applyLoad(msg.id, msg.deps)

			case updateMsg:
				removeEdges(msg.id, msg.old)
				applyLoad(msg.id, msg.new)

			case removeMsg:
				delete(reverse, msg.id)

			case addToStartListMsg:
				if _, already := startList[msg.id]; already {
					continue
				}
				waiter := &StartWaiter{
					Requires:  idSet{},
					Wants:     idSet{},
					After:     idSet{},
					Conflicts: idSet{},
				}
				unsatisfiable := false
				for _, peer := range msg.deps.Requires {
					if r.probe.Contains(peer) {
						continue
					}
					// A Requires peer with no live Guard that is also
					// already dead (never loaded, or loaded and long
					// since terminal) can never reach Active on its own;
					// waiting on it would block msg.id forever. Fail the
					// starter outright instead of recording an open
					// blocker nothing will ever clear.
					if r.states.Get(peer).IsDead() {
						unsatisfiable = true
						continue
					}
					waiter.Requires.add(peer)
				}
				if unsatisfiable {
					r.guards.DepsFailed(msg.id)
					continue
				}
				for _, peer := range msg.deps.Wants {
					if !r.probe.Contains(peer) {
						waiter.Wants.add(peer)
					}
				}
				for _, peer := range msg.deps.After {
					if !r.states.Get(peer).IsActive() {
						waiter.After.add(peer)
					}
				}
				for _, peer := range msg.deps.Conflicts {
					if r.probe.Contains(peer) {
						waiter.Conflicts.add(peer)
					}
				}
				if waiter.empty() {
					r.guards.DepsReady(msg.id)
					continue
				}
				startList[msg.id] = waiter

			case stateChangeMsg:
				r.dispatchStateChange(reverse, startList, release, msg.id, msg.state)

			case dumpMsg:
				snap := make(map[core.UnitID]ReverseDepInfo, len(reverse))
				for id, info := range reverse {
					snap[id] = *info
				}
				msg.reply <- snap
			}
		}
	}
}

// dispatchStateChange implements the §4.3 StateChange table.
func (r *Resolver) dispatchStateChange(
	reverse map[core.UnitID]*ReverseDepInfo,
	startList map[core.UnitID]*StartWaiter,
	release func(core.UnitID),
	id core.UnitID,
	state core.State,
) {
	info, hasInfo := reverse[id]

	switch state {
	case core.Starting:
		if !hasInfo {
			return
		}
		// A peer that was already waiting for id (a live-guarded
		// Conflicts peer) to go away loses the race: id reclaimed the
		// slot, so the not-yet-started peer is cancelled.
		for _, p := range info.Conflicts.members() {
			if w, ok := startList[p]; ok && w.Conflicts.has(id) {
				r.guards.Stop(p)
			}
		}
		// required_by/wanted_by waiters are deliberately left alone
		// here: release happens only on Active (see the Active case).

	case core.Active:
		if !hasInfo {
			return
		}
		for _, p := range info.RequiredBy.members() {
			if w, ok := startList[p]; ok {
				w.Requires.remove(id)
				if w.empty() {
					release(p)
				}
			}
		}
		for _, p := range info.WantedBy.members() {
			if w, ok := startList[p]; ok {
				w.Wants.remove(id)
				if w.empty() {
					release(p)
				}
			}
		}
		for _, p := range info.Before.members() {
			if w, ok := startList[p]; ok {
				w.After.remove(id)
				if w.empty() {
					release(p)
				}
			}
		}

	case core.Stopping:
		if !hasInfo {
			return
		}
		for _, p := range info.RequiredBy.members() {
			r.guards.Stop(p)
		}
		for _, p := range info.Conflicts.members() {
			if w, ok := startList[p]; ok && w.Conflicts.has(id) {
				w.Conflicts.remove(id)
				if w.empty() {
					release(p)
				}
			}
		}

	case core.Stopped:
		if !hasInfo {
			return
		}
		for _, p := range info.Conflicts.members() {
			if w, ok := startList[p]; ok && w.Conflicts.has(id) {
				w.Conflicts.remove(id)
				if w.empty() {
					release(p)
				}
			}
		}

	case core.Failed:
		if !hasInfo {
			return
		}
		for _, p := range info.RequiredBy.members() {
			if _, ok := startList[p]; ok {
				delete(startList, p)
				r.guards.DepsFailed(p)
			}
		}

	case core.Uninit:
		// Unreachable: Uninit is only ever the implicit absent default,
		// never written by a state transition.
	}
}

// Load registers the reverse edges for a newly loaded unit.
func (r *Resolver) Load(id core.UnitID, deps core.UnitDeps) {
	r.inbox <- loadMsg{id: id, deps: deps}
}

// Update applies the delta between a unit's old and new dependency sets.
func (r *Resolver) Update(id core.UnitID, old, new core.UnitDeps) {
	r.inbox <- updateMsg{id: id, old: old, new: new}
}

// RemoveUnit drops any reverse-edge bookkeeping keyed directly by id. Peers
// that still reference id in their own edges are left as-is (a stale
// forward reference to an unloaded unit behaves like any other missing
// peer).
func (r *Resolver) RemoveUnit(id core.UnitID) {
	r.inbox <- removeMsg{id: id}
}

// AddToStartList registers id as attempting to start with the given
// dependency set, computing its open blockers against the current
// GuardRegistry/StateStore snapshot. Idempotent per unit.
func (r *Resolver) AddToStartList(id core.UnitID, deps core.UnitDeps) {
	r.inbox <- addToStartListMsg{id: id, deps: deps}
}

// StateChange implements statestore.Notifier.
func (r *Resolver) StateChange(id core.UnitID, s core.State) {
	r.inbox <- stateChangeMsg{id: id, state: s}
}

// Dump returns a snapshot of the reverse dependency graph, for debugging
// and the testable graph-consistency property.
func (r *Resolver) Dump() map[core.UnitID]ReverseDepInfo {
	reply := make(chan map[core.UnitID]ReverseDepInfo, 1)
	r.inbox <- dumpMsg{reply: reply}
	return <-reply
}
