// Package unitstore implements the UnitStore actor: the authoritative
// UnitID -> UnitDesc mapping, the transitive Wants/Requires start closure
// walk, and the public Start/Stop/Restart/Load/Update/Remove/Get surface.
package unitstore

import (
	"context"
	"log/slog"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/engine/graph"
	"github.com/trly/unitd/internal/engine/statestore"
)

// DepLoader receives the reverse-edge registration messages UnitStore
// emits on Load/Update.
type DepLoader interface {
	Load(id core.UnitID, deps core.UnitDeps)
	Update(id core.UnitID, old, new core.UnitDeps)
	RemoveUnit(id core.UnitID)
}

// GuardOps is the slice of GuardRegistry UnitStore drives directly.
type GuardOps interface {
	Contains(id core.UnitID) bool
	Insert(desc core.UnitDesc)
	Stop(id core.UnitID)
}

// StateOps is the slice of StateStore UnitStore needs: writing a
// synthetic Failed for a missing hard dependency, and waiting for a unit
// to go fully dead before sequencing a Restart's Start half.
type StateOps interface {
	Set(id core.UnitID, state core.State)
	Monitor(id core.UnitID, pred func(core.State) bool) <-chan statestore.MonitorOutcome
}

// Store is the UnitStore actor.
type Store struct {
	resolver DepLoader
	guards   GuardOps
	states   StateOps
	log      *slog.Logger
	inbox    chan any
}

type loadMsg struct {
	id   core.UnitID
	desc core.UnitDesc
}

type updateMsg struct {
	id   core.UnitID
	desc core.UnitDesc
}

type removeMsg struct {
	id core.UnitID
}

type getMsg struct {
	id    core.UnitID
	reply chan getReply
}

type getReply struct {
	desc core.UnitDesc
	ok   bool
}

type startMsg struct {
	id core.UnitID
}

type stopMsg struct {
	id core.UnitID
}

type dumpMsg struct {
	reply chan map[core.UnitID]core.UnitDesc
}

// New builds a UnitStore.
func New(resolver DepLoader, guards GuardOps, states StateOps, log *slog.Logger, queueDepth int) *Store {
	if log == nil {
		log = slog.Default()
	}
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Store{
		resolver: resolver,
		guards:   guards,
		states:   states,
		log:      log.With("actor", "unitstore"),
		inbox:    make(chan any, queueDepth),
	}
}

// Run drives the actor loop until ctx is cancelled.
func (s *Store) Run(ctx context.Context) {
	units := make(map[core.UnitID]core.UnitDesc)

	for {
		select {
		case <-ctx.Done():
			return

		case m := <-s.inbox:
			switch msg := m.(type) {
			case loadMsg:
				proposed := cloneUnits(units)
				proposed[msg.id] = msg.desc
				if err := graph.CheckAcyclic(proposed); err != nil {
					s.log.Error("rejecting load, would create a cycle", "unit", msg.id.String(), "err", err)
					continue
				}
				units[msg.id] = msg.desc
				s.resolver.Load(msg.id, msg.desc.Deps)

			case updateMsg:
				old, existed := units[msg.id]
				proposed := cloneUnits(units)
				proposed[msg.id] = msg.desc
				if err := graph.CheckAcyclic(proposed); err != nil {
					s.log.Error("rejecting update, would create a cycle", "unit", msg.id.String(), "err", err)
					continue
				}
				units[msg.id] = msg.desc
				if existed {
					s.resolver.Update(msg.id, old.Deps, msg.desc.Deps)
				} else {
					s.resolver.Load(msg.id, msg.desc.Deps)
				}

			case removeMsg:
				delete(units, msg.id)
				s.resolver.RemoveUnit(msg.id)

			case getMsg:
				desc, ok := units[msg.id]
				msg.reply <- getReply{desc: desc, ok: ok}

			case startMsg:
				s.handleStart(units, msg.id)

			case stopMsg:
				s.guards.Stop(msg.id)

			case dumpMsg:
				msg.reply <- cloneUnits(units)
			}
		}
	}
}

func cloneUnits(units map[core.UnitID]core.UnitDesc) map[core.UnitID]core.UnitDesc {
	out := make(map[core.UnitID]core.UnitDesc, len(units))
	for k, v := range units {
		out[k] = v
	}
	return out
}

// handleStart implements the §4.1 start closure algorithm.
func (s *Store) handleStart(units map[core.UnitID]core.UnitDesc, id core.UnitID) {
	desc, ok := units[id]
	if !ok {
		s.log.Warn("start requested for unknown unit", "unit", id.String())
		return
	}

	order, missingSoft, missingHard := s.bfsClosure(units, desc.Deps)

	for _, peer := range missingSoft {
		s.log.Warn("soft missing Wants dependency, continuing", "unit", id.String(), "peer", peer.String())
	}
	for _, peer := range missingHard {
		s.log.Error("hard missing Requires dependency, failing unit", "unit", id.String(), "peer", peer.String())
		// Record the absent peer as Failed. This write is published
		// before id's Guard is inserted, so id has no start-waiter yet
		// for the resolver's Failed cascade to reach; id is failed by
		// the resolver's AddToStartList, which treats a guard-less,
		// dead Requires peer as unsatisfiable.
		s.states.Set(peer, core.Failed)
	}

	for _, peer := range desc.Deps.Conflicts {
		s.guards.Stop(peer)
	}

	seen := make(map[core.UnitID]struct{}, len(order)+1)
	enqueue := func(peerID core.UnitID) {
		if _, dup := seen[peerID]; dup {
			return
		}
		seen[peerID] = struct{}{}
		if peerDesc, ok := units[peerID]; ok {
			s.guards.Insert(peerDesc)
		}
	}

	for _, peer := range order {
		enqueue(peer)
	}
	enqueue(id)
}

// bfsClosure walks the transitive Wants ∪ Requires closure of deps,
// starting from deps.Wants then deps.Requires, and from then on from
// every discovered node's own Wants and Requires - a peer pulled in via
// Wants still has its own Requires (and vice versa) expanded, matching
// the recursive per-peer start the original implementation does for
// every requires/after/wants edge. Returns the ordered set of discovered
// units that exist and have no live Guard (the ones the caller must
// Insert), plus the ones referenced but absent from the store entirely,
// split into soft (reached only via Wants) and hard (reached via at
// least one Requires edge) misses. Peers that already have a live Guard
// are neither collected nor expanded further - their own closure is
// assumed already satisfied.
func (s *Store) bfsClosure(units map[core.UnitID]core.UnitDesc, deps core.UnitDeps) (order, missingSoft, missingHard []core.UnitID) {
	type item struct {
		id   core.UnitID
		hard bool
	}

	queue := make([]item, 0, len(deps.Wants)+len(deps.Requires))
	for _, peer := range deps.Wants {
		queue = append(queue, item{id: peer, hard: false})
	}
	for _, peer := range deps.Requires {
		queue = append(queue, item{id: peer, hard: true})
	}

	expanded := make(map[core.UnitID]struct{})
	missingKind := make(map[core.UnitID]bool) // true = hard
	var missingOrder []core.UnitID

	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]

		if s.guards.Contains(cur.id) {
			continue
		}

		desc, ok := units[cur.id]
		if !ok {
			if hard, seen := missingKind[cur.id]; !seen {
				missingOrder = append(missingOrder, cur.id)
				missingKind[cur.id] = cur.hard
			} else if cur.hard && !hard {
				missingKind[cur.id] = true
			}
			continue
		}

		if _, already := expanded[cur.id]; already {
			continue
		}
		expanded[cur.id] = struct{}{}

		order = append(order, cur.id)
		for _, peer := range desc.Deps.Wants {
			queue = append(queue, item{id: peer, hard: false})
		}
		for _, peer := range desc.Deps.Requires {
			queue = append(queue, item{id: peer, hard: true})
		}
	}

	for _, id := range missingOrder {
		if missingKind[id] {
			missingHard = append(missingHard, id)
		} else {
			missingSoft = append(missingSoft, id)
		}
	}

	return order, missingSoft, missingHard
}

// Load inserts desc, replacing any existing entry, and registers its
// dependency edges with the resolver. Rejected (logged, no-op) if it
// would introduce a cycle in the combined After/Requires/Wants graph.
func (s *Store) Load(id core.UnitID, desc core.UnitDesc) {
	desc.ID = id
	s.inbox <- loadMsg{id: id, desc: desc}
}

// Update replaces id's descriptor and has the resolver apply the
// dependency delta. Rejected (logged, no-op) on a resulting cycle.
func (s *Store) Update(id core.UnitID, desc core.UnitDesc) {
	desc.ID = id
	s.inbox <- updateMsg{id: id, desc: desc}
}

// Remove deletes id's descriptor. A running Guard, if any, is not force
// stopped: units may be unregistered while a Guard drains.
func (s *Store) Remove(id core.UnitID) {
	s.inbox <- removeMsg{id: id}
}

// Get returns a snapshot of id's descriptor.
func (s *Store) Get(id core.UnitID) (core.UnitDesc, bool) {
	reply := make(chan getReply, 1)
	s.inbox <- getMsg{id: id, reply: reply}
	r := <-reply
	return r.desc, r.ok
}

// Start computes id's transitive Wants/Requires closure, stops any
// Conflicts peers, and inserts a Guard for every discovered peer plus id
// itself.
func (s *Store) Start(id core.UnitID) {
	s.inbox <- startMsg{id: id}
}

// Stop forwards to GuardRegistry; a no-op if id has no live Guard.
func (s *Store) Stop(id core.UnitID) {
	s.inbox <- stopMsg{id: id}
}

// Restart implements stop-then-start: it asks the Guard to stop, waits
// for the unit to reach a dead state, then issues a fresh Start. This
// runs as an independent goroutine composing the public, already-async
// Stop/Start/Monitor calls, so it never blocks the actor's own inbox
// loop.
func (s *Store) Restart(id core.UnitID) {
	go func() {
		s.guards.Stop(id)
		// A queued monitor fires on the next write whatever its state
		// (e.g. Stopping), so re-arm until a dead state is observed.
		for {
			if out := <-s.states.Monitor(id, core.State.IsDead); out.State.IsDead() {
				break
			}
		}
		s.Start(id)
	}()
}

// Dump returns a snapshot of every loaded unit's descriptor.
func (s *Store) Dump() map[core.UnitID]core.UnitDesc {
	reply := make(chan map[core.UnitID]core.UnitDesc, 1)
	s.inbox <- dumpMsg{reply: reply}
	return <-reply
}
