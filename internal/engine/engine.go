// Package engine wires UnitStore, StateStore, DependencyResolver and
// GuardRegistry into one running system and exposes the engine's public
// surface: Load, Update, Remove, Get, Start, Stop, Restart, Dump.
package engine

import (
	"context"
	"log/slog"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/engine/guardregistry"
	"github.com/trly/unitd/internal/engine/resolver"
	"github.com/trly/unitd/internal/engine/statestore"
	"github.com/trly/unitd/internal/engine/unitstore"
)

// Config tunes the per-actor inbox capacities; zero values fall back to
// each actor's own default.
type Config struct {
	QueueDepth      int
	GuardQueueDepth int
}

// Engine owns the four actors and is the only type application code
// needs to construct or call into.
type Engine struct {
	states   *statestore.Store
	resolver *resolver.Resolver
	guards   *guardregistry.Registry
	units    *unitstore.Store
	log      *slog.Logger
}

// New constructs an Engine. The four actors reference each other through
// small interfaces (see each package's *Probe/*Sink/*Ops types); wiring
// them up in dependency order here is what breaks what would otherwise
// be an import cycle between their packages.
func New(cfg Config, log *slog.Logger) *Engine {
	if log == nil {
		log = slog.Default()
	}
	e := &Engine{log: log}

	e.states = statestore.New(notifierFunc(e.notifyStateChange), log, cfg.QueueDepth)
	e.guards = guardregistry.New(adderFunc(e.addToStartList), e.states, triggerFunc(e.trigger), log, cfg.GuardQueueDepth)
	e.resolver = resolver.New(e.guards, e.guards, e.states, log, cfg.QueueDepth)
	e.units = unitstore.New(e.resolver, e.guards, e.states, log, cfg.QueueDepth)

	return e
}

// notifierFunc adapts a plain function to statestore.Notifier.
type notifierFunc func(id core.UnitID, s core.State)

func (f notifierFunc) StateChange(id core.UnitID, s core.State) { f(id, s) }

func (e *Engine) notifyStateChange(id core.UnitID, s core.State) {
	e.resolver.StateChange(id, s)
}

// adderFunc adapts a plain function to guardregistry.StartListAdder
// (AddToStartList only).
type adderFunc func(id core.UnitID, deps core.UnitDeps)

func (f adderFunc) AddToStartList(id core.UnitID, deps core.UnitDeps) { f(id, deps) }

func (e *Engine) addToStartList(id core.UnitID, deps core.UnitDeps) {
	e.resolver.AddToStartList(id, deps)
}

// triggerFunc adapts a plain function to guard.TriggerSink.
type triggerFunc func(id core.UnitID, extra map[string]any)

func (f triggerFunc) Trigger(id core.UnitID, extra map[string]any) { f(id, extra) }

func (e *Engine) trigger(id core.UnitID, extra map[string]any) {
	e.log.Debug("socket activation trigger", "unit", id.String())
	e.units.Start(id)
}

// Run starts all four actor loops; it blocks until ctx is cancelled, at
// which point every actor (and every live Guard, since GuardRegistry.Run
// is each Guard's parent context) shuts down.
func (e *Engine) Run(ctx context.Context) {
	go e.states.Run(ctx)
	go e.resolver.Run(ctx)
	go e.guards.Run(ctx)
	go e.units.Run(ctx)
	<-ctx.Done()
}

// Load registers a new unit descriptor, or replaces an existing one.
func (e *Engine) Load(id core.UnitID, desc core.UnitDesc) {
	e.units.Load(id, desc)
}

// Update replaces id's descriptor, applying the dependency delta to the
// resolver's reverse graph.
func (e *Engine) Update(id core.UnitID, desc core.UnitDesc) {
	e.units.Update(id, desc)
}

// Remove unregisters a unit descriptor.
func (e *Engine) Remove(id core.UnitID) {
	e.units.Remove(id)
}

// Get returns a unit's descriptor, if loaded.
func (e *Engine) Get(id core.UnitID) (core.UnitDesc, bool) {
	return e.units.Get(id)
}

// Start begins the transitive start closure for id.
func (e *Engine) Start(id core.UnitID) {
	e.units.Start(id)
}

// Stop requests id's Guard, if any, to stop.
func (e *Engine) Stop(id core.UnitID) {
	e.units.Stop(id)
}

// Restart stops id, waits for it to go fully dead, then starts it again.
func (e *Engine) Restart(id core.UnitID) {
	e.units.Restart(id)
}

// State returns id's current lifecycle state.
func (e *Engine) State(id core.UnitID) core.State {
	return e.states.Get(id)
}

// UnitSnapshot is one row of Engine.Dump's output.
type UnitSnapshot struct {
	Desc  core.UnitDesc
	State core.State
}

// Dump returns every loaded unit's descriptor paired with its current
// state, for the debug/introspection CLI.
func (e *Engine) Dump() map[core.UnitID]UnitSnapshot {
	units := e.units.Dump()
	out := make(map[core.UnitID]UnitSnapshot, len(units))
	for id, desc := range units {
		out[id] = UnitSnapshot{Desc: desc, State: e.states.Get(id)}
	}
	return out
}

// ReverseDeps returns the resolver's reverse dependency graph snapshot,
// for the graph-consistency testable property and debugging.
func (e *Engine) ReverseDeps() map[core.UnitID]resolver.ReverseDepInfo {
	return e.resolver.Dump()
}
