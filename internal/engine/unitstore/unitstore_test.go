package unitstore

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/engine/statestore"
)

type recordingResolver struct {
	mu      sync.Mutex
	loaded  []core.UnitID
	updated []core.UnitID
	removed []core.UnitID
}

func (r *recordingResolver) Load(id core.UnitID, deps core.UnitDeps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.loaded = append(r.loaded, id)
}

func (r *recordingResolver) Update(id core.UnitID, old, new core.UnitDeps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.updated = append(r.updated, id)
}

func (r *recordingResolver) RemoveUnit(id core.UnitID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.removed = append(r.removed, id)
}

func (r *recordingResolver) loadedIDs() []core.UnitID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.UnitID, len(r.loaded))
	copy(out, r.loaded)
	return out
}

type fakeGuards struct {
	mu       sync.Mutex
	contains map[core.UnitID]bool
	inserted []core.UnitID
	stopped  []core.UnitID
}

func newFakeGuards() *fakeGuards {
	return &fakeGuards{contains: make(map[core.UnitID]bool)}
}

func (f *fakeGuards) Contains(id core.UnitID) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.contains[id]
}

func (f *fakeGuards) Insert(desc core.UnitDesc) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.inserted = append(f.inserted, desc.ID)
	f.contains[desc.ID] = true
}

func (f *fakeGuards) Stop(id core.UnitID) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stopped = append(f.stopped, id)
}

func (f *fakeGuards) insertedIDs() []core.UnitID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.UnitID, len(f.inserted))
	copy(out, f.inserted)
	return out
}

func (f *fakeGuards) stoppedIDs() []core.UnitID {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]core.UnitID, len(f.stopped))
	copy(out, f.stopped)
	return out
}

type noopNotifier struct{}

func (noopNotifier) StateChange(core.UnitID, core.State) {}

func setup(t *testing.T) (*Store, *recordingResolver, *fakeGuards, *statestore.Store) {
	t.Helper()
	resolver := &recordingResolver{}
	guards := newFakeGuards()
	states := statestore.New(noopNotifier{}, nil, 8)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go states.Run(ctx)

	s := New(resolver, guards, states, nil, 8)
	go s.Run(ctx)

	return s, resolver, guards, states
}

func TestLoad_RegistersWithResolver(t *testing.T) {
	s, resolver, _, _ := setup(t)
	s.Load("web", core.UnitDesc{Kind: core.KindService})

	require.Eventually(t, func() bool { return len(resolver.loadedIDs()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, core.UnitID("web"), resolver.loadedIDs()[0])
}

func TestGet_ReturnsLoadedDescriptor(t *testing.T) {
	s, _, _, _ := setup(t)
	s.Load("web", core.UnitDesc{Kind: core.KindService, Description: "the web unit"})

	require.Eventually(t, func() bool {
		desc, ok := s.Get("web")
		return ok && desc.Description == "the web unit"
	}, time.Second, 2*time.Millisecond)
}

func TestStart_InsertsGuardsForWantsAndRequiresClosureThenSelf(t *testing.T) {
	s, _, guards, _ := setup(t)
	s.Load("db", core.UnitDesc{Kind: core.KindService})
	s.Load("cache", core.UnitDesc{Kind: core.KindService})
	s.Load("web", core.UnitDesc{Kind: core.KindService, Deps: core.UnitDeps{
		Requires: []core.UnitID{"db"},
		Wants:    []core.UnitID{"cache"},
	}})

	s.Start("web")

	require.Eventually(t, func() bool { return len(guards.insertedIDs()) == 3 }, time.Second, 2*time.Millisecond)
	ids := guards.insertedIDs()
	assert.Contains(t, ids, core.UnitID("db"))
	assert.Contains(t, ids, core.UnitID("cache"))
	assert.Equal(t, core.UnitID("web"), ids[len(ids)-1])
}

func TestStart_MissingRequiresPeerIsMarkedFailed(t *testing.T) {
	s, _, _, states := setup(t)
	s.Load("web", core.UnitDesc{Kind: core.KindService, Deps: core.UnitDeps{
		Requires: []core.UnitID{"ghost"},
	}})

	s.Start("web")

	require.Eventually(t, func() bool { return states.Get("ghost") == core.Failed }, time.Second, 2*time.Millisecond)
}

func TestStart_WantsPeerHasItsOwnRequiresExpanded(t *testing.T) {
	// S1: c Wants b; b Requires a. Starting c must still discover a via
	// b's Requires edge, even though a is not reachable from c via any
	// direct relation of c's own.
	s, _, guards, _ := setup(t)
	s.Load("a", core.UnitDesc{Kind: core.KindService})
	s.Load("b", core.UnitDesc{Kind: core.KindService, Deps: core.UnitDeps{
		Requires: []core.UnitID{"a"},
	}})
	s.Load("c", core.UnitDesc{Kind: core.KindService, Deps: core.UnitDeps{
		Wants: []core.UnitID{"b"},
	}})

	s.Start("c")

	require.Eventually(t, func() bool { return len(guards.insertedIDs()) == 3 }, time.Second, 2*time.Millisecond)
	ids := guards.insertedIDs()
	assert.Contains(t, ids, core.UnitID("a"))
	assert.Contains(t, ids, core.UnitID("b"))
	assert.Equal(t, core.UnitID("c"), ids[len(ids)-1])
}

func TestStart_ConflictsPeerIsStopped(t *testing.T) {
	s, _, guards, _ := setup(t)
	s.Load("a", core.UnitDesc{Kind: core.KindService})
	s.Load("b", core.UnitDesc{Kind: core.KindService, Deps: core.UnitDeps{
		Conflicts: []core.UnitID{"a"},
	}})

	s.Start("b")

	require.Eventually(t, func() bool { return len(guards.stoppedIDs()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, core.UnitID("a"), guards.stoppedIDs()[0])
}

func TestStart_SkipsPeerWithAlreadyLiveGuard(t *testing.T) {
	s, _, guards, _ := setup(t)
	s.Load("db", core.UnitDesc{Kind: core.KindService})
	s.Load("web", core.UnitDesc{Kind: core.KindService, Deps: core.UnitDeps{Requires: []core.UnitID{"db"}}})

	guards.mu.Lock()
	guards.contains["db"] = true
	guards.mu.Unlock()

	s.Start("web")

	require.Eventually(t, func() bool { return len(guards.insertedIDs()) == 1 }, time.Second, 2*time.Millisecond)
	assert.Equal(t, core.UnitID("web"), guards.insertedIDs()[0])
}

func TestRemove_NotifiesResolver(t *testing.T) {
	s, resolver, _, _ := setup(t)
	s.Load("web", core.UnitDesc{Kind: core.KindService})
	s.Remove("web")

	require.Eventually(t, func() bool { return len(resolver.removed) == 1 }, time.Second, 2*time.Millisecond)

	_, ok := s.Get("web")
	assert.False(t, ok)
}
