package guardregistry

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/engine/backend/faketest"
	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/engine/statestore"
)

type noopNotifier struct{}

func (noopNotifier) StateChange(core.UnitID, core.State) {}

type recordingAdder struct {
	mu    sync.Mutex
	calls []core.UnitID
}

func (r *recordingAdder) AddToStartList(id core.UnitID, deps core.UnitDeps) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, id)
}

func (r *recordingAdder) callIDs() []core.UnitID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]core.UnitID, len(r.calls))
	copy(out, r.calls)
	return out
}

func setup(t *testing.T) (*Registry, *statestore.Store, *recordingAdder) {
	t.Helper()
	states := statestore.New(noopNotifier{}, nil, 8)
	ctx, cancel := context.WithCancel(context.Background())
	go states.Run(ctx)
	t.Cleanup(cancel)

	adder := &recordingAdder{}
	reg := New(adder, states, nil, nil, 8)
	go reg.Run(ctx)

	return reg, states, adder
}

func TestInsert_SpawnsGuardAndRegistersWithResolver(t *testing.T) {
	reg, states, adder := setup(t)
	backend := &faketest.Backend{}
	reg.Insert(core.UnitDesc{ID: "web", Backend: backend})

	require.Eventually(t, func() bool { return reg.Contains("web") }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return len(adder.callIDs()) == 1 }, time.Second, 2*time.Millisecond)

	reg.DepsReady("web")
	require.Eventually(t, func() bool { return states.Get("web") == core.Active }, time.Second, 2*time.Millisecond)
}

func TestInsert_DuplicateIsANoOp(t *testing.T) {
	reg, _, adder := setup(t)
	reg.Insert(core.UnitDesc{ID: "web", Backend: &faketest.Backend{}})
	require.Eventually(t, func() bool { return reg.Contains("web") }, time.Second, 2*time.Millisecond)

	reg.Insert(core.UnitDesc{ID: "web", Backend: &faketest.Backend{}})
	time.Sleep(20 * time.Millisecond)
	assert.Len(t, adder.callIDs(), 1)
}

func TestStop_RemovesGuardOnceTerminal(t *testing.T) {
	reg, states, _ := setup(t)
	reg.Insert(core.UnitDesc{ID: "web", Backend: &faketest.Backend{}})
	require.Eventually(t, func() bool { return reg.Contains("web") }, time.Second, 2*time.Millisecond)

	reg.DepsReady("web")
	require.Eventually(t, func() bool { return states.Get("web") == core.Active }, time.Second, 2*time.Millisecond)

	reg.Stop("web")
	require.Eventually(t, func() bool { return states.Get("web") == core.Stopped }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return !reg.Contains("web") }, time.Second, 2*time.Millisecond)
}

func TestContains_UnknownUnitIsFalse(t *testing.T) {
	reg, _, _ := setup(t)
	assert.False(t, reg.Contains("ghost"))
}

func TestLiveUnits_ReflectsInsertedGuards(t *testing.T) {
	reg, _, _ := setup(t)
	reg.Insert(core.UnitDesc{ID: "a", Backend: &faketest.Backend{}})
	reg.Insert(core.UnitDesc{ID: "b", Backend: &faketest.Backend{}})

	require.Eventually(t, func() bool { return len(reg.LiveUnits()) == 2 }, time.Second, 2*time.Millisecond)
}
