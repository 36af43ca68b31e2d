package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trly/unitd/internal/engine/backend/faketest"
	"github.com/trly/unitd/internal/engine/core"
)

func startEngine(t *testing.T) *Engine {
	t.Helper()
	e := New(Config{QueueDepth: 16, GuardQueueDepth: 4}, nil)
	ctx, cancel := context.WithCancel(context.Background())
	go e.Run(ctx)
	t.Cleanup(cancel)
	return e
}

func TestEngine_StartChainBecomesActiveInDependencyOrder(t *testing.T) {
	e := startEngine(t)

	e.Load("db", core.UnitDesc{Kind: core.KindService, Backend: &faketest.Backend{}})
	e.Load("web", core.UnitDesc{
		Kind:    core.KindService,
		Backend: &faketest.Backend{},
		Deps:    core.UnitDeps{Requires: []core.UnitID{"db"}, After: []core.UnitID{"db"}},
	})

	e.Start("web")

	require.Eventually(t, func() bool { return e.State("db") == core.Active }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return e.State("web") == core.Active }, time.Second, 2*time.Millisecond)
}

func TestEngine_MissingHardDependencyFailsStarter(t *testing.T) {
	e := startEngine(t)

	e.Load("web", core.UnitDesc{
		Kind:    core.KindService,
		Backend: &faketest.Backend{},
		Deps:    core.UnitDeps{Requires: []core.UnitID{"ghost"}},
	})

	e.Start("web")

	require.Eventually(t, func() bool { return e.State("web") == core.Failed }, time.Second, 2*time.Millisecond)
}

func TestEngine_StopPropagatesToRequiredByDependents(t *testing.T) {
	e := startEngine(t)

	e.Load("db", core.UnitDesc{Kind: core.KindService, Backend: &faketest.Backend{}})
	e.Load("web", core.UnitDesc{
		Kind:    core.KindService,
		Backend: &faketest.Backend{},
		Deps:    core.UnitDeps{Requires: []core.UnitID{"db"}, After: []core.UnitID{"db"}},
	})
	e.Start("web")
	require.Eventually(t, func() bool { return e.State("web") == core.Active }, time.Second, 2*time.Millisecond)

	e.Stop("db")

	require.Eventually(t, func() bool { return e.State("db") == core.Stopped }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return e.State("web") == core.Stopped }, time.Second, 2*time.Millisecond)
}

func TestEngine_ConflictingUnitStopsTheOther(t *testing.T) {
	e := startEngine(t)

	e.Load("a", core.UnitDesc{Kind: core.KindService, Backend: &faketest.Backend{}})
	e.Load("b", core.UnitDesc{
		Kind:    core.KindService,
		Backend: &faketest.Backend{},
		Deps:    core.UnitDeps{Conflicts: []core.UnitID{"a"}},
	})

	e.Start("a")
	require.Eventually(t, func() bool { return e.State("a") == core.Active }, time.Second, 2*time.Millisecond)

	e.Start("b")

	require.Eventually(t, func() bool { return e.State("a") == core.Stopped }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return e.State("b") == core.Active }, time.Second, 2*time.Millisecond)
}

func TestEngine_RestartStopsThenStartsAgain(t *testing.T) {
	e := startEngine(t)
	backend := &faketest.Backend{}
	e.Load("web", core.UnitDesc{Kind: core.KindService, Backend: backend})

	e.Start("web")
	require.Eventually(t, func() bool { return e.State("web") == core.Active }, time.Second, 2*time.Millisecond)

	e.Restart("web")

	require.Eventually(t, func() bool { return backend.Starts() == 2 }, time.Second, 2*time.Millisecond)
	require.Eventually(t, func() bool { return e.State("web") == core.Active }, time.Second, 2*time.Millisecond)
}

func TestEngine_Dump_ReflectsLoadedUnitsAndState(t *testing.T) {
	e := startEngine(t)
	e.Load("web", core.UnitDesc{Kind: core.KindService, Backend: &faketest.Backend{}, Description: "demo"})
	e.Start("web")

	require.Eventually(t, func() bool {
		snap := e.Dump()
		row, ok := snap["web"]
		return ok && row.State == core.Active
	}, time.Second, 2*time.Millisecond)

	snap := e.Dump()
	assert.Equal(t, "demo", snap["web"].Desc.Description)
}
