package cmd

import (
	"time"

	"github.com/trly/unitd/internal/engine"
	"github.com/trly/unitd/internal/engine/core"
)

// settleTimeout bounds how long a one-shot CLI invocation waits for a
// start/stop/restart to reach a terminal state before printing whatever
// it last observed; mirrors the teacher's own poll-then-report loop in
// internal/unit/orchestrator.go rather than blocking forever.
const settleTimeout = 5 * time.Second

// waitSettled polls id's state until it stops being Starting/Stopping or
// the timeout elapses, returning the last observed state.
func waitSettled(e *engine.Engine, id core.UnitID) core.State {
	deadline := time.Now().Add(settleTimeout)
	for {
		s := e.State(id)
		if s != core.Starting && s != core.Stopping {
			return s
		}
		if time.Now().After(deadline) {
			return s
		}
		time.Sleep(20 * time.Millisecond)
	}
}
