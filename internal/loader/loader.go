// Package loader defines the boundary between on-disk/remote unit
// definitions and the engine's in-memory UnitStore, kept deliberately
// thin per spec §1's "unit-file parsing and on-disk loading" Non-goal:
// a Loader only ever turns external definitions into Load/Update calls,
// it never touches lifecycle state directly.
package loader

import (
	"context"

	"github.com/trly/unitd/internal/engine/core"
)

// Target receives the Load/Update calls a Loader produces; implemented
// by *engine.Engine.
type Target interface {
	Load(id core.UnitID, desc core.UnitDesc)
	Update(id core.UnitID, desc core.UnitDesc)
}

// Loader discovers unit descriptors from some external source and
// applies them to a Target.
type Loader interface {
	// Sync reads the current set of unit definitions and applies them to
	// target, calling Load for ids not previously seen by this Loader and
	// Update for ones it has (tracking is up to each implementation).
	Sync(ctx context.Context, target Target) error
}
