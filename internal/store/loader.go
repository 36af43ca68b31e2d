package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/loader"
)

// BackendFactory reconstructs a core.UnitImpl from a row's opaque
// BackendJSON; callers (cmd/ wiring) supply one per Kind they support.
type BackendFactory func(id core.UnitID, kind core.Kind, backendJSON string) (core.UnitImpl, error)

// Loader implements loader.Loader by reading every row in a Repository
// and calling Load/Update for it, reconstructing each row's UnitDeps
// from its DepsJSON column.
type Loader struct {
	Repo    Repository
	Backend BackendFactory

	seen map[core.UnitID]struct{}
}

// NewLoader builds a store-backed Loader.
func NewLoader(repo Repository, backend BackendFactory) *Loader {
	return &Loader{Repo: repo, Backend: backend, seen: make(map[core.UnitID]struct{})}
}

// depsJSON mirrors core.UnitDeps with JSON tags; UnitDeps itself stays
// free of encoding concerns since the engine core has no persistence
// dependency of its own.
type depsJSON struct {
	Requires  []string `json:"requires,omitempty"`
	Wants     []string `json:"wants,omitempty"`
	After     []string `json:"after,omitempty"`
	Before    []string `json:"before,omitempty"`
	Conflicts []string `json:"conflicts,omitempty"`
}

// Sync implements loader.Loader.
func (l *Loader) Sync(ctx context.Context, target loader.Target) error {
	rows, err := l.Repo.FindAll()
	if err != nil {
		return fmt.Errorf("store: loading unit defs: %w", err)
	}

	for _, row := range rows {
		var dj depsJSON
		if err := json.Unmarshal([]byte(row.DepsJSON), &dj); err != nil {
			return fmt.Errorf("store: decoding deps for %q: %w", row.ID, err)
		}

		id := core.UnitID(row.ID)
		kind := parseKind(row.Kind)

		desc := core.UnitDesc{
			ID:          id,
			Description: row.Description,
			Kind:        kind,
			Deps: core.UnitDeps{
				Requires:  toUnitIDs(dj.Requires),
				Wants:     toUnitIDs(dj.Wants),
				After:     toUnitIDs(dj.After),
				Before:    toUnitIDs(dj.Before),
				Conflicts: toUnitIDs(dj.Conflicts),
			},
		}

		if l.Backend != nil {
			backend, err := l.Backend(id, kind, row.BackendJSON)
			if err != nil {
				return fmt.Errorf("store: building backend for %q: %w", row.ID, err)
			}
			desc.Backend = backend
		}

		if _, ok := l.seen[id]; ok {
			target.Update(id, desc)
		} else {
			l.seen[id] = struct{}{}
			target.Load(id, desc)
		}
	}

	return nil
}

func toUnitIDs(in []string) []core.UnitID {
	if len(in) == 0 {
		return nil
	}
	out := make([]core.UnitID, len(in))
	for i, s := range in {
		out[i] = core.UnitID(s)
	}
	return out
}

func parseKind(s string) core.Kind {
	switch s {
	case "service":
		return core.KindService
	case "mount":
		return core.KindMount
	case "socket":
		return core.KindSocket
	case "target":
		return core.KindTarget
	case "timer":
		return core.KindTimer
	default:
		return core.KindService
	}
}
