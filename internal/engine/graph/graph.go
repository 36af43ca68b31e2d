// Package graph validates that a set of unit descriptors forms an acyclic
// dependency graph before UnitStore accepts a Load or Update, per the
// design note in spec §9 ("Cycles in deps"): an implementation should
// validate acyclicity at Load/Update time and reject on cycle, rather than
// let a cyclic Requires/After chain deadlock the resolver's start-waiter
// set at runtime.
package graph

import (
	"fmt"

	dgraph "github.com/dominikbraun/graph"

	"github.com/trly/unitd/internal/engine/core"
)

// CheckAcyclic builds the combined After/Requires/Wants graph for units
// (a proposed full table, e.g. the existing table with one entry replaced
// or added) and reports the first cycle found, if any. Conflicts is
// intentionally excluded: mutual exclusion is not an ordering constraint.
func CheckAcyclic(units map[core.UnitID]core.UnitDesc) error {
	g := dgraph.New(dgraph.StringHash, dgraph.Directed(), dgraph.Acyclic())

	for id := range units {
		if err := g.AddVertex(string(id)); err != nil && err != dgraph.ErrVertexAlreadyExists {
			return fmt.Errorf("dependency graph: adding vertex %s: %w", id, err)
		}
	}

	addEdge := func(from, to core.UnitID) error {
		for _, v := range []core.UnitID{from, to} {
			if err := g.AddVertex(string(v)); err != nil && err != dgraph.ErrVertexAlreadyExists {
				return fmt.Errorf("dependency graph: adding vertex %s: %w", v, err)
			}
		}
		// Edge direction: peer -> id, i.e. "peer must be ordered/pulled
		// in before id" - mirrors the teacher's AddDependency(dependent,
		// dependency) convention (edge dependency -> dependent).
		if err := g.AddEdge(string(from), string(to)); err != nil {
			if err == dgraph.ErrEdgeAlreadyExists {
				return nil
			}
			return fmt.Errorf("dependency graph contains a cycle involving %s -> %s: %w", from, to, err)
		}
		return nil
	}

	for id, desc := range units {
		for _, peer := range desc.Deps.After {
			if err := addEdge(peer, id); err != nil {
				return err
			}
		}
		for _, peer := range desc.Deps.Requires {
			if err := addEdge(peer, id); err != nil {
				return err
			}
		}
		for _, peer := range desc.Deps.Wants {
			if err := addEdge(peer, id); err != nil {
				return err
			}
		}
	}

	return nil
}
