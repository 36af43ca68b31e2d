// Package compose translates a Docker/Podman Compose project into
// engine unit descriptors, using each service's DependsOn as the source
// of Requires/After edges - the same relationship the teacher's
// internal/dependency.ServiceDependencyGraph builds, here fed straight
// into UnitStore.Load instead of a separate topological-sort structure.
package compose

import (
	"context"
	"fmt"

	"github.com/compose-spec/compose-go/v2/types"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/loader"
)

// Backend builds the core.UnitImpl for one compose service; the loader
// itself has no opinion on how a service actually runs.
type Backend func(serviceName string, svc types.ServiceConfig) core.UnitImpl

// Loader turns a compose-go Project into UnitStore.Load/Update calls,
// one per service, with Requires/After populated from DependsOn.
type Loader struct {
	Project *types.Project
	Backend Backend

	seen map[core.UnitID]struct{}
}

// New builds a compose Loader over an already-parsed project.
func New(project *types.Project, backend Backend) *Loader {
	return &Loader{Project: project, Backend: backend, seen: make(map[core.UnitID]struct{})}
}

// Sync implements loader.Loader: every compose service becomes one
// core.KindService unit, Load'd on first sight and Update'd afterward.
func (l *Loader) Sync(ctx context.Context, target loader.Target) error {
	if l.Project == nil {
		return fmt.Errorf("compose: no project loaded")
	}

	for name, svc := range l.Project.Services {
		id := core.UnitID(name)

		var requires []core.UnitID
		for dep := range svc.DependsOn {
			requires = append(requires, core.UnitID(dep))
		}

		desc := core.UnitDesc{
			ID:          id,
			Description: fmt.Sprintf("compose service %s", name),
			Kind:        core.KindService,
			Deps: core.UnitDeps{
				Requires: requires,
				After:    requires,
			},
		}
		if l.Backend != nil {
			desc.Backend = l.Backend(name, svc)
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
