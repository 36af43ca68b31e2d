// Package target implements core.UnitImpl for target units: pure
// aggregation points with no runtime of their own (spec §1's
// "systemd-style ordering and dependency semantics" grouping concept).
// A target's own liveness carries no meaning beyond "its Wants/Requires
// closure reached Active"; Start succeeds immediately and Wait parks
// until Stop.
package target

import (
	"context"

	"github.com/trly/unitd/internal/engine/core"
)

// Backend is a no-op target unit.
type Backend struct{}

// New returns a core.UnitImpl for a target unit.
func New() core.UnitImpl {
	return &Backend{}
}

// Start implements core.UnitImpl.
func (b *Backend) Start(ctx context.Context) (core.Handle, error) {
	return &handle{}, nil
}

// Stop implements core.UnitImpl.
func (b *Backend) Stop(ctx context.Context, h core.Handle) error {
	return nil
}

type handle struct{}

// Wait implements core.Handle.
func (h *handle) Wait(ctx context.Context) (core.RtMsg, error) {
	<-ctx.Done()
	return core.RtMsg{}, ctx.Err()
}
