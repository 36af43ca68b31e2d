// Package mount sketches a core.UnitImpl for filesystem mount units.
// Mount units are not a focus of this engine (spec Non-goals excludes
// real mount/unmount syscalls); Start succeeds immediately and Wait
// simply parks until stopped or cancelled, matching how the resolver's
// After/Requires ordering treats a mount purely as a dependency gate.
package mount

import (
	"context"

	"github.com/trly/unitd/internal/engine/core"
)

// Backend is a no-op mount unit: Start "mounts" instantly, Wait blocks
// forever (the mount stays up until Stop is called).
type Backend struct {
	Path string
}

// New returns a core.UnitImpl for the filesystem path at path.
func New(path string) core.UnitImpl {
	return &Backend{Path: path}
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

// Wait implements core.Handle: a mount only exits via Stop, which is
// delivered to the Guard's control channel directly, so Wait never
// produces a message on its own; it just blocks on ctx.
func (h *handle) Wait(ctx context.Context) (core.RtMsg, error) {
	<-ctx.Done()
	return core.RtMsg{}, ctx.Err()
}
