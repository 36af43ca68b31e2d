package core

import "fmt"

// Kind markers for the error classes the core distinguishes (spec §7).
// Callers use errors.Is against the sentinels below; the concrete errors
// wrap them together with the offending unit and, where applicable, the
// underlying backend error.

// ErrMissingDependency is returned/logged when a referenced UnitID is not
// registered in UnitStore. Soft for Wants, hard for Requires.
var ErrMissingDependency = fmt.Errorf("missing dependency")

// ErrBackendStart wraps a UnitImpl.Start failure.
var ErrBackendStart = fmt.Errorf("backend start failed")

// ErrBackendStop wraps a UnitImpl.Stop failure.
var ErrBackendStop = fmt.Errorf("backend stop failed")

// ErrRaceDuringStart marks a SetIf(Starting, dead) that observed a
// non-dead state.
var ErrRaceDuringStart = fmt.Errorf("race during start")

// ErrConflictStop marks termination caused by a Conflicts peer starting.
var ErrConflictStop = fmt.Errorf("stopped due to conflicting unit")

// MissingDependencyError names the unit and the absent peer.
type MissingDependencyError struct {
	Unit UnitID
	Peer UnitID
	Hard bool // true when the peer was a Requires (cascades to Failed)
}

func (e *MissingDependencyError) Error() string {
	return fmt.Sprintf("%s: unit %s references unknown peer %s (hard=%v)", ErrMissingDependency, e.Unit, e.Peer, e.Hard)
}

func (e *MissingDependencyError) Unwrap() error { return ErrMissingDependency }

// BackendStartError wraps the error a UnitImpl.Start returned.
type BackendStartError struct {
	Unit UnitID
	Err  error
}

func (e *BackendStartError) Error() string {
	return fmt.Sprintf("%s: unit %s: %v", ErrBackendStart, e.Unit, e.Err)
}

func (e *BackendStartError) Unwrap() error { return ErrBackendStart }

// BackendStopError wraps the error a UnitImpl.Stop returned.
type BackendStopError struct {
	Unit UnitID
	Err  error
}

func (e *BackendStopError) Error() string {
	return fmt.Sprintf("%s: unit %s: %v", ErrBackendStop, e.Unit, e.Err)
}

func (e *BackendStopError) Unwrap() error { return ErrBackendStop }
