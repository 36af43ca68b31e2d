package store

import "time"

// UnitDefRow is the persisted row shape for one unit definition: enough
// to reconstruct the Requires/Wants/After/Conflicts sets a loader.Loader
// needs to call Load/Update, but deliberately opaque about backend
// construction (BackendJSON is decoded by the BackendFactory handed to
// NewLoader, e.g. the one in cmd/backend.go).
type UnitDefRow struct {
	ID          string
	Kind        string
	Description string
	DepsJSON    string
	BackendJSON string
	UpdatedAt   time.Time
}
