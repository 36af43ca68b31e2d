package cmd

import (
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/trly/unitd/internal/engine/backend/mount"
	"github.com/trly/unitd/internal/engine/backend/service"
	"github.com/trly/unitd/internal/engine/backend/socket"
	"github.com/trly/unitd/internal/engine/backend/target"
	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/store"
)

// mountBackendJSON is the BackendJSON shape a Mount unit's definition
// carries: the mount path handed to mount.New.
type mountBackendJSON struct {
	Path string `json:"path"`
}

// socketBackendJSON is the BackendJSON shape a Socket unit's definition
// carries: the AF_UNIX path to listen on and the unit a connection
// triggers.
type socketBackendJSON struct {
	Path    string `json:"path"`
	Trigger string `json:"trigger"`
}

// newBackendFactory returns a store.BackendFactory that reconstructs the
// right core.UnitImpl for each Kind, sharing one SystemdBackend across
// every Service unit so they all reuse its dbus connection.
func newBackendFactory(userMode bool, log *slog.Logger) store.BackendFactory {
	systemd := service.NewSystemdBackend(userMode, log)

	return func(id core.UnitID, kind core.Kind, backendJSON string) (core.UnitImpl, error) {
		switch kind {
		case core.KindTarget, core.KindTimer:
			return target.New(), nil

		case core.KindMount:
			var def mountBackendJSON
			if backendJSON != "" {
				if err := json.Unmarshal([]byte(backendJSON), &def); err != nil {
					return nil, fmt.Errorf("decoding mount backend for %s: %w", id, err)
				}
			}
			return mount.New(def.Path), nil

		case core.KindSocket:
			var def socketBackendJSON
			if backendJSON != "" {
				if err := json.Unmarshal([]byte(backendJSON), &def); err != nil {
					return nil, fmt.Errorf("decoding socket backend for %s: %w", id, err)
				}
			}
			return socket.New(def.Path, core.UnitID(def.Trigger)), nil

		case core.KindService:
			return service.New(systemd, service.UnitName(id)), nil

		default:
			return nil, fmt.Errorf("unsupported unit kind for %s", id)
		}
	}
}
