package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/trly/unitd/internal/engine/core"
	"github.com/trly/unitd/internal/store"
)

// unitDefFile is the on-disk YAML shape `unitd load` reads; it mirrors
// store.depsJSON's field set since both ultimately populate the same
// persisted row.
type unitDefFile struct {
	Kind        string                 `yaml:"kind"`
	Description string                 `yaml:"description"`
	Requires    []string               `yaml:"requires,omitempty"`
	Wants       []string               `yaml:"wants,omitempty"`
	After       []string               `yaml:"after,omitempty"`
	Before      []string               `yaml:"before,omitempty"`
	Conflicts   []string               `yaml:"conflicts,omitempty"`
	Backend     map[string]interface{} `yaml:"backend,omitempty"`
}

func newLoadCommand() *cobra.Command {
	return &cobra.Command{
		Use:           "load <unit> <file.yaml>",
		Short:         "Persist a unit definition and load it into the running engine",
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			app := appFromContext(cmd)
			id := core.UnitID(args[0])

			raw, err := os.ReadFile(args[1])
			if err != nil {
				return fmt.Errorf("reading %s: %w", args[1], err)
			}
			if err := loadUnitDefInto(app, id, raw); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "loaded %s\n", id)
			return nil
		},
	}
}

// loadUnitDefInto parses raw YAML unit-definition content, persists it to
// the sqlite repository, and loads or updates it in the running engine.
// Shared by `unitd load` and the UnitDefsPath directory scan NewApp runs
// at startup.
func loadUnitDefInto(app *App, id core.UnitID, raw []byte) error {
	var def unitDefFile
	if err := yaml.Unmarshal(raw, &def); err != nil {
		return fmt.Errorf("parsing unit definition %s: %w", id, err)
	}

	deps, err := json.Marshal(struct {
		Requires  []string `json:"requires,omitempty"`
		Wants     []string `json:"wants,omitempty"`
		After     []string `json:"after,omitempty"`
		Before    []string `json:"before,omitempty"`
		Conflicts []string `json:"conflicts,omitempty"`
	}{def.Requires, def.Wants, def.After, def.Before, def.Conflicts})
	if err != nil {
		return fmt.Errorf("encoding dependencies for %s: %w", id, err)
	}

	var backendJSON string
	if len(def.Backend) > 0 {
		encoded, err := json.Marshal(def.Backend)
		if err != nil {
			return fmt.Errorf("encoding backend config for %s: %w", id, err)
		}
		backendJSON = string(encoded)
	}

	kind := kindFromString(def.Kind)

	row := store.UnitDefRow{
		ID:          string(id),
		Kind:        def.Kind,
		Description: def.Description,
		DepsJSON:    string(deps),
		BackendJSON: backendJSON,
		UpdatedAt:   time.Now(),
	}
	if err := app.Repo.Upsert(row); err != nil {
		return fmt.Errorf("persisting unit definition %s: %w", id, err)
	}

	desc := core.UnitDesc{
		ID:          id,
		Description: def.Description,
		Kind:        kind,
		Deps: core.UnitDeps{
			Requires:  toUnitIDs(def.Requires),
			Wants:     toUnitIDs(def.Wants),
			After:     toUnitIDs(def.After),
			Before:    toUnitIDs(def.Before),
			Conflicts: toUnitIDs(def.Conflicts),
		},
	}
	if app.Backend != nil {
		backend, err := app.Backend(id, kind, backendJSON)
		if err != nil {
			return fmt.Errorf("building backend for %s: %w", id, err)
		}
		desc.Backend = backend
	}

	if _, ok := app.Engine.Get(id); ok {
		app.Engine.Update(id, desc)
	} else {
		app.Engine.Load(id, desc)
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

func kindFromString(s string) core.Kind {
	switch s {
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
