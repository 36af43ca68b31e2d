// Package service implements core.UnitImpl for long-running service
// units through a real systemd-dbus-backed implementation, adapted from
// the teacher's internal/systemd dbus connection wrapper. It has no
// in-process fake; engine tests use internal/engine/backend/faketest.
package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/coreos/go-systemd/v22/dbus"

	"github.com/trly/unitd/internal/engine/core"
)

// UnitName maps an engine unit id to the systemd unit name it drives.
// Services managed through this backend are expected to carry a ".service"
// suffix already, matching systemd convention.
func UnitName(id core.UnitID) string {
	return id.String()
}

// SystemdBackend drives a real systemd unit through org.freedesktop.systemd1
// over D-Bus, the same connection-wrapper shape as the teacher's
// internal/systemd.DBusConnection. Its own Start/Stop only return an
// error; the per-unit wrapper built by New does the work, blocking on the
// job-completion channel systemd reports back and translating
// "done"/anything-else into success/failure.
type SystemdBackend struct {
	UserMode bool
	log      *slog.Logger
}

// NewSystemdBackend builds a backend that talks to the user or system
// systemd instance depending on userMode.
func NewSystemdBackend(userMode bool, log *slog.Logger) *SystemdBackend {
	if log == nil {
		log = slog.Default()
	}
	return &SystemdBackend{UserMode: userMode, log: log}
}

func (b *SystemdBackend) connect(ctx context.Context) (*dbus.Conn, error) {
	if b.UserMode {
		return dbus.NewUserConnectionContext(ctx)
	}
	return dbus.NewSystemConnectionContext(ctx)
}

// systemdHandle is returned by SystemdBackend.Start; its Wait polls
// systemd's unit property for ActiveState changes via a long-lived
// subscription, translating "failed"/"inactive" into a terminal RtExit.
type systemdHandle struct {
	conn     *dbus.Conn
	unitName string
	sub      chan struct{}
	errCh    <-chan error
}

// Start implements core.UnitImpl.
func (b *SystemdBackend) Start(ctx context.Context) (core.Handle, error) {
	return nil, fmt.Errorf("service: SystemdBackend.Start requires a bound unit id, construct per-unit via New")
}

// Stop implements core.UnitImpl; present to satisfy the interface for
// backends constructed generically, the per-unit wrapper returned by New
// is the real entry point.
func (b *SystemdBackend) Stop(ctx context.Context, h core.Handle) error {
	return fmt.Errorf("service: SystemdBackend.Stop requires a bound unit id, use the per-unit wrapper from New")
}

// New returns a core.UnitImpl bound to one systemd unit name, the shape
// the engine actually needs (core.UnitImpl has no unit id parameter).
func New(b *SystemdBackend, unitName string) core.UnitImpl {
	return &boundUnit{backend: b, unitName: unitName}
}

type boundUnit struct {
	backend  *SystemdBackend
	unitName string
}

func (u *boundUnit) Start(ctx context.Context) (core.Handle, error) {
	conn, err := u.backend.connect(ctx)
	if err != nil {
		return nil, fmt.Errorf("service: connecting to systemd: %w", err)
	}

	done := make(chan string, 1)
	if _, err := conn.StartUnitContext(ctx, u.unitName, "replace", done); err != nil {
		conn.Close()
		return nil, fmt.Errorf("service: starting unit %s: %w", u.unitName, err)
	}

	select {
	case result := <-done:
		if result != "done" {
			conn.Close()
			return nil, fmt.Errorf("service: unit %s start result %q", u.unitName, result)
		}
	case <-ctx.Done():
		conn.Close()
		return nil, ctx.Err()
	}

	subSet := conn.NewSubscriptionSet()
	subSet.Add(u.unitName)
	updates, errs := subSet.Subscribe()

	return &systemdHandle{conn: conn, unitName: u.unitName, sub: subChan(updates), errCh: errs}, nil
}

func (u *boundUnit) Stop(ctx context.Context, h core.Handle) error {
	sh, ok := h.(*systemdHandle)
	if !ok {
		return fmt.Errorf("service: Stop called with foreign handle")
	}
	defer sh.conn.Close()

	done := make(chan string, 1)
	if _, err := sh.conn.StopUnitContext(ctx, u.unitName, "replace", done); err != nil {
		return fmt.Errorf("service: stopping unit %s: %w", u.unitName, err)
	}
	select {
	case result := <-done:
		if result != "done" {
			return fmt.Errorf("service: unit %s stop result %q", u.unitName, result)
		}
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// subChan adapts dbus's map-of-unit-name subscription channel into a
// bare wakeup signal: Wait re-reads ActiveState directly via
// GetUnitPropertyContext rather than inspecting the status snapshot, so
// only the fact of an update matters here.
func subChan(updates <-chan map[string]*dbus.UnitStatus) chan struct{} {
	out := make(chan struct{})
	go func() {
		defer close(out)
		for range updates {
			out <- struct{}{}
		}
	}()
	return out
}

// Wait implements core.Handle. It blocks until the subscribed unit
// leaves the active/activating states, reporting the terminal RtExit
// state implied by systemd's ActiveState.
func (h *systemdHandle) Wait(ctx context.Context) (core.RtMsg, error) {
	for {
		select {
		case <-ctx.Done():
			return core.RtMsg{}, ctx.Err()
		case err, ok := <-h.errCh:
			if !ok {
				return core.RtMsg{}, fmt.Errorf("service: subscription closed")
			}
			if err != nil {
				return core.RtMsg{}, fmt.Errorf("service: subscription error: %w", err)
			}
		case _, ok := <-h.sub:
			if !ok {
				return core.RtMsg{}, fmt.Errorf("service: subscription closed")
			}
			prop, err := h.conn.GetUnitPropertyContext(ctx, h.unitName, "ActiveState")
			if err != nil {
				return core.RtMsg{}, fmt.Errorf("service: reading ActiveState for %s: %w", h.unitName, err)
			}
			switch fmt.Sprint(prop.Value.Value()) {
			case "active", "activating", "reloading":
				continue
			case "failed":
				return core.RtMsg{Kind: core.RtExit, ExitState: core.Failed}, nil
			default:
				return core.RtMsg{Kind: core.RtExit, ExitState: core.Stopped}, nil
			}
		}
	}
}
