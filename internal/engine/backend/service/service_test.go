package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/trly/unitd/internal/engine/core"
)

func TestUnitName_PassesThroughUnitID(t *testing.T) {
	assert.Equal(t, "web.service", UnitName(core.UnitID("web.service")))
}

func TestSystemdBackend_StartRejectsUnboundCall(t *testing.T) {
	b := NewSystemdBackend(true, nil)
	_, err := b.Start(context.Background())
	assert.Error(t, err)
}

func TestSystemdBackend_StopRejectsUnboundCall(t *testing.T) {
	b := NewSystemdBackend(true, nil)
	err := b.Stop(context.Background(), nil)
	assert.Error(t, err)
}

func TestBoundUnit_StopRejectsForeignHandle(t *testing.T) {
	b := NewSystemdBackend(true, nil)
	u := New(b, "web.service")

	err := u.Stop(context.Background(), fakeHandle{})
	assert.Error(t, err)
}

type fakeHandle struct{}

func (fakeHandle) Wait(ctx context.Context) (core.RtMsg, error) { return core.RtMsg{}, nil }
