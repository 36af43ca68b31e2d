package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
)

func fakeRoot(t *testing.T) {
	t.Helper()
	orig := getuid
	getuid = func() int { return 0 }
	t.Cleanup(func() { getuid = orig })
}

func TestIsUserMode(t *testing.T) {
	cfg := &Config{}
	assert.True(t, cfg.IsUserMode())
}

func TestIsUserMode_Root(t *testing.T) {
	fakeRoot(t)
	cfg := &Config{}
	assert.False(t, cfg.IsUserMode())
}

func TestIsUserMode_ForcedTrueEvenAsRoot(t *testing.T) {
	fakeRoot(t)
	cfg := &Config{UserMode: true}
	assert.True(t, cfg.IsUserMode())
}

func TestGetUnitDefsPath_Configured(t *testing.T) {
	cfg := &Config{UnitDefsPath: "/custom/units"}
	assert.Equal(t, "/custom/units", cfg.GetUnitDefsPath())
}

func TestGetUnitDefsPath_DefaultUserMode(t *testing.T) {
	cfg := &Config{}
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".config/unitd/units")
	assert.Equal(t, expected, cfg.GetUnitDefsPath())
}

func TestGetUnitDefsPath_DefaultSystemMode(t *testing.T) {
	fakeRoot(t)
	cfg := &Config{}
	assert.Equal(t, "/etc/unitd/units", cfg.GetUnitDefsPath())
}

func TestGetDBPath_Configured(t *testing.T) {
	cfg := &Config{DBPath: "/custom/unitd.db"}
	assert.Equal(t, "/custom/unitd.db", cfg.GetDBPath())
}

func TestGetDBPath_DefaultUserMode(t *testing.T) {
	cfg := &Config{}
	home, _ := os.UserHomeDir()
	expected := filepath.Join(home, ".local/share/unitd/unitd.db")
	assert.Equal(t, expected, cfg.GetDBPath())
}

func TestGetDBPath_DefaultSystemMode(t *testing.T) {
	fakeRoot(t)
	cfg := &Config{}
	assert.Equal(t, "/var/lib/unitd/unitd.db", cfg.GetDBPath())
}

func TestGetQueueDepth_Default(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, DefaultQueueDepth, cfg.GetQueueDepth())
}

func TestGetQueueDepth_Configured(t *testing.T) {
	cfg := &Config{QueueDepth: 128}
	assert.Equal(t, 128, cfg.GetQueueDepth())
}

func TestGetGuardQueueDepth_Default(t *testing.T) {
	cfg := &Config{}
	assert.Equal(t, DefaultGuardQueueDepth, cfg.GetGuardQueueDepth())
}

func TestGetGuardQueueDepth_Configured(t *testing.T) {
	cfg := &Config{GuardQueueDepth: 3}
	assert.Equal(t, 3, cfg.GetGuardQueueDepth())
}
