package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeTempConfig(t *testing.T, yaml string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

func TestLoadAppliesDefaults(t *testing.T) {
	path := writeTempConfig(t, "interfaces: [\"eth0\"]\n")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"eth0"}, cfg.Interfaces)
	assert.Equal(t, uint32(1), cfg.ClassifierWorkers)
	assert.Equal(t, uint32(4096), cfg.ChannelCapacity)
	assert.Equal(t, "info", cfg.Logger.Level)
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := writeTempConfig(t, `
interfaces: ["eth0", "eth1"]
classifier_workers: 4
channel_capacity: 8192
logger:
  level: debug
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"eth0", "eth1"}, cfg.Interfaces)
	assert.Equal(t, uint32(4), cfg.ClassifierWorkers)
	assert.Equal(t, uint32(8192), cfg.ChannelCapacity)
	assert.Equal(t, "debug", cfg.Logger.Level)
}

func TestValidateRejectsZeroOrMultipleSources(t *testing.T) {
	cfg := Defaults()
	assert.Error(t, cfg.Validate(), "no capture source configured")

	cfg.Interfaces = []string{"eth0"}
	cfg.PcapFile = "trace.pcap"
	assert.Error(t, cfg.Validate(), "two capture sources configured")

	cfg.PcapFile = ""
	assert.NoError(t, cfg.Validate())
}

func TestValidateRejectsZeroWorkersOrCapacity(t *testing.T) {
	cfg := Defaults()
	cfg.Interfaces = []string{"eth0"}

	cfg.ClassifierWorkers = 0
	assert.Error(t, cfg.Validate())
	cfg.ClassifierWorkers = 1

	cfg.ChannelCapacity = 0
	assert.Error(t, cfg.Validate())
}
