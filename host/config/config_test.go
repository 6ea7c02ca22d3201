package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()
	require.NoError(t, Validate(cfg))

	assert.Equal(t, DefaultDevice, cfg.Serial.Device)
	assert.Equal(t, 115200, cfg.Serial.Baud)
	assert.Equal(t, DefaultCommandTimeout, cfg.Client.CommandTimeout)
	assert.Equal(t, DefaultStallTimeout, cfg.Client.StallTimeout)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "stdout", cfg.Log.Output)
	assert.False(t, cfg.Sim.Enabled)
}

func TestParse(t *testing.T) {
	data := []byte(`
serial:
  device: /dev/ttyUSB1
  baud: 9600
client:
  stall_timeout: 4s
log:
  level: DEBUG
  format: json
sim:
  enabled: true
  dispense_wait: 50
  pulse_width: 5
  missed_pulses: 2
  retrieval_delay: 250ms
`)
	cfg, err := Parse(data)
	require.NoError(t, err)

	assert.Equal(t, "/dev/ttyUSB1", cfg.Serial.Device)
	assert.Equal(t, 9600, cfg.Serial.Baud)
	assert.Equal(t, 4*time.Second, cfg.Client.StallTimeout)
	assert.Equal(t, DefaultCommandTimeout, cfg.Client.CommandTimeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.True(t, cfg.Sim.Enabled)
	assert.Equal(t, uint32(50), cfg.Sim.DispenseWait)
	assert.Equal(t, 2, cfg.Sim.MissedPulses)
	assert.Equal(t, 250*time.Millisecond, cfg.Sim.RetrievalDelay)
	assert.Equal(t, DefaultDropDelay, cfg.Sim.DropDelay)
}

func TestParseExpandsEnv(t *testing.T) {
	t.Setenv("PELLET_DEVICE", "/dev/ttyACM3")
	cfg, err := Parse([]byte("serial:\n  device: ${PELLET_DEVICE}\n"))
	require.NoError(t, err)
	assert.Equal(t, "/dev/ttyACM3", cfg.Serial.Device)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "pellet.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  output: both\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "both", cfg.Log.Output)

	_, err = Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestParseRejectsBadYAML(t *testing.T) {
	_, err := Parse([]byte("serial: [unterminated"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"bad level", func(c *Config) { c.Log.Level = "verbose" }},
		{"bad format", func(c *Config) { c.Log.Format = "xml" }},
		{"bad output", func(c *Config) { c.Log.Output = "syslog" }},
		{"negative baud", func(c *Config) { c.Serial.Baud = -1 }},
		{"negative timeout", func(c *Config) { c.Client.StallTimeout = -time.Second }},
		{"negative missed pulses", func(c *Config) { c.Sim.MissedPulses = -1 }},
		{"pulse longer than wait", func(c *Config) {
			c.Sim.DispenseWait = 20
			c.Sim.PulseWidth = 20
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			assert.Error(t, Validate(cfg))
		})
	}

	assert.Error(t, Validate(nil))
}
