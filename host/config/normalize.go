package config

import (
	"strings"
	"time"

	"pellet/protocol"
)

// Defaults applied by Normalize
const (
	DefaultDevice         = "/dev/ttyACM0"
	DefaultReadTimeout    = 100 // ms
	DefaultCommandTimeout = time.Second
	DefaultStallTimeout   = 10 * time.Second
	DefaultDropDelay      = 40 * time.Millisecond
)

// Normalize fills unset fields with defaults and canonicalises enum-like
// strings. It is allowed to mutate configuration.
func Normalize(cfg *Config) {
	if cfg == nil {
		return
	}

	if cfg.Serial.Device == "" {
		cfg.Serial.Device = DefaultDevice
	}
	if cfg.Serial.Baud == 0 {
		cfg.Serial.Baud = protocol.DefaultBaud
	}
	if cfg.Serial.ReadTimeout == 0 {
		cfg.Serial.ReadTimeout = DefaultReadTimeout
	}

	if cfg.Client.CommandTimeout == 0 {
		cfg.Client.CommandTimeout = DefaultCommandTimeout
	}
	if cfg.Client.StallTimeout == 0 {
		cfg.Client.StallTimeout = DefaultStallTimeout
	}

	cfg.Log.Level = strings.ToLower(strings.TrimSpace(cfg.Log.Level))
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	cfg.Log.Format = strings.ToLower(strings.TrimSpace(cfg.Log.Format))
	if cfg.Log.Format == "" {
		cfg.Log.Format = "console"
	}
	cfg.Log.Output = strings.ToLower(strings.TrimSpace(cfg.Log.Output))
	if cfg.Log.Output == "" {
		cfg.Log.Output = "stdout"
	}
	if cfg.Log.File.Path == "" {
		cfg.Log.File.Path = "logs"
	}
	if cfg.Log.File.Filename == "" {
		cfg.Log.File.Filename = "pellet-host.log"
	}
	if cfg.Log.File.MaxSize == 0 {
		cfg.Log.File.MaxSize = 10
	}

	if cfg.Sim.DropDelay == 0 {
		cfg.Sim.DropDelay = DefaultDropDelay
	}
}
