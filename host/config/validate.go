package config

import (
	"fmt"
)

// Validate checks configuration correctness.
// It MUST NOT mutate configuration.
func Validate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	if cfg.Serial.Baud < 0 {
		return fmt.Errorf("serial.baud must be positive, got %d", cfg.Serial.Baud)
	}
	if cfg.Serial.ReadTimeout < 0 {
		return fmt.Errorf("serial.read_timeout must not be negative")
	}

	if cfg.Client.CommandTimeout < 0 || cfg.Client.StallTimeout < 0 {
		return fmt.Errorf("client timeouts must not be negative")
	}

	switch cfg.Log.Level {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("log.level %q is not one of debug, info, warn, error", cfg.Log.Level)
	}
	switch cfg.Log.Format {
	case "console", "json":
	default:
		return fmt.Errorf("log.format %q is not console or json", cfg.Log.Format)
	}
	switch cfg.Log.Output {
	case "stdout", "file", "both":
	default:
		return fmt.Errorf("log.output %q is not stdout, file or both", cfg.Log.Output)
	}

	if cfg.Sim.MissedPulses < 0 {
		return fmt.Errorf("sim.missed_pulses must not be negative")
	}
	if cfg.Sim.DropDelay < 0 || cfg.Sim.RetrievalDelay < 0 {
		return fmt.Errorf("sim delays must not be negative")
	}
	if cfg.Sim.PulseWidth != 0 && cfg.Sim.DispenseWait != 0 && cfg.Sim.PulseWidth >= cfg.Sim.DispenseWait {
		return fmt.Errorf(
			"sim.pulse_width (%d) must be shorter than sim.dispense_wait (%d)",
			cfg.Sim.PulseWidth,
			cfg.Sim.DispenseWait,
		)
	}

	return nil
}
