package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"
)

var envVarPattern = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Config is the host tooling configuration
type Config struct {
	Serial SerialConfig `yaml:"serial"`
	Client ClientConfig `yaml:"client"`
	Log    LogConfig    `yaml:"log"`
	Sim    SimConfig    `yaml:"sim"`
}

// SerialConfig selects the link to the feeder
type SerialConfig struct {
	Device      string `yaml:"device"`
	Baud        int    `yaml:"baud"`
	ReadTimeout int    `yaml:"read_timeout"` // milliseconds
}

// ClientConfig bounds how long the host waits for answers.
// StallTimeout applies to commands the device holds until an event occurs.
type ClientConfig struct {
	CommandTimeout time.Duration `yaml:"command_timeout"`
	StallTimeout   time.Duration `yaml:"stall_timeout"`
}

// LogConfig configures host logging
type LogConfig struct {
	Level  string        `yaml:"level"`  // debug, info, warn, error
	Format string        `yaml:"format"` // console or json
	Output string        `yaml:"output"` // stdout, file or both
	File   LogFileConfig `yaml:"file"`
}

// LogFileConfig configures rotated log files
type LogFileConfig struct {
	Path       string `yaml:"path"`
	Filename   string `yaml:"filename"`
	MaxSize    int    `yaml:"max_size"` // MB
	MaxAge     int    `yaml:"max_age"`  // days
	MaxBackups int    `yaml:"max_backups"`
	Compress   bool   `yaml:"compress"`
}

// SimConfig describes the simulated apparatus used instead of a serial port
type SimConfig struct {
	Enabled bool `yaml:"enabled"`

	// Firmware tunables; zero keeps the firmware default
	MaxAttempts  uint8  `yaml:"max_attempts"`
	DispenseWait uint32 `yaml:"dispense_wait"` // ms
	PulseWidth   uint32 `yaml:"pulse_width"`   // ms

	DropDelay      time.Duration `yaml:"drop_delay"`
	MissedPulses   int           `yaml:"missed_pulses"`
	Jammed         bool          `yaml:"jammed"`
	RetrievalDelay time.Duration `yaml:"retrieval_delay"` // zero: never retrieved
	Joystick       uint16        `yaml:"joystick"`
	Rangefinder    uint16        `yaml:"rangefinder"`
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	Normalize(cfg)
	return cfg
}

// Load reads a YAML file, expands ${VAR} references from the environment,
// fills defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %q: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes configuration from YAML bytes
func Parse(data []byte) (*Config, error) {
	expanded := envVarPattern.ReplaceAllStringFunc(string(data), func(m string) string {
		name := envVarPattern.FindStringSubmatch(m)[1]
		return os.Getenv(name)
	})

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	Normalize(cfg)
	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, nil
}
