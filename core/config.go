package core

// Firmware defaults
const (
	DefaultMaxAttempts  = 12  // dispense attempts before a session fails
	DefaultDispenseWait = 300 // ticks to wait for detection after each attempt
	DefaultPulseWidth   = 50  // ticks the actuator output stays high
)

// Config holds the compile-time tunables of the device
type Config struct {
	MaxAttempts  uint8
	DispenseWait uint32
	PulseWidth   uint32
}

// DefaultConfig returns the firmware defaults
func DefaultConfig() Config {
	return Config{
		MaxAttempts:  DefaultMaxAttempts,
		DispenseWait: DefaultDispenseWait,
		PulseWidth:   DefaultPulseWidth,
	}
}

// withDefaults fills zero fields from DefaultConfig
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MaxAttempts == 0 {
		c.MaxAttempts = def.MaxAttempts
	}
	if c.DispenseWait == 0 {
		c.DispenseWait = def.DispenseWait
	}
	if c.PulseWidth == 0 {
		c.PulseWidth = def.PulseWidth
	}
	return c
}

// Hardware binds the device to its platform drivers and pin map
type Hardware struct {
	Clock Clock
	GPIO  GPIODriver
	ADC   ADCDriver

	ActuatorPin        GPIOPin
	PelletSensorPin    GPIOPin
	RetrievalSensorPin GPIOPin

	JoystickChannel    ADCChannelID
	RangefinderChannel ADCChannelID
}
