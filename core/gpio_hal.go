package core

// GPIOPin identifies a hardware GPIO pin number
type GPIOPin uint32

// PinEdge selects which signal transition raises a pin interrupt
type PinEdge uint8

const (
	EdgeFalling PinEdge = iota
	EdgeRising
)

// GPIODriver is the abstract GPIO interface that core code uses.
// Platform-specific implementations handle actual hardware control.
type GPIODriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool) error

	// GetPin reads the current pin state
	GetPin(pin GPIOPin) (bool, error)

	// SetInterrupt binds handler to the given edge on an input pin.
	// The handler runs in interrupt context and must not block.
	SetInterrupt(pin GPIOPin, edge PinEdge, handler func()) error
}
