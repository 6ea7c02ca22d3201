//go:build rp2040

package main

import (
	"machine"

	"pellet/core"
)

// RPGPIODriver implements core.GPIODriver for the RP2040
type RPGPIODriver struct {
	// Track configured pins to prevent conflicts
	configuredPins map[core.GPIOPin]machine.Pin
}

// NewRPGPIODriver creates a new RP2040 GPIO driver
func NewRPGPIODriver() *RPGPIODriver {
	return &RPGPIODriver{
		configuredPins: make(map[core.GPIOPin]machine.Pin),
	}
}

// ConfigureOutput configures a pin as a digital output
func (d *RPGPIODriver) ConfigureOutput(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinOutput)
}

// ConfigureInputPullUp configures a pin as an input with pull-up resistor
func (d *RPGPIODriver) ConfigureInputPullUp(pin core.GPIOPin) error {
	return d.configure(pin, machine.PinInputPullup)
}

func (d *RPGPIODriver) configure(pin core.GPIOPin, mode machine.PinMode) error {
	if _, exists := d.configuredPins[pin]; exists {
		return nil
	}
	// GPIO numbers map directly to machine.Pin on the RP2040
	machinePin := machine.Pin(pin)
	machinePin.Configure(machine.PinConfig{Mode: mode})
	d.configuredPins[pin] = machinePin
	return nil
}

// SetPin sets the pin to high (true) or low (false)
func (d *RPGPIODriver) SetPin(pin core.GPIOPin, value bool) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureOutput(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}

	machinePin.Set(value)
	return nil
}

// GetPin reads the current pin state
func (d *RPGPIODriver) GetPin(pin core.GPIOPin) (bool, error) {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		return false, nil
	}
	return machinePin.Get(), nil
}

// SetInterrupt binds handler to an edge on a configured input
func (d *RPGPIODriver) SetInterrupt(pin core.GPIOPin, edge core.PinEdge, handler func()) error {
	machinePin, exists := d.configuredPins[pin]
	if !exists {
		if err := d.ConfigureInputPullUp(pin); err != nil {
			return err
		}
		machinePin = d.configuredPins[pin]
	}

	change := machine.PinFalling
	if edge == core.EdgeRising {
		change = machine.PinRising
	}
	return machinePin.SetInterrupt(change, func(machine.Pin) {
		handler()
	})
}
