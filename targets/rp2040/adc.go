//go:build rp2040

package main

import (
	"machine"
	"sync"

	"pellet/core"
)

// RpAdcDriver implements core.ADCDriver using TinyGo's machine.ADC.
// Channel IDs 0-3 map to ADC0-ADC3 (GPIO26-GPIO29).
type RpAdcDriver struct {
	mu       sync.Mutex
	channels map[core.ADCChannelID]*machine.ADC
}

// NewRPAdcDriver initialises the ADC block and returns the driver
func NewRPAdcDriver() *RpAdcDriver {
	machine.InitADC()
	return &RpAdcDriver{
		channels: make(map[core.ADCChannelID]*machine.ADC),
	}
}

// ConfigureChannel puts the channel's pin in analog mode
func (d *RpAdcDriver) ConfigureChannel(ch core.ADCChannelID) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.channels[ch]; ok {
		return nil
	}

	var adc machine.ADC
	switch ch {
	case 0:
		adc = machine.ADC{Pin: machine.ADC0}
	case 1:
		adc = machine.ADC{Pin: machine.ADC1}
	case 2:
		adc = machine.ADC{Pin: machine.ADC2}
	case 3:
		adc = machine.ADC{Pin: machine.ADC3}
	default:
		return core.ErrUnknownChannel
	}

	// 12-bit samples keep the reading well inside the response word
	if err := adc.Configure(machine.ADCConfig{Resolution: 12}); err != nil {
		return err
	}

	d.channels[ch] = &adc
	return nil
}

// ReadRaw returns a raw 12-bit sample (0-4095)
func (d *RpAdcDriver) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	d.mu.Lock()
	adc, ok := d.channels[ch]
	d.mu.Unlock()
	if !ok {
		return 0, core.ErrUnknownChannel
	}

	// machine.ADC.Get scales to 16 bits; shift back to the native resolution
	return core.ADCValue(adc.Get() >> 4), nil
}
