package core

import "errors"

// ADCChannelID identifies a logical ADC channel.
type ADCChannelID uint8

// ADCValue is the "raw" ADC reading as seen by the rest of the firmware.
// It goes on the wire unchanged, so its width matches the response word.
type ADCValue uint16

// ErrUnknownChannel is returned by drivers for channels they cannot sample
var ErrUnknownChannel = errors.New("unsupported ADC channel")

// ADCDriver is the abstract ADC interface that core code uses.
type ADCDriver interface {
	// ConfigureChannel prepares a channel for analog input.
	// For pin-muxed channels, this should set pin to analog mode.
	ConfigureChannel(ch ADCChannelID) error

	// ReadRaw performs a one-shot sample from the given channel.
	ReadRaw(ch ADCChannelID) (ADCValue, error)
}
