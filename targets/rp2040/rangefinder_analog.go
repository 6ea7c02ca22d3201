//go:build rp2040 && !tof

package main

import "pellet/core"

// newRangefinder keeps the rangefinder on its analog channel
func newRangefinder(adc core.ADCDriver) core.ADCDriver {
	return adc
}
