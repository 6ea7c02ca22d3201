//go:build rp2040 && tof

package main

import (
	"machine"

	"tinygo.org/x/drivers/vl53l1x"

	"pellet/core"
)

const (
	tofTimingBudget = 50000 // microseconds
	tofPeriod       = 50    // ms between continuous measurements
	tofMaxDistance  = 8190  // mm; larger readings are out of range
)

// tofADC answers the rangefinder channel with a VL53L1X distance in mm and
// passes every other channel to the analog driver.
type tofADC struct {
	core.ADCDriver
	sensor vl53l1x.Device
	last   uint16
}

// newRangefinder replaces the analog rangefinder with a VL53L1X on I2C0
// (SDA=GPIO4, SCL=GPIO5). The analog channel is used if the sensor is absent.
func newRangefinder(adc core.ADCDriver) core.ADCDriver {
	if err := machine.I2C0.Configure(machine.I2CConfig{Frequency: 400000}); err != nil {
		DebugPrintln("[TOF] I2C0 configure failed")
		return adc
	}

	sensor := vl53l1x.New(machine.I2C0)
	if !sensor.Configure(true) {
		DebugPrintln("[TOF] VL53L1X not found, using analog rangefinder")
		return adc
	}
	sensor.SetMeasurementTimingBudget(tofTimingBudget)
	sensor.StartContinuous(tofPeriod)

	return &tofADC{ADCDriver: adc, sensor: sensor}
}

// ConfigureChannel leaves the rangefinder channel to the I2C sensor
func (t *tofADC) ConfigureChannel(ch core.ADCChannelID) error {
	if ch == rangefinderChannel {
		return nil
	}
	return t.ADCDriver.ConfigureChannel(ch)
}

// ReadRaw never blocks on the sensor; it answers the latest distance
func (t *tofADC) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	if ch != rangefinderChannel {
		return t.ADCDriver.ReadRaw(ch)
	}

	// Non-blocking read returns 0 if no new data
	if d := t.sensor.Read(false); d != 0 {
		if d > tofMaxDistance {
			d = tofMaxDistance
		}
		t.last = d
	}
	return core.ADCValue(t.last), nil
}
