//go:build rp2040

package main

import (
	"machine"
	"time"

	"pellet/core"
	"pellet/protocol"
)

// Board pin map
const (
	actuatorPin        core.GPIOPin = 15 // solenoid driver gate
	pelletSensorPin    core.GPIOPin = 16 // dispense beam-break, active low
	retrievalSensorPin core.GPIOPin = 17 // reward beam-break, active low

	joystickChannel    core.ADCChannelID = 0 // ADC0 / GPIO26
	rangefinderChannel core.ADCChannelID = 1 // ADC1 / GPIO27
)

var (
	transport *protocol.Transport
	device    *core.Device

	// Debug counters
	msgerrors uint32

	// USB connection state tracking
	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
)

func main() {
	// Disable watchdog on boot to clear any previous state
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	InitUSB()
	InitDebugUART()
	core.SetDebugWriter(DebugPrintln)
	core.SetDebugEnabled(true)
	UpdateSystemTime()

	transport = protocol.NewTransport(protocol.MessageMax)
	// Send each response as soon as it is queued
	transport.SetFlushCallback(writeUSB)

	device, err = core.NewDevice(core.DefaultConfig(), core.Hardware{
		Clock:              hwClock{},
		GPIO:               NewRPGPIODriver(),
		ADC:                newRangefinder(NewRPAdcDriver()),
		ActuatorPin:        actuatorPin,
		PelletSensorPin:    pelletSensorPin,
		RetrievalSensorPin: retrievalSensorPin,
		JoystickChannel:    joystickChannel,
		RangefinderChannel: rangefinderChannel,
	}, transport)
	if err != nil {
		// Nothing can run without the hardware; keep reporting
		for {
			DebugPrintln("[INIT] device setup failed: " + err.Error())
			time.Sleep(time.Second)
		}
	}
	DebugPrintln("[INIT] feeder ready")

	go usbReaderLoop()

	for {
		// Recover from panics in the main loop to prevent a firmware crash
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
				}
			}()

			UpdateSystemTime()
			device.Step()
			writeUSB()
			serviceDebugConsole()
		}()

		// Yield to the USB reader goroutine
		time.Sleep(10 * time.Microsecond)
	}
}

// usbReaderLoop moves received USB bytes into the transport FIFO
func usbReaderLoop() {
	// Recover from panics to prevent a firmware crash
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	for {
		if USBAvailable() > 0 {
			data, err := USBRead()
			if err != nil {
				msgerrors++
				time.Sleep(1 * time.Millisecond)
				continue
			}

			// A host that reconnects starts from an empty link
			if usbWasDisconnected {
				usbWasDisconnected = false
				transport.Reset()
				consecutiveWriteFailures = 0
			}

			if transport.Receive([]byte{data}) == 0 {
				// FIFO full; the byte is counted as an overflow
				msgerrors++
			}
			continue
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB flushes staged responses to USB
func writeUSB() {
	if transport.Pending() == 0 {
		return
	}

	n, err := transport.WriteTo(usbWriter{})
	if err == nil && n > 0 {
		consecutiveWriteFailures = 0
		return
	}

	// No progress - likely disconnect
	consecutiveWriteFailures++
	if consecutiveWriteFailures > 10 {
		usbWasDisconnected = true
		consecutiveWriteFailures = 0
		// Don't keep trying to send stale data
		transport.Reset()
	}
}

// serviceDebugConsole handles single-byte requests on the debug UART
func serviceDebugConsole() {
	b, ok := debugRequest()
	if !ok {
		return
	}
	switch b {
	case 's':
		device.DumpStats()
		DebugPrintln("[STATS] rx_overflows=" + core.Utoa(transport.Overflows()) + " errors=" + core.Utoa(msgerrors))
	case 'c':
		device.Trace().Clear()
		DebugPrintln("[TIMING] cleared")
	}
}
