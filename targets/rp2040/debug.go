//go:build rp2040

package main

import (
	"machine"
)

var (
	debugUART    *machine.UART
	debugEnabled bool
)

// InitDebugUART initializes UART1 on GPIO8 (TX) and GPIO9 (RX) for debugging
// Baud rate: 115200
func InitDebugUART() {
	debugUART = machine.UART1

	err := debugUART.Configure(machine.UARTConfig{
		BaudRate: 115200,
		TX:       machine.GPIO8,
		RX:       machine.GPIO9,
	})
	if err != nil {
		debugEnabled = false
		return
	}

	debugEnabled = true
	DebugPrintln("=== Pellet feeder debug UART ===")
	DebugPrintln("Send 's' for stats, 'c' to clear the timing ring")
}

// DebugPrintln writes a string to the debug UART with newline
func DebugPrintln(s string) {
	if !debugEnabled || debugUART == nil {
		return
	}
	debugUART.Write([]byte(s))
	debugUART.Write([]byte("\r\n"))
}

// debugRequest returns a pending console byte, if any
func debugRequest() (byte, bool) {
	if !debugEnabled || debugUART == nil || debugUART.Buffered() == 0 {
		return 0, false
	}
	b, err := debugUART.ReadByte()
	return b, err == nil
}
