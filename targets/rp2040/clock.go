//go:build rp2040

package main

import (
	"runtime/volatile"
	"unsafe"

	"pellet/core"
)

// RP2040 Timer peripheral memory map
const (
	timerBase     = 0x40054000
	timerTIMERAWH = timerBase + 0x08 // Raw timer high word
	timerTIMERAWL = timerBase + 0x0C // Raw timer low word
)

var (
	timerRAWH = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWH)))
	timerRAWL = (*volatile.Register32)(unsafe.Pointer(uintptr(timerTIMERAWL)))
)

// GetHardwareUptime reads the full 64-bit 1MHz RP2040 timer
func GetHardwareUptime() uint64 {
	// Read high, low, high again to detect rollover
	for {
		high1 := timerRAWH.Get()
		low := timerRAWL.Get()
		high2 := timerRAWH.Get()

		if high1 == high2 {
			return (uint64(high1) << 32) | uint64(low)
		}
	}
}

// hwClock reads milliseconds straight from the timer, so it is safe to call
// from pin interrupt handlers.
type hwClock struct{}

// Now implements core.Clock; the value wraps at 2^32 ms
func (hwClock) Now() uint32 {
	return uint32(GetHardwareUptime() / 1000)
}

// UpdateSystemTime refreshes the core system time from the hardware timer
func UpdateSystemTime() {
	core.SetTime(hwClock{}.Now())
}
