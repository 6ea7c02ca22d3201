package core

// Time on the device is kept in milliseconds. Every timestamp in a dispense
// session or retrieval record, and every wait window, uses this unit.
const (
	TicksPerSecond = 1000
)

// Clock is the monotonic time source the device reads.
type Clock interface {
	// Now returns the current time in milliseconds. Values wrap at 2^32.
	Now() uint32
}

// SystemClock reads the shared system tick counter. Targets keep it current
// by calling SetTime from the main loop.
type SystemClock struct{}

// Now implements Clock
func (SystemClock) Now() uint32 {
	return GetTime()
}

// GetTime returns the current system time in milliseconds
func GetTime() uint32 {
	return getSystemTicks()
}

// SetTime sets the current system time (for testing/hardware integration)
func SetTime(ticks uint32) {
	setSystemTicks(ticks)
}

// TimeSince returns the elapsed ticks from then to now, handling wraparound.
func TimeSince(now, then uint32) uint32 {
	return now - then
}

// timerIsBefore reports whether a comes before b on the wrapping timeline.
func timerIsBefore(a, b uint32) bool {
	return int32(a-b) < 0
}
