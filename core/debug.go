package core

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// TimingEvent captures a protocol or dispense event for post-mortem analysis
type TimingEvent struct {
	EventType uint8  // Event type code
	Attempt   uint8  // Attempt number within the session, when relevant
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// Event type codes
const (
	EvtCommand        = 1  // command byte ingested
	EvtCommandDone    = 2  // pending command completed
	EvtUnknownCommand = 3  // unrecognized byte discarded
	EvtAttempt        = 4  // actuator pulsed
	EvtDetect         = 5  // pellet detected, session resolved
	EvtDetectIgnored  = 6  // detect event outside an outstanding attempt
	EvtRetrieval      = 7  // reward retrieved
	EvtFailed         = 8  // attempts exhausted
	EvtADCError       = 9  // analog sample failed
	EvtActuatorError  = 10 // actuator output failed
	EvtLoopPanic      = 11 // recovered panic in the main loop
)

const (
	TimingRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether DebugPrintln output is active
	debugEnabled bool = false
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// DebugPrintln writes a debug message using the platform-specific writer
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// TimingRing is a fixed-size, non-blocking event trace. It is only written
// from the main loop.
type TimingRing struct {
	events [TimingRingSize]TimingEvent
	head   uint8
}

// Record captures an event in the ring buffer
func (r *TimingRing) Record(eventType, attempt uint8, clock, value1, value2 uint32) {
	idx := r.head
	r.events[idx] = TimingEvent{
		EventType: eventType,
		Attempt:   attempt,
		Clock:     clock,
		Value1:    value1,
		Value2:    value2,
	}
	r.head = (idx + 1) % TimingRingSize
}

// Events returns recorded events from oldest to newest
func (r *TimingRing) Events() []TimingEvent {
	out := make([]TimingEvent, 0, TimingRingSize)
	for i := uint8(0); i < TimingRingSize; i++ {
		evt := r.events[(r.head+i)%TimingRingSize]
		if evt.EventType == 0 {
			continue // Empty slot
		}
		out = append(out, evt)
	}
	return out
}

// Last returns the newest event, if any
func (r *TimingRing) Last() (TimingEvent, bool) {
	evt := r.events[(r.head+TimingRingSize-1)%TimingRingSize]
	return evt, evt.EventType != 0
}

// Clear empties the ring
func (r *TimingRing) Clear() {
	for i := range r.events {
		r.events[i] = TimingEvent{}
	}
	r.head = 0
}

// Dump writes the ring through the debug writer, oldest first
func (r *TimingRing) Dump() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[TIMING] === Timing Ring Dump ===")
	for _, evt := range r.Events() {
		debugPrintln("[TIMING] " + EventName(evt.EventType) +
			" attempt=" + itoa(int(evt.Attempt)) +
			" clock=" + Utoa(evt.Clock) +
			" v1=" + Utoa(evt.Value1) +
			" v2=" + Utoa(evt.Value2))
	}
	debugPrintln("[TIMING] === End Dump ===")
}

// EventName returns the short label used in dumps
func EventName(eventType uint8) string {
	switch eventType {
	case EvtCommand:
		return "COMMAND"
	case EvtCommandDone:
		return "COMMAND_DONE"
	case EvtUnknownCommand:
		return "UNKNOWN_CMD"
	case EvtAttempt:
		return "ATTEMPT"
	case EvtDetect:
		return "DETECT"
	case EvtDetectIgnored:
		return "DETECT_IGNORED"
	case EvtRetrieval:
		return "RETRIEVAL"
	case EvtFailed:
		return "FAILED!"
	case EvtADCError:
		return "ADC_ERROR"
	case EvtActuatorError:
		return "ACTUATOR_ERROR"
	case EvtLoopPanic:
		return "LOOP_PANIC"
	default:
		return "UNKNOWN"
	}
}
