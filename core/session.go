package core

// DispenseState is the outcome of the current dispensing episode
type DispenseState uint8

const (
	DispenseIdle       DispenseState = iota // no session opened since start-up
	DispenseAttempting                      // an attempt is outstanding and undetected
	DispenseDetected                        // a pellet passed the dispense sensor
	DispenseFailed                          // every attempt timed out undetected
)

func (s DispenseState) String() string {
	switch s {
	case DispenseIdle:
		return "idle"
	case DispenseAttempting:
		return "attempting"
	case DispenseDetected:
		return "detected"
	case DispenseFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// DispenseSession tracks one dispensing episode. It is owned by the main
// loop; event handlers never write it directly.
type DispenseSession struct {
	State           DispenseState
	AttemptCount    uint8
	LastAttemptTime uint32
	DetectedTime    uint32
}

// Attempted reports whether an attempt is outstanding and undetected
func (s DispenseSession) Attempted() bool { return s.State == DispenseAttempting }

// Detected reports whether the session ended with a detected pellet
func (s DispenseSession) Detected() bool { return s.State == DispenseDetected }

// Failed reports whether the session ran out of attempts
func (s DispenseSession) Failed() bool { return s.State == DispenseFailed }

// Resolved reports whether the session reached a terminal outcome
func (s DispenseSession) Resolved() bool {
	return s.State == DispenseDetected || s.State == DispenseFailed
}

// DispenseDelay returns the ticks from the last attempt to detection
func (s DispenseSession) DispenseDelay() uint32 {
	return TimeSince(s.DetectedTime, s.LastAttemptTime)
}

// RetrievalRecord holds the last retrieval event since the session opened
type RetrievalRecord struct {
	Retrieved     bool
	RetrievedTime uint32
}

// eventLatch is written by an event handler and drained by the main loop.
// The handler stores time before setting pending.
type eventLatch struct {
	time    uint32
	pending bool
}
