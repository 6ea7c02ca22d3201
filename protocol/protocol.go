// Package protocol implements the pellet dispenser serial protocol: one
// command byte from the host, and an optional 2-byte little-endian word back.
package protocol

// Version represents the firmware version
const Version = "0.3.0"

// Command bytes (host -> device)
const (
	CmdSampleJoystick         byte = 10
	CmdSampleRangefinder      byte = 11
	CmdReportDispenseDelay    byte = 20
	CmdReportDispenseAttempts byte = 21
	CmdReportRetrievalDelay   byte = 22
	CmdDispensePellet         byte = 30
	CmdCheckConnection        byte = 99
)

// Response values with a fixed meaning
const (
	DispenseFailedSentinel = 666 // ReportDispenseDelay answer when every attempt failed
	ConnectionOK           = 1   // CheckConnection answer
)

// Protocol constants
const (
	WordSize    = 2   // response payload size in bytes
	MessageMax  = 512 // response staging buffer size
	DefaultBaud = 115200
)

// ResponseSize returns how many bytes the device answers to cmd
func ResponseSize(cmd byte) int {
	switch cmd {
	case CmdSampleJoystick, CmdSampleRangefinder,
		CmdReportDispenseDelay, CmdReportDispenseAttempts, CmdReportRetrievalDelay,
		CmdCheckConnection:
		return WordSize
	default:
		return 0
	}
}

// Stalls reports whether the device may hold cmd until an external event
func Stalls(cmd byte) bool {
	return cmd == CmdReportDispenseDelay || cmd == CmdReportRetrievalDelay
}

// CommandName returns a short label for a command byte
func CommandName(cmd byte) string {
	switch cmd {
	case CmdSampleJoystick:
		return "sample_joystick"
	case CmdSampleRangefinder:
		return "sample_rangefinder"
	case CmdReportDispenseDelay:
		return "report_dispense_delay"
	case CmdReportDispenseAttempts:
		return "report_dispense_attempts"
	case CmdReportRetrievalDelay:
		return "report_retrieval_delay"
	case CmdDispensePellet:
		return "dispense_pellet"
	case CmdCheckConnection:
		return "check_connection"
	default:
		return "unrecognized"
	}
}
