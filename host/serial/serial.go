package serial

import (
	"io"

	"pellet/protocol"
)

// Port represents a serial port interface
// This abstraction allows for different implementations:
// - Native serial (using github.com/tarm/serial)
// - In-process pipe to the simulator
type Port interface {
	io.ReadWriteCloser

	// Flush flushes any buffered data
	Flush() error
}

// Config holds serial port configuration
type Config struct {
	// Device path (e.g., "/dev/ttyACM0", "COM3")
	Device string

	// Baud rate (USB CDC ignores this)
	Baud int

	// Read timeout in milliseconds (0 = blocking)
	ReadTimeout int
}

// DefaultConfig returns the default configuration for the feeder firmware
func DefaultConfig(device string) *Config {
	return &Config{
		Device:      device,
		Baud:        protocol.DefaultBaud,
		ReadTimeout: 100,
	}
}

// pipePort adapts any ReadWriteCloser (e.g. one end of net.Pipe) to Port
type pipePort struct {
	io.ReadWriteCloser
}

// Wrap returns rw as a Port whose Flush is a no-op
func Wrap(rw io.ReadWriteCloser) Port {
	if p, ok := rw.(Port); ok {
		return p
	}
	return pipePort{rw}
}

func (pipePort) Flush() error { return nil }
