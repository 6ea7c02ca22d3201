// Package feeder is the host-side client for the pellet dispenser firmware.
package feeder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"pellet/host/serial"
	"pellet/protocol"
)

var (
	// ErrTimeout is returned when the device did not answer in time. For
	// stalling commands this usually means the awaited event never happened.
	ErrTimeout = errors.New("feeder did not answer in time")

	// ErrUnexpectedValue is returned when an answer is out of range
	ErrUnexpectedValue = errors.New("unexpected answer from feeder")

	// ErrNotConnected is returned after Close
	ErrNotConnected = errors.New("not connected to feeder")

	// ErrLinkStalled is returned while the feeder still holds an earlier
	// stalling command. No further command is sent until its answer
	// arrives, so a queued byte cannot run once the stall resolves.
	ErrLinkStalled = errors.New("feeder still holding an earlier command")
)

// Client talks to one feeder over a serial link
type Client struct {
	transport *protocol.HostTransport
	port      io.ReadWriteCloser
	log       *zap.Logger

	commandTimeout time.Duration
	stallTimeout   time.Duration

	connected bool
}

// Option configures a Client
type Option func(*Client)

// WithLogger sets the client logger
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// WithCommandTimeout bounds commands the device answers immediately
func WithCommandTimeout(d time.Duration) Option {
	return func(c *Client) { c.commandTimeout = d }
}

// WithStallTimeout bounds commands the device holds until an event occurs
func WithStallTimeout(d time.Duration) Option {
	return func(c *Client) { c.stallTimeout = d }
}

// New creates a client over an open port
func New(port io.ReadWriteCloser, opts ...Option) *Client {
	c := &Client{
		port:           port,
		log:            zap.NewNop(),
		commandTimeout: time.Second,
		stallTimeout:   10 * time.Second,
	}
	for _, opt := range opts {
		opt(c)
	}
	c.transport = protocol.NewHostTransport(port)
	c.connected = true
	return c
}

// Connect opens a native serial port and creates a client on it
func Connect(cfg *serial.Config, opts ...Option) (*Client, error) {
	port, err := serial.Open(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to open serial port: %w", err)
	}

	// Give the feeder time to initialize if it just enumerated
	time.Sleep(100 * time.Millisecond)
	if err := port.Flush(); err != nil {
		port.Close()
		return nil, fmt.Errorf("failed to flush serial port: %w", err)
	}

	return New(port, opts...), nil
}

// Close closes the connection to the feeder
func (c *Client) Close() error {
	if !c.connected {
		return nil
	}
	c.connected = false
	return c.transport.Close()
}

// IsConnected returns whether the client is open
func (c *Client) IsConnected() bool {
	return c.connected
}

// Owed returns how many late response bytes are still expected
func (c *Client) Owed() int {
	return c.transport.Owed()
}

// Raw sends one command byte and returns its decoded answer, if the command
// has one.
func (c *Client) Raw(ctx context.Context, cmd byte) (uint16, bool, error) {
	if !c.connected {
		return 0, false, ErrNotConnected
	}

	if err := c.settle(ctx); err != nil {
		return 0, false, fmt.Errorf("%s: %w", protocol.CommandName(cmd), err)
	}

	timeout := c.commandTimeout
	if protocol.Stalls(cmd) {
		timeout = c.stallTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	resp, err := c.transport.Exchange(callCtx, cmd)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			c.log.Warn("command timed out",
				zap.String("command", protocol.CommandName(cmd)),
				zap.Duration("timeout", timeout))
			return 0, false, fmt.Errorf("%s: %w", protocol.CommandName(cmd), ErrTimeout)
		}
		return 0, false, fmt.Errorf("%s: %w", protocol.CommandName(cmd), err)
	}

	if len(resp) == 0 {
		c.log.Debug("command sent", zap.String("command", protocol.CommandName(cmd)))
		return 0, false, nil
	}
	v, err := protocol.DecodeWord(&resp)
	if err != nil {
		return 0, false, fmt.Errorf("%s: %w", protocol.CommandName(cmd), err)
	}
	c.log.Debug("command answered",
		zap.String("command", protocol.CommandName(cmd)),
		zap.Uint16("value", v),
		zap.Duration("elapsed", time.Since(start)))
	return v, true, nil
}

// settle collects any answer still owed from a command that timed out
func (c *Client) settle(ctx context.Context) error {
	owed := c.transport.Owed()
	if owed == 0 {
		return nil
	}

	drainCtx, cancel := context.WithTimeout(ctx, c.commandTimeout)
	defer cancel()
	err := c.transport.Drain(drainCtx)
	switch {
	case err == nil:
		c.log.Debug("late answer discarded", zap.Int("bytes", owed))
		return nil
	case errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil:
		c.log.Warn("feeder still stalled", zap.Int("owed", c.transport.Owed()))
		return ErrLinkStalled
	default:
		return err
	}
}

func (c *Client) word(ctx context.Context, cmd byte) (uint16, error) {
	v, _, err := c.Raw(ctx, cmd)
	return v, err
}

// CheckConnection verifies the feeder answers the connection probe
func (c *Client) CheckConnection(ctx context.Context) error {
	v, err := c.word(ctx, protocol.CmdCheckConnection)
	if err != nil {
		return err
	}
	if v != protocol.ConnectionOK {
		return fmt.Errorf("check_connection answered %d: %w", v, ErrUnexpectedValue)
	}
	return nil
}

// SampleJoystick returns the raw joystick reading
func (c *Client) SampleJoystick(ctx context.Context) (uint16, error) {
	return c.word(ctx, protocol.CmdSampleJoystick)
}

// SampleRangefinder returns the raw rangefinder reading
func (c *Client) SampleRangefinder(ctx context.Context) (uint16, error) {
	return c.word(ctx, protocol.CmdSampleRangefinder)
}

// DispensePellet starts a new dispense. The feeder sends no answer.
func (c *Client) DispensePellet(ctx context.Context) error {
	_, _, err := c.Raw(ctx, protocol.CmdDispensePellet)
	return err
}

// DispenseOutcome is the resolution of a dispense
type DispenseOutcome struct {
	Failed bool
	// Delay is the time in ms from the last attempt to detection. It is
	// zero when Failed is set.
	Delay uint16
}

// DispenseDelay waits for the current dispense to resolve. A detection
// exactly 666 ms after the last attempt is indistinguishable from failure
// on the wire and is reported as failed.
func (c *Client) DispenseDelay(ctx context.Context) (DispenseOutcome, error) {
	v, err := c.word(ctx, protocol.CmdReportDispenseDelay)
	if err != nil {
		return DispenseOutcome{}, err
	}
	if v == protocol.DispenseFailedSentinel {
		return DispenseOutcome{Failed: true}, nil
	}
	return DispenseOutcome{Delay: v}, nil
}

// DispenseAttempts returns the attempts used by the resolved dispense, or 0
// while it is still in progress.
func (c *Client) DispenseAttempts(ctx context.Context) (uint8, error) {
	v, err := c.word(ctx, protocol.CmdReportDispenseAttempts)
	if err != nil {
		return 0, err
	}
	if v > 0xFF {
		return 0, fmt.Errorf("dispense attempts %d: %w", v, ErrUnexpectedValue)
	}
	return uint8(v), nil
}

// RetrievalDelay waits for the reward to be taken and returns the ms from
// detection to retrieval.
func (c *Client) RetrievalDelay(ctx context.Context) (uint16, error) {
	return c.word(ctx, protocol.CmdReportRetrievalDelay)
}
