// Package sim runs the feeder firmware on the host against a simulated
// apparatus, so the host tools can be exercised without hardware.
package sim

import (
	"context"
	"errors"
	"io"
	"net"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"pellet/core"
	"pellet/host/config"
	"pellet/protocol"
)

// Simulated pin map
const (
	ActuatorPin        core.GPIOPin = 2
	PelletSensorPin    core.GPIOPin = 3
	RetrievalSensorPin core.GPIOPin = 4

	JoystickChannel    core.ADCChannelID = 0
	RangefinderChannel core.ADCChannelID = 1
)

// Options describes the simulated apparatus
type Options struct {
	Firmware core.Config

	// Clock overrides the wall clock
	Clock core.Clock

	// DropDelay is how long after a pulse the pellet crosses the beam
	DropDelay time.Duration
	// MissedPulses is how many pulses per dispense drop nothing
	MissedPulses int
	// Jammed makes every pulse miss
	Jammed bool
	// RetrievalDelay is how long after a drop the subject takes the pellet;
	// zero means the pellet is never retrieved
	RetrievalDelay time.Duration

	Joystick    uint16
	Rangefinder uint16

	// StepInterval is the pause between loop iterations
	StepInterval time.Duration

	Logger *zap.Logger
}

// FromConfig converts the sim section of the host configuration
func FromConfig(cfg config.SimConfig) Options {
	return Options{
		Firmware: core.Config{
			MaxAttempts:  cfg.MaxAttempts,
			DispenseWait: cfg.DispenseWait,
			PulseWidth:   cfg.PulseWidth,
		},
		DropDelay:      cfg.DropDelay,
		MissedPulses:   cfg.MissedPulses,
		Jammed:         cfg.Jammed,
		RetrievalDelay: cfg.RetrievalDelay,
		Joystick:       cfg.Joystick,
		Rangefinder:    cfg.Rangefinder,
	}
}

// Simulator owns a firmware Device and the fake hardware around it
type Simulator struct {
	opts      Options
	device    *core.Device
	transport *protocol.Transport
	gpio      *simGPIO
	adc       *simADC
	log       *zap.Logger

	hostPort net.Conn
	devPort  net.Conn

	mu      sync.Mutex
	missed  int // pulses missed in the current dispense
	dropped bool
	timers  []*time.Timer

	pulses atomic.Int32
	drops  atomic.Int32

	statsReq chan chan core.Stats

	closeOnce sync.Once
	closed    chan struct{}
}

// New builds a simulator. Call Run to start the firmware loop and use
// HostPort as the serial port.
func New(opts Options) (*Simulator, error) {
	if opts.Clock == nil {
		opts.Clock = wallClock{start: time.Now()}
	}
	if opts.StepInterval == 0 {
		opts.StepInterval = time.Millisecond
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	s := &Simulator{
		opts:      opts,
		transport: protocol.NewTransport(protocol.MessageMax),
		gpio:      newSimGPIO(),
		adc:       &simADC{},
		log:       opts.Logger,
		statsReq:  make(chan chan core.Stats),
		closed:    make(chan struct{}),
	}
	s.adc.set(JoystickChannel, opts.Joystick)
	s.adc.set(RangefinderChannel, opts.Rangefinder)
	s.gpio.onRise = s.onActuatorRise

	device, err := core.NewDevice(opts.Firmware, core.Hardware{
		Clock:              opts.Clock,
		GPIO:               s.gpio,
		ADC:                s.adc,
		ActuatorPin:        ActuatorPin,
		PelletSensorPin:    PelletSensorPin,
		RetrievalSensorPin: RetrievalSensorPin,
		JoystickChannel:    JoystickChannel,
		RangefinderChannel: RangefinderChannel,
	}, s.transport)
	if err != nil {
		return nil, err
	}
	s.device = device

	s.hostPort, s.devPort = net.Pipe()
	return s, nil
}

// HostPort returns the host end of the simulated serial link
func (s *Simulator) HostPort() io.ReadWriteCloser {
	return s.hostPort
}

// Device returns the simulated firmware. It is only safe to inspect while
// Run is not executing.
func (s *Simulator) Device() *core.Device {
	return s.device
}

// Stats reads the firmware counters from inside the running loop
func (s *Simulator) Stats(ctx context.Context) (core.Stats, error) {
	reply := make(chan core.Stats, 1)
	select {
	case s.statsReq <- reply:
	case <-ctx.Done():
		return core.Stats{}, ctx.Err()
	case <-s.closed:
		return core.Stats{}, errors.New("simulator closed")
	}
	return <-reply, nil
}

// Transport returns the firmware side of the link
func (s *Simulator) Transport() *protocol.Transport {
	return s.transport
}

// Pulses returns how many actuator pulses were observed
func (s *Simulator) Pulses() int {
	return int(s.pulses.Load())
}

// Drops returns how many pellets crossed the detect beam
func (s *Simulator) Drops() int {
	return int(s.drops.Load())
}

// SetJoystick changes the joystick reading
func (s *Simulator) SetJoystick(v uint16) { s.adc.set(JoystickChannel, v) }

// SetRangefinder changes the rangefinder reading
func (s *Simulator) SetRangefinder(v uint16) { s.adc.set(RangefinderChannel, v) }

// TriggerPellet breaks the pellet beam now
func (s *Simulator) TriggerPellet() {
	s.drops.Add(1)
	s.gpio.breakBeam(PelletSensorPin)
}

// TriggerRetrieval breaks the retrieval beam now
func (s *Simulator) TriggerRetrieval() {
	s.gpio.breakBeam(RetrievalSensorPin)
}

// Run drives the firmware loop until ctx ends or Close is called
func (s *Simulator) Run(ctx context.Context) error {
	go s.readLoop()
	defer s.device.Shutdown()

	ticker := time.NewTicker(s.opts.StepInterval)
	defer ticker.Stop()

	for {
		s.device.Step()
		if _, err := s.transport.WriteTo(s.devPort); err != nil {
			if isClosed(err) {
				return nil
			}
			s.log.Warn("write to host failed", zap.Error(err))
		}

		select {
		case <-ctx.Done():
			s.Close()
			return ctx.Err()
		case <-s.closed:
			return nil
		case reply := <-s.statsReq:
			reply <- s.device.Stats()
		case <-ticker.C:
		}
	}
}

// readLoop moves bytes from the host into the firmware receive FIFO
func (s *Simulator) readLoop() {
	buf := make([]byte, 64)
	for {
		n, err := s.devPort.Read(buf)
		if n > 0 {
			if accepted := s.transport.Receive(buf[:n]); accepted < n {
				s.log.Warn("receive fifo overflow", zap.Int("dropped", n-accepted))
			}
		}
		if err != nil {
			return
		}
	}
}

// onActuatorRise models the dispenser reacting to one pulse
func (s *Simulator) onActuatorRise(pin core.GPIOPin) {
	if pin != ActuatorPin {
		return
	}
	attempt := s.pulses.Add(1)

	s.mu.Lock()
	defer s.mu.Unlock()

	// Pulses run inside the firmware loop, so the session is safe to read.
	// The first attempt of a session starts a fresh dispense.
	if s.device.Session().AttemptCount <= 1 {
		s.missed = 0
		s.dropped = false
	}
	if s.dropped {
		return
	}

	if s.opts.Jammed || s.missed < s.opts.MissedPulses {
		s.missed++
		s.log.Debug("pulse missed", zap.Int32("pulse", attempt))
		return
	}

	s.dropped = true
	s.after(s.opts.DropDelay, func() {
		s.log.Debug("pellet dropped", zap.Int32("pulse", attempt))
		s.TriggerPellet()
		if s.opts.RetrievalDelay > 0 {
			s.mu.Lock()
			s.after(s.opts.RetrievalDelay, s.TriggerRetrieval)
			s.mu.Unlock()
		}
	})
}

// after schedules fn unless the simulator is closed. Callers hold s.mu.
func (s *Simulator) after(d time.Duration, fn func()) {
	select {
	case <-s.closed:
		return
	default:
	}
	s.timers = append(s.timers, time.AfterFunc(d, fn))
}

// Close stops the loop, pending drops and both ends of the link
func (s *Simulator) Close() error {
	s.closeOnce.Do(func() {
		close(s.closed)
		s.mu.Lock()
		for _, t := range s.timers {
			t.Stop()
		}
		s.timers = nil
		s.mu.Unlock()
		s.devPort.Close()
		s.hostPort.Close()
	})
	return nil
}

func isClosed(err error) bool {
	return errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) || errors.Is(err, io.EOF)
}
