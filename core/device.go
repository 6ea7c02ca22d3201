package core

import "errors"

// Device is the firmware's single owned context: dispatcher, dispense
// state machine, event latches and timers. It is created once at start-up
// and lives as long as the program.
type Device struct {
	cfg   Config
	hw    Hardware
	clock Clock

	registry   *CommandRegistry
	dispatcher *Dispatcher
	dispenser  *Dispenser
	actuator   *Actuator
	sched      Scheduler
	trace      TimingRing

	// Shared with event handlers; guarded by the interrupt mask
	detectLatch   eventLatch
	retrieval     RetrievalRecord
	retrievalSeen bool

	panics uint32
}

// Stats summarises device activity since start-up
type Stats struct {
	CommandsProcessed uint32
	UnknownCommands   uint32
	Attempts          uint32
	Pulses            uint32
	FailedSessions    uint32
	LoopPanics        uint32
}

// NewDevice configures the hardware and returns a device reading commands
// from link.
func NewDevice(cfg Config, hw Hardware, link Link) (*Device, error) {
	if hw.GPIO == nil || hw.ADC == nil || link == nil {
		return nil, errors.New("device requires GPIO, ADC and a link")
	}
	if hw.Clock == nil {
		hw.Clock = SystemClock{}
	}

	d := &Device{
		cfg:      cfg.withDefaults(),
		hw:       hw,
		clock:    hw.Clock,
		registry: NewCommandRegistry(),
	}

	actuator, err := NewActuator(hw.GPIO, hw.ActuatorPin, d.cfg.PulseWidth, &d.sched)
	if err != nil {
		return nil, err
	}
	d.actuator = actuator
	d.dispenser = newDispenser(d.cfg, actuator, &d.trace)
	d.dispatcher = NewDispatcher(d.registry, link, &d.trace)

	for _, ch := range []ADCChannelID{hw.JoystickChannel, hw.RangefinderChannel} {
		if err := hw.ADC.ConfigureChannel(ch); err != nil {
			return nil, err
		}
	}

	if err := d.bindSensor(hw.PelletSensorPin, d.PelletDetected); err != nil {
		return nil, err
	}
	if err := d.bindSensor(hw.RetrievalSensorPin, d.RetrievalDetected); err != nil {
		return nil, err
	}

	if err := d.initCommands(); err != nil {
		return nil, err
	}
	return d, nil
}

// bindSensor configures a beam-break input and its falling-edge handler
func (d *Device) bindSensor(pin GPIOPin, handler func()) error {
	if err := d.hw.GPIO.ConfigureInputPullUp(pin); err != nil {
		return err
	}
	return d.hw.GPIO.SetInterrupt(pin, EdgeFalling, handler)
}

// Step runs one iteration of the control loop
func (d *Device) Step() {
	defer func() {
		if r := recover(); r != nil {
			d.panics++
			d.trace.Record(EvtLoopPanic, 0, d.clock.Now(), 0, 0)
		}
	}()

	now := d.clock.Now()
	d.collectEvents()
	d.dispatcher.Poll(now)
	d.advance(now)
	d.sched.Dispatch(now)
}

// Session returns a copy of the dispense session
func (d *Device) Session() DispenseSession {
	return d.dispenser.Session()
}

// Pending returns the command in flight
func (d *Device) Pending() PendingCommand {
	return d.dispatcher.Pending()
}

// Registry returns the command registry
func (d *Device) Registry() *CommandRegistry {
	return d.registry
}

// Trace returns the device's timing ring
func (d *Device) Trace() *TimingRing {
	return &d.trace
}

// Config returns the effective configuration
func (d *Device) Config() Config {
	return d.cfg
}

// Stats returns activity counters
func (d *Device) Stats() Stats {
	return Stats{
		CommandsProcessed: d.dispatcher.processed,
		UnknownCommands:   d.dispatcher.unknown,
		Attempts:          d.dispenser.attempts,
		Pulses:            d.actuator.Pulses(),
		FailedSessions:    d.dispenser.failures,
		LoopPanics:        d.panics,
	}
}

// DumpStats writes counters and the timing ring through the debug writer
func (d *Device) DumpStats() {
	s := d.Stats()
	debugPrintln("[STATS] commands=" + Utoa(s.CommandsProcessed) +
		" unknown=" + Utoa(s.UnknownCommands) +
		" attempts=" + Utoa(s.Attempts) +
		" pulses=" + Utoa(s.Pulses) +
		" failed=" + Utoa(s.FailedSessions) +
		" panics=" + Utoa(s.LoopPanics))
	d.trace.Dump()
}

// Shutdown releases the actuator
func (d *Device) Shutdown() {
	d.actuator.Stop()
}
