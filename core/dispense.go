package core

// Dispenser owns the bounded-retry state machine for the pellet actuator.
//
//	Idle       -> Attempting  on DispensePellet
//	Attempting -> Attempting  when the wait window lapses and attempts remain
//	Attempting -> Detected    when the dispense sensor fires
//	Attempting -> Failed      when the last attempt's window lapses
type Dispenser struct {
	session     DispenseSession
	maxAttempts uint8
	wait        uint32
	actuator    *Actuator
	trace       *TimingRing

	attempts uint32
	failures uint32
}

func newDispenser(cfg Config, actuator *Actuator, trace *TimingRing) *Dispenser {
	return &Dispenser{
		maxAttempts: cfg.MaxAttempts,
		wait:        cfg.DispenseWait,
		actuator:    actuator,
		trace:       trace,
	}
}

// Session returns a copy of the current session
func (p *Dispenser) Session() DispenseSession {
	return p.session
}

// begin resets the session and stamps the first attempt. The caller holds
// the interrupt mask so no event can land between reset and stamp.
func (p *Dispenser) begin(now uint32) {
	p.session = DispenseSession{}
	p.stamp(now)
}

// stamp records an attempt without touching the hardware
func (p *Dispenser) stamp(now uint32) {
	p.session.AttemptCount++
	p.session.LastAttemptTime = now
	p.session.State = DispenseAttempting
	p.attempts++
}

// pulse fires the actuator for the attempt just stamped
func (p *Dispenser) pulse(now uint32) {
	p.trace.Record(EvtAttempt, p.session.AttemptCount, now, 0, 0)
	if err := p.actuator.Pulse(now); err != nil {
		p.trace.Record(EvtActuatorError, p.session.AttemptCount, now, 0, 0)
	}
}

// AttemptDispense pulses the actuator and counts the attempt
func (p *Dispenser) AttemptDispense(now uint32) {
	p.stamp(now)
	p.pulse(now)
}

// detect applies a pellet-detect event. Only an outstanding attempt can be
// resolved by it; it returns false when the event was discarded.
func (p *Dispenser) detect(at uint32) bool {
	if p.session.State != DispenseAttempting {
		return false
	}
	p.session.DetectedTime = at
	p.session.State = DispenseDetected
	return true
}

// due applies the retry deadline to the session without touching the
// hardware. It reports whether a new attempt was stamped and needs a pulse.
func (p *Dispenser) due(now uint32) bool {
	if p.session.State != DispenseAttempting {
		return false
	}
	if TimeSince(now, p.session.LastAttemptTime) < p.wait {
		return false
	}
	if p.session.AttemptCount < p.maxAttempts {
		p.stamp(now)
		return true
	}
	p.session.State = DispenseFailed
	p.failures++
	p.trace.Record(EvtFailed, p.session.AttemptCount, now, 0, 0)
	return false
}
