package core

// Actuator drives the dispenser solenoid. Each Pulse raises the output and
// a scheduler timer lowers it again PulseWidth ticks later.
type Actuator struct {
	gpio  GPIODriver
	pin   GPIOPin
	width uint32
	sched *Scheduler
	timer Timer

	pulses uint32
}

// NewActuator configures pin as a low output and returns its actuator
func NewActuator(gpio GPIODriver, pin GPIOPin, width uint32, sched *Scheduler) (*Actuator, error) {
	if err := gpio.ConfigureOutput(pin); err != nil {
		return nil, err
	}
	if err := gpio.SetPin(pin, false); err != nil {
		return nil, err
	}
	a := &Actuator{
		gpio:  gpio,
		pin:   pin,
		width: width,
		sched: sched,
	}
	a.timer.Handler = a.endPulse
	return a, nil
}

// Pulse raises the actuator output and schedules its release
func (a *Actuator) Pulse(now uint32) error {
	a.pulses++
	if err := a.gpio.SetPin(a.pin, true); err != nil {
		return err
	}
	a.timer.WakeTime = now + a.width
	a.sched.Schedule(&a.timer)
	return nil
}

// Pulses returns how many pulses were issued since start-up
func (a *Actuator) Pulses() uint32 {
	return a.pulses
}

// Stop cancels any pending release and drives the output low
func (a *Actuator) Stop() {
	a.sched.Cancel(&a.timer)
	_ = a.gpio.SetPin(a.pin, false)
}

func (a *Actuator) endPulse(_ *Timer, _ uint32) uint8 {
	_ = a.gpio.SetPin(a.pin, false)
	return SF_DONE
}
