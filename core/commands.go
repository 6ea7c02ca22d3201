package core

import "pellet/protocol"

// initCommands registers the command set with the device's registry
func (d *Device) initCommands() error {
	commands := []struct {
		id      byte
		name    string
		handler CommandHandler
	}{
		{protocol.CmdSampleJoystick, "sample_joystick", d.handleSampleJoystick},
		{protocol.CmdSampleRangefinder, "sample_rangefinder", d.handleSampleRangefinder},
		{protocol.CmdReportDispenseDelay, "report_dispense_delay", d.handleReportDispenseDelay},
		{protocol.CmdReportDispenseAttempts, "report_dispense_attempts", d.handleReportDispenseAttempts},
		{protocol.CmdReportRetrievalDelay, "report_retrieval_delay", d.handleReportRetrievalDelay},
		{protocol.CmdDispensePellet, "dispense_pellet", d.handleDispensePellet},
		{protocol.CmdCheckConnection, "check_connection", d.handleCheckConnection},
	}
	for _, c := range commands {
		if err := d.registry.Register(c.id, c.name, c.handler); err != nil {
			return err
		}
	}
	return nil
}

func (d *Device) handleSampleJoystick(now uint32) Reply {
	return Respond(d.sample(d.hw.JoystickChannel, now))
}

func (d *Device) handleSampleRangefinder(now uint32) Reply {
	return Respond(d.sample(d.hw.RangefinderChannel, now))
}

// sample reads a channel; a failed read answers 0
func (d *Device) sample(ch ADCChannelID, now uint32) uint32 {
	v, err := d.hw.ADC.ReadRaw(ch)
	if err != nil {
		d.trace.Record(EvtADCError, 0, now, uint32(ch), 0)
		return 0
	}
	return uint32(v)
}

// handleReportDispenseDelay stalls until the session resolves
func (d *Device) handleReportDispenseDelay(_ uint32) Reply {
	s := d.dispenser.Session()
	switch s.State {
	case DispenseDetected:
		return Respond(s.DispenseDelay())
	case DispenseFailed:
		return Respond(protocol.DispenseFailedSentinel)
	default:
		return Pending()
	}
}

// handleReportDispenseAttempts answers 0 until the session resolves
func (d *Device) handleReportDispenseAttempts(_ uint32) Reply {
	s := d.dispenser.Session()
	if s.Resolved() {
		return Respond(uint32(s.AttemptCount))
	}
	return Respond(0)
}

// handleReportRetrievalDelay stalls until the reward is retrieved
func (d *Device) handleReportRetrievalDelay(_ uint32) Reply {
	r := d.Retrieval()
	if !r.Retrieved {
		return Pending()
	}
	return Respond(TimeSince(r.RetrievedTime, d.dispenser.Session().DetectedTime))
}

// handleDispensePellet opens a new session and fires the first attempt
func (d *Device) handleDispensePellet(_ uint32) Reply {
	state := disableInterrupts()
	now := d.clock.Now()
	d.clearEvents()
	d.dispenser.begin(now)
	restoreInterrupts(state)

	d.dispenser.pulse(now)
	return Done()
}

func (d *Device) handleCheckConnection(_ uint32) Reply {
	return Respond(protocol.ConnectionOK)
}
