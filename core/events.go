package core

// PelletDetected is the falling-edge handler for the dispense beam-break.
// It stamps the time and raises the latch; the main loop applies it.
func (d *Device) PelletDetected() {
	now := d.clock.Now()
	state := disableInterrupts()
	d.detectLatch.time = now
	d.detectLatch.pending = true
	restoreInterrupts(state)
}

// RetrievalDetected is the falling-edge handler for the reward beam-break.
func (d *Device) RetrievalDetected() {
	now := d.clock.Now()
	state := disableInterrupts()
	d.retrieval.RetrievedTime = now
	d.retrieval.Retrieved = true
	d.retrievalSeen = true
	restoreInterrupts(state)
}

// collectEvents drains the handler latches into loop-owned state
func (d *Device) collectEvents() {
	state := disableInterrupts()
	d.applyDetect()
	retrieval := d.retrieval
	seen := d.retrievalSeen
	d.retrievalSeen = false
	restoreInterrupts(state)

	if seen {
		d.trace.Record(EvtRetrieval, 0, retrieval.RetrievedTime, 0, 0)
	}
}

// advance folds in any detection that landed since collectEvents and then
// evaluates the retry deadline, both under one mask, so a pellet seen
// during this iteration can never be followed by another pulse.
func (d *Device) advance(now uint32) {
	state := disableInterrupts()
	d.applyDetect()
	retry := d.dispenser.due(now)
	restoreInterrupts(state)

	if retry {
		d.dispenser.pulse(now)
	}
}

// applyDetect resolves the session from a pending detect latch. Callers
// hold the interrupt mask.
func (d *Device) applyDetect() {
	detect := d.detectLatch
	if !detect.pending {
		return
	}
	d.detectLatch = eventLatch{}

	if d.dispenser.detect(detect.time) {
		d.trace.Record(EvtDetect, d.dispenser.session.AttemptCount, detect.time,
			d.dispenser.session.DispenseDelay(), 0)
	} else {
		d.trace.Record(EvtDetectIgnored, d.dispenser.session.AttemptCount, detect.time,
			uint32(d.dispenser.session.State), 0)
	}
}

// clearEvents discards pending latches and the retrieval record. Callers
// hold the interrupt mask.
func (d *Device) clearEvents() {
	d.detectLatch = eventLatch{}
	d.retrieval = RetrievalRecord{}
	d.retrievalSeen = false
}

// Retrieval returns a consistent copy of the retrieval record
func (d *Device) Retrieval() RetrievalRecord {
	state := disableInterrupts()
	r := d.retrieval
	restoreInterrupts(state)
	return r
}
