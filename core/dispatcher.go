package core

// Link is the byte stream between host and device
type Link interface {
	// Available returns the number of received bytes not yet consumed
	Available() int

	// ReadByte consumes one received byte
	ReadByte() (byte, error)

	// SendWord queues a 16-bit response word
	SendWord(v uint32)
}

// PendingCommand is the command in flight, if any
type PendingCommand struct {
	Current *Command
	Since   uint32 // time the command byte was ingested
}

// Ready reports whether a new command byte may be ingested
func (p PendingCommand) Ready() bool {
	return p.Current == nil
}

// Dispatcher ingests one command at a time and completes it, possibly
// across several loop iterations.
type Dispatcher struct {
	registry *CommandRegistry
	link     Link
	pending  PendingCommand
	trace    *TimingRing

	processed uint32
	unknown   uint32
}

// NewDispatcher creates a dispatcher reading commands from link
func NewDispatcher(registry *CommandRegistry, link Link, trace *TimingRing) *Dispatcher {
	return &Dispatcher{
		registry: registry,
		link:     link,
		trace:    trace,
	}
}

// Pending returns the command in flight
func (d *Dispatcher) Pending() PendingCommand {
	return d.pending
}

// Poll runs one dispatcher iteration: ingest a byte when ready, then try to
// complete the command in flight.
func (d *Dispatcher) Poll(now uint32) {
	if d.pending.Ready() && d.link.Available() > 0 {
		b, err := d.link.ReadByte()
		if err == nil {
			d.ingest(b, now)
		}
	}

	if d.pending.Ready() {
		return
	}

	cmd := d.pending.Current
	reply := cmd.Handler(now)
	if reply.IsPending() {
		return
	}
	if v, ok := reply.Payload(); ok {
		d.link.SendWord(v)
	}
	d.trace.Record(EvtCommandDone, 0, now, uint32(cmd.ID), TimeSince(now, d.pending.Since))
	d.pending = PendingCommand{}
	d.processed++
}

func (d *Dispatcher) ingest(b byte, now uint32) {
	cmd, ok := d.registry.GetCommand(b)
	if !ok {
		// Unrecognized bytes are consumed without a response
		d.unknown++
		d.trace.Record(EvtUnknownCommand, 0, now, uint32(b), 0)
		return
	}
	d.trace.Record(EvtCommand, 0, now, uint32(b), 0)
	d.pending = PendingCommand{Current: cmd, Since: now}
}
