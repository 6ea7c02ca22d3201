package sim

import (
	"sync"
	"sync/atomic"
	"time"

	"pellet/core"
)

// wallClock counts milliseconds since the simulator started
type wallClock struct {
	start time.Time
}

func (c wallClock) Now() uint32 {
	return uint32(time.Since(c.start).Milliseconds())
}

// simGPIO keeps pin levels and the interrupt handlers the firmware binds.
// onRise is called (without the lock held) on each low-to-high output edge.
type simGPIO struct {
	mu       sync.Mutex
	levels   map[core.GPIOPin]bool
	handlers map[core.GPIOPin]func()
	onRise   func(pin core.GPIOPin)
}

func newSimGPIO() *simGPIO {
	return &simGPIO{
		levels:   make(map[core.GPIOPin]bool),
		handlers: make(map[core.GPIOPin]func()),
	}
}

func (g *simGPIO) ConfigureOutput(pin core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = false
	return nil
}

func (g *simGPIO) ConfigureInputPullUp(pin core.GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = true
	return nil
}

func (g *simGPIO) SetPin(pin core.GPIOPin, value bool) error {
	g.mu.Lock()
	rising := value && !g.levels[pin]
	g.levels[pin] = value
	onRise := g.onRise
	g.mu.Unlock()

	if rising && onRise != nil {
		onRise(pin)
	}
	return nil
}

func (g *simGPIO) GetPin(pin core.GPIOPin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin], nil
}

func (g *simGPIO) SetInterrupt(pin core.GPIOPin, edge core.PinEdge, handler func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[pin] = handler
	return nil
}

// breakBeam pulls an input low for an instant, running its falling-edge
// handler from the caller's goroutine.
func (g *simGPIO) breakBeam(pin core.GPIOPin) {
	g.mu.Lock()
	h := g.handlers[pin]
	g.levels[pin] = false
	g.mu.Unlock()

	if h != nil {
		h()
	}

	g.mu.Lock()
	g.levels[pin] = true
	g.mu.Unlock()
}

// simADC returns fixed readings that tests and the shell can change
type simADC struct {
	values [2]atomic.Uint32
}

func (a *simADC) ConfigureChannel(ch core.ADCChannelID) error {
	if int(ch) >= len(a.values) {
		return core.ErrUnknownChannel
	}
	return nil
}

func (a *simADC) ReadRaw(ch core.ADCChannelID) (core.ADCValue, error) {
	if int(ch) >= len(a.values) {
		return 0, core.ErrUnknownChannel
	}
	return core.ADCValue(a.values[ch].Load()), nil
}

func (a *simADC) set(ch core.ADCChannelID, v uint16) {
	a.values[ch].Store(uint32(v))
}
