package core

import (
	"sync"
	"sync/atomic"
)

// manualClock is a Clock the test advances by hand
type manualClock struct {
	now atomic.Uint32
}

func (c *manualClock) Now() uint32      { return c.now.Load() }
func (c *manualClock) Set(t uint32)     { c.now.Store(t) }
func (c *manualClock) Advance(d uint32) { c.now.Add(d) }

// fakeGPIO records pin levels and keeps interrupt handlers so tests can
// fire them.
type fakeGPIO struct {
	mu       sync.Mutex
	levels   map[GPIOPin]bool
	inputs   map[GPIOPin]bool
	handlers map[GPIOPin]func()
	rising   map[GPIOPin]int
	failSet  bool
}

func newFakeGPIO() *fakeGPIO {
	return &fakeGPIO{
		levels:   make(map[GPIOPin]bool),
		inputs:   make(map[GPIOPin]bool),
		handlers: make(map[GPIOPin]func()),
		rising:   make(map[GPIOPin]int),
	}
}

func (g *fakeGPIO) ConfigureOutput(pin GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.levels[pin] = false
	return nil
}

func (g *fakeGPIO) ConfigureInputPullUp(pin GPIOPin) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.inputs[pin] = true
	return nil
}

func (g *fakeGPIO) SetPin(pin GPIOPin, value bool) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.failSet {
		return ErrUnknownChannel
	}
	if value && !g.levels[pin] {
		g.rising[pin]++
	}
	g.levels[pin] = value
	return nil
}

func (g *fakeGPIO) GetPin(pin GPIOPin) (bool, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.levels[pin], nil
}

func (g *fakeGPIO) SetInterrupt(pin GPIOPin, edge PinEdge, handler func()) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.handlers[pin] = handler
	return nil
}

// fire invokes the interrupt handler bound to pin
func (g *fakeGPIO) fire(pin GPIOPin) {
	g.mu.Lock()
	h := g.handlers[pin]
	g.mu.Unlock()
	if h != nil {
		h()
	}
}

func (g *fakeGPIO) level(pin GPIOPin) bool {
	v, _ := g.GetPin(pin)
	return v
}

func (g *fakeGPIO) risingEdges(pin GPIOPin) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.rising[pin]
}

// fakeADC returns fixed values per channel
type fakeADC struct {
	values     map[ADCChannelID]ADCValue
	configured map[ADCChannelID]bool
	onRead     func(ADCChannelID)
}

func newFakeADC() *fakeADC {
	return &fakeADC{
		values:     make(map[ADCChannelID]ADCValue),
		configured: make(map[ADCChannelID]bool),
	}
}

func (a *fakeADC) ConfigureChannel(ch ADCChannelID) error {
	a.configured[ch] = true
	return nil
}

func (a *fakeADC) ReadRaw(ch ADCChannelID) (ADCValue, error) {
	if a.onRead != nil {
		a.onRead(ch)
	}
	v, ok := a.values[ch]
	if !ok {
		return 0, ErrUnknownChannel
	}
	return v, nil
}
