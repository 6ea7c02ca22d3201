package core

import (
	"bytes"
	"testing"

	"pellet/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const (
	testActuatorPin  GPIOPin = 2
	testPelletPin    GPIOPin = 3
	testRetrievalPin GPIOPin = 4

	testJoystickCh    ADCChannelID = 0
	testRangefinderCh ADCChannelID = 1
)

type testRig struct {
	t     *testing.T
	dev   *Device
	link  *protocol.Transport
	clock *manualClock
	gpio  *fakeGPIO
	adc   *fakeADC
	out   bytes.Buffer
}

func newTestRig(t *testing.T, cfg Config) *testRig {
	t.Helper()
	r := &testRig{
		t:     t,
		link:  protocol.NewTransport(64),
		clock: &manualClock{},
		gpio:  newFakeGPIO(),
		adc:   newFakeADC(),
	}
	r.adc.values[testJoystickCh] = 512
	r.adc.values[testRangefinderCh] = 1023

	dev, err := NewDevice(cfg, Hardware{
		Clock:              r.clock,
		GPIO:               r.gpio,
		ADC:                r.adc,
		ActuatorPin:        testActuatorPin,
		PelletSensorPin:    testPelletPin,
		RetrievalSensorPin: testRetrievalPin,
		JoystickChannel:    testJoystickCh,
		RangefinderChannel: testRangefinderCh,
	}, r.link)
	require.NoError(t, err)
	r.dev = dev
	return r
}

// send queues command bytes as if they arrived on the wire
func (r *testRig) send(cmds ...byte) {
	r.link.Receive(cmds)
}

// step runs one loop iteration at the current time
func (r *testRig) step() {
	r.dev.Step()
}

// stepTo runs one iteration per tick up to and including t
func (r *testRig) stepTo(t uint32) {
	for r.clock.Now() < t {
		r.clock.Advance(1)
		r.dev.Step()
	}
}

// words drains and decodes every response flushed so far
func (r *testRig) words() []uint16 {
	r.t.Helper()
	_, err := r.link.WriteTo(&r.out)
	require.NoError(r.t, err)
	data := r.out.Bytes()
	var words []uint16
	for len(data) >= protocol.WordSize {
		v, err := protocol.DecodeWord(&data)
		require.NoError(r.t, err)
		words = append(words, v)
	}
	r.out.Reset()
	return words
}

// exchange sends one command, steps once and returns its responses
func (r *testRig) exchange(cmd byte) []uint16 {
	r.send(cmd)
	r.step()
	return r.words()
}

func TestNewDeviceConfiguresHardware(t *testing.T) {
	r := newTestRig(t, Config{})

	assert.Equal(t, DefaultConfig(), r.dev.Config())
	assert.True(t, r.gpio.inputs[testPelletPin])
	assert.True(t, r.gpio.inputs[testRetrievalPin])
	assert.NotNil(t, r.gpio.handlers[testPelletPin])
	assert.NotNil(t, r.gpio.handlers[testRetrievalPin])
	assert.True(t, r.adc.configured[testJoystickCh])
	assert.True(t, r.adc.configured[testRangefinderCh])
	assert.Equal(t, 7, r.dev.Registry().Count())
	assert.Equal(t, DispenseIdle, r.dev.Session().State)
}

func TestNewDeviceRequiresDrivers(t *testing.T) {
	_, err := NewDevice(Config{}, Hardware{}, protocol.NewTransport(8))
	assert.Error(t, err)
}

func TestCheckConnection(t *testing.T) {
	r := newTestRig(t, Config{})
	assert.Equal(t, []uint16{1}, r.exchange(protocol.CmdCheckConnection))

	// Still immediate while a dispense attempt is outstanding
	r.exchange(protocol.CmdDispensePellet)
	require.True(t, r.dev.Session().Attempted())
	assert.Equal(t, []uint16{1}, r.exchange(protocol.CmdCheckConnection))
	assert.True(t, r.dev.Pending().Ready())
}

func TestSampleSensors(t *testing.T) {
	r := newTestRig(t, Config{})
	assert.Equal(t, []uint16{512}, r.exchange(protocol.CmdSampleJoystick))
	assert.Equal(t, []uint16{1023}, r.exchange(protocol.CmdSampleRangefinder))
}

func TestSampleErrorAnswersZero(t *testing.T) {
	r := newTestRig(t, Config{})
	delete(r.adc.values, testRangefinderCh)

	assert.Equal(t, []uint16{0}, r.exchange(protocol.CmdSampleRangefinder))

	var sawError bool
	for _, evt := range r.dev.Trace().Events() {
		if evt.EventType == EvtADCError {
			sawError = true
			assert.Equal(t, uint32(testRangefinderCh), evt.Value1)
		}
	}
	assert.True(t, sawError)
}

func TestUnrecognizedCommandDiscarded(t *testing.T) {
	r := newTestRig(t, Config{})

	assert.Empty(t, r.exchange(0x42))
	assert.True(t, r.dev.Pending().Ready())
	assert.Zero(t, r.link.Available())
	assert.Equal(t, uint32(1), r.dev.Stats().UnknownCommands)

	// The next command is served normally
	assert.Equal(t, []uint16{1}, r.exchange(protocol.CmdCheckConnection))
}

func TestDispenseDetectedScenario(t *testing.T) {
	r := newTestRig(t, Config{})

	assert.Empty(t, r.exchange(protocol.CmdDispensePellet))
	s := r.dev.Session()
	assert.Equal(t, DispenseAttempting, s.State)
	assert.Equal(t, uint8(1), s.AttemptCount)
	assert.Equal(t, uint32(0), s.LastAttemptTime)
	assert.Equal(t, 1, r.gpio.risingEdges(testActuatorPin))

	r.stepTo(120)
	r.gpio.fire(testPelletPin)
	r.step()
	assert.True(t, r.dev.Session().Detected())

	assert.Equal(t, []uint16{120}, r.exchange(protocol.CmdReportDispenseDelay))
	assert.Equal(t, []uint16{1}, r.exchange(protocol.CmdReportDispenseAttempts))

	// Detection is terminal: no retry once the window would have lapsed
	r.stepTo(1000)
	assert.Equal(t, 1, r.gpio.risingEdges(testActuatorPin))
}

func TestDetectDuringCommandPreventsRetry(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdDispensePellet)
	r.stepTo(299)

	// The beam breaks while the loop is sampling, after the latches were
	// drained but before the retry deadline is evaluated.
	r.adc.onRead = func(ADCChannelID) { r.gpio.fire(testPelletPin) }
	r.send(protocol.CmdSampleJoystick)
	r.clock.Set(300)
	r.step()
	r.adc.onRead = nil

	s := r.dev.Session()
	assert.Equal(t, DispenseDetected, s.State)
	assert.Equal(t, uint8(1), s.AttemptCount)
	assert.Equal(t, uint32(300), s.DispenseDelay())
	assert.Equal(t, 1, r.gpio.risingEdges(testActuatorPin), "no retry after the pellet fell")
	assert.Equal(t, []uint16{512}, r.words())

	r.stepTo(1000)
	assert.Equal(t, 1, r.gpio.risingEdges(testActuatorPin))
	assert.Equal(t, []uint16{300}, r.exchange(protocol.CmdReportDispenseDelay))
	assert.Equal(t, []uint16{1}, r.exchange(protocol.CmdReportDispenseAttempts))
}

func TestDispenseDelayWireEncoding(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdDispensePellet)
	r.stepTo(120)
	r.gpio.fire(testPelletPin)

	r.send(protocol.CmdReportDispenseDelay)
	r.step()
	_, err := r.link.WriteTo(&r.out)
	require.NoError(t, err)
	assert.Equal(t, []byte{120, 0}, r.out.Bytes())
}

func TestDispenseFailureScenario(t *testing.T) {
	r := newTestRig(t, Config{})

	r.exchange(protocol.CmdDispensePellet)

	var attemptTimes []uint32
	last := r.dev.Session().AttemptCount
	for r.clock.Now() < 5000 {
		r.clock.Advance(1)
		r.step()
		if s := r.dev.Session(); s.AttemptCount != last {
			last = s.AttemptCount
			attemptTimes = append(attemptTimes, s.LastAttemptTime)
		}
		if r.clock.Now() == 3599 {
			assert.True(t, r.dev.Session().Attempted(), "still attempting just before the bound")
		}
		if r.clock.Now() == 3600 {
			assert.True(t, r.dev.Session().Failed(), "failed once the last window lapses")
		}
	}

	// Eleven retries, each exactly one wait window after the previous attempt
	require.Len(t, attemptTimes, 11)
	for i, at := range attemptTimes {
		assert.Equal(t, uint32(300*(i+1)), at)
	}
	assert.Equal(t, DefaultMaxAttempts, r.gpio.risingEdges(testActuatorPin), "no pulse beyond the bound")

	assert.Equal(t, []uint16{protocol.DispenseFailedSentinel}, r.exchange(protocol.CmdReportDispenseDelay))
	assert.Equal(t, []uint16{12}, r.exchange(protocol.CmdReportDispenseAttempts))
	assert.Equal(t, uint32(1), r.dev.Stats().FailedSessions)
}

func TestReportAttemptsMidAttemptIsZero(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdDispensePellet)
	r.stepTo(700) // two retries issued

	require.Equal(t, uint8(3), r.dev.Session().AttemptCount)
	assert.Equal(t, []uint16{0}, r.exchange(protocol.CmdReportDispenseAttempts))

	r.gpio.fire(testPelletPin)
	r.step()
	assert.Equal(t, []uint16{3}, r.exchange(protocol.CmdReportDispenseAttempts))
}

func TestReportDispenseDelayStalls(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdDispensePellet)

	r.send(protocol.CmdReportDispenseDelay, protocol.CmdCheckConnection)
	r.stepTo(250)

	assert.Empty(t, r.words())
	pending := r.dev.Pending()
	require.False(t, pending.Ready())
	assert.Equal(t, protocol.CmdReportDispenseDelay, pending.Current.ID)
	assert.Equal(t, 1, r.link.Available(), "next command waits in the FIFO")

	r.gpio.fire(testPelletPin)
	r.step()
	assert.Equal(t, []uint16{250}, r.words())
	r.step()
	assert.Equal(t, []uint16{1}, r.words())
}

func TestReportDispenseDelayStallsWhileIdle(t *testing.T) {
	r := newTestRig(t, Config{})
	r.send(protocol.CmdReportDispenseDelay)
	r.stepTo(5000)

	assert.Empty(t, r.words())
	assert.False(t, r.dev.Pending().Ready())
}

func TestRetrievalDelay(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdDispensePellet)
	r.stepTo(80)
	r.gpio.fire(testPelletPin)

	r.send(protocol.CmdReportRetrievalDelay)
	r.stepTo(2000)
	assert.Empty(t, r.words(), "stalls until the reward is taken")

	r.gpio.fire(testRetrievalPin)
	r.step()
	assert.Equal(t, []uint16{2000 - 80}, r.words())

	rec := r.dev.Retrieval()
	assert.True(t, rec.Retrieved)
	assert.Equal(t, uint32(2000), rec.RetrievedTime)
}

func TestDispenseResetsSession(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdDispensePellet)
	r.stepTo(650)
	r.gpio.fire(testRetrievalPin)
	r.step()
	require.Equal(t, uint8(3), r.dev.Session().AttemptCount)
	require.True(t, r.dev.Retrieval().Retrieved)

	// A second dispense discards the earlier attempt history
	r.exchange(protocol.CmdDispensePellet)
	s := r.dev.Session()
	assert.Equal(t, DispenseAttempting, s.State)
	assert.Equal(t, uint8(1), s.AttemptCount)
	assert.Equal(t, uint32(650), s.LastAttemptTime)
	assert.Equal(t, RetrievalRecord{}, r.dev.Retrieval())

	r.stepTo(700)
	r.gpio.fire(testPelletPin)
	r.step()
	assert.Equal(t, []uint16{50}, r.exchange(protocol.CmdReportDispenseDelay))
	assert.Equal(t, []uint16{1}, r.exchange(protocol.CmdReportDispenseAttempts))
}

func TestDispenseDiscardsStaleDetect(t *testing.T) {
	r := newTestRig(t, Config{})

	// A detect raised before the session opens belongs to no attempt
	r.stepTo(10)
	r.gpio.fire(testPelletPin)
	r.exchange(protocol.CmdDispensePellet)
	r.step()
	assert.True(t, r.dev.Session().Attempted())
}

func TestDetectIgnoredAfterFailure(t *testing.T) {
	r := newTestRig(t, Config{MaxAttempts: 2, DispenseWait: 10})
	r.exchange(protocol.CmdDispensePellet)
	r.stepTo(25)
	require.True(t, r.dev.Session().Failed())

	r.gpio.fire(testPelletPin)
	r.step()
	assert.True(t, r.dev.Session().Failed())
	last, ok := r.dev.Trace().Last()
	require.True(t, ok)
	assert.Equal(t, uint8(EvtDetectIgnored), last.EventType)
	assert.Equal(t, []uint16{protocol.DispenseFailedSentinel}, r.exchange(protocol.CmdReportDispenseDelay))
	assert.Equal(t, []uint16{2}, r.exchange(protocol.CmdReportDispenseAttempts))
}

func TestActuatorPulseReleased(t *testing.T) {
	r := newTestRig(t, Config{PulseWidth: 40})
	r.exchange(protocol.CmdDispensePellet)
	assert.True(t, r.gpio.level(testActuatorPin))

	r.stepTo(39)
	assert.True(t, r.gpio.level(testActuatorPin))
	r.stepTo(40)
	assert.False(t, r.gpio.level(testActuatorPin))
}

func TestActuatorErrorStillCountsAttempt(t *testing.T) {
	r := newTestRig(t, Config{})
	r.gpio.failSet = true

	r.exchange(protocol.CmdDispensePellet)
	assert.Equal(t, uint8(1), r.dev.Session().AttemptCount)
	assert.Equal(t, uint32(1), r.dev.Stats().Attempts)

	var sawError bool
	for _, evt := range r.dev.Trace().Events() {
		sawError = sawError || evt.EventType == EvtActuatorError
	}
	assert.True(t, sawError)
}

func TestEventsFromOtherGoroutine(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdDispensePellet)

	done := make(chan struct{})
	go func() {
		defer close(done)
		r.gpio.fire(testPelletPin)
		r.gpio.fire(testRetrievalPin)
	}()
	for i := 0; i < 100; i++ {
		r.clock.Advance(1)
		r.step()
	}
	<-done
	r.step()

	assert.True(t, r.dev.Session().Detected())
	assert.True(t, r.dev.Retrieval().Retrieved)
}

func TestStatsAndDump(t *testing.T) {
	r := newTestRig(t, Config{})
	r.exchange(protocol.CmdCheckConnection)
	r.exchange(protocol.CmdDispensePellet)
	r.exchange(0x00)

	s := r.dev.Stats()
	assert.Equal(t, uint32(2), s.CommandsProcessed)
	assert.Equal(t, uint32(1), s.UnknownCommands)
	assert.Equal(t, uint32(1), s.Attempts)
	assert.Equal(t, uint32(1), s.Pulses)

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})
	r.dev.DumpStats()
	require.NotEmpty(t, lines)
	assert.Contains(t, lines[0], "commands=2")
}
