package protocol

import (
	"errors"
	"io"
	"sync"
)

// ErrNoData is returned by ReadByte when nothing has been received
var ErrNoData = errors.New("no data available")

// Transport is the device side of the serial link. Received bytes wait in a
// FIFO until the dispatcher is ready for them; responses are staged in a
// scratch buffer until the platform flushes them.
type Transport struct {
	mu        sync.Mutex
	input     *FifoBuffer
	output    *ScratchOutput
	overflows uint32

	flushCallback func() // Called after a response is queued
}

// NewTransport creates a Transport with an rxSize-byte receive FIFO
func NewTransport(rxSize int) *Transport {
	return &Transport{
		input:  NewFifoBuffer(rxSize),
		output: NewScratchOutput(),
	}
}

// Receive queues bytes read from the wire. Bytes that do not fit are
// dropped and counted; it returns how many were accepted.
func (t *Transport) Receive(data []byte) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	n := t.input.Write(data)
	if n < len(data) {
		t.overflows += uint32(len(data) - n)
	}
	return n
}

// Available returns the number of received bytes not yet consumed
func (t *Transport) Available() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.input.Available()
}

// ReadByte consumes one received byte
func (t *Transport) ReadByte() (byte, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	b, ok := t.input.ReadByte()
	if !ok {
		return 0, ErrNoData
	}
	return b, nil
}

// SendWord queues a response word and triggers the flush callback
func (t *Transport) SendWord(v uint32) {
	t.mu.Lock()
	EncodeWord(t.output, v)
	t.mu.Unlock()

	if t.flushCallback != nil {
		t.flushCallback()
	}
}

// Pending returns the number of response bytes waiting to be flushed
func (t *Transport) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.output.CurPosition()
}

// WriteTo flushes staged responses to w. Bytes w did not accept stay
// staged for the next call.
func (t *Transport) WriteTo(w io.Writer) (int64, error) {
	t.mu.Lock()
	data := append([]byte(nil), t.output.Result()...)
	t.output.Reset()
	t.mu.Unlock()

	if len(data) == 0 {
		return 0, nil
	}
	n, err := w.Write(data)
	if n < len(data) {
		t.mu.Lock()
		rest := append(data[n:], t.output.Result()...)
		t.output.Reset()
		t.output.Output(rest)
		t.mu.Unlock()
	}
	return int64(n), err
}

// Overflows returns how many received bytes were dropped
func (t *Transport) Overflows() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.overflows
}

// Reset clears both directions (useful after USB disconnect/reconnect)
func (t *Transport) Reset() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.input.Reset()
	t.output.Reset()
}

// SetFlushCallback sets a callback run after each queued response
func (t *Transport) SetFlushCallback(callback func()) {
	t.flushCallback = callback
}
