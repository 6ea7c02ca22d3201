package protocol

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"
)

// ErrClosed is returned once the transport or its port has been closed
var ErrClosed = errors.New("transport closed")

// HostTransport drives the protocol from the host side: it writes command
// bytes and collects the response words the device sends back.
//
// The device answers commands strictly in order, so a response the host gave
// up waiting for still arrives ahead of any later one. HostTransport keeps
// count of such owed bytes and discards them before reading the next answer.
type HostTransport struct {
	// Serial I/O
	port io.ReadWriteCloser

	// Received bytes not yet consumed, guarded by readMutex
	inputBuffer *FifoBuffer
	readMutex   sync.Mutex
	dataChan    chan struct{}
	readErr     error
	dropped     int

	// Serialises exchanges; owed is only touched while holding it
	exchangeMutex sync.Mutex
	owed          int

	// Stop channel for graceful shutdown
	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewHostTransport creates a new host-side transport
func NewHostTransport(port io.ReadWriteCloser) *HostTransport {
	t := &HostTransport{
		port:        port,
		inputBuffer: NewFifoBuffer(512),
		dataChan:    make(chan struct{}, 1),
		stopChan:    make(chan struct{}),
		doneChan:    make(chan struct{}),
	}

	// Start background reader
	go t.readLoop()

	return t
}

// Exchange sends cmd and returns its response bytes (empty for commands
// without a response). If ctx ends first, the response is marked owed and
// ctx.Err() is returned.
func (t *HostTransport) Exchange(ctx context.Context, cmd byte) ([]byte, error) {
	t.exchangeMutex.Lock()
	defer t.exchangeMutex.Unlock()

	select {
	case <-t.stopChan:
		return nil, ErrClosed
	default:
	}

	if n, err := t.port.Write([]byte{cmd}); err != nil {
		return nil, fmt.Errorf("failed to write command %d: %w", cmd, err)
	} else if n != 1 {
		return nil, fmt.Errorf("incomplete write of command %d", cmd)
	}

	size := ResponseSize(cmd)
	t.owed += size

	resp := make([]byte, 0, size)
	for t.owed > 0 {
		b, err := t.nextByte(ctx)
		if err != nil {
			return nil, err
		}
		t.owed--
		if t.owed < size {
			resp = append(resp, b)
		}
	}
	return resp, nil
}

// Drain discards owed response bytes without sending anything. It returns
// ctx.Err() if they have not all arrived when ctx ends.
func (t *HostTransport) Drain(ctx context.Context) error {
	t.exchangeMutex.Lock()
	defer t.exchangeMutex.Unlock()

	for t.owed > 0 {
		if _, err := t.nextByte(ctx); err != nil {
			return err
		}
		t.owed--
	}
	return nil
}

// Owed returns the number of late response bytes still to be discarded
func (t *HostTransport) Owed() int {
	t.exchangeMutex.Lock()
	defer t.exchangeMutex.Unlock()
	return t.owed
}

// Dropped returns the number of received bytes lost to a full buffer
func (t *HostTransport) Dropped() int {
	t.readMutex.Lock()
	defer t.readMutex.Unlock()
	return t.dropped
}

// nextByte waits for one received byte
func (t *HostTransport) nextByte(ctx context.Context) (byte, error) {
	for {
		t.readMutex.Lock()
		b, ok := t.inputBuffer.ReadByte()
		readErr := t.readErr
		t.readMutex.Unlock()
		if ok {
			return b, nil
		}
		if readErr != nil {
			return 0, readErr
		}

		select {
		case <-t.dataChan:
		case <-ctx.Done():
			return 0, ctx.Err()
		case <-t.stopChan:
			return 0, ErrClosed
		}
	}
}

// readLoop continuously reads from the serial port into the input buffer
func (t *HostTransport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 64)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.readMutex.Lock()
			written := t.inputBuffer.Write(buffer[:n])
			t.dropped += n - written
			t.readMutex.Unlock()
			t.signal()
		}
		if err != nil {
			if isClosedErr(err) {
				t.readMutex.Lock()
				t.readErr = ErrClosed
				t.readMutex.Unlock()
				t.signal()
				return
			}
			// Transient error (e.g. read timeout) - try again
			time.Sleep(10 * time.Millisecond)
		}
	}
}

func (t *HostTransport) signal() {
	select {
	case t.dataChan <- struct{}{}:
	default:
	}
}

func isClosedErr(err error) bool {
	return errors.Is(err, io.EOF) || errors.Is(err, io.ErrClosedPipe) ||
		errors.Is(err, net.ErrClosed) || errors.Is(err, os.ErrClosed)
}

// Close stops the transport and closes the serial port
func (t *HostTransport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		if t.port != nil {
			err = t.port.Close()
		}
		<-t.doneChan // Wait for read loop to finish
	})
	return err
}
