package protocol

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedDevice answers every command byte from a fixed table
func scriptedDevice(t *testing.T, conn net.Conn, answers map[byte][]byte) {
	t.Helper()
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := conn.Read(buf); err != nil {
				return
			}
			if resp, ok := answers[buf[0]]; ok {
				if _, err := conn.Write(resp); err != nil {
					return
				}
			}
		}
	}()
}

func TestHostTransportExchange(t *testing.T) {
	host, dev := net.Pipe()
	scriptedDevice(t, dev, map[byte][]byte{
		CmdCheckConnection:     {1, 0},
		CmdReportDispenseDelay: {0x9A, 0x02},
	})
	tr := NewHostTransport(host)
	defer tr.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	resp, err := tr.Exchange(ctx, CmdCheckConnection)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, resp)

	resp, err = tr.Exchange(ctx, CmdDispensePellet)
	require.NoError(t, err)
	assert.Empty(t, resp)

	resp, err = tr.Exchange(ctx, CmdReportDispenseDelay)
	require.NoError(t, err)
	v, err := DecodeWord(&resp)
	require.NoError(t, err)
	assert.Equal(t, uint16(DispenseFailedSentinel), v)
}

func TestHostTransportDiscardsLateResponse(t *testing.T) {
	host, dev := net.Pipe()
	tr := NewHostTransport(host)
	defer tr.Close()

	// Swallow the first command without answering
	cmds := make(chan byte, 4)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := dev.Read(buf); err != nil {
				return
			}
			cmds <- buf[0]
		}
	}()

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Exchange(short, CmdReportRetrievalDelay)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, 2, tr.Owed())
	assert.Equal(t, CmdReportRetrievalDelay, <-cmds)

	// The late answer arrives, then the answer to the next command
	go func() {
		assert.Equal(t, CmdCheckConnection, <-cmds)
		dev.Write([]byte{0x2C, 0x01})
		dev.Write([]byte{0x01, 0x00})
	}()

	ctx, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	resp, err := tr.Exchange(ctx, CmdCheckConnection)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 0}, resp)
	assert.Zero(t, tr.Owed())
}

func TestHostTransportDrain(t *testing.T) {
	host, dev := net.Pipe()
	tr := NewHostTransport(host)
	defer tr.Close()

	cmds := make(chan byte, 4)
	go func() {
		buf := make([]byte, 1)
		for {
			if _, err := dev.Read(buf); err != nil {
				return
			}
			cmds <- buf[0]
		}
	}()

	short, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := tr.Exchange(short, CmdReportRetrievalDelay)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, CmdReportRetrievalDelay, <-cmds)

	// Nothing has arrived yet: the debt stays and no byte is written
	short2, cancel2 := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel2()
	assert.ErrorIs(t, tr.Drain(short2), context.DeadlineExceeded)
	assert.Equal(t, 2, tr.Owed())
	assert.Empty(t, cmds)

	go dev.Write([]byte{0x2C, 0x01})

	ctx, cancel3 := context.WithTimeout(context.Background(), time.Second)
	defer cancel3()
	require.NoError(t, tr.Drain(ctx))
	assert.Zero(t, tr.Owed())
	assert.Empty(t, cmds)
}

func TestHostTransportClosed(t *testing.T) {
	host, dev := net.Pipe()
	tr := NewHostTransport(host)
	dev.Close()

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := tr.Exchange(ctx, CmdCheckConnection)
	assert.Error(t, err)

	require.NoError(t, tr.Close())
	_, err = tr.Exchange(ctx, CmdCheckConnection)
	assert.ErrorIs(t, err, ErrClosed)
}
