package serial

import (
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"xmboot/protocol"
)

// ErrTimeout is returned by Receive when the requested bytes did not
// arrive in time
var ErrTimeout = errors.New("receive timeout")

// ErrClosed is returned after Close
var ErrClosed = errors.New("transport closed")

// queueSize holds a few full 1K frames
const queueSize = 4096

// Transport adapts a byte stream to the bootloader's Transport interface.
// A background reader moves incoming bytes into a ByteQueue; Receive
// consumes them with a per-call timeout.
type Transport struct {
	port    io.ReadWriteCloser
	timeout time.Duration

	queue *protocol.ByteQueue
	ready chan struct{}

	writeMutex sync.Mutex

	stopChan  chan struct{}
	doneChan  chan struct{}
	closeOnce sync.Once
}

// NewTransport starts reading from port. Every Receive waits at most timeout.
func NewTransport(port io.ReadWriteCloser, timeout time.Duration) *Transport {
	t := &Transport{
		port:     port,
		timeout:  timeout,
		queue:    protocol.NewByteQueue(queueSize),
		ready:    make(chan struct{}, 1),
		stopChan: make(chan struct{}),
		doneChan: make(chan struct{}),
	}

	// Start background reader
	go t.readLoop()

	return t
}

// Receive fills buf completely or fails with ErrTimeout. Bytes that did
// arrive are left in buf.
func (t *Transport) Receive(buf []byte) error {
	deadline := time.NewTimer(t.timeout)
	defer deadline.Stop()

	n := 0
	for {
		n += t.queue.Read(buf[n:])
		if n == len(buf) {
			return nil
		}

		select {
		case <-t.ready:
		case <-deadline.C:
			// Last chance for bytes that raced the timer
			n += t.queue.Read(buf[n:])
			if n == len(buf) {
				return nil
			}
			return fmt.Errorf("%w: %d/%d bytes after %v", ErrTimeout, n, len(buf), t.timeout)
		case <-t.stopChan:
			return ErrClosed
		}
	}
}

// TransmitByte sends a single control byte
func (t *Transport) TransmitByte(b byte) error {
	_, err := t.Write([]byte{b})
	return err
}

// TransmitString sends text as is
func (t *Transport) TransmitString(s string) error {
	_, err := t.Write([]byte(s))
	return err
}

// Write sends raw bytes to the port
func (t *Transport) Write(p []byte) (int, error) {
	t.writeMutex.Lock()
	defer t.writeMutex.Unlock()

	n, err := t.port.Write(p)
	if err != nil {
		return n, err
	}
	if n != len(p) {
		return n, fmt.Errorf("incomplete write: %d/%d bytes", n, len(p))
	}
	return n, nil
}

// Discard drops every byte received but not yet consumed
func (t *Transport) Discard() int {
	return t.queue.Discard()
}

// Close stops the reader and closes the port
func (t *Transport) Close() error {
	var err error
	t.closeOnce.Do(func() {
		close(t.stopChan)
		err = t.port.Close()
		<-t.doneChan
	})
	return err
}

// readLoop continuously reads from the port into the queue
func (t *Transport) readLoop() {
	defer close(t.doneChan)

	buffer := make([]byte, 256)

	for {
		select {
		case <-t.stopChan:
			return
		default:
		}

		n, err := t.port.Read(buffer)
		if n > 0 {
			t.push(buffer[:n])
		}
		if err != nil {
			if errors.Is(err, io.ErrClosedPipe) || errors.Is(err, os.ErrClosed) {
				return
			}
			// Poll timeouts surface as io.EOF on some platforms
			time.Sleep(10 * time.Millisecond)
		}
	}
}

// push queues data, waiting for the consumer while the queue is full
func (t *Transport) push(data []byte) {
	for len(data) > 0 {
		written := t.queue.Write(data)
		data = data[written:]
		t.signal()
		if len(data) == 0 {
			return
		}

		select {
		case <-t.stopChan:
			return
		case <-time.After(time.Millisecond):
		}
	}
}

func (t *Transport) signal() {
	select {
	case t.ready <- struct{}{}:
	default:
	}
}
