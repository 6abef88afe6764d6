//go:build rp2040

package main

import (
	"errors"
	"machine"
	"sync/atomic"
	"time"

	"xmboot/protocol"
)

var errReceiveTimeout = errors.New("uart receive timeout")

// uartQueueSize holds more than one full 1K frame; the machine UART ring
// buffer alone is too small
const uartQueueSize = 2048

// uartTransport feeds the bootloader from a hardware UART. A reader
// goroutine drains the UART into a ByteQueue; Receive polls the queue.
type uartTransport struct {
	uart    *machine.UART
	queue   *protocol.ByteQueue
	timeout time.Duration

	// bytes dropped because the queue was full
	overflows atomic.Uint32
}

func newUARTTransport(uart *machine.UART, tx, rx machine.Pin, baud uint32, timeout time.Duration) (*uartTransport, error) {
	err := uart.Configure(machine.UARTConfig{
		BaudRate: baud,
		TX:       tx,
		RX:       rx,
	})
	if err != nil {
		return nil, err
	}

	t := &uartTransport{
		uart:    uart,
		queue:   protocol.NewByteQueue(uartQueueSize),
		timeout: timeout,
	}
	go t.readerLoop()
	return t, nil
}

// readerLoop runs in a goroutine to continuously move UART data into the queue
func (t *uartTransport) readerLoop() {
	var chunk [64]byte
	for {
		n := 0
		for n < len(chunk) && t.uart.Buffered() > 0 {
			b, err := t.uart.ReadByte()
			if err != nil {
				break
			}
			chunk[n] = b
			n++
		}
		if n > 0 {
			if written := t.queue.Write(chunk[:n]); written < n {
				t.overflows.Add(uint32(n - written))
			}
		}
		// Yield to avoid a busy loop
		time.Sleep(100 * time.Microsecond)
	}
}

func (t *uartTransport) Receive(buf []byte) error {
	deadline := time.Now().Add(t.timeout)
	n := 0
	for {
		n += t.queue.Read(buf[n:])
		if n == len(buf) {
			return nil
		}
		if time.Now().After(deadline) {
			return errReceiveTimeout
		}
		time.Sleep(50 * time.Microsecond)
	}
}

func (t *uartTransport) TransmitByte(b byte) error {
	return t.uart.WriteByte(b)
}

func (t *uartTransport) TransmitString(s string) error {
	_, err := t.uart.Write([]byte(s))
	return err
}

// Discard drops bytes left over from an aborted session
func (t *uartTransport) Discard() {
	t.queue.Discard()
}

// Overflows returns how many received bytes were dropped so far
func (t *uartTransport) Overflows() uint32 {
	return t.overflows.Load()
}
