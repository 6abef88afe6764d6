package bootloader

import (
	"errors"
	"fmt"

	"xmboot/protocol"
)

var (
	errTimeout   = errors.New("receive timeout")
	errShortRead = errors.New("short read")
)

// readStep is one scripted result of Transport.Receive
type readStep struct {
	data []byte
	err  error
}

// scriptedTransport replays reads and records everything transmitted.
// Once the script is exhausted every read times out.
type scriptedTransport struct {
	steps []readStep
	sent  []byte
	texts []string
	reads int
	// events interleaves transmissions with storage calls
	events *[]string
}

func newScriptedTransport(events *[]string, steps ...[]readStep) *scriptedTransport {
	t := &scriptedTransport{events: events}
	for _, s := range steps {
		t.steps = append(t.steps, s...)
	}
	return t
}

func (t *scriptedTransport) Receive(buf []byte) error {
	t.reads++
	if t.reads > 10000 {
		panic("runaway session: script never terminates")
	}
	if len(t.steps) == 0 {
		return errTimeout
	}
	step := t.steps[0]
	t.steps = t.steps[1:]

	n := copy(buf, step.data)
	if step.err != nil {
		return step.err
	}
	if n < len(buf) {
		return errShortRead
	}
	return nil
}

func (t *scriptedTransport) TransmitByte(b byte) error {
	t.sent = append(t.sent, b)
	t.record(fmt.Sprintf("tx:%02X", b))
	return nil
}

func (t *scriptedTransport) TransmitString(s string) error {
	t.texts = append(t.texts, s)
	t.record("text")
	return nil
}

func (t *scriptedTransport) record(e string) {
	if t.events != nil {
		*t.events = append(*t.events, e)
	}
}

func (t *scriptedTransport) count(b byte) int {
	n := 0
	for _, s := range t.sent {
		if s == b {
			n++
		}
	}
	return n
}

type writeCall struct {
	addr uint32
	data []byte
}

// recordingStorage records erase and write requests
type recordingStorage struct {
	erases   []uint32
	writes   []writeCall
	eraseErr error
	writeErr func(addr uint32) error
	events   *[]string
}

func (s *recordingStorage) Erase(address uint32) error {
	s.erases = append(s.erases, address)
	if s.events != nil {
		*s.events = append(*s.events, "erase")
	}
	return s.eraseErr
}

func (s *recordingStorage) Write(address uint32, data []byte) error {
	if s.events != nil {
		*s.events = append(*s.events, fmt.Sprintf("write:%08X", address))
	}
	if s.writeErr != nil {
		if err := s.writeErr(address); err != nil {
			return err
		}
	}
	s.writes = append(s.writes, writeCall{addr: address, data: append([]byte(nil), data...)})
	return nil
}

func (s *recordingStorage) addresses() []uint32 {
	var out []uint32
	for _, w := range s.writes {
		out = append(out, w.addr)
	}
	return out
}

// recordingHandoff counts jumps
type recordingHandoff struct {
	calls  int
	events *[]string
}

func (h *recordingHandoff) JumpToApplication() {
	h.calls++
	if h.events != nil {
		*h.events = append(*h.events, "jump")
	}
}

// Script helpers

func header(b byte) []readStep {
	return []readStep{{data: []byte{b}}}
}

func timeouts(n int) []readStep {
	steps := make([]readStep, n)
	for i := range steps {
		steps[i] = readStep{err: errTimeout}
	}
	return steps
}

func payload(size int, seed byte) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = seed ^ byte(i)
	}
	return p
}

// dataFrame scripts a well-formed frame: header read, then body read
func dataFrame(number uint8, data []byte) []readStep {
	raw, err := protocol.EncodeFrame(nil, number, data)
	if err != nil {
		panic(err)
	}
	return []readStep{{data: raw[:1]}, {data: raw[1:]}}
}

// corruptFrame scripts a frame whose CRC does not match
func corruptFrame(number uint8, data []byte) []readStep {
	steps := dataFrame(number, data)
	body := steps[1].data
	body[len(body)-1] ^= 0x5A
	return steps
}

func testConfig(maxErrors int) Config {
	cfg := DefaultConfig()
	cfg.BaseAddress = 0x08008000
	cfg.MaxErrors = maxErrors
	return cfg
}
