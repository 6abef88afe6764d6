package storage

import (
	"fmt"
)

// ErasedByte is the value of an erased NOR flash byte
const ErasedByte = 0xFF

// Memory is a RAM-backed BlockDevice with NOR flash semantics:
// erasing sets bytes to 0xFF and programming can only clear bits.
type Memory struct {
	data       []byte
	eraseBlock int64
	writeBlock int64

	// EraseCalls counts EraseBlocks invocations
	EraseCalls int
}

// NewMemory creates an erased device of size bytes
func NewMemory(size, eraseBlockSize, writeBlockSize int) *Memory {
	m := &Memory{
		data:       make([]byte, size),
		eraseBlock: int64(eraseBlockSize),
		writeBlock: int64(writeBlockSize),
	}
	for i := range m.data {
		m.data[i] = ErasedByte
	}
	return m
}

func (m *Memory) ReadAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("read %d bytes at %d: out of range", len(p), off)
	}
	return copy(p, m.data[off:]), nil
}

func (m *Memory) WriteAt(p []byte, off int64) (int, error) {
	if off%m.writeBlock != 0 || int64(len(p))%m.writeBlock != 0 {
		return 0, fmt.Errorf("write %d bytes at %d: not a multiple of %d", len(p), off, m.writeBlock)
	}
	if off < 0 || off+int64(len(p)) > int64(len(m.data)) {
		return 0, fmt.Errorf("write %d bytes at %d: out of range", len(p), off)
	}
	for i, b := range p {
		m.data[off+int64(i)] &= b
	}
	return len(p), nil
}

func (m *Memory) Size() int64 {
	return int64(len(m.data))
}

func (m *Memory) WriteBlockSize() int64 {
	return m.writeBlock
}

func (m *Memory) EraseBlockSize() int64 {
	return m.eraseBlock
}

func (m *Memory) EraseBlocks(start, length int64) error {
	m.EraseCalls++
	first := start * m.eraseBlock
	last := (start + length) * m.eraseBlock
	if start < 0 || length < 0 || last > int64(len(m.data)) {
		return fmt.Errorf("erase blocks %d+%d: out of range", start, length)
	}
	for i := first; i < last; i++ {
		m.data[i] = ErasedByte
	}
	return nil
}

// Bytes returns the device contents
func (m *Memory) Bytes() []byte {
	return m.data
}
