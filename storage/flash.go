// Package storage programs firmware images into block-addressed flash.
package storage

import (
	"bytes"
	"io"

	"github.com/pkg/errors"
)

// WordSize is the programming granularity callers must respect
const WordSize = 4

var (
	// ErrRegion is returned for an address outside the image region
	ErrRegion = errors.New("address outside image region")

	// ErrSize is returned when an image does not fit in the region
	ErrSize = errors.New("image too big for region")

	// ErrAlignment is returned for writes that are not word aligned
	ErrAlignment = errors.New("unaligned write")

	// ErrWrite is returned when the device accepted fewer bytes than requested
	ErrWrite = errors.New("short write")

	// ErrReadback is returned when programmed data does not read back identically
	ErrReadback = errors.New("readback mismatch")
)

// BlockDevice is a flash device addressed by byte offset and erased in blocks.
// TinyGo's machine.Flash and tinygo.org/x/drivers/flash.Device both satisfy it.
type BlockDevice interface {
	io.ReaderAt
	io.WriterAt

	// Size returns the number of bytes of the device
	Size() int64

	// WriteBlockSize returns the smallest programmable unit
	WriteBlockSize() int64

	// EraseBlockSize returns the smallest erasable unit
	EraseBlockSize() int64

	// EraseBlocks erases length blocks starting at block start
	EraseBlocks(start, length int64) error
}

// Flash maps an image region at a fixed absolute address onto a BlockDevice.
// Offset 0 of the device corresponds to the region base.
type Flash struct {
	dev  BlockDevice
	base uint32
	size uint32

	readback []byte
	merge    []byte
}

// NewFlash creates a region of size bytes starting at base
func NewFlash(dev BlockDevice, base, size uint32) (*Flash, error) {
	if dev == nil {
		return nil, errors.New("block device cannot be nil")
	}
	if size == 0 || int64(size) > dev.Size() {
		return nil, errors.Wrapf(ErrRegion, "region of %d bytes on a %d byte device", size, dev.Size())
	}
	if uint64(base)+uint64(size) > 1<<32 {
		return nil, errors.Wrapf(ErrRegion, "region 0x%08X+%d overflows the address space", base, size)
	}
	return &Flash{
		dev:  dev,
		base: base,
		size: size,
	}, nil
}

// Base returns the absolute start address of the region
func (f *Flash) Base() uint32 {
	return f.base
}

// Size returns the region size in bytes
func (f *Flash) Size() uint32 {
	return f.size
}

// Erase erases every block from address to the end of the region
func (f *Flash) Erase(address uint32) error {
	if address < f.base || address-f.base >= f.size {
		return errors.Wrapf(ErrRegion, "erase at 0x%08X", address)
	}

	bs := f.dev.EraseBlockSize()
	off := int64(address - f.base)
	if off%bs != 0 {
		return errors.Wrapf(ErrAlignment, "erase at 0x%08X is not on a %d byte block", address, bs)
	}

	start := off / bs
	end := (int64(f.size) + bs - 1) / bs
	return errors.Wrapf(f.dev.EraseBlocks(start, end-start),
		"erase blocks %d..%d", start, end-1)
}

// Write programs data at address and verifies it by reading it back
func (f *Flash) Write(address uint32, data []byte) error {
	if address%WordSize != 0 || len(data)%WordSize != 0 {
		return errors.Wrapf(ErrAlignment, "write of %d bytes at 0x%08X", len(data), address)
	}
	if address < f.base {
		return errors.Wrapf(ErrRegion, "write at 0x%08X", address)
	}
	off := int64(address - f.base)
	if off+int64(len(data)) > int64(f.size) {
		return errors.Wrapf(ErrSize, "write of %d bytes at 0x%08X, region ends at 0x%08X",
			len(data), address, uint64(f.base)+uint64(f.size))
	}

	if err := f.program(off, data); err != nil {
		return errors.Wrapf(err, "program %d bytes at 0x%08X", len(data), address)
	}

	readback := grow(&f.readback, len(data))
	if _, err := f.dev.ReadAt(readback, off); err != nil {
		return errors.Wrapf(err, "read back 0x%08X", address)
	}
	if !bytes.Equal(readback, data) {
		return errors.Wrapf(ErrReadback, "at 0x%08X", address)
	}
	return nil
}

// program writes whole device write blocks, merging data into the current
// contents when it does not cover a block exactly
func (f *Flash) program(off int64, data []byte) error {
	wbs := f.dev.WriteBlockSize()
	if off%wbs == 0 && int64(len(data))%wbs == 0 {
		return f.writeAll(data, off)
	}

	start := off - off%wbs
	end := off + int64(len(data))
	if rem := end % wbs; rem != 0 {
		end += wbs - rem
	}
	if end > f.dev.Size() {
		return errors.Wrapf(ErrSize, "block %d..%d beyond device", start, end)
	}

	block := grow(&f.merge, int(end-start))
	if _, err := f.dev.ReadAt(block, start); err != nil {
		return err
	}
	copy(block[off-start:], data)
	return f.writeAll(block, start)
}

func (f *Flash) writeAll(data []byte, off int64) error {
	n, err := f.dev.WriteAt(data, off)
	if err != nil {
		return err
	}
	if n != len(data) {
		return errors.Wrapf(ErrWrite, "%d/%d bytes", n, len(data))
	}
	return nil
}

func grow(buf *[]byte, n int) []byte {
	if cap(*buf) < n {
		*buf = make([]byte, n)
	}
	return (*buf)[:n]
}
