package storage

import (
	"bytes"
	"fmt"
	"os"
)

// File is a BlockDevice backed by an image file on the host.
// It lets the receiver run on a PC and leaves the result on disk.
type File struct {
	f          *os.File
	size       int64
	eraseBlock int64
}

// OpenFile opens or creates path as a device of size bytes
func OpenFile(path string, size, eraseBlockSize int64) (*File, error) {
	if size <= 0 || eraseBlockSize <= 0 || size%eraseBlockSize != 0 {
		return nil, fmt.Errorf("size %d must be a positive multiple of the erase block %d", size, eraseBlockSize)
	}

	f, err := os.OpenFile(path, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file %s: %w", path, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to stat image file %s: %w", path, err)
	}
	if info.Size() != size {
		if err := f.Truncate(size); err != nil {
			f.Close()
			return nil, fmt.Errorf("failed to size image file %s: %w", path, err)
		}
	}

	return &File{
		f:          f,
		size:       size,
		eraseBlock: eraseBlockSize,
	}, nil
}

func (d *File) ReadAt(p []byte, off int64) (int, error) {
	return d.f.ReadAt(p, off)
}

func (d *File) WriteAt(p []byte, off int64) (int, error) {
	if off < 0 || off+int64(len(p)) > d.size {
		return 0, fmt.Errorf("write %d bytes at %d: out of range", len(p), off)
	}
	return d.f.WriteAt(p, off)
}

func (d *File) Size() int64 {
	return d.size
}

func (d *File) WriteBlockSize() int64 {
	return WordSize
}

func (d *File) EraseBlockSize() int64 {
	return d.eraseBlock
}

func (d *File) EraseBlocks(start, length int64) error {
	if start < 0 || length < 0 || (start+length)*d.eraseBlock > d.size {
		return fmt.Errorf("erase blocks %d+%d: out of range", start, length)
	}
	erased := bytes.Repeat([]byte{ErasedByte}, int(d.eraseBlock))
	for b := start; b < start+length; b++ {
		if _, err := d.f.WriteAt(erased, b*d.eraseBlock); err != nil {
			return err
		}
	}
	return nil
}

// Sync flushes the image to disk
func (d *File) Sync() error {
	return d.f.Sync()
}

// Close closes the image file
func (d *File) Close() error {
	return d.f.Close()
}
