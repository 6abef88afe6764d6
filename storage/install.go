package storage

import (
	"github.com/pkg/errors"
)

// installChunk is the copy unit, one RP2040 flash page
const installChunk = 256

// Install copies the first size bytes of src into the region of dst,
// erasing the region first. Every chunk is verified by Flash.Write.
func Install(dst *Flash, src BlockDevice, size uint32) error {
	if size == 0 {
		return errors.Wrap(ErrSize, "empty image")
	}
	if size%WordSize != 0 {
		return errors.Wrapf(ErrAlignment, "image of %d bytes", size)
	}
	if size > dst.Size() || int64(size) > src.Size() {
		return errors.Wrapf(ErrSize, "image of %d bytes, region holds %d", size, dst.Size())
	}

	if err := dst.Erase(dst.Base()); err != nil {
		return errors.Wrap(err, "erase destination")
	}

	var chunk [installChunk]byte
	for off := uint32(0); off < size; {
		n := min(uint32(installChunk), size-off)
		if _, err := src.ReadAt(chunk[:n], int64(off)); err != nil {
			return errors.Wrapf(err, "read staged image at %d", off)
		}
		if err := dst.Write(dst.Base()+off, chunk[:n]); err != nil {
			return err
		}
		off += n
	}
	return nil
}
