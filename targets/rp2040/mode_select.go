//go:build rp2040

package main

import (
	"encoding/binary"
	"machine"
	"time"

	"xmboot/storage"
)

// updateRequested reports whether the update pin is held low
func updateRequested() bool {
	updatePin.Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	time.Sleep(time.Millisecond)
	return !updatePin.Get()
}

// applicationValid checks that the image starts with a plausible vector
// table: an initial stack pointer in SRAM
func applicationValid(dev storage.BlockDevice) bool {
	var vectors [8]byte
	if _, err := dev.ReadAt(vectors[:], 0); err != nil {
		return false
	}
	sp := binary.LittleEndian.Uint32(vectors[0:4])
	reset := binary.LittleEndian.Uint32(vectors[4:8])
	if sp < sramStart || sp > sramEnd {
		return false
	}
	return reset != 0xFFFFFFFF && reset&1 == 1
}
