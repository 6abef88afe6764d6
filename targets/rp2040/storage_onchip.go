//go:build rp2040 && !spiflash

package main

import (
	"machine"

	"xmboot/storage"
)

// The image is received straight into the application region of the
// on-chip flash
func initImageDevice() (storage.BlockDevice, error) {
	return machine.Flash, nil
}

func imageBase() uint32 {
	return appBase()
}

// installImage has nothing to do: the image is already in place
func installImage(storage.BlockDevice, uint32) error {
	return nil
}
