//go:build rp2040 && spiflash

package main

import (
	"machine"

	"tinygo.org/x/drivers/flash"

	"xmboot/storage"
)

// External SPI NOR on SPI1 holds the incoming image. The running
// application is only replaced once a complete image has been staged.
const (
	spiflashSCK = machine.GPIO10
	spiflashSDO = machine.GPIO11
	spiflashSDI = machine.GPIO12
	spiflashCS  = machine.GPIO13

	// stagingBase is the address the staged image is received at
	stagingBase = 0x00000000
)

func initImageDevice() (storage.BlockDevice, error) {
	dev := flash.NewSPI(machine.SPI1, spiflashSDO, spiflashSDI, spiflashSCK, spiflashCS)
	err := dev.Configure(&flash.DeviceConfig{
		Identifier: flash.DefaultDeviceIdentifier,
	})
	if err != nil {
		return nil, err
	}
	return dev, nil
}

func imageBase() uint32 {
	return stagingBase
}

// installImage copies the staged image into the application region
func installImage(staged storage.BlockDevice, size uint32) error {
	app, err := storage.NewFlash(machine.Flash, appBase(), uint32(machine.Flash.Size()))
	if err != nil {
		return err
	}
	return storage.Install(app, staged, size)
}
