//go:build rp2040

package main

import (
	"device/arm"
	"machine"
	"runtime/volatile"
	"unsafe"
)

// RP2040 SRAM bounds for the initial stack pointer check
const (
	sramStart = 0x20000000
	sramEnd   = 0x20042000
)

// appBase is the address the application is linked at: the first flash
// block after the bootloader, where machine.Flash offsets start
func appBase() uint32 {
	return uint32(machine.FlashDataStart())
}

// jumpToApplication starts the image whose vector table is at base.
// It does not return.
func jumpToApplication(base uint32) {
	sp := volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(base))))
	reset := volatile.LoadUint32((*uint32)(unsafe.Pointer(uintptr(base + 4))))

	arm.DisableInterrupts()

	// Stop SysTick and clear pending interrupts so the application starts clean
	arm.SYST.SYST_CSR.Set(0)
	arm.NVIC.ICER[0].Set(0xFFFFFFFF)
	arm.NVIC.ICPR[0].Set(0xFFFFFFFF)

	arm.SCB.VTOR.Set(base)

	arm.AsmFull(`
		msr msp, {sp}
		bx {reset}
	`, map[string]interface{}{
		"sp":    sp,
		"reset": reset,
	})

	for {
	}
}
