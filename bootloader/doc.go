// Package bootloader receives a firmware image over Xmodem-CRC and commits it to
// program storage.
//
// # Overview
//
// A Receiver runs one session at a time:
//   - solicits CRC mode by sending 'C' until the sender starts
//   - validates every data frame (packet number, complement, CRC-16)
//   - erases the image region once, on the first frame it processes
//   - programs each accepted payload at a monotonically advancing address
//   - answers ACK/NAK, and cancels once the error budget is spent
//   - hands control to the new image after end-of-transmission
//
// # Collaborators
//
// The package does not touch hardware. Callers provide:
//   - Transport: blocking receive with a timeout, best-effort transmit
//   - Storage: full-region erase and word-aligned programming with readback
//   - Handoff: transfer of control to the application (does not return on hardware)
//
// # Usage
//
//	cfg := bootloader.DefaultConfig()
//	cfg.BaseAddress = 0x08008000
//	cfg.Logger = logger
//
//	rx := bootloader.NewReceiver(uart, flash, bootloader.HandoffFunc(jump), cfg)
//	if err := rx.Run(); err != nil {
//	    var abort *bootloader.AbortError
//	    if errors.As(err, &abort) {
//	        // retry from scratch, or fall back to a recovery mode
//	    }
//	}
package bootloader
