//go:build rp2040

package main

import (
	"log/slog"
	"machine"
	"time"

	"xmboot/bootloader"
	"xmboot/storage"
)

const (
	// Xmodem link on UART0
	linkBaud = 115200
	linkTX   = machine.GPIO0
	linkRX   = machine.GPIO1

	// receiveTimeout matches the host tools' serial timeout
	receiveTimeout = time.Second

	// Holding updatePin low at reset forces update mode
	updatePin = machine.GPIO15

	// maxErrors is the per-session error budget
	maxErrors = 3
)

func main() {
	// Clear any watchdog left over from the application
	err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0})
	if err != nil {
		return
	}

	logger := slog.New(slog.NewTextHandler(machine.Serial, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))

	led := initStatusLED()

	if !updateRequested() && applicationValid(machine.Flash) {
		logger.Info("starting application", slog.String("base", hex32(appBase())))
		jumpToApplication(appBase())
	}

	dev, err := initImageDevice()
	if err != nil {
		logger.Error("image device", slog.String("err", err.Error()))
		led.Set(statusFailed)
		halt()
	}

	base := imageBase()
	flash, err := storage.NewFlash(dev, base, uint32(dev.Size()))
	if err != nil {
		logger.Error("image region", slog.String("err", err.Error()))
		led.Set(statusFailed)
		halt()
	}

	link, err := newUARTTransport(machine.UART0, linkTX, linkRX, linkBaud, receiveTimeout)
	if err != nil {
		logger.Error("uart", slog.String("err", err.Error()))
		led.Set(statusFailed)
		halt()
	}

	cfg := bootloader.DefaultConfig()
	cfg.BaseAddress = base
	cfg.MaxErrors = maxErrors
	cfg.Logger = logger
	cfg.Progress = func(p bootloader.Progress) {
		led.Toggle(statusReceiving)
	}

	var rx *bootloader.Receiver
	handoff := bootloader.HandoffFunc(func() {
		if err := installImage(dev, rx.Session().BytesWritten()); err != nil {
			logger.Error("install", slog.String("err", err.Error()))
			led.Set(statusFailed)
			return
		}
		if !applicationValid(machine.Flash) {
			logger.Error("installed image has no valid vector table")
			led.Set(statusFailed)
			return
		}
		led.Set(statusDone)
		// Let the completion text leave the UART
		time.Sleep(20 * time.Millisecond)
		jumpToApplication(appBase())
	})
	rx = bootloader.NewReceiver(link, flash, handoff, cfg)

	// Each aborted session is followed by a fresh one
	for {
		led.Set(statusWaiting)
		if err := rx.Run(); err != nil {
			logger.Warn("update failed",
				slog.String("err", err.Error()),
				slog.Uint64("uart_overflows", uint64(link.Overflows())),
			)
			led.Set(statusFailed)
			link.Discard()
			time.Sleep(time.Second)
		}
	}
}

func halt() {
	for {
		time.Sleep(time.Second)
	}
}

func hex32(v uint32) string {
	const digits = "0123456789ABCDEF"
	buf := [10]byte{'0', 'x'}
	for i := 9; i >= 2; i-- {
		buf[i] = digits[v&0xF]
		v >>= 4
	}
	return string(buf[:])
}
