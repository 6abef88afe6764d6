// Command xmboot-recv runs the bootloader receive session on a host serial
// port and programs the image into a file.
package main

import (
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/golang/glog"

	"xmboot/bootloader"
	"xmboot/config"
	"xmboot/host/serial"
	"xmboot/storage"
)

var (
	configPath = flag.String("config", "", "JSON deployment file")
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 115200, "Baud rate")
	imagePath  = flag.String("image", "image.bin", "File backing the image region")
	base       = flag.Uint64("base", 0x08008000, "Absolute address of the image region")
	regionSize = flag.Uint64("size", 480*1024, "Image region size in bytes")
	maxErrors  = flag.Int("max-errors", 1, "Error budget for a session")
	once       = flag.Bool("once", false, "Exit after an aborted session instead of waiting for another")
)

func main() {
	flag.Parse()
	defer glog.Flush()

	cfg, err := loadDeployment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := run(cfg); err != nil {
		glog.Errorf("%v", err)
		glog.Flush()
		os.Exit(1)
	}
}

// loadDeployment reads -config if given; explicit flags override it
func loadDeployment() (*config.Deployment, error) {
	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.LoadFile(*configPath)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	flag.Visit(func(f *flag.Flag) {
		switch f.Name {
		case "device":
			cfg.Serial.Device = *device
		case "baud":
			cfg.Serial.Baud = *baud
		case "image":
			cfg.Image.Path = *imagePath
		case "base":
			cfg.Image.BaseAddress = uint32(*base)
		case "size":
			cfg.Image.RegionSize = uint32(*regionSize)
		case "max-errors":
			cfg.Receiver.MaxErrors = *maxErrors
		}
	})
	return cfg, cfg.Validate()
}

func run(cfg *config.Deployment) error {
	dev, err := storage.OpenFile(cfg.Image.Path, int64(cfg.Image.RegionSize), int64(cfg.Image.EraseBlockSize))
	if err != nil {
		return err
	}
	defer dev.Close()

	flash, err := storage.NewFlash(dev, cfg.Image.BaseAddress, cfg.Image.RegionSize)
	if err != nil {
		return fmt.Errorf("failed to map image region: %w", err)
	}

	port, err := serial.Open(&serial.Config{
		Device: cfg.Serial.Device,
		Baud:   cfg.Serial.Baud,
	})
	if err != nil {
		return err
	}
	link := serial.NewTransport(port, cfg.Serial.ReadTimeout())
	defer link.Close()

	rxConfig := bootloader.DefaultConfig()
	rxConfig.BaseAddress = cfg.Image.BaseAddress
	rxConfig.MaxErrors = cfg.Receiver.MaxErrors
	rxConfig.Logger = newLogger()
	rxConfig.Progress = func(p bootloader.Progress) {
		glog.V(1).Infof("packet %d: %d bytes at 0x%08X (%d total)", p.Packet, p.Size, p.Address, p.BytesWritten)
	}

	handoff := bootloader.HandoffFunc(func() {
		if err := dev.Sync(); err != nil {
			glog.Errorf("failed to sync image: %v", err)
		}
		glog.Infof("image complete, application entry at 0x%08X", cfg.Image.BaseAddress)
	})

	rx := bootloader.NewReceiver(link, flash, handoff, rxConfig)
	glog.Infof("waiting for upload on %s (%d baud) into %s", cfg.Serial.Device, cfg.Serial.Baud, cfg.Image.Path)

	for {
		err := rx.Run()
		if err == nil {
			return nil
		}

		var abort *bootloader.AbortError
		if !errors.As(err, &abort) || *once {
			return err
		}
		glog.Warningf("%v; waiting for a new upload", err)
	}
}

// newLogger sends the session log to stderr at a level following glog -v
func newLogger() *slog.Logger {
	level := slogLevel(bool(glog.V(1)), bool(glog.V(2)))
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// slogLevel maps glog verbosity onto the session log level
func slogLevel(v1, v2 bool) slog.Level {
	if v2 {
		return slog.LevelDebug
	} else if v1 {
		return slog.LevelInfo
	}
	return slog.LevelWarn
}
