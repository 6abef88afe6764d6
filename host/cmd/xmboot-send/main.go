// Command xmboot-send uploads a firmware image to a device running the
// bootloader.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/golang/glog"

	"xmboot/config"
	"xmboot/host/sender"
	"xmboot/host/serial"
)

var (
	configPath = flag.String("config", "", "JSON deployment file")
	device     = flag.String("device", "/dev/ttyACM0", "Serial device path")
	baud       = flag.Int("baud", 115200, "Baud rate")
	blockSize  = flag.Int("block", 1024, "Block size, 128 or 1024")
	retries    = flag.Int("retries", 10, "Resends allowed per block")
	quiet      = flag.Bool("quiet", false, "Do not print progress")
)

func main() {
	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] firmware.bin\n", os.Args[0])
		flag.PrintDefaults()
	}
	flag.Parse()
	defer glog.Flush()

	if flag.NArg() != 1 {
		flag.Usage()
		os.Exit(2)
	}

	cfg, err := loadDeployment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	if err := upload(cfg, flag.Arg(0)); err != nil {
		fmt.Fprintf(os.Stderr, "\nError: %v\n", err)
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
		case "block":
			cfg.Sender.BlockSize = *blockSize
		case "retries":
			cfg.Sender.Retries = *retries
		}
	})
	return cfg, cfg.Validate()
}

func upload(cfg *config.Deployment, path string) error {
	firmware, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read firmware: %w", err)
	}
	if uint64(len(firmware)) > uint64(cfg.Image.RegionSize) {
		return fmt.Errorf("firmware is %d bytes, region holds %d", len(firmware), cfg.Image.RegionSize)
	}

	port, err := serial.Open(&serial.Config{
		Device: cfg.Serial.Device,
		Baud:   cfg.Serial.Baud,
	})
	if err != nil {
		return err
	}
	if err := port.Flush(); err != nil {
		glog.Warningf("failed to flush %s: %v", cfg.Serial.Device, err)
	}
	link := serial.NewTransport(port, cfg.Serial.ReadTimeout())
	defer link.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	txConfig := sender.Config{
		BlockSize:     cfg.Sender.BlockSize,
		Retries:       cfg.Sender.Retries,
		StartAttempts: cfg.Sender.StartAttempts,
	}
	if !*quiet {
		txConfig.Progress = func(sent, total int) {
			fmt.Printf("\rSent %d/%d bytes (%d%%)", sent, total, sent*100/total)
		}
	}

	tx, err := sender.New(link, txConfig)
	if err != nil {
		return err
	}

	fmt.Printf("Waiting for bootloader on %s...\n", cfg.Serial.Device)
	res, err := tx.Send(ctx, firmware)
	if err != nil {
		return err
	}

	fmt.Printf("\nUploaded %s: %d blocks, %d resends\n", path, res.Blocks, res.Resends)
	if res.Message != "" {
		fmt.Print(res.Message)
	}
	return nil
}
