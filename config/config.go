// Package config loads the JSON deployment file shared by the host tools.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// Deployment describes one target: its serial link, image region and
// protocol limits
type Deployment struct {
	Serial   SerialConfig `json:"serial"`
	Image    ImageConfig  `json:"image"`
	Receiver Receiver     `json:"receiver"`
	Sender   Sender       `json:"sender"`
}

// SerialConfig names the serial port and its settings
type SerialConfig struct {
	Device        string `json:"device"`
	Baud          int    `json:"baud"`
	ReadTimeoutMS int    `json:"read_timeout_ms"`
}

// ImageConfig describes where the application image lives
type ImageConfig struct {
	BaseAddress    uint32 `json:"base_address"`
	RegionSize     uint32 `json:"region_size"`
	EraseBlockSize uint32 `json:"erase_block_size"`
	// Path is the file backing the region on the host receiver
	Path string `json:"path"`
}

// Receiver holds the receive session limits
type Receiver struct {
	MaxErrors int `json:"max_errors"`
}

// Sender holds the upload settings
type Sender struct {
	BlockSize int `json:"block_size"`
	Retries   int `json:"retries"`
	// StartAttempts bounds how many receive timeouts to wait for 'C'
	StartAttempts int `json:"start_attempts"`
}

// ReadTimeout returns the serial read timeout as a duration
func (c SerialConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutMS) * time.Millisecond
}

// LoadConfig parses a JSON deployment and fills in defaults
func LoadConfig(jsonData []byte) (*Deployment, error) {
	var config Deployment

	err := json.Unmarshal(jsonData, &config)
	if err != nil {
		return nil, err
	}

	applyDefaults(&config)

	if err := config.Validate(); err != nil {
		return nil, err
	}
	return &config, nil
}

// LoadFile reads and parses a deployment file
func LoadFile(path string) (*Deployment, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	config, err := LoadConfig(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return config, nil
}

// Default returns a deployment with every default applied
func Default() *Deployment {
	var config Deployment
	applyDefaults(&config)
	return &config
}

// applyDefaults fills in missing configuration values with sensible defaults
func applyDefaults(config *Deployment) {
	// Serial link
	if config.Serial.Device == "" {
		config.Serial.Device = "/dev/ttyACM0"
	}
	if config.Serial.Baud == 0 {
		config.Serial.Baud = 115200
	}
	if config.Serial.ReadTimeoutMS == 0 {
		config.Serial.ReadTimeoutMS = 1000
	}

	// Image region
	if config.Image.BaseAddress == 0 {
		config.Image.BaseAddress = 0x08008000
	}
	if config.Image.RegionSize == 0 {
		config.Image.RegionSize = 480 * 1024
	}
	if config.Image.EraseBlockSize == 0 {
		config.Image.EraseBlockSize = 4096
	}
	if config.Image.Path == "" {
		config.Image.Path = "image.bin"
	}

	if config.Receiver.MaxErrors == 0 {
		config.Receiver.MaxErrors = 1
	}

	if config.Sender.BlockSize == 0 {
		config.Sender.BlockSize = 1024
	}
	if config.Sender.Retries == 0 {
		config.Sender.Retries = 10
	}
	if config.Sender.StartAttempts == 0 {
		config.Sender.StartAttempts = 60
	}
}

// Validate checks values that have no usable default
func (d *Deployment) Validate() error {
	if d.Sender.BlockSize != 128 && d.Sender.BlockSize != 1024 {
		return fmt.Errorf("sender block size %d: must be 128 or 1024", d.Sender.BlockSize)
	}
	if d.Image.EraseBlockSize == 0 || d.Image.RegionSize == 0 {
		return fmt.Errorf("image region and erase block sizes must be set")
	}
	if d.Image.RegionSize%d.Image.EraseBlockSize != 0 {
		return fmt.Errorf("region size %d is not a multiple of the erase block %d",
			d.Image.RegionSize, d.Image.EraseBlockSize)
	}
	if d.Receiver.MaxErrors < 0 || d.Sender.Retries < 0 {
		return fmt.Errorf("negative limit in config")
	}
	return nil
}
