package bootloader

import "log/slog"

// DefaultMaxErrors is the number of failed attempts tolerated before a session cancels
const DefaultMaxErrors = 1

// DefaultBaseAddress is the application start address of the reference STM32F1 layout
const DefaultBaseAddress uint32 = 0x08008000

// DefaultCompletionText is sent after the final ACK, before the handoff
var DefaultCompletionText = []string{
	"\n\rFirmware updated!\n\r",
	"Jumping to user application...\n\r",
}

// Config holds the receiver configuration.
type Config struct {
	// BaseAddress is the fixed start of the image region
	BaseAddress uint32

	// MaxErrors is the error budget for the whole session
	MaxErrors int

	// CompletionText is transmitted line by line after end-of-transmission
	CompletionText []string

	// Logger is used for session diagnostics (optional)
	Logger *slog.Logger

	// Progress is called after every accepted frame (optional)
	Progress ProgressCallback
}

// DefaultConfig returns the default receiver configuration
func DefaultConfig() Config {
	return Config{
		BaseAddress:    DefaultBaseAddress,
		MaxErrors:      DefaultMaxErrors,
		CompletionText: DefaultCompletionText,
	}
}

// Progress describes the image after an accepted frame.
type Progress struct {
	// Packet is the number of the frame just accepted
	Packet uint8

	// Address is where its payload was programmed
	Address uint32

	// Size is the payload length, 128 or 1024
	Size int

	// BytesWritten counts all bytes programmed this session
	BytesWritten uint32
}

// ProgressCallback must return quickly; it runs inside the receive loop.
type ProgressCallback func(Progress)
