// Package sender uploads a firmware image to the bootloader over Xmodem-CRC.
package sender

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang/glog"

	"xmboot/protocol"
)

var (
	// ErrNoReceiver is returned when the receiver never asked for CRC mode
	ErrNoReceiver = errors.New("receiver did not solicit a transfer")

	// ErrCancelled is returned when the receiver sent CAN
	ErrCancelled = errors.New("transfer cancelled by receiver")

	// ErrRetries is returned when a block was refused too many times
	ErrRetries = errors.New("retry limit reached")
)

// Link is the byte channel to the receiver. Receive fills buf or fails
// after the link's timeout.
type Link interface {
	Receive(buf []byte) error
	Write(p []byte) (int, error)
	TransmitByte(b byte) error
}

// discarder is implemented by links that can drop stale input
type discarder interface {
	Discard() int
}

// Config controls an upload
type Config struct {
	// BlockSize is 128 or 1024; a tail of at most 128 bytes always goes
	// in a 128-byte block
	BlockSize int

	// Retries is how many times one block is resent after NAK or timeout
	Retries int

	// StartAttempts is how many receive timeouts to wait for 'C'
	StartAttempts int

	// Progress is called after every acknowledged block
	Progress func(sent, total int)
}

// DefaultConfig returns 1K blocks and ten retries
func DefaultConfig() Config {
	return Config{
		BlockSize:     protocol.PayloadSize1024,
		Retries:       10,
		StartAttempts: 60,
	}
}

// Result summarizes a finished upload
type Result struct {
	Blocks  int
	Resends int
	// Message is the text the receiver printed after the final ACK
	Message string
}

// Sender drives one upload over a Link
type Sender struct {
	link   Link
	config Config

	frame []byte
	block [protocol.PayloadSize1024]byte
	reply [1]byte
}

// New creates a Sender. Zero config fields take their defaults.
func New(link Link, cfg Config) (*Sender, error) {
	if link == nil {
		return nil, fmt.Errorf("link cannot be nil")
	}
	def := DefaultConfig()
	if cfg.BlockSize == 0 {
		cfg.BlockSize = def.BlockSize
	}
	if cfg.BlockSize != protocol.PayloadSize128 && cfg.BlockSize != protocol.PayloadSize1024 {
		return nil, fmt.Errorf("block size %d: must be %d or %d",
			cfg.BlockSize, protocol.PayloadSize128, protocol.PayloadSize1024)
	}
	if cfg.Retries == 0 {
		cfg.Retries = def.Retries
	}
	if cfg.StartAttempts == 0 {
		cfg.StartAttempts = def.StartAttempts
	}

	return &Sender{
		link:   link,
		config: cfg,
		frame:  make([]byte, 0, 1+protocol.FrameBodyMax),
	}, nil
}

// Send uploads image and finishes the transfer with EOT
func (s *Sender) Send(ctx context.Context, image []byte) (Result, error) {
	var res Result

	if err := s.waitStart(ctx); err != nil {
		return res, err
	}

	number := uint8(1)
	for off := 0; off < len(image); {
		if err := ctx.Err(); err != nil {
			s.cancel()
			return res, err
		}

		size := s.config.BlockSize
		if len(image)-off <= protocol.PayloadSize128 {
			size = protocol.PayloadSize128
		}
		n := copy(s.block[:size], image[off:])
		for i := n; i < size; i++ {
			s.block[i] = protocol.SUB
		}

		frame, err := protocol.EncodeFrame(s.frame[:0], number, s.block[:size])
		if err != nil {
			return res, err
		}

		resends, err := s.transmit(frame, number)
		res.Resends += resends
		if err != nil {
			return res, fmt.Errorf("block %d at offset %d: %w", res.Blocks+1, off, err)
		}

		res.Blocks++
		off += n
		number++
		if s.config.Progress != nil {
			s.config.Progress(off, len(image))
		}
	}

	if _, err := s.transmit([]byte{protocol.EOT}, 0); err != nil {
		return res, fmt.Errorf("end of transfer: %w", err)
	}
	res.Message = s.drain()

	glog.V(1).Infof("upload complete: %d blocks, %d resends", res.Blocks, res.Resends)
	return res, nil
}

// waitStart waits for the receiver's 'C'
func (s *Sender) waitStart(ctx context.Context) error {
	for attempt := 0; attempt < s.config.StartAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := s.link.Receive(s.reply[:]); err != nil {
			glog.V(2).Infof("waiting for receiver (%d/%d)", attempt+1, s.config.StartAttempts)
			continue
		}

		switch s.reply[0] {
		case protocol.C:
			// Further solicitations queued while we waited are stale
			if d, ok := s.link.(discarder); ok {
				d.Discard()
			}
			glog.V(1).Info("receiver ready")
			return nil
		case protocol.CAN:
			return ErrCancelled
		default:
			glog.V(2).Infof("ignoring 0x%02X while waiting for receiver", s.reply[0])
		}
	}
	return ErrNoReceiver
}

// transmit writes data until it is acknowledged and returns how often it
// had to be resent
func (s *Sender) transmit(data []byte, number uint8) (int, error) {
	for attempt := 0; attempt <= s.config.Retries; attempt++ {
		if _, err := s.link.Write(data); err != nil {
			return attempt, fmt.Errorf("write: %w", err)
		}

		reply, err := s.awaitReply()
		switch {
		case err != nil:
			glog.V(2).Infof("packet %d: no reply (%v)", number, err)
		case reply == protocol.ACK:
			return attempt, nil
		case reply == protocol.CAN:
			return attempt, ErrCancelled
		default:
			glog.V(1).Infof("packet %d refused, resending", number)
		}
	}
	return s.config.Retries, ErrRetries
}

// awaitReply reads until ACK, NAK or CAN arrives. Stray bytes are skipped;
// a timeout ends the wait.
func (s *Sender) awaitReply() (byte, error) {
	for {
		if err := s.link.Receive(s.reply[:]); err != nil {
			return 0, err
		}
		switch b := s.reply[0]; b {
		case protocol.ACK, protocol.NAK, protocol.CAN:
			return b, nil
		}
	}
}

// drain collects the text the receiver prints after the transfer
func (s *Sender) drain() string {
	var text []byte
	for s.link.Receive(s.reply[:]) == nil {
		text = append(text, s.reply[0])
	}
	return string(text)
}

func (s *Sender) cancel() {
	_ = s.link.TransmitByte(protocol.CAN)
	_ = s.link.TransmitByte(protocol.CAN)
}
