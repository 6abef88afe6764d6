// Package protocol implements the Xmodem-CRC wire protocol used by the bootloader
package protocol

// Version represents the xmboot firmware version
const Version = "0.1.0"

// Control bytes defined by the protocol
const (
	SOH byte = 0x01 // Start of header, 128 byte payload
	STX byte = 0x02 // Start of header, 1024 byte payload
	EOT byte = 0x04 // End of transmission
	ACK byte = 0x06 // Acknowledge
	NAK byte = 0x15 // Not acknowledge
	CAN byte = 0x18 // Cancel
	SUB byte = 0x1A // Padding for the last block (CP/M EOF)
	C   byte = 0x43 // ASCII 'C', asks the sender to use CRC-16
)

// Frame layout constants
const (
	PayloadSize128  = 128
	PayloadSize1024 = 1024
	CRCSize         = 2

	// Positions relative to the byte following the header
	PositionNumber     = 0
	PositionComplement = 1
	PositionPayload    = 2

	// MetadataSize covers the packet number and its complement
	MetadataSize = PositionPayload

	// FrameBodyMax is the largest frame body (everything after the header)
	FrameBodyMax = MetadataSize + PayloadSize1024 + CRCSize
)

// NumberSum is the required sum of a packet number and its complement
const NumberSum = 255
