package protocol

import (
	"fmt"
	"strings"
)

// Kind identifies what a header byte announces
type Kind uint8

const (
	KindUnknown Kind = iota
	KindData128
	KindData1024
	KindEOT
	KindCancel
)

// Classify maps a header byte to its frame kind
func Classify(header byte) Kind {
	switch header {
	case SOH:
		return KindData128
	case STX:
		return KindData1024
	case EOT:
		return KindEOT
	case CAN:
		return KindCancel
	default:
		return KindUnknown
	}
}

// IsData reports whether the kind carries a payload
func (k Kind) IsData() bool {
	return k == KindData128 || k == KindData1024
}

// PayloadSize returns the payload length announced by the header, or 0
func (k Kind) PayloadSize() int {
	switch k {
	case KindData128:
		return PayloadSize128
	case KindData1024:
		return PayloadSize1024
	default:
		return 0
	}
}

// BodySize returns the number of bytes that follow the header of a data frame:
// packet number, complement, payload and CRC.
func (k Kind) BodySize() int {
	if !k.IsData() {
		return 0
	}
	return MetadataSize + k.PayloadSize() + CRCSize
}

func (k Kind) String() string {
	switch k {
	case KindData128:
		return "data128"
	case KindData1024:
		return "data1024"
	case KindEOT:
		return "eot"
	case KindCancel:
		return "cancel"
	default:
		return "unknown"
	}
}

// Status is a set of independent failure reasons for one frame.
// Several flags may be raised at once; any flag means the frame is NAKed.
type Status uint8

const StatusOK Status = 0

const (
	StatusCRC       Status = 1 << iota // Payload CRC does not match the trailer
	StatusNumber                       // Wrong packet number or bad complement
	StatusTransport                    // Short read or timeout
	StatusStorage                      // Erase or program failed
)

// OK reports whether no flag is raised
func (s Status) OK() bool {
	return s == StatusOK
}

// Has reports whether every flag in mask is raised
func (s Status) Has(mask Status) bool {
	return s&mask == mask && mask != StatusOK
}

func (s Status) String() string {
	if s == StatusOK {
		return "ok"
	}
	var names []string
	if s.Has(StatusCRC) {
		names = append(names, "crc")
	}
	if s.Has(StatusNumber) {
		names = append(names, "number")
	}
	if s.Has(StatusTransport) {
		names = append(names, "transport")
	}
	if s.Has(StatusStorage) {
		names = append(names, "storage")
	}
	if rest := s &^ (StatusCRC | StatusNumber | StatusTransport | StatusStorage); rest != 0 {
		names = append(names, fmt.Sprintf("0x%02x", uint8(rest)))
	}
	return strings.Join(names, "|")
}

// Frame is one data packet as received, before it is accepted.
// Payload aliases the receive buffer it was parsed from.
type Frame struct {
	Kind       Kind
	Number     uint8
	Complement uint8
	Payload    []byte
	CRC        uint16
}

// ComplementValid reports whether Number + Complement is exactly 255.
// The sum is computed without wraparound.
func ComplementValid(number, complement uint8) bool {
	return int(number)+int(complement) == NumberSum
}

// ParseFrame interprets the body of a data frame (everything after the header)
// and validates it against the expected packet number.
// readErr is the error reported by the transport while reading body; any
// non-nil value, or a body of the wrong length, raises StatusTransport.
func ParseFrame(kind Kind, body []byte, expected uint8, readErr error) (Frame, Status) {
	frame := Frame{Kind: kind}
	size := kind.BodySize()
	if size == 0 {
		return frame, StatusTransport
	}

	status := StatusOK
	if readErr != nil || len(body) < size {
		status |= StatusTransport
	}
	if len(body) < size {
		// Nothing trustworthy to look at
		return frame, status | StatusNumber | StatusCRC
	}
	body = body[:size]

	frame.Number = body[PositionNumber]
	frame.Complement = body[PositionComplement]
	frame.Payload = body[PositionPayload : size-CRCSize]
	frame.CRC = JoinCRC(body[size-CRCSize], body[size-1])

	if frame.Number != expected || !ComplementValid(frame.Number, frame.Complement) {
		status |= StatusNumber
	}
	if CRC16(frame.Payload) != frame.CRC {
		status |= StatusCRC
	}
	return frame, status
}

// EncodeFrame appends a complete data frame carrying payload to dst.
// The payload must be exactly 128 or 1024 bytes; the header is chosen from its length.
func EncodeFrame(dst []byte, number uint8, payload []byte) ([]byte, error) {
	var header byte
	switch len(payload) {
	case PayloadSize128:
		header = SOH
	case PayloadSize1024:
		header = STX
	default:
		return dst, fmt.Errorf("payload must be %d or %d bytes, got %d",
			PayloadSize128, PayloadSize1024, len(payload))
	}

	hi, lo := SplitCRC(CRC16(payload))
	dst = append(dst, header, number, NumberSum-number)
	dst = append(dst, payload...)
	return append(dst, hi, lo), nil
}
