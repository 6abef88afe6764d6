package bootloader

// Session is the live state of one transfer. It is created at the start of
// Run, changed only by the receiver and its write sequencer, and discarded
// when the session ends.
type Session struct {
	// Base is the start of the image region
	Base uint32

	// ExpectedPacket is the number the next frame must carry (wraps at 256)
	ExpectedPacket uint8

	// WriteCursor is the next absolute address to program
	WriteCursor uint32

	// Erased is set once the region erase succeeded
	Erased bool

	// EraseAttempted is set once the region erase was requested, successful or not
	EraseAttempted bool

	// Errors counts failed attempts over the whole session; it is never reset
	Errors int

	// FirstPacketReceived is set after the first accepted frame
	FirstPacketReceived bool
}

// NewSession returns the initial state of a session writing at base
func NewSession(base uint32) Session {
	return Session{
		Base:           base,
		ExpectedPacket: 1,
		WriteCursor:    base,
	}
}

// BytesWritten returns how much of the image has been accepted
func (s *Session) BytesWritten() uint32 {
	return s.WriteCursor - s.Base
}
