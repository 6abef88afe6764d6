package bootloader

// Transport is the byte channel to the sender
type Transport interface {
	// Receive blocks until buf is full or the transport timeout expires.
	// A timeout or short read is reported as an error.
	Receive(buf []byte) error

	// TransmitByte sends a single byte. Failures are ignored by the receiver.
	TransmitByte(b byte) error

	// TransmitString sends informational text. Failures are ignored by the receiver.
	TransmitString(s string) error
}

// Storage is the non-volatile program memory holding the image.
// Implementations verify what they program and report mismatches from Write.
type Storage interface {
	// Erase erases the whole image region starting at address
	Erase(address uint32) error

	// Write programs data at a word-aligned address
	Write(address uint32, data []byte) error
}

// Handoff transfers control to the newly written application.
// On hardware JumpToApplication never returns.
type Handoff interface {
	JumpToApplication()
}

// HandoffFunc adapts a function to the Handoff interface
type HandoffFunc func()

func (f HandoffFunc) JumpToApplication() {
	f()
}
