package bootloader

import (
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"xmboot/protocol"
)

func frameFor(t *testing.T, number uint8, data []byte) protocol.Frame {
	t.Helper()
	raw, err := protocol.EncodeFrame(nil, number, data)
	if err != nil {
		t.Fatalf("EncodeFrame failed: %v", err)
	}
	frame, status := protocol.ParseFrame(protocol.Classify(raw[0]), raw[1:], number, nil)
	if !status.OK() {
		t.Fatalf("fixture frame invalid: %v", status)
	}
	return frame
}

func TestAdmitAdvancesCounters(t *testing.T) {
	g := NewWithT(t)
	st := &recordingStorage{}
	seq := NewWriteSequencer(st, nil)
	s := NewSession(base)

	status := seq.Admit(&s, frameFor(t, 1, payload(128, 1)), protocol.StatusOK)
	g.Expect(status.OK()).To(BeTrue())
	g.Expect(s.ExpectedPacket).To(Equal(uint8(2)))
	g.Expect(s.WriteCursor).To(Equal(uint32(base + 128)))
	g.Expect(s.Erased).To(BeTrue())

	status = seq.Admit(&s, frameFor(t, 2, payload(1024, 2)), protocol.StatusOK)
	g.Expect(status.OK()).To(BeTrue())
	g.Expect(s.WriteCursor).To(Equal(uint32(base + 128 + 1024)))
	g.Expect(st.erases).To(HaveLen(1))
}

func TestAdmitRejectedFrameErasesButDoesNotWrite(t *testing.T) {
	g := NewWithT(t)
	st := &recordingStorage{}
	seq := NewWriteSequencer(st, nil)
	s := NewSession(base)

	status := seq.Admit(&s, frameFor(t, 1, payload(128, 1)), protocol.StatusCRC)
	g.Expect(status).To(Equal(protocol.StatusCRC))
	g.Expect(st.erases).To(Equal([]uint32{base}))
	g.Expect(st.writes).To(BeEmpty())
	g.Expect(s.ExpectedPacket).To(Equal(uint8(1)))
	g.Expect(s.WriteCursor).To(Equal(uint32(base)))
	g.Expect(s.Erased).To(BeTrue())
}

func TestAdmitAggregatesStorageFlags(t *testing.T) {
	g := NewWithT(t)
	st := &recordingStorage{eraseErr: errors.New("erase failed")}
	seq := NewWriteSequencer(st, nil)
	s := NewSession(base)

	status := seq.Admit(&s, frameFor(t, 1, payload(128, 1)), protocol.StatusNumber)
	g.Expect(status.Has(protocol.StatusNumber | protocol.StatusStorage)).To(BeTrue())
	g.Expect(s.EraseAttempted).To(BeTrue())
	g.Expect(s.Erased).To(BeFalse())

	// Valid frame, but the region was never erased
	status = seq.Admit(&s, frameFor(t, 1, payload(128, 1)), protocol.StatusOK)
	g.Expect(status).To(Equal(protocol.StatusStorage))
	g.Expect(st.erases).To(HaveLen(1))
	g.Expect(st.writes).To(BeEmpty())
}

func TestAdmitWriteFailure(t *testing.T) {
	g := NewWithT(t)
	st := &recordingStorage{writeErr: func(uint32) error { return errors.New("program failed") }}
	seq := NewWriteSequencer(st, nil)
	s := NewSession(base)

	status := seq.Admit(&s, frameFor(t, 1, payload(128, 1)), protocol.StatusOK)
	g.Expect(status).To(Equal(protocol.StatusStorage))
	g.Expect(s.ExpectedPacket).To(Equal(uint8(1)))
	g.Expect(s.WriteCursor).To(Equal(uint32(base)))
}

func TestAdmitPacketNumberWraps(t *testing.T) {
	g := NewWithT(t)
	seq := NewWriteSequencer(&recordingStorage{}, nil)
	s := NewSession(base)
	s.ExpectedPacket = 255

	status := seq.Admit(&s, frameFor(t, 255, payload(128, 1)), protocol.StatusOK)
	g.Expect(status.OK()).To(BeTrue())
	g.Expect(s.ExpectedPacket).To(Equal(uint8(0)))
}

func TestNewSession(t *testing.T) {
	g := NewWithT(t)
	s := NewSession(0x10000000)

	g.Expect(s).To(Equal(Session{Base: 0x10000000, ExpectedPacket: 1, WriteCursor: 0x10000000}))
	g.Expect(s.BytesWritten()).To(BeZero())
}
