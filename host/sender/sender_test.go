package sender

import (
	"context"
	"errors"
	"testing"

	. "github.com/onsi/gomega"

	"xmboot/protocol"
)

var errTimeout = errors.New("timeout")

// scriptedLink answers reads from a fixed list of reply bytes and records
// every write
type scriptedLink struct {
	replies []byte
	writes  [][]byte
	sent    []byte
}

func (l *scriptedLink) Receive(buf []byte) error {
	if len(l.replies) == 0 {
		return errTimeout
	}
	buf[0] = l.replies[0]
	l.replies = l.replies[1:]
	return nil
}

func (l *scriptedLink) Write(p []byte) (int, error) {
	l.writes = append(l.writes, append([]byte(nil), p...))
	return len(p), nil
}

func (l *scriptedLink) TransmitByte(b byte) error {
	l.sent = append(l.sent, b)
	return nil
}

func image(size int) []byte {
	p := make([]byte, size)
	for i := range p {
		p[i] = byte(i * 13)
	}
	return p
}

func TestSendResendsOnNAK(t *testing.T) {
	g := NewWithT(t)
	link := &scriptedLink{replies: []byte{protocol.C, protocol.NAK, protocol.ACK, protocol.ACK}}

	s, err := New(link, Config{BlockSize: 128})
	g.Expect(err).NotTo(HaveOccurred())

	res, err := s.Send(context.Background(), image(128))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Blocks).To(Equal(1))
	g.Expect(res.Resends).To(Equal(1))

	g.Expect(link.writes).To(HaveLen(3))
	g.Expect(link.writes[0]).To(Equal(link.writes[1]))
	g.Expect(link.writes[2]).To(Equal([]byte{protocol.EOT}))
}

func TestSendFrames(t *testing.T) {
	g := NewWithT(t)
	link := &scriptedLink{replies: []byte{protocol.C, protocol.ACK, protocol.ACK, protocol.ACK}}

	var progress []int
	s, err := New(link, Config{Progress: func(sent, total int) {
		g.Expect(total).To(Equal(1100))
		progress = append(progress, sent)
	}})
	g.Expect(err).NotTo(HaveOccurred())

	data := image(1100)
	res, err := s.Send(context.Background(), data)
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Blocks).To(Equal(2))
	g.Expect(progress).To(Equal([]int{1024, 1100}))

	first := link.writes[0]
	g.Expect(first[0]).To(Equal(byte(protocol.STX)))
	g.Expect(first[1:3]).To(Equal([]byte{1, 0xFE}))
	g.Expect(first[3 : 3+1024]).To(Equal(data[:1024]))
	crc := protocol.CRC16(data[:1024])
	g.Expect(protocol.JoinCRC(first[1027], first[1028])).To(Equal(crc))

	// The 76-byte tail goes out in a padded 128-byte block
	tail := link.writes[1]
	g.Expect(tail).To(HaveLen(1 + protocol.MetadataSize + 128 + protocol.CRCSize))
	g.Expect(tail[0]).To(Equal(byte(protocol.SOH)))
	g.Expect(tail[1]).To(Equal(byte(2)))
	g.Expect(tail[3 : 3+76]).To(Equal(data[1024:]))
	for _, b := range tail[3+76 : 3+128] {
		g.Expect(b).To(Equal(byte(protocol.SUB)))
	}
}

func TestSendSkipsStrayBytes(t *testing.T) {
	g := NewWithT(t)
	link := &scriptedLink{replies: []byte{'x', protocol.C, protocol.C, protocol.ACK, 'y', protocol.ACK, 'o', 'k'}}

	s, _ := New(link, Config{})
	res, err := s.Send(context.Background(), image(64))
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(res.Resends).To(BeZero())
	g.Expect(res.Message).To(Equal("ok"))
}

func TestSendCancelled(t *testing.T) {
	g := NewWithT(t)
	link := &scriptedLink{replies: []byte{protocol.C, protocol.NAK, protocol.CAN, protocol.CAN}}

	s, _ := New(link, Config{})
	_, err := s.Send(context.Background(), image(300))
	g.Expect(errors.Is(err, ErrCancelled)).To(BeTrue())
	g.Expect(link.writes).To(HaveLen(2))
}

func TestSendNoReceiver(t *testing.T) {
	g := NewWithT(t)
	link := &scriptedLink{replies: []byte{protocol.NAK}}

	s, _ := New(link, Config{StartAttempts: 3})
	_, err := s.Send(context.Background(), image(128))
	g.Expect(err).To(MatchError(ErrNoReceiver))
	g.Expect(link.writes).To(BeEmpty())
}

func TestSendRetryLimit(t *testing.T) {
	g := NewWithT(t)
	link := &scriptedLink{replies: []byte{protocol.C}}

	s, _ := New(link, Config{Retries: 2})
	res, err := s.Send(context.Background(), image(128))
	g.Expect(errors.Is(err, ErrRetries)).To(BeTrue())
	g.Expect(link.writes).To(HaveLen(3))
	g.Expect(res.Blocks).To(BeZero())
}

func TestSendContextCancelled(t *testing.T) {
	g := NewWithT(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s, _ := New(&scriptedLink{replies: []byte{protocol.C}}, Config{})
	_, err := s.Send(ctx, image(128))
	g.Expect(err).To(MatchError(context.Canceled))
}

func TestNewValidation(t *testing.T) {
	g := NewWithT(t)

	_, err := New(nil, Config{})
	g.Expect(err).To(HaveOccurred())

	_, err = New(&scriptedLink{}, Config{BlockSize: 512})
	g.Expect(err).To(HaveOccurred())

	s, err := New(&scriptedLink{}, Config{})
	g.Expect(err).NotTo(HaveOccurred())
	g.Expect(s.config.BlockSize).To(Equal(1024))
	g.Expect(s.config.Retries).To(Equal(10))
}
