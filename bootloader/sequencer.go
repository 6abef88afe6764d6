package bootloader

import (
	"log/slog"

	"xmboot/protocol"
)

// WriteSequencer maps validated frames onto storage. It erases the region
// once per session and advances the write cursor by each accepted payload.
type WriteSequencer struct {
	storage Storage
	logSink
}

// NewWriteSequencer creates a sequencer programming storage
func NewWriteSequencer(storage Storage, logger *slog.Logger) *WriteSequencer {
	return &WriteSequencer{
		storage: storage,
		logSink: logSink{logger: logger},
	}
}

// Admit tries to commit frame to storage. status carries the validation
// flags already raised for the frame; the returned status adds storage
// failures. The session counters advance only when the result is OK.
//
// The region erase is requested on the first frame the session processes,
// valid or not, and is never retried: after a failed erase every frame
// reports StatusStorage.
func (w *WriteSequencer) Admit(s *Session, frame protocol.Frame, status protocol.Status) protocol.Status {
	if !s.Erased {
		if !s.EraseAttempted {
			s.EraseAttempted = true
			if err := w.storage.Erase(s.Base); err != nil {
				w.logerr("erase failed", addrAttr("base", s.Base), slog.String("err", err.Error()))
			} else {
				s.Erased = true
				w.debug("region erased", addrAttr("base", s.Base))
			}
		}
		if !s.Erased {
			status |= protocol.StatusStorage
		}
	}

	// Nothing reaches storage before the frame itself checked out
	if status.OK() {
		if err := w.storage.Write(s.WriteCursor, frame.Payload); err != nil {
			w.logerr("write failed",
				addrAttr("addr", s.WriteCursor),
				slog.Int("len", len(frame.Payload)),
				slog.String("err", err.Error()),
			)
			status |= protocol.StatusStorage
		}
	}

	if !status.OK() {
		return status
	}

	s.ExpectedPacket++
	s.WriteCursor += uint32(len(frame.Payload))
	return status
}
