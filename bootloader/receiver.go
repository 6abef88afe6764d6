package bootloader

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/looplab/fsm"

	"xmboot/protocol"
)

// Receiver states
const (
	StateInit          = "init"
	StateAwaitHeader   = "await_header"
	StateProcessPacket = "process_packet"
	StateComplete      = "complete"
	StateAborted       = "aborted"
)

// Receiver events
const (
	eventStart      = "start"
	eventData       = "data_header"
	eventPacketDone = "packet_done"
	eventEOT        = "eot"
	eventAbort      = "abort"
)

// Receiver drives an Xmodem-CRC receive session. It is not safe for
// concurrent use; one goroutine runs the whole session.
type Receiver struct {
	transport Transport
	handoff   Handoff
	sequencer *WriteSequencer
	config    Config
	logSink

	machine *fsm.FSM
	session Session
	pending protocol.Kind
	abort   *AbortError

	header [1]byte
	body   [protocol.FrameBodyMax]byte
}

// NewReceiver creates a Receiver with the given collaborators.
// A non-positive MaxErrors falls back to DefaultMaxErrors.
func NewReceiver(transport Transport, storage Storage, handoff Handoff, cfg Config) *Receiver {
	if transport == nil || storage == nil || handoff == nil {
		panic("bootloader: transport, storage and handoff are required")
	}
	if cfg.MaxErrors <= 0 {
		cfg.MaxErrors = DefaultMaxErrors
	}

	return &Receiver{
		transport: transport,
		handoff:   handoff,
		sequencer: NewWriteSequencer(storage, cfg.Logger),
		config:    cfg,
		logSink:   logSink{logger: cfg.Logger},
	}
}

func (r *Receiver) newStateMachine() *fsm.FSM {
	return fsm.NewFSM(
		StateInit,
		fsm.Events{
			{Name: eventStart, Src: []string{StateInit}, Dst: StateAwaitHeader},
			{Name: eventData, Src: []string{StateAwaitHeader}, Dst: StateProcessPacket},
			{Name: eventPacketDone, Src: []string{StateProcessPacket}, Dst: StateAwaitHeader},
			{Name: eventEOT, Src: []string{StateAwaitHeader}, Dst: StateComplete},
			{Name: eventAbort, Src: []string{StateAwaitHeader}, Dst: StateAborted},
		},
		fsm.Callbacks{
			"enter_state": func(_ context.Context, e *fsm.Event) {
				r.debug("state change",
					slog.String("event", e.Event),
					slog.String("from", e.Src),
					slog.String("to", e.Dst),
				)
			},
		},
	)
}

// Run executes one complete session.
//
// It returns nil after the image was received and the handoff was invoked
// (on hardware the handoff does not return). It returns an *AbortError when
// the sender cancelled or the error budget ran out; storage is left as is.
func (r *Receiver) Run() error {
	ctx := context.Background()
	r.machine = r.newStateMachine()
	r.abort = nil

	for {
		var err error

		switch r.machine.Current() {
		case StateInit:
			r.session = NewSession(r.config.BaseAddress)
			r.info("session start",
				addrAttr("base", r.session.Base),
				slog.Int("max_errors", r.config.MaxErrors),
			)
			err = r.fire(ctx, eventStart)

		case StateAwaitHeader:
			err = r.awaitHeader(ctx)

		case StateProcessPacket:
			err = r.processPacket(ctx)

		case StateComplete:
			r.info("image received", slog.Uint64("bytes", uint64(r.session.BytesWritten())))
			r.handoff.JumpToApplication()
			return nil

		case StateAborted:
			r.warn("session aborted",
				slog.String("reason", r.abort.Reason.String()),
				slog.Int("errors", r.abort.Errors),
			)
			return r.abort

		default:
			err = fmt.Errorf("unknown state %q", r.machine.Current())
		}

		if err != nil {
			return fmt.Errorf("receiver state machine: %w", err)
		}
	}
}

// Session returns a copy of the current session state
func (r *Receiver) Session() Session {
	return r.session
}

// State returns the current state name
func (r *Receiver) State() string {
	if r.machine == nil {
		return StateInit
	}
	return r.machine.Current()
}

func (r *Receiver) fire(ctx context.Context, event string) error {
	return r.machine.Event(ctx, event)
}

// awaitHeader reads one header byte and decides where the session goes next
func (r *Receiver) awaitHeader(ctx context.Context) error {
	readErr := r.transport.Receive(r.header[:])

	// The budget is checked ahead of whatever the header means
	if r.session.Errors >= r.config.MaxErrors {
		_ = r.transport.TransmitByte(protocol.CAN)
		_ = r.transport.TransmitByte(protocol.CAN)
		r.abort = &AbortError{
			Reason:       ReasonErrorBudget,
			Errors:       r.session.Errors,
			BytesWritten: r.session.BytesWritten(),
		}
		return r.fire(ctx, eventAbort)
	}

	if readErr != nil {
		if !r.session.FirstPacketReceived {
			// Sender not listening yet; keep asking for CRC mode
			_ = r.transport.TransmitByte(protocol.C)
			return nil
		}
		r.session.Errors++
		r.debug("header timeout", slog.Int("errors", r.session.Errors))
		_ = r.transport.TransmitByte(protocol.NAK)
		return nil
	}

	header := r.header[0]
	switch kind := protocol.Classify(header); kind {
	case protocol.KindData128, protocol.KindData1024:
		r.pending = kind
		return r.fire(ctx, eventData)

	case protocol.KindEOT:
		_ = r.transport.TransmitByte(protocol.ACK)
		for _, line := range r.config.CompletionText {
			_ = r.transport.TransmitString(line)
		}
		return r.fire(ctx, eventEOT)

	case protocol.KindCancel:
		r.abort = &AbortError{
			Reason:       ReasonPeerCancel,
			Errors:       r.session.Errors,
			BytesWritten: r.session.BytesWritten(),
		}
		return r.fire(ctx, eventAbort)

	default:
		r.session.Errors++
		r.debug("unexpected header",
			slog.String("header", fmt.Sprintf("0x%02X", header)),
			slog.Int("errors", r.session.Errors),
		)
		_ = r.transport.TransmitByte(protocol.NAK)
		return nil
	}
}

// processPacket reads the rest of a data frame, validates it and hands it
// to the write sequencer
func (r *Receiver) processPacket(ctx context.Context) error {
	kind := r.pending
	body := r.body[:kind.BodySize()]
	readErr := r.transport.Receive(body)

	address := r.session.WriteCursor
	frame, status := protocol.ParseFrame(kind, body, r.session.ExpectedPacket, readErr)
	status = r.sequencer.Admit(&r.session, frame, status)

	if status.OK() {
		r.session.FirstPacketReceived = true
		_ = r.transport.TransmitByte(protocol.ACK)
		r.debug("packet accepted",
			slog.Int("number", int(frame.Number)),
			addrAttr("addr", address),
			slog.Int("len", len(frame.Payload)),
		)
		if r.config.Progress != nil {
			r.config.Progress(Progress{
				Packet:       frame.Number,
				Address:      address,
				Size:         len(frame.Payload),
				BytesWritten: r.session.BytesWritten(),
			})
		}
	} else {
		r.session.Errors++
		_ = r.transport.TransmitByte(protocol.NAK)
		r.info("packet rejected",
			slog.String("status", status.String()),
			slog.Int("number", int(frame.Number)),
			slog.Int("expected", int(r.session.ExpectedPacket)),
			slog.Int("errors", r.session.Errors),
		)
	}

	return r.fire(ctx, eventPacketDone)
}
