//go:build rp2040

package main

import (
	"machine"

	pio "github.com/tinygo-org/pio/rp2-pio"
	"github.com/tinygo-org/pio/rp2-pio/piolib"
)

// WS2812B status LED, as fitted on RP2040-Zero style boards
const statusLEDPin = machine.GPIO16

type statusColor uint32

// GRB values at low intensity
const (
	statusOff       statusColor = 0
	statusWaiting   statusColor = 0x00001000
	statusReceiving statusColor = 0x10000000
	statusDone      statusColor = 0x18000000
	statusFailed    statusColor = 0x00180000
)

// statusLED shows the session state. A nil ws makes every call a no-op.
type statusLED struct {
	ws *piolib.WS2812B
	on bool
}

func initStatusLED() *statusLED {
	sm, err := pio.PIO0.ClaimStateMachine()
	if err != nil {
		return &statusLED{}
	}
	ws, err := piolib.NewWS2812B(sm, statusLEDPin)
	if err != nil {
		return &statusLED{}
	}
	return &statusLED{ws: ws}
}

func (l *statusLED) Set(c statusColor) {
	if l.ws == nil {
		return
	}
	l.on = c != statusOff
	l.ws.PutRaw(uint32(c))
}

// Toggle blinks c, one change per call
func (l *statusLED) Toggle(c statusColor) {
	if l.on {
		l.Set(statusOff)
	} else {
		l.Set(c)
	}
}
