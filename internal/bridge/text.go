package bridge

import (
	"fmt"
	"io"
	"sync"

	"nmea2ubx/internal/ubx"
)

// TextSink writes one human-readable fix line per NAV-PVT packet, decoded
// back from the packet so replayed logs print the same way as live fixes.
type TextSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewTextSink(w io.Writer) *TextSink {
	return &TextSink{w: w}
}

func (t *TextSink) Name() string { return "text" }

func (t *TextSink) Send(packet []byte) error {
	p, err := ubx.ParseNavPVT(packet)
	if err != nil {
		return err
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	_, err = fmt.Fprintf(t.w, "%s fix=%s itow=%d\n", p.Snapshot(), p.FixType, p.ITOW)
	return err
}
