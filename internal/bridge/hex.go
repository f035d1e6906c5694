package bridge

import (
	"bufio"
	"io"
	"sync"
)

// HexSink writes each packet as lowercase hex bytes separated by spaces, one
// packet per line.
type HexSink struct {
	mu sync.Mutex
	w  *bufio.Writer
}

func NewHexSink(w io.Writer) *HexSink {
	return &HexSink{w: bufio.NewWriter(w)}
}

func (h *HexSink) Name() string { return "hex" }

func (h *HexSink) Send(packet []byte) error {
	const digits = "0123456789abcdef"
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, b := range packet {
		h.w.WriteByte(digits[b>>4])
		h.w.WriteByte(digits[b&0x0F])
		h.w.WriteByte(' ')
	}
	h.w.WriteByte('\n')
	return h.w.Flush()
}
