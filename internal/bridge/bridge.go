// Package bridge connects fix notifications to packet sinks: every fix is
// encoded as a NAV-PVT packet and handed to each sink in order.
package bridge

import (
	"fmt"
	"io"
	"log"
	"sync"

	"nmea2ubx/internal/fix"
	"nmea2ubx/internal/ubx"
)

// Sink consumes encoded packets. Send must not retain packet after returning.
type Sink interface {
	Send(packet []byte) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(packet []byte) error

func (f SinkFunc) Send(packet []byte) error { return f(packet) }

type named interface {
	Name() string
}

// SinkStats counts deliveries to one sink.
type SinkStats struct {
	Name      string `json:"name"`
	Sent      uint64 `json:"sent"`
	Errors    uint64 `json:"errors"`
	LastError string `json:"last_error,omitempty"`
}

// Stats is a point-in-time copy of the bridge counters.
type Stats struct {
	Encoded   uint64      `json:"encoded"`
	Failed    uint64      `json:"failed"`
	Forwarded uint64      `json:"forwarded"`
	Unknown   uint64      `json:"unknown_statements"`
	LastITOW  uint32      `json:"last_itow_ms"`
	LastWeek  int         `json:"last_week"`
	LastError string      `json:"last_error,omitempty"`
	Sinks     []SinkStats `json:"sinks"`
}

type sinkEntry struct {
	sink  Sink
	stats SinkStats
}

// Bridge implements fix.Handler.
//
// sendMu serializes delivery so sinks see packets in order; mu guards the
// counters and is never held across a Send, so Stats stays responsive while a
// sink blocks.
type Bridge struct {
	sendMu sync.Mutex

	mu    sync.Mutex
	sinks []*sinkEntry
	stats Stats

	weekLogged bool
}

var _ fix.Handler = (*Bridge)(nil)

func New(sinks ...Sink) *Bridge {
	b := &Bridge{}
	for _, s := range sinks {
		b.Add(s)
	}
	return b
}

// Add appends a sink. Sinks receive packets in the order they were added.
func (b *Bridge) Add(s Sink) {
	if s == nil {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	name := fmt.Sprintf("sink%d", len(b.sinks))
	if n, ok := s.(named); ok {
		name = n.Name()
	}
	b.sinks = append(b.sinks, &sinkEntry{sink: s, stats: SinkStats{Name: name}})
}

// OnFixUpdate encodes the fix and delivers it. Encode failures are logged and
// the fix is dropped.
func (b *Bridge) OnFixUpdate(s fix.Snapshot) {
	packet, err := ubx.Encode(s)
	if err != nil {
		b.mu.Lock()
		b.stats.Failed++
		b.stats.LastError = err.Error()
		b.mu.Unlock()
		log.Printf("ubx encode failed: %v (fix %s)", err, s)
		return
	}

	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	b.stats.Encoded++
	b.stats.LastITOW = uint32(packet[6]) | uint32(packet[7])<<8 | uint32(packet[8])<<16 | uint32(packet[9])<<24

	year := s.Date.FullYear()
	b.stats.LastWeek = ubx.WeekNumber(year, int(s.Date.Month), int(s.Date.Day))
	if !b.weekLogged {
		b.weekLogged = true
		log.Printf("first fix encoded gps_week=%d itow_ms=%d mode=%s sats=%d",
			b.stats.LastWeek, b.stats.LastITOW, s.Mode, s.SatellitesInUse)
	}
	sinks := b.sinks
	b.mu.Unlock()

	b.deliver(sinks, packet)
}

// Forward delivers an already encoded packet, as read back from a record log,
// without touching its bytes.
func (b *Bridge) Forward(packet []byte) {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	b.stats.Forwarded++
	if len(packet) >= 10 {
		b.stats.LastITOW = uint32(packet[6]) | uint32(packet[7])<<8 | uint32(packet[8])<<16 | uint32(packet[9])<<24
	}
	sinks := b.sinks
	b.mu.Unlock()

	b.deliver(sinks, packet)
}

// deliver must be called with sendMu held.
func (b *Bridge) deliver(sinks []*sinkEntry, packet []byte) {
	for _, e := range sinks {
		err := e.sink.Send(packet)

		b.mu.Lock()
		if err != nil {
			e.stats.Errors++
			e.stats.LastError = err.Error()
		} else {
			e.stats.Sent++
		}
		name := e.stats.Name
		b.mu.Unlock()

		if err != nil {
			log.Printf("sink send failed sink=%s: %v", name, err)
		}
	}
}

func (b *Bridge) OnUnknownStatement(line string) {
	b.mu.Lock()
	b.stats.Unknown++
	b.mu.Unlock()
	log.Printf("unknown statement: %s", line)
}

func (b *Bridge) Stats() Stats {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := b.stats
	out.Sinks = make([]SinkStats, 0, len(b.sinks))
	for _, e := range b.sinks {
		out.Sinks = append(out.Sinks, e.stats)
	}
	return out
}

// Close closes every sink that implements io.Closer, in reverse order.
func (b *Bridge) Close() error {
	b.sendMu.Lock()
	defer b.sendMu.Unlock()

	b.mu.Lock()
	sinks := b.sinks
	b.sinks = nil
	b.mu.Unlock()

	var first error
	for i := len(sinks) - 1; i >= 0; i-- {
		c, ok := sinks[i].sink.(io.Closer)
		if !ok {
			continue
		}
		if err := c.Close(); err != nil && first == nil {
			first = fmt.Errorf("close %s: %w", sinks[i].stats.Name, err)
		}
	}
	return first
}
