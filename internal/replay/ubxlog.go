// Package replay records encoded packets with their relative timing and plays
// them back.
package replay

import (
	"bufio"
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"nmea2ubx/internal/ubx"
)

// Log format: line-oriented text.
//
//   - Blank lines and lines starting with '#' are ignored.
//   - "START" resets the origin (next record time is relative to 0 again).
//   - Data lines are <t_ns>,<hex>: nanoseconds since START, then the raw
//     packet bytes. Spaces inside the hex are allowed.

type Record struct {
	At     time.Duration
	Packet []byte
}

// IsStart reports whether r is a START marker.
func (r Record) IsStart() bool { return r.Packet == nil }

type Reader struct {
	r io.Reader
}

func NewReader(r io.Reader) *Reader {
	return &Reader{r: r}
}

// Open reads every record from the log at path.
func Open(path string) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return NewReader(f).ReadAll()
}

func (rr *Reader) ReadAll() ([]Record, error) {
	s := bufio.NewScanner(rr.r)
	s.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	recs := make([]Record, 0, 1024)
	lineNo := 0
	for s.Scan() {
		lineNo++
		line := strings.TrimSpace(s.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		if line == "START" {
			recs = append(recs, Record{})
			continue
		}

		tsStr, hexStr, ok := strings.Cut(line, ",")
		if !ok {
			return nil, fmt.Errorf("line %d: missing comma: %q", lineNo, line)
		}
		tsStr = strings.TrimSpace(tsStr)
		hexStr = strings.ReplaceAll(strings.TrimSpace(hexStr), " ", "")
		if tsStr == "" || hexStr == "" {
			return nil, fmt.Errorf("line %d: empty field: %q", lineNo, line)
		}

		tsNs, err := strconv.ParseInt(tsStr, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid timestamp %q: %w", lineNo, tsStr, err)
		}
		if tsNs < 0 {
			return nil, fmt.Errorf("line %d: negative timestamp %d", lineNo, tsNs)
		}
		b, err := hex.DecodeString(hexStr)
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid hex: %w", lineNo, err)
		}
		recs = append(recs, Record{At: time.Duration(tsNs), Packet: b})
	}
	if err := s.Err(); err != nil {
		return nil, err
	}
	return recs, nil
}

// VerifyRecords checks that every data record is a well-formed NAV-PVT packet.
func VerifyRecords(recs []Record) error {
	n := 0
	for i, r := range recs {
		if r.IsStart() {
			continue
		}
		if _, err := ubx.ParseNavPVT(r.Packet); err != nil {
			return fmt.Errorf("record %d: %w", i, err)
		}
		n++
	}
	if n == 0 {
		return errors.New("no packet records")
	}
	return nil
}

// Writer appends packets to a log. It is safe for concurrent use and can be
// used directly as a bridge sink.
type Writer struct {
	mu     sync.Mutex
	f      io.WriteCloser
	w      *bufio.Writer
	start  time.Time
	now    func() time.Time
	closed bool
}

func CreateWriter(path string) (*Writer, error) {
	f, err := os.Create(path)
	if err != nil {
		return nil, err
	}
	return newWriter(f, time.Now)
}

func newWriter(f io.WriteCloser, now func() time.Time) (*Writer, error) {
	bw := bufio.NewWriterSize(f, 64*1024)
	if _, err := bw.WriteString("START\n"); err != nil {
		_ = f.Close()
		return nil, err
	}
	return &Writer{f: f, w: bw, start: now(), now: now}, nil
}

func (ww *Writer) Name() string { return "record" }

// Send records packet at the current time.
func (ww *Writer) Send(packet []byte) error {
	return ww.WritePacket(ww.now(), packet)
}

func (ww *Writer) WritePacket(at time.Time, packet []byte) error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return errors.New("replay writer is closed")
	}
	if len(packet) == 0 {
		return errors.New("packet is empty")
	}

	d := at.Sub(ww.start)
	if d < 0 {
		d = 0
	}
	_, err := fmt.Fprintf(ww.w, "%d,%s\n", d.Nanoseconds(), hex.EncodeToString(packet))
	return err
}

func (ww *Writer) Flush() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	return ww.w.Flush()
}

func (ww *Writer) Close() error {
	ww.mu.Lock()
	defer ww.mu.Unlock()
	if ww.closed {
		return nil
	}
	ww.closed = true
	if err := ww.w.Flush(); err != nil {
		_ = ww.f.Close()
		return err
	}
	return ww.f.Close()
}

type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

type realSleeper struct{}

func (realSleeper) Sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Play replays records with their relative timing, calling cb for each packet.
// START markers reset the origin.
//
// speed: 1.0 = real time, 2.0 = twice as fast, 0.5 = half speed. With loop set,
// Play runs until ctx ends or cb fails.
func Play(ctx context.Context, records []Record, speed float64, loop bool, sleeper Sleeper, cb func(packet []byte) error) error {
	if speed <= 0 {
		return fmt.Errorf("speed must be > 0")
	}
	if sleeper == nil {
		sleeper = realSleeper{}
	}
	if cb == nil {
		return errors.New("callback is nil")
	}
	if len(records) == 0 {
		return errors.New("no records")
	}

	for {
		var origin, lastAt time.Duration
		haveLast := false

		for _, r := range records {
			if err := ctx.Err(); err != nil {
				return err
			}
			if r.IsStart() {
				origin = r.At
				lastAt = 0
				haveLast = false
				continue
			}

			at := r.At - origin
			if at < 0 {
				at = 0
			}
			if haveLast {
				wait := time.Duration(float64(at-lastAt) / speed)
				if wait > 0 {
					if err := sleeper.Sleep(ctx, wait); err != nil {
						return err
					}
				}
			}

			if err := cb(r.Packet); err != nil {
				return err
			}
			lastAt = at
			haveLast = true
		}

		if !loop {
			return nil
		}
	}
}
