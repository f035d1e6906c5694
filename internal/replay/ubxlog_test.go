package replay

import (
	"context"
	"encoding/hex"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"
)

// 2024-03-10 12:00:00 UTC, 37.5665N 126.978E, 50 m, 3D, 8 SVs.
const seoulPacketHex = "b56201075c0050749302e807030a0c000000000000000000000003000008204eaf4b6831641650c3" +
	"0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000" +
	"00000000000000005ecb"

type fakeSleeper struct {
	slept []time.Duration
}

func (fs *fakeSleeper) Sleep(_ context.Context, d time.Duration) error {
	fs.slept = append(fs.slept, d)
	return nil
}

func TestReaderReadAll(t *testing.T) {
	in := strings.NewReader(`
# comment

START
0, 0102
10, 0a 0b
`)

	recs, err := NewReader(in).ReadAll()
	if err != nil {
		t.Fatalf("ReadAll() error: %v", err)
	}
	if len(recs) != 3 {
		t.Fatalf("expected 3 records, got %d", len(recs))
	}
	if !recs[0].IsStart() {
		t.Fatalf("expected START marker, got %v", recs[0].Packet)
	}
	if recs[1].At != 0 || !reflect.DeepEqual(recs[1].Packet, []byte{0x01, 0x02}) {
		t.Fatalf("unexpected record 1: %+v", recs[1])
	}
	if recs[2].At != 10*time.Nanosecond || !reflect.DeepEqual(recs[2].Packet, []byte{0x0a, 0x0b}) {
		t.Fatalf("unexpected record 2: %+v", recs[2])
	}
}

func TestReaderReadAll_InvalidLines(t *testing.T) {
	for _, in := range []string{"not-a-valid-line\n", "START\n-1,00\n", "START\n5,zz\n", "START\n,0102\n"} {
		if _, err := NewReader(strings.NewReader(in)).ReadAll(); err == nil {
			t.Fatalf("expected error for %q", in)
		}
	}
}

func TestVerifyRecords(t *testing.T) {
	good, err := hex.DecodeString(seoulPacketHex)
	if err != nil {
		t.Fatalf("hex: %v", err)
	}
	if err := VerifyRecords([]Record{{}, {Packet: good}}); err != nil {
		t.Fatalf("VerifyRecords(good): %v", err)
	}

	bad := append([]byte(nil), good...)
	bad[30] ^= 0xFF
	if err := VerifyRecords([]Record{{}, {Packet: good}, {Packet: bad}}); err == nil || !strings.Contains(err.Error(), "record 2") {
		t.Fatalf("VerifyRecords(bad) err=%v", err)
	}
	if err := VerifyRecords([]Record{{}}); err == nil {
		t.Fatalf("expected error for empty log")
	}
}

func TestPlay_RespectsTimingAndStart(t *testing.T) {
	var packets [][]byte
	fs := &fakeSleeper{}

	recs := []Record{
		{At: 1 * time.Second},
		{At: 1 * time.Second, Packet: []byte{0xAA}},
		{At: 1*time.Second + 100*time.Nanosecond, Packet: []byte{0xBB}},
		{At: 2 * time.Second},
		{At: 2*time.Second + 50*time.Nanosecond, Packet: []byte{0xCC}},
	}

	err := Play(context.Background(), recs, 1.0, false, fs, func(p []byte) error {
		packets = append(packets, append([]byte(nil), p...))
		return nil
	})
	if err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	want := [][]byte{{0xAA}, {0xBB}, {0xCC}}
	if !reflect.DeepEqual(packets, want) {
		t.Fatalf("packets = %x, want %x", packets, want)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{100 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [100ns]", fs.slept)
	}
}

func TestPlay_SpeedMultiplier(t *testing.T) {
	fs := &fakeSleeper{}
	recs := []Record{
		{At: 0, Packet: []byte{0x01}},
		{At: 100 * time.Nanosecond, Packet: []byte{0x02}},
	}
	if err := Play(context.Background(), recs, 2.0, false, fs, func([]byte) error { return nil }); err != nil {
		t.Fatalf("Play() error: %v", err)
	}
	if !reflect.DeepEqual(fs.slept, []time.Duration{50 * time.Nanosecond}) {
		t.Fatalf("slept = %v, want [50ns]", fs.slept)
	}
}

func TestPlay_LoopStopsOnCallbackErrorAndContext(t *testing.T) {
	recs := []Record{{At: 0, Packet: []byte{0x01}}}
	stop := errors.New("enough")
	n := 0
	err := Play(context.Background(), recs, 1, true, &fakeSleeper{}, func([]byte) error {
		n++
		if n == 3 {
			return stop
		}
		return nil
	})
	if !errors.Is(err, stop) || n != 3 {
		t.Fatalf("err=%v n=%d", err, n)
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := Play(ctx, recs, 1, true, nil, func([]byte) error { return nil }); !errors.Is(err, context.Canceled) {
		t.Fatalf("err=%v want context.Canceled", err)
	}
}

func TestPlay_InvalidArgs(t *testing.T) {
	recs := []Record{{At: 0, Packet: []byte{0x01}}}
	if err := Play(context.Background(), recs, 0, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected speed error")
	}
	if err := Play(context.Background(), nil, 1, false, nil, func([]byte) error { return nil }); err == nil {
		t.Fatalf("expected no-records error")
	}
}

func TestWriter_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.log")

	w, err := CreateWriter(path)
	if err != nil {
		t.Fatalf("CreateWriter() error: %v", err)
	}
	w.start = time.Unix(0, 0)

	if err := w.WritePacket(time.Unix(0, 20), []byte{0x01, 0x02}); err != nil {
		t.Fatalf("WritePacket() error: %v", err)
	}
	if err := w.WritePacket(time.Unix(0, 0), nil); err == nil {
		t.Fatalf("expected error for empty packet")
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := w.Send([]byte{0x01}); err == nil {
		t.Fatalf("expected error after Close")
	}

	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile() error: %v", err)
	}
	if string(b) != "START\n20,0102\n" {
		t.Fatalf("unexpected file contents: %q", string(b))
	}

	recs, err := Open(path)
	if err != nil {
		t.Fatalf("Open() error: %v", err)
	}
	if len(recs) != 2 || recs[1].At != 20 || !reflect.DeepEqual(recs[1].Packet, []byte{0x01, 0x02}) {
		t.Fatalf("records=%+v", recs)
	}
}
