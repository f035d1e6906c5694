package ubx

import (
	"encoding/hex"
	"testing"

	"nmea2ubx/internal/fix"
)

func seoulFix() fix.Snapshot {
	return fix.Snapshot{
		Date:            fix.Date{Day: 10, Month: 3, Year: 24},
		Time:            fix.TimeOfDay{Hour: 12},
		LatDeg:          37.5665,
		LonDeg:          126.978,
		AltitudeM:       50,
		GroundSpeedMPS:  0,
		Mode:            fix.Mode3D,
		SatellitesInUse: 8,
	}
}

func mustHex(t *testing.T, s string) []byte {
	t.Helper()
	b, err := hex.DecodeString(s)
	if err != nil {
		t.Fatalf("bad hex: %v", err)
	}
	return b
}

func assertBytes(t *testing.T, got, want []byte) {
	t.Helper()
	if len(got) != len(want) {
		t.Fatalf("unexpected len: got %d want %d", len(got), len(want))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("byte[%d] mismatch: got 0x%02X want 0x%02X (pkt=% X)", i, got[i], want[i], got)
		}
	}
}

func TestGolden_NavPVT_Seoul3D(t *testing.T) {
	got, err := Encode(seoulFix())
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := mustHex(t, "b56201075c0050749302e807030a0c000000000000000000000003000008204eaf4b6831641650c3"+
		"0000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000000"+
		"00000000000000005ecb")
	assertBytes(t, got, want)
}

func TestGolden_NavPVT_WeekWrapSouthWest(t *testing.T) {
	got, err := Encode(fix.Snapshot{
		Date:            fix.Date{Day: 30, Month: 12, Year: 23}, // Saturday
		Time:            fix.TimeOfDay{Hour: 23, Minute: 59, Second: 59, Millisecond: 999},
		LatDeg:          -33.8688,
		LonDeg:          -151.2093,
		AltitudeM:       -12.345,
		GroundSpeedMPS:  3.2,
		Mode:            fix.Mode2D,
		SatellitesInUse: 5,
	})
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	want := mustHex(t, "b56201075c004f460000e7070c1e173b3b00000000000000000002000005b84adfa50008d0ebc7cf"+
		"ffff000000000000000000000000000000000000000000000000800c00000000000000000000000000000000000000000000"+
		"00000000000000000e9c")
	assertBytes(t, got, want)
}

func TestGolden_NavPVT_InvalidModeIsNoFix(t *testing.T) {
	s := seoulFix()
	s.Mode = fix.ModeInvalid
	got, err := Encode(s)
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	if got[6+20] != byte(FixNone) {
		t.Fatalf("fixType=%d want 0", got[6+20])
	}
	if got[98] != 0x5B || got[99] != 0xF3 {
		t.Fatalf("checksum=%02X %02X want 5B F3", got[98], got[99])
	}
}
