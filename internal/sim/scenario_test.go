package sim

import (
	"testing"
	"time"

	"nmea2ubx/internal/fix"
)

func TestScenario_ParseAndInterpolate(t *testing.T) {
	yaml := []byte(`
version: 1
# duration derived from last keyframe
start: 2024-03-10T12:00:00Z
keyframes:
  - t: 0s
    lat_deg: 0
    lon_deg: 0
    altitude_m: 0
    speed_mps: 10
    mode: 2
    satellites: 4
  - t: 10s
    lat_deg: 10
    lon_deg: 20
    altitude_m: 1000
    speed_mps: 20
    mode: 3
    satellites: 9
`)

	script, err := ParseScenarioScriptYAML(yaml)
	if err != nil {
		t.Fatalf("ParseScenarioScriptYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	if scn.Duration() != 10*time.Second {
		t.Fatalf("duration: got %s want %s", scn.Duration(), 10*time.Second)
	}

	s := scn.FixAt(time.Time{}, 5*time.Second, false)
	if s.LatDeg != 5 || s.LonDeg != 10 {
		t.Fatalf("position interpolation: got %v,%v want 5,10", s.LatDeg, s.LonDeg)
	}
	if s.AltitudeM != 500 || s.GroundSpeedMPS != 15 {
		t.Fatalf("alt/speed interpolation: got %v,%v", s.AltitudeM, s.GroundSpeedMPS)
	}
	if s.Mode != fix.Mode2D || s.SatellitesInUse != 4 {
		t.Fatalf("mode/sats should step: got %v,%d", s.Mode, s.SatellitesInUse)
	}
	if s.Date != (fix.Date{Day: 10, Month: 3, Year: 24}) || s.Time != (fix.TimeOfDay{Hour: 12, Second: 5}) {
		t.Fatalf("stamp: %+v %+v", s.Date, s.Time)
	}

	end := scn.FixAt(time.Time{}, 10*time.Second, false)
	if end.Mode != fix.Mode3D || end.SatellitesInUse != 9 {
		t.Fatalf("end mode/sats: got %v,%d", end.Mode, end.SatellitesInUse)
	}
}

func TestScenario_LoopAndClamp(t *testing.T) {
	yaml := []byte(`
version: 1
duration: 10s
keyframes:
  - t: 0s
    lat_deg: 0
  - t: 10s
    lat_deg: 10
`)

	script, err := ParseScenarioScriptYAML(yaml)
	if err != nil {
		t.Fatalf("ParseScenarioScriptYAML: %v", err)
	}
	scn, err := NewScenario(script)
	if err != nil {
		t.Fatalf("NewScenario: %v", err)
	}
	start := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)

	// Clamp (no loop): 11s -> end state.
	s := scn.FixAt(start, 11*time.Second, false)
	if s.LatDeg != 10 {
		t.Fatalf("clamp lat: got %v want 10", s.LatDeg)
	}
	if s.Mode != fix.Mode3D {
		t.Fatalf("default mode: got %v want 3d", s.Mode)
	}

	// Loop: 11s -> 1s, timestamp keeps running.
	s2 := scn.FixAt(start, 11*time.Second, true)
	if s2.LatDeg != 1 {
		t.Fatalf("loop lat: got %v want 1", s2.LatDeg)
	}
	if s2.Time.Second != 11 {
		t.Fatalf("loop stamp second: got %d want 11", s2.Time.Second)
	}
}

func TestNewScenario_RejectsUnsorted(t *testing.T) {
	_, err := NewScenario(ScenarioScript{Keyframes: []Keyframe{{T: 5 * time.Second}, {T: time.Second}}})
	if err == nil {
		t.Fatalf("expected error")
	}
	if _, err := NewScenario(ScenarioScript{}); err == nil {
		t.Fatalf("expected error for empty keyframes")
	}
	old := ScenarioScript{
		Start:     time.Date(1998, time.June, 1, 0, 0, 0, 0, time.UTC),
		Keyframes: []Keyframe{{T: 0}, {T: time.Second}},
	}
	if _, err := NewScenario(old); err == nil {
		t.Fatalf("expected error for start before 2000")
	}
}
