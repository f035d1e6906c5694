package sim

import (
	"fmt"
	"os"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"nmea2ubx/internal/fix"
)

// ScenarioScript is a deterministic, keyframed fix timeline.
//
// Time is expressed as Go duration strings (e.g. "0s", "250ms", "10s").
// If Duration is zero, it is derived from the latest keyframe time.
//
// YAML schema (v1):
//
//	version: 1
//	duration: 30s
//	start: 2024-03-10T12:00:00Z
//	keyframes:
//	  - t: 0s
//	    lat_deg: 37.5665
//	    lon_deg: 126.978
//	    altitude_m: 50
//	    speed_mps: 0
//	    mode: 3
//	    satellites: 8
//
// Position, altitude and speed are interpolated between keyframes. Mode and
// satellites step: they hold the value of the earlier keyframe.
type ScenarioScript struct {
	Version   int           `yaml:"version"`
	Duration  time.Duration `yaml:"duration"`
	Start     time.Time     `yaml:"start"`
	Keyframes []Keyframe    `yaml:"keyframes"`
}

// Keyframe is a time-stamped fix state.
type Keyframe struct {
	T          time.Duration `yaml:"t"`
	LatDeg     float64       `yaml:"lat_deg"`
	LonDeg     float64       `yaml:"lon_deg"`
	AltitudeM  float64       `yaml:"altitude_m"`
	SpeedMPS   float64       `yaml:"speed_mps"`
	Mode       uint8         `yaml:"mode"`
	Satellites uint8         `yaml:"satellites"`
}

// Scenario is the validated, runtime representation.
type Scenario struct {
	script   ScenarioScript
	duration time.Duration
}

// LoadScenarioScript reads and unmarshals a YAML scenario script from path.
func LoadScenarioScript(path string) (ScenarioScript, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return ScenarioScript{}, err
	}
	return ParseScenarioScriptYAML(b)
}

// ParseScenarioScriptYAML parses a YAML scenario script.
func ParseScenarioScriptYAML(b []byte) (ScenarioScript, error) {
	var s ScenarioScript
	if err := yaml.Unmarshal(b, &s); err != nil {
		return ScenarioScript{}, err
	}
	return s, nil
}

// NewScenario validates script and returns a runtime Scenario.
func NewScenario(script ScenarioScript) (*Scenario, error) {
	if script.Version == 0 {
		script.Version = 1
	}
	if script.Version != 1 {
		return nil, fmt.Errorf("unsupported scenario version %d", script.Version)
	}
	if !script.Start.IsZero() && script.Start.Before(fix.Epoch) {
		return nil, fmt.Errorf("start %s is before %d", script.Start.Format(time.RFC3339), fix.Epoch.Year())
	}
	if len(script.Keyframes) == 0 {
		return nil, fmt.Errorf("keyframes is required")
	}
	for i, kf := range script.Keyframes {
		if kf.T < 0 {
			return nil, fmt.Errorf("keyframes[%d].t must be >= 0", i)
		}
		if i > 0 && kf.T < script.Keyframes[i-1].T {
			return nil, fmt.Errorf("keyframes must be sorted by t (index %d)", i)
		}
		if kf.Mode == 0 {
			script.Keyframes[i].Mode = uint8(fix.Mode3D)
		}
	}

	dur := script.Duration
	if dur <= 0 {
		dur = script.Keyframes[len(script.Keyframes)-1].T
	}
	if dur <= 0 {
		return nil, fmt.Errorf("duration is required (or deriveable from keyframes)")
	}
	return &Scenario{script: script, duration: dur}, nil
}

// Duration returns the effective scenario duration.
func (s *Scenario) Duration() time.Duration {
	if s == nil {
		return 0
	}
	return s.duration
}

// FixAt computes the fix at elapsed. The fix time is start+elapsed, where start
// is the script's start or, when unset, the start argument.
//
// If loop is true, the sampled keyframe position wraps around Duration() while
// the timestamp keeps advancing. Otherwise elapsed is clamped to
// [0, Duration()] for sampling.
func (s *Scenario) FixAt(start time.Time, elapsed time.Duration, loop bool) fix.Snapshot {
	if s == nil {
		return fix.Snapshot{}
	}
	if elapsed < 0 {
		elapsed = 0
	}
	if !s.script.Start.IsZero() {
		start = s.script.Start
	}
	stamp := start.Add(elapsed)

	sample := elapsed
	if loop {
		sample = elapsed % s.duration
	} else if sample > s.duration {
		sample = s.duration
	}

	kf0, kf1, alpha := selectSegment(s.script.Keyframes, sample)
	d, tod := fix.DateTimeOf(stamp)
	return fix.Snapshot{
		Date:            d,
		Time:            tod,
		LatDeg:          lerp(kf0.LatDeg, kf1.LatDeg, alpha),
		LonDeg:          lerp(kf0.LonDeg, kf1.LonDeg, alpha),
		AltitudeM:       lerp(kf0.AltitudeM, kf1.AltitudeM, alpha),
		GroundSpeedMPS:  lerp(kf0.SpeedMPS, kf1.SpeedMPS, alpha),
		Mode:            fix.Mode(kf0.Mode),
		SatellitesInUse: kf0.Satellites,
	}
}

func selectSegment(kfs []Keyframe, t time.Duration) (Keyframe, Keyframe, float64) {
	if len(kfs) == 1 {
		return kfs[0], kfs[0], 0
	}
	idx := sort.Search(len(kfs), func(i int) bool { return kfs[i].T > t })
	if idx <= 0 {
		return kfs[0], kfs[0], 0
	}
	if idx >= len(kfs) {
		last := kfs[len(kfs)-1]
		return last, last, 0
	}
	k0 := kfs[idx-1]
	k1 := kfs[idx]
	dt := k1.T - k0.T
	if dt <= 0 {
		return k1, k1, 0
	}
	alpha := float64(t-k0.T) / float64(dt)
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}
	return k0, k1, alpha
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
