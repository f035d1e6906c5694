package ubx

import (
	"fmt"
	"math"

	"nmea2ubx/internal/fix"
)

const (
	degreeScale = 1e7 // 1e-7 deg per LSB
	milliScale  = 1e3 // m -> mm, m/s -> mm/s
)

// FixType is the NAV-PVT fixType code.
type FixType uint8

const (
	FixNone              FixType = 0
	FixDeadReckoning     FixType = 1
	Fix2D                FixType = 2
	Fix3D                FixType = 3
	FixGNSSDeadReckoning FixType = 4
	FixTimeOnly          FixType = 5

	// FixUnspecified is emitted for fix modes the encoder does not know.
	FixUnspecified FixType = 0
)

func (f FixType) String() string {
	switch f {
	case FixNone:
		return "no-fix"
	case FixDeadReckoning:
		return "dead-reckoning"
	case Fix2D:
		return "2d"
	case Fix3D:
		return "3d"
	case FixGNSSDeadReckoning:
		return "gnss+dr"
	case FixTimeOnly:
		return "time-only"
	default:
		return fmt.Sprintf("reserved(%d)", uint8(f))
	}
}

// MapFixMode maps the parser's fix mode onto the wire code. It never fails.
func MapFixMode(m fix.Mode) FixType {
	switch m {
	case fix.ModeInvalid:
		return FixNone
	case fix.Mode2D:
		return Fix2D
	case fix.Mode3D:
		return Fix3D
	default:
		return FixUnspecified
	}
}

// DegreesToFixed scales degrees to 1e-7 degree units, truncating toward zero.
func DegreesToFixed(deg float64) (int32, error) {
	return scaleToInt32(deg, degreeScale)
}

// MetersToMillimeters scales meters (or m/s) by 1000, truncating toward zero.
func MetersToMillimeters(m float64) (int32, error) {
	return scaleToInt32(m, milliScale)
}

func scaleToInt32(v, scale float64) (int32, error) {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: %v is not finite", ErrFieldOverflow, v)
	}
	scaled := math.Trunc(v * scale)
	if scaled > math.MaxInt32 || scaled < math.MinInt32 {
		return 0, fmt.Errorf("%w: %v scales to %.0f", ErrFieldOverflow, v, scaled)
	}
	return int32(scaled), nil
}
