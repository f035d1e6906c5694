package sim

import (
	"math"
	"time"

	"nmea2ubx/internal/fix"
)

const metersPerDegLat = 111_320.0

// Orbit is a synthetic receiver flying a figure-eight around a center point.
type Orbit struct {
	CenterLatDeg float64
	CenterLonDeg float64
	AltitudeM    float64
	SpeedMPS     float64
	RadiusM      float64
	Period       time.Duration
	Satellites   uint8
}

func (o Orbit) withDefaults() Orbit {
	if o.Period <= 0 {
		o.Period = 120 * time.Second
	}
	if o.RadiusM <= 0 {
		o.RadiusM = 1000
	}
	if o.Satellites == 0 {
		o.Satellites = 10
	}
	return o
}

// Position returns a deterministic point on the path for now.
func (o Orbit) Position(now time.Time) (latDeg, lonDeg, trackDeg float64) {
	o = o.withDefaults()
	radiusDeg := o.RadiusM / metersPerDegLat

	phase := float64(now.UnixNano()%o.Period.Nanoseconds()) / float64(o.Period.Nanoseconds())

	// Lissajous figure-eight:
	//	x = cos(2πt)
	//	y = 0.5*sin(4πt)
	w := 2 * math.Pi * phase
	x := math.Cos(w)
	y := 0.5 * math.Sin(2*w)

	latDeg = o.CenterLatDeg + radiusDeg*y
	lonDeg = o.CenterLonDeg + (radiusDeg*x)/math.Cos(o.CenterLatDeg*math.Pi/180.0)

	vx := -2 * math.Pi * math.Sin(w)
	vy := 2 * math.Pi * math.Cos(2*w)
	trackDeg = math.Mod((math.Atan2(vx, vy)*180/math.Pi)+360, 360)
	return latDeg, lonDeg, trackDeg
}

// AltitudeAt oscillates 150 m around AltitudeM on half the horizontal period.
func (o Orbit) AltitudeAt(now time.Time) float64 {
	o = o.withDefaults()
	vp := o.Period / 2
	if vp < 30*time.Second {
		vp = 30 * time.Second
	}
	phase := float64(now.UnixNano()%vp.Nanoseconds()) / float64(vp.Nanoseconds())
	return o.AltitudeM + 150*math.Sin(2*math.Pi*phase)
}

// Fix returns the 3D fix the orbit reports at now.
func (o Orbit) Fix(now time.Time) fix.Snapshot {
	o = o.withDefaults()
	lat, lon, _ := o.Position(now)
	d, tod := fix.DateTimeOf(now)
	return fix.Snapshot{
		Date:            d,
		Time:            tod,
		LatDeg:          lat,
		LonDeg:          lon,
		AltitudeM:       o.AltitudeAt(now),
		GroundSpeedMPS:  o.SpeedMPS,
		Mode:            fix.Mode3D,
		SatellitesInUse: o.Satellites,
	}
}
