// Package fix defines the decoded GPS fix record handed from a sentence parser
// to its subscribers, and the notification contract between them.
package fix

import (
	"fmt"
	"time"
)

// Mode is the fix dimension as reported by the NMEA GSA sentence.
type Mode uint8

const (
	ModeInvalid Mode = 1
	Mode2D      Mode = 2
	Mode3D      Mode = 3
)

func (m Mode) String() string {
	switch m {
	case ModeInvalid:
		return "invalid"
	case Mode2D:
		return "2d"
	case Mode3D:
		return "3d"
	default:
		return fmt.Sprintf("unknown(%d)", uint8(m))
	}
}

// Date is a UTC calendar date. Year counts from 2000.
type Date struct {
	Day   uint8
	Month uint8
	Year  uint16
}

func (d Date) FullYear() int {
	return 2000 + int(d.Year)
}

// Epoch is the earliest instant a Date can hold.
var Epoch = time.Date(2000, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateTimeOf splits t, converted to UTC, into the parser's date and time of day.
// Instants before Epoch clamp to Epoch.
func DateTimeOf(t time.Time) (Date, TimeOfDay) {
	t = t.UTC()
	if t.Before(Epoch) {
		t = Epoch
	}
	d := Date{Day: uint8(t.Day()), Month: uint8(t.Month()), Year: uint16(t.Year() - 2000)}
	tod := TimeOfDay{
		Hour:        uint8(t.Hour()),
		Minute:      uint8(t.Minute()),
		Second:      uint8(t.Second()),
		Millisecond: uint16(t.Nanosecond() / int(time.Millisecond)),
	}
	return d, tod
}

// TimeOfDay is a UTC time of day.
type TimeOfDay struct {
	Hour        uint8
	Minute      uint8
	Second      uint8
	Millisecond uint16
}

// Snapshot is one resolved fix. It is passed by value so a subscriber can never
// observe the parser mutating it.
type Snapshot struct {
	Date Date
	Time TimeOfDay

	LatDeg float64
	LonDeg float64

	// AltitudeM is the height above the ellipsoid in meters.
	AltitudeM      float64
	GroundSpeedMPS float64

	Mode            Mode
	SatellitesInUse uint8
}

func (s Snapshot) String() string {
	return fmt.Sprintf("%04d-%02d-%02d %02d:%02d:%02d.%03d lat=%.7f lon=%.7f alt=%.2fm speed=%.2fm/s mode=%s sats=%d",
		s.Date.FullYear(), s.Date.Month, s.Date.Day,
		s.Time.Hour, s.Time.Minute, s.Time.Second, s.Time.Millisecond,
		s.LatDeg, s.LonDeg, s.AltitudeM, s.GroundSpeedMPS, s.Mode, s.SatellitesInUse)
}

// Handler receives parser notifications. Implementations are called from the
// parser goroutine, one notification at a time.
type Handler interface {
	// OnFixUpdate is called once per physical fix.
	OnFixUpdate(s Snapshot)
	// OnUnknownStatement carries a sentence the parser does not understand.
	OnUnknownStatement(line string)
}

// HandlerFuncs adapts plain functions to Handler. Nil fields are ignored.
type HandlerFuncs struct {
	FixUpdate        func(s Snapshot)
	UnknownStatement func(line string)
}

func (h HandlerFuncs) OnFixUpdate(s Snapshot) {
	if h.FixUpdate != nil {
		h.FixUpdate(s)
	}
}

func (h HandlerFuncs) OnUnknownStatement(line string) {
	if h.UnknownStatement != nil {
		h.UnknownStatement(line)
	}
}
