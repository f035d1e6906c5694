package gps

import (
	"errors"
	"fmt"
	"strconv"

	nmea "github.com/adrianmo/go-nmea"

	"nmea2ubx/internal/fix"
)

// knotsToMPS converts nautical miles per hour to meters per second.
const knotsToMPS = 1852.0 / 3600.0

// statementMask records which sentences of the current cycle have been seen.
type statementMask uint8

const (
	seenGGA statementMask = 1 << iota
	seenGSA
	seenRMC

	seenCycle = seenGGA | seenGSA | seenRMC
)

type lineResult int

const (
	lineIgnored lineResult = iota
	lineFix
	lineUnknown
)

// nmeaState accumulates one receiver cycle of NMEA sentences into a fix.
type nmeaState struct {
	mask   statementMask
	cur    fix.Snapshot
	dateOK bool
}

// handleLine parses one NMEA line. A lineFix result means st.cur holds a
// complete fix for the cycle that just ended. Sentence types the fix does not
// use, including ones go-nmea cannot parse, are reported as lineUnknown.
func (st *nmeaState) handleLine(line string) (lineResult, error) {
	sent, err := nmea.Parse(line)
	if err != nil {
		var unsupported *nmea.NotSupportedError
		if errors.As(err, &unsupported) {
			return lineUnknown, nil
		}
		return lineIgnored, fmt.Errorf("nmea parse failed: %v", err)
	}
	switch sent.DataType() {
	case nmea.TypeRMC, nmea.TypeGGA, nmea.TypeGSA, nmea.TypeVTG:
	case nmea.TypeGSV, nmea.TypeGLL:
		return lineIgnored, nil
	default:
		return lineUnknown, nil
	}
	st.apply(sent)

	if st.mask&seenCycle != seenCycle {
		return lineIgnored, nil
	}
	st.mask = 0
	if !st.dateOK {
		return lineIgnored, fmt.Errorf("nmea cycle complete but no RMC date yet")
	}
	return lineFix, nil
}

func (st *nmeaState) apply(sent nmea.Sentence) {
	switch m := sent.(type) {
	case nmea.RMC:
		st.setTime(m.Time)
		if m.Date.Valid {
			st.cur.Date = fix.Date{Day: uint8(m.Date.DD), Month: uint8(m.Date.MM), Year: uint16(m.Date.YY)}
			st.dateOK = true
		}
		st.cur.LatDeg = m.Latitude
		st.cur.LonDeg = m.Longitude
		st.cur.GroundSpeedMPS = m.Speed * knotsToMPS
		st.mask |= seenRMC
	case nmea.GGA:
		st.setTime(m.Time)
		st.cur.LatDeg = m.Latitude
		st.cur.LonDeg = m.Longitude
		st.cur.SatellitesInUse = uint8(m.NumSatellites)
		// GGA altitude is above mean sea level; add the geoid separation to get
		// height above the ellipsoid.
		st.cur.AltitudeM = m.Altitude + m.Separation
		st.mask |= seenGGA
	case nmea.GSA:
		st.cur.Mode = fix.ModeInvalid
		if n, err := strconv.Atoi(m.FixType); err == nil {
			st.cur.Mode = fix.Mode(n)
		}
		st.mask |= seenGSA
	case nmea.VTG:
		st.cur.GroundSpeedMPS = m.GroundSpeedKnots * knotsToMPS
	}
}

func (st *nmeaState) setTime(t nmea.Time) {
	if !t.Valid {
		return
	}
	st.cur.Time = fix.TimeOfDay{
		Hour:        uint8(t.Hour),
		Minute:      uint8(t.Minute),
		Second:      uint8(t.Second),
		Millisecond: uint16(t.Millisecond),
	}
}
