package gps

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"strings"
	"time"

	"nmea2ubx/internal/fix"
)

const gpsdDefaultAddr = "127.0.0.1:2947"

// dialGPSD connects to gpsd over TCP.
func dialGPSD(ctx context.Context, addr string) (net.Conn, error) {
	if strings.TrimSpace(addr) == "" {
		addr = gpsdDefaultAddr
	}
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

// gpsdWatch enables JSON streaming reports.
func gpsdWatch(w io.Writer) error {
	// scaled=true yields SI units (m/s, meters) and degrees.
	_, err := w.Write([]byte("?WATCH={\"enable\":true,\"json\":true,\"scaled\":true}\n"))
	return err
}

type gpsdMsgBase struct {
	Class string `json:"class"`
}

type gpsdTPV struct {
	Class string `json:"class"`
	Mode  *int   `json:"mode"`
	Time  string `json:"time"`

	Lat *float64 `json:"lat"`
	Lon *float64 `json:"lon"`

	Alt     *float64 `json:"alt"`
	AltHAE  *float64 `json:"altHAE"`
	SpeedMS *float64 `json:"speed"`
}

type gpsdSat struct {
	Used bool `json:"used"`
}

type gpsdSKY struct {
	Class      string    `json:"class"`
	Satellites []gpsdSat `json:"satellites"`
	USat       *int      `json:"uSat"`
}

// gpsdState folds TPV and SKY reports into fix snapshots. A TPV with a time
// and a mode closes a cycle.
type gpsdState struct {
	cur fix.Snapshot
}

func (s *gpsdState) applyLine(line string) (bool, error) {
	var base gpsdMsgBase
	if err := json.Unmarshal([]byte(line), &base); err != nil {
		return false, fmt.Errorf("gpsd json parse failed: %v", err)
	}

	switch strings.ToUpper(strings.TrimSpace(base.Class)) {
	case "TPV":
		var tpv gpsdTPV
		if err := json.Unmarshal([]byte(line), &tpv); err != nil {
			return false, fmt.Errorf("gpsd tpv parse failed: %v", err)
		}
		return s.applyTPV(tpv)
	case "SKY":
		var sky gpsdSKY
		if err := json.Unmarshal([]byte(line), &sky); err != nil {
			return false, fmt.Errorf("gpsd sky parse failed: %v", err)
		}
		s.applySKY(sky)
		return false, nil
	default:
		// VERSION/DEVICES/WATCH and friends.
		return false, nil
	}
}

func (s *gpsdState) applyTPV(tpv gpsdTPV) (bool, error) {
	if tpv.Mode == nil || strings.TrimSpace(tpv.Time) == "" {
		return false, nil
	}
	ts, err := time.Parse(time.RFC3339Nano, tpv.Time)
	if err != nil {
		return false, fmt.Errorf("gpsd tpv time %q: %v", tpv.Time, err)
	}
	if ts.Before(fix.Epoch) {
		return false, fmt.Errorf("gpsd tpv time %q is before %d", tpv.Time, fix.Epoch.Year())
	}
	s.cur.Date, s.cur.Time = fix.DateTimeOf(ts)

	switch *tpv.Mode {
	case 2:
		s.cur.Mode = fix.Mode2D
	case 3:
		s.cur.Mode = fix.Mode3D
	default:
		// gpsd 0 (unseen) and 1 (no fix).
		s.cur.Mode = fix.ModeInvalid
	}

	if tpv.Lat != nil {
		s.cur.LatDeg = *tpv.Lat
	}
	if tpv.Lon != nil {
		s.cur.LonDeg = *tpv.Lon
	}
	alt := tpv.AltHAE
	if alt == nil {
		alt = tpv.Alt
	}
	if alt != nil {
		s.cur.AltitudeM = *alt
	}
	if tpv.SpeedMS != nil {
		s.cur.GroundSpeedMPS = *tpv.SpeedMS
	}
	return true, nil
}

func (s *gpsdState) applySKY(sky gpsdSKY) {
	if sky.USat != nil {
		s.cur.SatellitesInUse = clampSats(*sky.USat)
		return
	}
	if len(sky.Satellites) == 0 {
		return
	}
	used := 0
	for _, sat := range sky.Satellites {
		if sat.Used {
			used++
		}
	}
	s.cur.SatellitesInUse = clampSats(used)
}

func clampSats(n int) uint8 {
	if n < 0 {
		return 0
	}
	if n > 255 {
		return 255
	}
	return uint8(n)
}
