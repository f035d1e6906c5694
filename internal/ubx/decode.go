package ubx

import (
	"fmt"

	"nmea2ubx/internal/fix"
)

// Unframe validates a UBX frame (sync, length bound, checksum) and returns its
// class, id and payload. The payload aliases frame.
func Unframe(frame []byte) (class, id byte, payload []byte, err error) {
	ckA, ckB, err := FrameChecksum(frame)
	if err != nil {
		return 0, 0, nil, err
	}
	n := int(frame[4]) | int(frame[5])<<8
	end := headerLen + n
	if len(frame) < end+checksumLen {
		return 0, 0, nil, fmt.Errorf("ubx: frame missing checksum: have %d bytes, need %d", len(frame), end+checksumLen)
	}
	if frame[end] != ckA || frame[end+1] != ckB {
		return 0, 0, nil, fmt.Errorf("ubx: checksum mismatch: got %02X %02X want %02X %02X", frame[end], frame[end+1], ckA, ckB)
	}
	return frame[2], frame[3], frame[headerLen:end], nil
}

// ParseNavPVT decodes a framed NAV-PVT packet.
func ParseNavPVT(frame []byte) (NavPVT, error) {
	class, id, payload, err := Unframe(frame)
	if err != nil {
		return NavPVT{}, err
	}
	if class != ClassNAV || id != IDNAVPVT {
		return NavPVT{}, fmt.Errorf("ubx: not NAV-PVT: class=0x%02X id=0x%02X", class, id)
	}
	if len(payload) < PayloadLen {
		return NavPVT{}, fmt.Errorf("ubx: NAV-PVT payload too short: %d", len(payload))
	}
	var p NavPVT
	r := &reader{buf: payload}
	p.readPayload(r)
	if r.err != nil {
		return NavPVT{}, fmt.Errorf("ubx: %w", r.err)
	}
	return p, nil
}

// Snapshot maps a decoded record back onto a fix. Values carry the wire
// resolution (1e-7 deg, mm, mm/s); the millisecond comes from iTOW.
func (p NavPVT) Snapshot() fix.Snapshot {
	var year uint16
	if p.Year > 2000 {
		year = p.Year - 2000
	}
	mode := fix.ModeInvalid
	switch p.FixType {
	case Fix2D:
		mode = fix.Mode2D
	case Fix3D:
		mode = fix.Mode3D
	}
	return fix.Snapshot{
		Date: fix.Date{Day: p.Day, Month: p.Month, Year: year},
		Time: fix.TimeOfDay{
			Hour:        p.Hour,
			Minute:      p.Min,
			Second:      p.Sec,
			Millisecond: uint16(p.ITOW % 1000),
		},
		LatDeg:          float64(p.Lat) / degreeScale,
		LonDeg:          float64(p.Lon) / degreeScale,
		AltitudeM:       float64(p.Height) / milliScale,
		GroundSpeedMPS:  float64(p.GSpeed) / milliScale,
		Mode:            mode,
		SatellitesInUse: p.NumSV,
	}
}
