package ubx

import (
	"fmt"

	"nmea2ubx/internal/fix"
)

const (
	Sync1 byte = 0xB5
	Sync2 byte = 0x62

	ClassNAV byte = 0x01
	IDNAVPVT byte = 0x07

	// PayloadLen is the NAV-PVT payload size in bytes.
	PayloadLen = 92

	headerLen   = 6 // sync(2) + class + id + length(2)
	checksumLen = 2

	// FrameLen is the total size of an encoded NAV-PVT packet.
	FrameLen = headerLen + PayloadLen + checksumLen

	reservedLen = 4
)

// NavPVT is the NAV-PVT payload record. Field order matches the wire layout.
type NavPVT struct {
	ITOW    uint32 // ms
	Year    uint16
	Month   uint8
	Day     uint8
	Hour    uint8
	Min     uint8
	Sec     uint8
	Valid   uint8
	TAcc    uint32 // ns
	Nano    int32  // ns
	FixType FixType
	Flags   uint8
	Flags2  uint8
	NumSV   uint8
	Lon     int32 // 1e-7 deg
	Lat     int32 // 1e-7 deg
	Height  int32 // mm above ellipsoid
	HMSL    int32 // mm above mean sea level
	HAcc    uint32
	VAcc    uint32
	VelN    int32 // mm/s
	VelE    int32
	VelD    int32
	GSpeed  int32 // mm/s
	HeadMot int32 // 1e-5 deg
	SAcc    uint32
	HeadAcc uint32
	PDOP    uint16 // 0.01
	Flags3  uint16
	HeadVeh int32
	MagDec  int16
	MagAcc  uint16
}

// NewNavPVT maps a fix snapshot onto a NAV-PVT record. Fields the NMEA fix
// cannot supply (accuracies, NED velocity, headings, DOP, geoid height) are
// left at zero.
func NewNavPVT(s fix.Snapshot) (NavPVT, error) {
	p, field, err := mapSnapshot(s)
	if err != nil {
		return NavPVT{}, fmt.Errorf("ubx: %s: %w", field, err)
	}
	return p, nil
}

// mapSnapshot returns the name of the offending field along with any error.
func mapSnapshot(s fix.Snapshot) (NavPVT, string, error) {
	if field, err := validateSnapshot(s); err != nil {
		return NavPVT{}, field, err
	}

	year := s.Date.FullYear()
	if year > 0xFFFF {
		return NavPVT{}, "year", fmt.Errorf("%w: %d does not fit uint16", ErrFieldOverflow, year)
	}

	lon, err := DegreesToFixed(s.LonDeg)
	if err != nil {
		return NavPVT{}, "lon", err
	}
	lat, err := DegreesToFixed(s.LatDeg)
	if err != nil {
		return NavPVT{}, "lat", err
	}
	height, err := MetersToMillimeters(s.AltitudeM)
	if err != nil {
		return NavPVT{}, "height", err
	}
	gSpeed, err := MetersToMillimeters(s.GroundSpeedMPS)
	if err != nil {
		return NavPVT{}, "gSpeed", err
	}

	return NavPVT{
		ITOW: TimeOfWeek(year, int(s.Date.Month), int(s.Date.Day),
			int(s.Time.Hour), int(s.Time.Minute), int(s.Time.Second), int(s.Time.Millisecond)),
		Year:    uint16(year),
		Month:   s.Date.Month,
		Day:     s.Date.Day,
		Hour:    s.Time.Hour,
		Min:     s.Time.Minute,
		Sec:     s.Time.Second,
		FixType: MapFixMode(s.Mode),
		NumSV:   s.SatellitesInUse,
		Lon:     lon,
		Lat:     lat,
		Height:  height,
		GSpeed:  gSpeed,
	}, "", nil
}

func validateSnapshot(s fix.Snapshot) (string, error) {
	switch {
	case s.Date.Month < 1 || s.Date.Month > 12:
		return "month", fmt.Errorf("%w: month %d", ErrInvalidSnapshot, s.Date.Month)
	case s.Date.Day < 1 || s.Date.Day > 31:
		return "day", fmt.Errorf("%w: day %d", ErrInvalidSnapshot, s.Date.Day)
	case s.Time.Hour > 23:
		return "hour", fmt.Errorf("%w: hour %d", ErrInvalidSnapshot, s.Time.Hour)
	case s.Time.Minute > 59:
		return "min", fmt.Errorf("%w: minute %d", ErrInvalidSnapshot, s.Time.Minute)
	case s.Time.Second > 59:
		return "sec", fmt.Errorf("%w: second %d", ErrInvalidSnapshot, s.Time.Second)
	case s.Time.Millisecond > 999:
		return "millisecond", fmt.Errorf("%w: millisecond %d", ErrInvalidSnapshot, s.Time.Millisecond)
	}
	return "", nil
}

// writePayload serializes p in wire order. The order here is the format.
func (p *NavPVT) writePayload(w *Writer) {
	Put(w, p.ITOW)
	Put(w, p.Year)
	Put(w, p.Month)
	Put(w, p.Day)
	Put(w, p.Hour)
	Put(w, p.Min)
	Put(w, p.Sec)
	Put(w, p.Valid)
	Put(w, p.TAcc)
	Put(w, p.Nano)
	Put(w, p.FixType)
	Put(w, p.Flags)
	Put(w, p.Flags2)
	Put(w, p.NumSV)
	Put(w, p.Lon)
	Put(w, p.Lat)
	Put(w, p.Height)
	Put(w, p.HMSL)
	Put(w, p.HAcc)
	Put(w, p.VAcc)
	Put(w, p.VelN)
	Put(w, p.VelE)
	Put(w, p.VelD)
	Put(w, p.GSpeed)
	Put(w, p.HeadMot)
	Put(w, p.SAcc)
	Put(w, p.HeadAcc)
	Put(w, p.PDOP)
	Put(w, p.Flags3)
	w.Zero(reservedLen)
	Put(w, p.HeadVeh)
	Put(w, p.MagDec)
	Put(w, p.MagAcc)
}

func (p *NavPVT) readPayload(r *reader) {
	p.ITOW = get[uint32](r)
	p.Year = get[uint16](r)
	p.Month = get[uint8](r)
	p.Day = get[uint8](r)
	p.Hour = get[uint8](r)
	p.Min = get[uint8](r)
	p.Sec = get[uint8](r)
	p.Valid = get[uint8](r)
	p.TAcc = get[uint32](r)
	p.Nano = get[int32](r)
	p.FixType = get[FixType](r)
	p.Flags = get[uint8](r)
	p.Flags2 = get[uint8](r)
	p.NumSV = get[uint8](r)
	p.Lon = get[int32](r)
	p.Lat = get[int32](r)
	p.Height = get[int32](r)
	p.HMSL = get[int32](r)
	p.HAcc = get[uint32](r)
	p.VAcc = get[uint32](r)
	p.VelN = get[int32](r)
	p.VelE = get[int32](r)
	p.VelD = get[int32](r)
	p.GSpeed = get[int32](r)
	p.HeadMot = get[int32](r)
	p.SAcc = get[uint32](r)
	p.HeadAcc = get[uint32](r)
	p.PDOP = get[uint16](r)
	p.Flags3 = get[uint16](r)
	r.skip(reservedLen)
	p.HeadVeh = get[int32](r)
	p.MagDec = get[int16](r)
	p.MagAcc = get[uint16](r)
}
