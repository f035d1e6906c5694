package web

import (
	"sync/atomic"
	"time"

	"nmea2ubx/internal/bridge"
	"nmea2ubx/internal/gps"
)

// Status aggregates what /api/status reports. The GPS and bridge views are
// pulled on demand from the running components.
type Status struct {
	startUnixNano int64
	mode          atomic.Value // string
	outputs       atomic.Value // []string

	gpsStatus   atomic.Value // func() gps.Status
	bridgeStats atomic.Value // func() bridge.Stats
}

func NewStatus() *Status {
	s := &Status{}
	atomic.StoreInt64(&s.startUnixNano, time.Now().UTC().UnixNano())
	s.mode.Store("")
	s.outputs.Store([]string(nil))
	s.gpsStatus.Store(func() gps.Status { return gps.Status{} })
	s.bridgeStats.Store(func() bridge.Stats { return bridge.Stats{} })
	return s
}

// SetStatic records the run mode ("live" or "replay") and the output sinks.
func (s *Status) SetStatic(mode string, outputs []string) {
	if mode != "" {
		s.mode.Store(mode)
	}
	if outputs != nil {
		s.outputs.Store(append([]string(nil), outputs...))
	}
}

func (s *Status) SetGPS(fn func() gps.Status) {
	if fn != nil {
		s.gpsStatus.Store(fn)
	}
}

func (s *Status) SetBridge(fn func() bridge.Stats) {
	if fn != nil {
		s.bridgeStats.Store(fn)
	}
}

type StatusSnapshot struct {
	Service   string       `json:"service"`
	NowUTC    string       `json:"now_utc"`
	UptimeSec int64        `json:"uptime_sec"`
	Mode      string       `json:"mode"`
	Outputs   []string     `json:"outputs"`
	GPS       gps.Status   `json:"gps"`
	Packets   bridge.Stats `json:"packets"`
}

func (s *Status) Snapshot(nowUTC time.Time) StatusSnapshot {
	if nowUTC.IsZero() {
		nowUTC = time.Now().UTC()
	}
	start := time.Unix(0, atomic.LoadInt64(&s.startUnixNano)).UTC()
	return StatusSnapshot{
		Service:   "nmea2ubx",
		NowUTC:    nowUTC.UTC().Format(time.RFC3339Nano),
		UptimeSec: int64(nowUTC.Sub(start).Seconds()),
		Mode:      s.mode.Load().(string),
		Outputs:   s.outputs.Load().([]string),
		GPS:       s.gpsStatus.Load().(func() gps.Status)(),
		Packets:   s.bridgeStats.Load().(func() bridge.Stats)(),
	}
}
