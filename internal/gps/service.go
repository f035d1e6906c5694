package gps

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"nmea2ubx/internal/fix"
	"nmea2ubx/internal/sim"
)

// Config controls the fix source.
//
// Device may be empty for Source=="nmea" to auto-detect /dev/ttyACM* and
// /dev/ttyUSB*. Baud defaults to 9600, the u-blox factory rate.
type Config struct {
	Enable bool

	// Source selects how fixes are ingested: "nmea" (serial), "file", "tcp",
	// "gpsd" or "sim". When empty, defaults to "nmea".
	Source string

	// Device is the serial device path for "nmea" or the capture path for "file".
	Device string
	Baud   int

	// GPSDAddr is host:port for gpsd when Source=="gpsd".
	GPSDAddr string

	// TCPAddr is host:port of an NMEA stream when Source=="tcp".
	TCPAddr string

	Sim SimConfig
}

// SimConfig drives Source=="sim". Script, when set, is a scenario file that
// takes precedence over Orbit.
type SimConfig struct {
	Interval time.Duration
	Script   string
	Loop     bool
	Orbit    sim.Orbit
}

// Status is the service's externally visible state.
type Status struct {
	Enabled bool `json:"enabled"`
	Valid   bool `json:"valid"`

	Source   string `json:"source,omitempty"`
	Device   string `json:"device,omitempty"`
	Baud     int    `json:"baud,omitempty"`
	GPSDAddr string `json:"gpsd_addr,omitempty"`
	TCPAddr  string `json:"tcp_addr,omitempty"`

	Fixes   uint64 `json:"fixes"`
	Unknown uint64 `json:"unknown_statements"`

	LatDeg     float64 `json:"lat_deg,omitempty"`
	LonDeg     float64 `json:"lon_deg,omitempty"`
	AltitudeM  float64 `json:"altitude_m,omitempty"`
	Mode       string  `json:"mode,omitempty"`
	Satellites int     `json:"satellites"`

	LastFixUTC string `json:"last_fix_utc,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

type Service struct {
	cfg Config
	h   fix.Handler
	now func() time.Time

	cancel context.CancelFunc
	wg     sync.WaitGroup

	last atomic.Value // Status

	mu     sync.Mutex
	closer io.Closer
}

// New returns a stopped service that will notify h.
func New(cfg Config, h fix.Handler) *Service {
	if h == nil {
		h = fix.HandlerFuncs{}
	}
	s := &Service{cfg: cfg, h: h, now: time.Now}
	s.last.Store(Status{
		Enabled:  cfg.Enable,
		Source:   sourceOf(cfg),
		Device:   cfg.Device,
		Baud:     cfg.Baud,
		GPSDAddr: strings.TrimSpace(cfg.GPSDAddr),
		TCPAddr:  strings.TrimSpace(cfg.TCPAddr),
	})
	return s
}

func sourceOf(cfg Config) string {
	src := strings.ToLower(strings.TrimSpace(cfg.Source))
	if src == "" {
		src = "nmea"
	}
	return src
}

func (s *Service) Start(ctx context.Context) error {
	if s == nil {
		return fmt.Errorf("gps service is nil")
	}
	if !s.cfg.Enable {
		return nil
	}
	if ctx == nil {
		return fmt.Errorf("ctx is nil")
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return nil
	}

	switch src := sourceOf(s.cfg); src {
	case "nmea":
		return s.startNMEALocked(ctx)
	case "file":
		return s.startFileLocked(ctx)
	case "gpsd":
		return s.startGPSDLocked(ctx)
	case "tcp":
		return s.startTCPLocked(ctx)
	case "sim":
		return s.startSimLocked(ctx)
	default:
		return fmt.Errorf("unknown gps source %q", src)
	}
}

// Done is closed once the source goroutine has exited. A "file" source exits
// at end of input; the others run until Close or context cancellation.
func (s *Service) Done() <-chan struct{} {
	ch := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(ch)
	}()
	return ch
}

func (s *Service) startNMEALocked(ctx context.Context) error {
	device := strings.TrimSpace(s.cfg.Device)
	if device == "" {
		device = autoDetectDevice()
		if device == "" {
			s.setErrorLocked("gps auto-detect failed: no /dev/ttyACM* or /dev/ttyUSB* found")
			return fmt.Errorf("gps auto-detect failed")
		}
	}
	baud := s.cfg.Baud
	if baud == 0 {
		baud = 9600
	}

	f, err := openSerial(device, baud)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gps open failed device=%s baud=%d: %v", device, baud, err))
		return err
	}
	s.closer = f
	s.updateLocked(func(st *Status) { st.Device = device; st.Baud = baud })

	log.Printf("gps enabled source=nmea device=%s baud=%d", device, baud)
	s.runLocked(ctx, func(ctx context.Context) {
		defer func() { _ = f.Close() }()
		if err := s.consumeNMEA(ctx, f); ctx.Err() == nil {
			s.setError(fmt.Sprintf("gps read stopped: %v", err))
		}
	})
	return nil
}

func (s *Service) startFileLocked(ctx context.Context) error {
	path := strings.TrimSpace(s.cfg.Device)
	if path == "" {
		return fmt.Errorf("gps file source requires a device path")
	}
	f, err := os.Open(path)
	if err != nil {
		s.setErrorLocked(fmt.Sprintf("gps open failed path=%s: %v", path, err))
		return err
	}
	s.closer = f

	log.Printf("gps enabled source=file path=%s", path)
	s.runLocked(ctx, func(ctx context.Context) {
		defer func() { _ = f.Close() }()
		if err := s.consumeNMEA(ctx, f); err != nil && err != io.EOF && ctx.Err() == nil {
			s.setError(fmt.Sprintf("gps read stopped: %v", err))
		}
	})
	return nil
}

// consumeNMEA reads NMEA lines from r until it fails or ctx ends. It returns
// io.EOF at end of input.
func (s *Service) consumeNMEA(ctx context.Context, r io.Reader) error {
	scanner := bufio.NewScanner(r)
	// NMEA sentences are at most 82 chars, but allow some headroom.
	scanner.Buffer(make([]byte, 0, 256), 4096)

	var st nmeaState
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return io.EOF
		}

		line := strings.TrimSpace(scanner.Text())
		// Some receivers interleave binary or non-NMEA chatter.
		if line == "" || line[0] != '$' {
			continue
		}

		res, err := st.handleLine(line)
		if err != nil {
			// Noise is common on a serial line; keep only the last error.
			s.setError(err.Error())
			continue
		}
		switch res {
		case lineFix:
			s.publish(st.cur)
		case lineUnknown:
			s.unknown(line)
		}
	}
}

func (s *Service) startGPSDLocked(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.GPSDAddr)
	if addr == "" {
		addr = gpsdDefaultAddr
	}
	s.updateLocked(func(st *Status) { st.GPSDAddr = addr; st.Device = "gpsd" })

	log.Printf("gps enabled source=gpsd addr=%s", addr)
	s.runLocked(ctx, func(ctx context.Context) {
		s.dialLoop(ctx, "gpsd", addr, dialGPSD, func(ctx context.Context, conn net.Conn) error {
			return s.consumeGPSD(ctx, conn)
		})
	})
	return nil
}

func (s *Service) consumeGPSD(ctx context.Context, conn io.ReadWriter) error {
	if err := gpsdWatch(conn); err != nil {
		return fmt.Errorf("gpsd watch failed: %v", err)
	}

	scanner := bufio.NewScanner(conn)
	scanner.Buffer(make([]byte, 0, 4096), 256*1024)
	var st gpsdState
	for {
		if err := ctx.Err(); err != nil {
			return err
		}
		if !scanner.Scan() {
			if err := scanner.Err(); err != nil {
				return err
			}
			return io.EOF
		}
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		ready, err := st.applyLine(line)
		if err != nil {
			s.setError(err.Error())
			continue
		}
		if ready {
			s.publish(st.cur)
		}
	}
}

func (s *Service) startSimLocked(ctx context.Context) error {
	interval := s.cfg.Sim.Interval
	if interval <= 0 {
		interval = time.Second
	}

	var next func(now time.Time, elapsed time.Duration) fix.Snapshot
	if path := strings.TrimSpace(s.cfg.Sim.Script); path != "" {
		script, err := sim.LoadScenarioScript(path)
		if err != nil {
			return fmt.Errorf("gps sim script load failed: %w", err)
		}
		scn, err := sim.NewScenario(script)
		if err != nil {
			return fmt.Errorf("gps sim script invalid: %w", err)
		}
		start := s.now().UTC()
		next = func(_ time.Time, elapsed time.Duration) fix.Snapshot {
			return scn.FixAt(start, elapsed, s.cfg.Sim.Loop)
		}
		log.Printf("gps enabled source=sim script=%s interval=%s loop=%t", path, interval, s.cfg.Sim.Loop)
	} else {
		orbit := s.cfg.Sim.Orbit
		next = func(now time.Time, _ time.Duration) fix.Snapshot {
			return orbit.Fix(now)
		}
		log.Printf("gps enabled source=sim orbit center=%.5f,%.5f interval=%s", orbit.CenterLatDeg, orbit.CenterLonDeg, interval)
	}
	s.updateLocked(func(st *Status) { st.Device = "sim" })

	s.runLocked(ctx, func(ctx context.Context) {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		var elapsed time.Duration
		for {
			s.publish(next(s.now().UTC(), elapsed))
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				elapsed += interval
			}
		}
	})
	return nil
}

func (s *Service) runLocked(ctx context.Context, fn func(ctx context.Context)) {
	childCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		fn(childCtx)
	}()
}

// publish records the fix and hands it to the handler.
func (s *Service) publish(snap fix.Snapshot) {
	s.mu.Lock()
	s.updateLocked(func(st *Status) {
		st.Fixes++
		st.Valid = snap.Mode == fix.Mode2D || snap.Mode == fix.Mode3D
		st.LatDeg = snap.LatDeg
		st.LonDeg = snap.LonDeg
		st.AltitudeM = snap.AltitudeM
		st.Mode = snap.Mode.String()
		st.Satellites = int(snap.SatellitesInUse)
		st.LastFixUTC = s.now().UTC().Format(time.RFC3339Nano)
	})
	s.mu.Unlock()
	s.h.OnFixUpdate(snap)
}

func (s *Service) unknown(line string) {
	s.mu.Lock()
	s.updateLocked(func(st *Status) { st.Unknown++ })
	s.mu.Unlock()
	s.h.OnUnknownStatement(line)
}

func (s *Service) Close() {
	if s == nil {
		return
	}
	s.mu.Lock()
	cancel := s.cancel
	closer := s.closer
	s.cancel = nil
	s.closer = nil
	s.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	if closer != nil {
		_ = closer.Close()
	}
	s.wg.Wait()
}

func (s *Service) Status() Status {
	if s == nil {
		return Status{}
	}
	v := s.last.Load()
	if v == nil {
		return Status{}
	}
	return v.(Status)
}

func (s *Service) updateLocked(fn func(*Status)) {
	cur := s.Status()
	fn(&cur)
	s.last.Store(cur)
}

func (s *Service) setError(msg string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.setErrorLocked(msg)
}

// setErrorLocked does not clear Valid; a transient parse error says nothing
// about the receiver's fix.
func (s *Service) setErrorLocked(msg string) {
	s.updateLocked(func(st *Status) { st.LastError = msg })
}

func autoDetectDevice() string {
	candidates := []string{}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyACM%d", i))
	}
	for i := 0; i < 10; i++ {
		candidates = append(candidates, fmt.Sprintf("/dev/ttyUSB%d", i))
	}
	for _, p := range candidates {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}
