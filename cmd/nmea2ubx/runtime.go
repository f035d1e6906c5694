package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"nmea2ubx/internal/archive"
	"nmea2ubx/internal/bridge"
	"nmea2ubx/internal/config"
	"nmea2ubx/internal/gps"
	"nmea2ubx/internal/mqttout"
	"nmea2ubx/internal/replay"
	"nmea2ubx/internal/serialout"
	"nmea2ubx/internal/sim"
	"nmea2ubx/internal/udp"
	"nmea2ubx/internal/web"
)

type runtime struct {
	cfg     config.Config
	bridge  *bridge.Bridge
	status  *web.Status
	logs    *web.LogBuffer
	packets *web.PacketBroadcaster
	archive *archive.Store

	closeOnce sync.Once
}

func newRuntime(cfg config.Config, logs *web.LogBuffer, stdout io.Writer) (*runtime, error) {
	if err := config.DefaultAndValidate(&cfg); err != nil {
		return nil, err
	}
	rt := &runtime{
		cfg:    cfg,
		bridge: bridge.New(),
		status: web.NewStatus(),
		logs:   logs,
	}
	if err := rt.addSinks(stdout); err != nil {
		_ = rt.bridge.Close()
		return nil, err
	}

	mode := "live"
	if cfg.Replay.Enable {
		mode = "replay"
	}
	rt.status.SetStatic(mode, cfg.Outputs())
	rt.status.SetBridge(rt.bridge.Stats)
	return rt, nil
}

// addSinks opens every enabled output in the order config.Outputs reports.
func (rt *runtime) addSinks(stdout io.Writer) error {
	o := rt.cfg.Output
	if o.StdoutHex {
		if stdout == nil {
			return fmt.Errorf("stdout_hex enabled without a writer")
		}
		rt.bridge.Add(bridge.NewHexSink(stdout))
	}
	if o.StdoutText {
		if stdout == nil {
			return fmt.Errorf("stdout_text enabled without a writer")
		}
		rt.bridge.Add(bridge.NewTextSink(stdout))
	}
	if o.UDP.Enable {
		b, err := udp.NewBroadcaster(o.UDP.Dests...)
		if err != nil {
			return fmt.Errorf("udp output: %w", err)
		}
		rt.bridge.Add(b)
		log.Printf("output udp dests=%s", strings.Join(o.UDP.Dests, ","))
	}
	if o.Serial.Enable {
		p, err := serialout.Open(serialout.Config{Device: o.Serial.Device, Baud: o.Serial.Baud})
		if err != nil {
			return fmt.Errorf("serial output: %w", err)
		}
		rt.bridge.Add(p)
		log.Printf("output serial device=%s baud=%d", o.Serial.Device, o.Serial.Baud)
	}
	if o.MQTT.Enable {
		p, err := mqttout.Connect(mqttout.Config{
			Broker:   o.MQTT.Broker,
			ClientID: o.MQTT.ClientID,
			Topic:    o.MQTT.Topic,
			QoS:      byte(o.MQTT.QoS),
			Retained: o.MQTT.Retained,
			Timeout:  o.MQTT.Timeout,
		})
		if err != nil {
			return fmt.Errorf("mqtt output: %w", err)
		}
		rt.bridge.Add(p)
		log.Printf("output mqtt broker=%s topic=%s qos=%d", o.MQTT.Broker, o.MQTT.Topic, o.MQTT.QoS)
	}
	if o.Record.Enable {
		w, err := replay.CreateWriter(o.Record.Path)
		if err != nil {
			return fmt.Errorf("record output: %w", err)
		}
		rt.bridge.Add(w)
		log.Printf("output record path=%s", o.Record.Path)
	}
	if o.Archive.Enable {
		st, err := archive.Open(archive.Config{Path: o.Archive.Path, MaxRecords: o.Archive.MaxRecords}, log.Default())
		if err != nil {
			return fmt.Errorf("archive output: %w", err)
		}
		rt.archive = st
		rt.bridge.Add(st)
	}
	if rt.cfg.Web.Enable {
		rt.packets = web.NewPacketBroadcaster()
		rt.bridge.Add(rt.packets)
	}
	return nil
}

func gpsConfig(c config.GPSConfig) gps.Config {
	return gps.Config{
		Enable:   c.Enable,
		Source:   c.Source,
		Device:   c.Device,
		Baud:     c.Baud,
		TCPAddr:  c.TCPAddr,
		GPSDAddr: c.GPSDAddr,
		Sim: gps.SimConfig{
			Interval: c.Sim.Interval,
			Script:   c.Sim.Scenario,
			Loop:     c.Sim.Loop,
			Orbit: sim.Orbit{
				CenterLatDeg: c.Sim.CenterLatDeg,
				CenterLonDeg: c.Sim.CenterLonDeg,
				AltitudeM:    c.Sim.AltitudeM,
				SpeedMPS:     c.Sim.SpeedMPS,
				RadiusM:      c.Sim.RadiusM,
				Period:       c.Sim.Period,
				Satellites:   c.Sim.Satellites,
			},
		},
	}
}

func (rt *runtime) webDeps() web.Deps {
	d := web.Deps{Status: rt.status, Logs: rt.logs, Packets: rt.packets}
	if rt.archive != nil {
		d.Archive = rt.archive
	}
	return d
}

// Run blocks until ctx ends, the replay finishes, or a file source reaches
// end of input.
func (rt *runtime) Run(ctx context.Context) error {
	if rt.cfg.Web.Enable {
		go func() {
			log.Printf("web listening on %s", rt.cfg.Web.Listen)
			if err := web.Serve(ctx, rt.cfg.Web.Listen, web.Handler(rt.webDeps())); err != nil && ctx.Err() == nil {
				log.Printf("web server stopped: %v", err)
			}
		}()
	}

	if rt.cfg.Replay.Enable {
		return rt.runReplay(ctx)
	}
	return rt.runLive(ctx)
}

func (rt *runtime) runReplay(ctx context.Context) error {
	r := rt.cfg.Replay
	recs, err := replay.Open(r.Path)
	if err != nil {
		return fmt.Errorf("replay open: %w", err)
	}
	if err := replay.VerifyRecords(recs); err != nil {
		return fmt.Errorf("replay verify: %w", err)
	}
	log.Printf("replay starting path=%s records=%d speed=%.2f loop=%t", r.Path, len(recs), r.Speed, r.Loop)

	err = replay.Play(ctx, recs, r.Speed, r.Loop, nil, func(packet []byte) error {
		rt.bridge.Forward(packet)
		return nil
	})
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return nil
	}
	if err == nil {
		log.Printf("replay finished path=%s", r.Path)
	}
	return err
}

func (rt *runtime) runLive(ctx context.Context) error {
	if !rt.cfg.GPS.Enable {
		log.Printf("gps disabled; waiting for shutdown")
		<-ctx.Done()
		return nil
	}

	svc := gps.New(gpsConfig(rt.cfg.GPS), rt.bridge)
	rt.status.SetGPS(svc.Status)
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("gps start: %w", err)
	}
	defer svc.Close()

	select {
	case <-ctx.Done():
	case <-svc.Done():
		st := svc.Status()
		log.Printf("gps source finished fixes=%d last_error=%q", st.Fixes, st.LastError)
	}
	return nil
}

// Close flushes and closes every sink. It is safe to call more than once.
func (rt *runtime) Close() {
	rt.closeOnce.Do(func() {
		if err := rt.bridge.Close(); err != nil {
			log.Printf("close outputs: %v", err)
		}
		st := rt.bridge.Stats()
		log.Printf("packets encoded=%d forwarded=%d failed=%d unknown=%d", st.Encoded, st.Forwarded, st.Failed, st.Unknown)
	})
}
