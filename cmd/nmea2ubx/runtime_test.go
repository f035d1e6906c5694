package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"nmea2ubx/internal/config"
	"nmea2ubx/internal/replay"
	"nmea2ubx/internal/web"
)

func sentence(payload string) string {
	ck := byte(0)
	for i := 0; i < len(payload); i++ {
		ck ^= payload[i]
	}
	return fmt.Sprintf("$%s*%02X", payload, ck)
}

func writeCapture(t *testing.T) string {
	t.Helper()
	lines := []string{
		sentence("GPGGA,120000.00,3733.99000,N,12658.68000,E,1,08,0.9,45.0,M,5.0,M,,"),
		sentence("GPGSA,A,3,04,05,09,12,15,18,21,24,,,,,2.5,1.3,2.1"),
		sentence("GPRMC,120000.00,A,3733.99000,N,12658.68000,E,0.0,,100324,,,A"),
		sentence("GPZDA,120000.00,10,03,2024,00,00"),
		sentence("GPGGA,120001.00,3733.99100,N,12658.68100,E,1,09,0.9,46.0,M,5.0,M,,"),
		sentence("GPGSA,A,3,04,05,09,12,15,18,21,24,27,,,,2.5,1.3,2.1"),
		sentence("GPRMC,120001.00,A,3733.99100,N,12658.68100,E,5.0,,100324,,,A"),
	}
	path := filepath.Join(t.TempDir(), "capture.nmea")
	if err := os.WriteFile(path, []byte(strings.Join(lines, "\r\n")+"\r\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	return path
}

func TestRuntime_FileSourceToRecordArchiveAndHex(t *testing.T) {
	dir := t.TempDir()
	cfg := config.Config{
		GPS: config.GPSConfig{Enable: true, Source: "file", Device: writeCapture(t)},
		Output: config.OutputConfig{
			StdoutHex: true,
			Record:    config.RecordConfig{Enable: true, Path: filepath.Join(dir, "out.ubxlog")},
			Archive:   config.ArchiveOutputConfig{Enable: true, Path: filepath.Join(dir, "archive.db")},
		},
	}

	var hexOut bytes.Buffer
	rt, err := newRuntime(cfg, web.NewLogBuffer(100), &hexOut)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ctx.Err() != nil {
		t.Fatalf("file source did not finish before timeout")
	}

	st := rt.bridge.Stats()
	if st.Encoded != 2 || st.Failed != 0 || st.Unknown != 1 {
		t.Fatalf("stats=%+v", st)
	}
	if st.LastITOW != 43219000 {
		t.Fatalf("last itow=%d want 43219000", st.LastITOW)
	}
	n, err := rt.archive.Count()
	if err != nil || n != 2 {
		t.Fatalf("archive count=%d err=%v", n, err)
	}
	rt.Close()

	lines := strings.Split(strings.TrimRight(hexOut.String(), "\n"), "\n")
	if len(lines) != 2 || !strings.HasPrefix(lines[0], "b5 62 01 07 5c 00 ") {
		t.Fatalf("hex output=%q", hexOut.String())
	}

	recs, err := replay.Open(cfg.Output.Record.Path)
	if err != nil {
		t.Fatalf("replay.Open: %v", err)
	}
	if err := replay.VerifyRecords(recs); err != nil {
		t.Fatalf("VerifyRecords: %v", err)
	}
	s := summarizeUBXLog(recs)
	if s.Packets != 2 || s.Invalid != 0 || s.FirstITOW != 43218000 || s.LastITOW != 43219000 {
		t.Fatalf("summary=%+v", s)
	}
}

func TestRuntime_ReplayForwardsRecordedBytes(t *testing.T) {
	dir := t.TempDir()
	recordPath := filepath.Join(dir, "out.ubxlog")

	var live bytes.Buffer
	rt, err := newRuntime(config.Config{
		GPS: config.GPSConfig{Enable: true, Source: "file", Device: writeCapture(t)},
		Output: config.OutputConfig{
			StdoutHex: true,
			Record:    config.RecordConfig{Enable: true, Path: recordPath},
		},
	}, nil, &live)
	if err != nil {
		t.Fatalf("newRuntime(live): %v", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run(live): %v", err)
	}
	rt.Close()

	var replayed bytes.Buffer
	rp, err := newRuntime(config.Config{
		Output: config.OutputConfig{StdoutHex: true},
		Replay: config.ReplayConfig{Enable: true, Path: recordPath, Speed: 1000},
	}, nil, &replayed)
	if err != nil {
		t.Fatalf("newRuntime(replay): %v", err)
	}
	defer rp.Close()
	if err := rp.Run(ctx); err != nil {
		t.Fatalf("Run(replay): %v", err)
	}

	if live.Len() == 0 || live.String() != replayed.String() {
		t.Fatalf("replay output differs:\nlive:   %q\nreplay: %q", live.String(), replayed.String())
	}
	if st := rp.bridge.Stats(); st.Forwarded != 2 || st.Encoded != 0 {
		t.Fatalf("replay stats=%+v", st)
	}
}

func TestRuntime_TextOutputPrintsOneLinePerFix(t *testing.T) {
	var out bytes.Buffer
	rt, err := newRuntime(config.Config{
		GPS:    config.GPSConfig{Enable: true, Source: "file", Device: writeCapture(t)},
		Output: config.OutputConfig{StdoutText: true},
	}, nil, &out)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rt.Run(ctx); err != nil {
		t.Fatalf("Run: %v", err)
	}

	lines := strings.Split(strings.TrimRight(out.String(), "\n"), "\n")
	if len(lines) != 2 {
		t.Fatalf("text output=%q", out.String())
	}
	if !strings.HasPrefix(lines[0], "2024-03-10 12:00:00.000 ") || !strings.Contains(lines[0], "sats=8") {
		t.Fatalf("line[0]=%q", lines[0])
	}
	if !strings.HasPrefix(lines[1], "2024-03-10 12:00:01.000 ") || !strings.Contains(lines[1], "itow=43219000") {
		t.Fatalf("line[1]=%q", lines[1])
	}
	if _, err := newRuntime(config.Config{Output: config.OutputConfig{StdoutText: true}}, nil, nil); err == nil {
		t.Fatalf("expected error without a writer")
	}
}

func TestRuntime_ReplayRejectsCorruptLog(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.ubxlog")
	if err := os.WriteFile(path, []byte("START\n0,b5 62 01 07 00 00 00 00\n"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	rt, err := newRuntime(config.Config{Replay: config.ReplayConfig{Enable: true, Path: path}}, nil, nil)
	if err != nil {
		t.Fatalf("newRuntime: %v", err)
	}
	defer rt.Close()
	err = rt.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), "replay verify") {
		t.Fatalf("err=%v want replay verify failure", err)
	}
}

func TestNewRuntime_ValidatesConfig(t *testing.T) {
	_, err := newRuntime(config.Config{Output: config.OutputConfig{Record: config.RecordConfig{Enable: true}}}, nil, nil)
	if err == nil {
		t.Fatalf("expected validation error")
	}
}

func TestGPSConfigMapping(t *testing.T) {
	cfg := config.Config{GPS: config.GPSConfig{
		Enable: true,
		Source: "sim",
		Sim:    config.GPSSimConfig{CenterLatDeg: 37.5, CenterLonDeg: 127, Scenario: "scn.yaml", Loop: true},
	}}
	if err := config.DefaultAndValidate(&cfg); err != nil {
		t.Fatalf("DefaultAndValidate: %v", err)
	}
	g := gpsConfig(cfg.GPS)
	if g.Source != "sim" || g.Sim.Script != "scn.yaml" || !g.Sim.Loop || g.Sim.Interval != time.Second {
		t.Fatalf("gps config=%+v", g)
	}
	if g.Sim.Orbit.CenterLatDeg != 37.5 || g.Sim.Orbit.Satellites != 10 || g.Sim.Orbit.Period != 120*time.Second {
		t.Fatalf("orbit=%+v", g.Sim.Orbit)
	}
}
