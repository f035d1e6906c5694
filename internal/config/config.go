package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	GPS    GPSConfig    `yaml:"gps"`
	Output OutputConfig `yaml:"output"`
	Replay ReplayConfig `yaml:"replay"`
	Web    WebConfig    `yaml:"web"`
}

type GPSConfig struct {
	Enable bool `yaml:"enable"`
	// Source is one of: nmea, file, tcp, gpsd, sim.
	Source   string       `yaml:"source"`
	Device   string       `yaml:"device"`
	Baud     int          `yaml:"baud"`
	TCPAddr  string       `yaml:"tcp_addr"`
	GPSDAddr string       `yaml:"gpsd_addr"`
	Sim      GPSSimConfig `yaml:"sim"`
}

type GPSSimConfig struct {
	Interval     time.Duration `yaml:"interval"`
	Scenario     string        `yaml:"scenario"`
	Loop         bool          `yaml:"loop"`
	CenterLatDeg float64       `yaml:"center_lat_deg"`
	CenterLonDeg float64       `yaml:"center_lon_deg"`
	AltitudeM    float64       `yaml:"altitude_m"`
	SpeedMPS     float64       `yaml:"speed_mps"`
	RadiusM      float64       `yaml:"radius_m"`
	Period       time.Duration `yaml:"period"`
	Satellites   uint8         `yaml:"satellites"`
}

type OutputConfig struct {
	StdoutHex  bool                `yaml:"stdout_hex"`
	StdoutText bool                `yaml:"stdout_text"` // one readable line per fix
	UDP        UDPOutputConfig     `yaml:"udp"`
	Serial     SerialOutputConfig  `yaml:"serial"`
	MQTT       MQTTOutputConfig    `yaml:"mqtt"`
	Record     RecordConfig        `yaml:"record"`
	Archive    ArchiveOutputConfig `yaml:"archive"`
}

type UDPOutputConfig struct {
	Enable bool     `yaml:"enable"`
	Dests  []string `yaml:"dests"`
}

type SerialOutputConfig struct {
	Enable bool   `yaml:"enable"`
	Device string `yaml:"device"`
	Baud   int    `yaml:"baud"`
}

type MQTTOutputConfig struct {
	Enable   bool          `yaml:"enable"`
	Broker   string        `yaml:"broker"`
	ClientID string        `yaml:"client_id"`
	Topic    string        `yaml:"topic"`
	QoS      int           `yaml:"qos"`
	Retained bool          `yaml:"retained"`
	Timeout  time.Duration `yaml:"timeout"`
}

type RecordConfig struct {
	Enable bool   `yaml:"enable"`
	Path   string `yaml:"path"`
}

type ArchiveOutputConfig struct {
	Enable     bool   `yaml:"enable"`
	Path       string `yaml:"path"`
	MaxRecords int    `yaml:"max_records"`
}

type ReplayConfig struct {
	Enable bool    `yaml:"enable"`
	Path   string  `yaml:"path"`
	Speed  float64 `yaml:"speed"`
	Loop   bool    `yaml:"loop"`
}

type WebConfig struct {
	Enable bool   `yaml:"enable"`
	Listen string `yaml:"listen"`
	// LogLines bounds the in-memory log buffer behind /api/logs.
	LogLines int `yaml:"log_lines"`
}

func Load(path string) (Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&cfg); err != nil {
		var te *yaml.TypeError
		if errors.As(err, &te) && unknownFieldsOnly(te) {
			return Config{}, fmt.Errorf("config contains unknown fields: %s", strings.Join(stripLinePrefix(te.Errors), "; "))
		}
		// An empty file decodes to io.EOF; treat it as all defaults.
		if !errors.Is(err, io.EOF) {
			return Config{}, err
		}
	}

	if err := DefaultAndValidate(&cfg); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func unknownFieldsOnly(te *yaml.TypeError) bool {
	if len(te.Errors) == 0 {
		return false
	}
	for _, e := range te.Errors {
		if !strings.Contains(e, "not found in type") {
			return false
		}
	}
	return true
}

// stripLinePrefix drops the "line N: " yaml prefixes.
func stripLinePrefix(msgs []string) []string {
	out := make([]string, 0, len(msgs))
	for _, m := range msgs {
		if strings.HasPrefix(m, "line ") {
			if i := strings.Index(m, ": "); i >= 0 {
				m = m[i+2:]
			}
		}
		out = append(out, m)
	}
	return out
}

// DefaultAndValidate applies defaults in place and rejects inconsistent
// settings. Errors are plain strings naming the offending key.
func DefaultAndValidate(cfg *Config) error {
	if cfg == nil {
		return fmt.Errorf("config is nil")
	}

	g := &cfg.GPS
	g.Source = strings.ToLower(strings.TrimSpace(g.Source))
	if g.Source == "" {
		g.Source = "nmea"
	}
	switch g.Source {
	case "nmea", "file", "tcp", "gpsd", "sim":
	default:
		return fmt.Errorf("gps.source must be one of nmea, file, tcp, gpsd, sim")
	}
	if g.Baud == 0 {
		g.Baud = 9600
	}
	if g.Baud < 0 {
		return fmt.Errorf("gps.baud must be > 0")
	}
	if g.Enable && g.Source == "file" && strings.TrimSpace(g.Device) == "" {
		return fmt.Errorf("gps.device is required when gps.source is 'file'")
	}
	if g.Enable && g.Source == "tcp" && strings.TrimSpace(g.TCPAddr) == "" {
		return fmt.Errorf("gps.tcp_addr is required when gps.source is 'tcp'")
	}
	if g.Source == "gpsd" && strings.TrimSpace(g.GPSDAddr) == "" {
		g.GPSDAddr = "127.0.0.1:2947"
	}
	if g.Sim.Interval <= 0 {
		g.Sim.Interval = 1 * time.Second
	}
	if g.Sim.Period <= 0 {
		g.Sim.Period = 120 * time.Second
	}
	if g.Sim.RadiusM <= 0 {
		g.Sim.RadiusM = 1000
	}
	if g.Sim.SpeedMPS <= 0 {
		g.Sim.SpeedMPS = 45
	}
	if g.Sim.AltitudeM == 0 {
		g.Sim.AltitudeM = 900
	}
	if g.Sim.Satellites == 0 {
		g.Sim.Satellites = 10
	}
	if g.Sim.CenterLatDeg < -90 || g.Sim.CenterLatDeg > 90 {
		return fmt.Errorf("gps.sim.center_lat_deg must be within [-90,90]")
	}
	if g.Sim.CenterLonDeg < -180 || g.Sim.CenterLonDeg > 180 {
		return fmt.Errorf("gps.sim.center_lon_deg must be within [-180,180]")
	}

	o := &cfg.Output
	if o.UDP.Enable {
		if len(o.UDP.Dests) == 0 {
			return fmt.Errorf("output.udp.dests is required when output.udp.enable is true")
		}
		for i, d := range o.UDP.Dests {
			if strings.TrimSpace(d) == "" {
				return fmt.Errorf("output.udp.dests[%d] is empty", i)
			}
		}
	}
	if o.Serial.Enable {
		if strings.TrimSpace(o.Serial.Device) == "" {
			return fmt.Errorf("output.serial.device is required when output.serial.enable is true")
		}
		if o.Serial.Baud == 0 {
			o.Serial.Baud = 9600
		}
		if o.Serial.Baud < 0 {
			return fmt.Errorf("output.serial.baud must be > 0")
		}
		if g.Enable && g.Source == "nmea" && o.Serial.Device == g.Device {
			return fmt.Errorf("output.serial.device must differ from gps.device")
		}
	}
	if o.MQTT.Enable {
		if strings.TrimSpace(o.MQTT.Broker) == "" {
			return fmt.Errorf("output.mqtt.broker is required when output.mqtt.enable is true")
		}
		if strings.TrimSpace(o.MQTT.Topic) == "" {
			o.MQTT.Topic = "nmea2ubx/navpvt"
		}
		if o.MQTT.QoS < 0 || o.MQTT.QoS > 2 {
			return fmt.Errorf("output.mqtt.qos must be 0, 1 or 2")
		}
		if o.MQTT.Timeout <= 0 {
			o.MQTT.Timeout = 5 * time.Second
		}
	}
	if o.Record.Enable && strings.TrimSpace(o.Record.Path) == "" {
		return fmt.Errorf("output.record.path is required when output.record.enable is true")
	}
	if o.Archive.Enable {
		if strings.TrimSpace(o.Archive.Path) == "" {
			return fmt.Errorf("output.archive.path is required when output.archive.enable is true")
		}
		if o.Archive.MaxRecords < 0 {
			return fmt.Errorf("output.archive.max_records must be >= 0")
		}
	}

	r := &cfg.Replay
	if r.Enable {
		if strings.TrimSpace(r.Path) == "" {
			return fmt.Errorf("replay.path is required when replay.enable is true")
		}
		if r.Speed == 0 {
			r.Speed = 1
		}
		if r.Speed < 0 {
			return fmt.Errorf("replay.speed must be > 0")
		}
		if o.Record.Enable {
			return fmt.Errorf("output.record and replay cannot both be enabled")
		}
	}

	if cfg.Web.Enable && strings.TrimSpace(cfg.Web.Listen) == "" {
		cfg.Web.Listen = ":8080"
	}
	if cfg.Web.LogLines <= 0 {
		cfg.Web.LogLines = 2000
	}
	return nil
}

// Outputs reports the names of enabled sinks, in fan-out order.
func (c Config) Outputs() []string {
	var out []string
	if c.Output.StdoutHex {
		out = append(out, "hex")
	}
	if c.Output.StdoutText {
		out = append(out, "text")
	}
	if c.Output.UDP.Enable {
		out = append(out, "udp:"+strings.Join(c.Output.UDP.Dests, ","))
	}
	if c.Output.Serial.Enable {
		out = append(out, "serial:"+c.Output.Serial.Device)
	}
	if c.Output.MQTT.Enable {
		out = append(out, "mqtt:"+c.Output.MQTT.Topic)
	}
	if c.Output.Record.Enable {
		out = append(out, "record")
	}
	if c.Output.Archive.Enable {
		out = append(out, "archive")
	}
	if c.Web.Enable {
		out = append(out, "websocket")
	}
	return out
}
