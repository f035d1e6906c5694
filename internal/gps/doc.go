// Package gps turns a GNSS receiver's output into fix notifications.
//
// Sources:
//   - nmea: NMEA 0183 over a serial device
//   - file: an NMEA capture read once from disk
//   - tcp: NMEA 0183 from a network stream (ser2net, phone GPS sharing apps)
//   - gpsd: JSON reports from a gpsd daemon
//   - sim: a synthetic orbit or a keyframed scenario script
//
// Every source delivers fix.Snapshot values to a fix.Handler, at most once per
// receiver cycle, from a single goroutine.
package gps
