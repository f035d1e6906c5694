//go:build !linux

package gps

import (
	"errors"
	"os"
)

var errNoSerial = errors.New("serial nmea input is only supported on linux; use source file, tcp or gpsd")

func openSerial(path string, baud int) (*os.File, error) {
	return nil, errNoSerial
}
