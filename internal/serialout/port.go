// Package serialout writes encoded packets to a UART, for hosts that expect a
// receiver speaking UBX on a serial line.
package serialout

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"github.com/jacobsa/go-serial/serial"
)

type Config struct {
	Device string
	Baud   int
}

type openFunc func(serial.OpenOptions) (io.ReadWriteCloser, error)

// Port is an open output UART.
type Port struct {
	device string

	mu  sync.Mutex
	rwc io.ReadWriteCloser
}

func Open(cfg Config) (*Port, error) {
	return open(cfg, serial.Open)
}

func open(cfg Config, openPort openFunc) (*Port, error) {
	if cfg.Device == "" {
		return nil, errors.New("serial output device is required")
	}
	baud := cfg.Baud
	if baud <= 0 {
		baud = 9600
	}
	opts := serial.OpenOptions{
		PortName:        cfg.Device,
		BaudRate:        uint(baud),
		DataBits:        8,
		StopBits:        1,
		MinimumReadSize: 1,
		ParityMode:      serial.PARITY_NONE,
	}
	rwc, err := openPort(opts)
	if err != nil {
		return nil, fmt.Errorf("open serial output %s: %w", cfg.Device, err)
	}
	return &Port{device: cfg.Device, rwc: rwc}, nil
}

func (p *Port) Name() string { return "serial:" + p.device }

// Send writes the whole packet. Short writes are reported as errors.
func (p *Port) Send(packet []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rwc == nil {
		return errors.New("serial output is closed")
	}
	n, err := p.rwc.Write(packet)
	if err != nil {
		return err
	}
	if n != len(packet) {
		return io.ErrShortWrite
	}
	return nil
}

func (p *Port) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.rwc == nil {
		return nil
	}
	err := p.rwc.Close()
	p.rwc = nil
	return err
}
