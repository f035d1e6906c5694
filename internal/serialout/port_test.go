package serialout

import (
	"bytes"
	"errors"
	"io"
	"testing"

	"github.com/jacobsa/go-serial/serial"
)

type fakePort struct {
	bytes.Buffer
	short  bool
	closed bool
}

func (f *fakePort) Write(p []byte) (int, error) {
	if f.short {
		return len(p) / 2, nil
	}
	return f.Buffer.Write(p)
}

func (f *fakePort) Close() error {
	f.closed = true
	return nil
}

func TestOpen_Options(t *testing.T) {
	var got serial.OpenOptions
	fp := &fakePort{}
	p, err := open(Config{Device: "/dev/ttyS1"}, func(o serial.OpenOptions) (io.ReadWriteCloser, error) {
		got = o
		return fp, nil
	})
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if got.PortName != "/dev/ttyS1" || got.BaudRate != 9600 || got.DataBits != 8 || got.StopBits != 1 || got.ParityMode != serial.PARITY_NONE {
		t.Fatalf("options=%+v", got)
	}
	if p.Name() != "serial:/dev/ttyS1" {
		t.Fatalf("name=%q", p.Name())
	}
}

func TestOpen_Errors(t *testing.T) {
	if _, err := open(Config{}, nil); err == nil {
		t.Fatalf("expected missing device error")
	}
	boom := errors.New("busy")
	_, err := open(Config{Device: "/dev/ttyS1", Baud: 115200}, func(serial.OpenOptions) (io.ReadWriteCloser, error) {
		return nil, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err=%v want %v", err, boom)
	}
}

func TestPort_SendAndClose(t *testing.T) {
	fp := &fakePort{}
	p := &Port{device: "x", rwc: fp}
	if err := p.Send([]byte{0xB5, 0x62}); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if !bytes.Equal(fp.Bytes(), []byte{0xB5, 0x62}) {
		t.Fatalf("wrote % X", fp.Bytes())
	}

	fp.short = true
	if err := p.Send([]byte{1, 2, 3, 4}); !errors.Is(err, io.ErrShortWrite) {
		t.Fatalf("err=%v want short write", err)
	}

	if err := p.Close(); err != nil || !fp.closed {
		t.Fatalf("Close err=%v closed=%v", err, fp.closed)
	}
	if err := p.Send([]byte{1}); err == nil {
		t.Fatalf("expected error after Close")
	}
}
