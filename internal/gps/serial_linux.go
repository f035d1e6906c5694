//go:build linux

package gps

import (
	"fmt"
	"os"
	"sort"

	"golang.org/x/sys/unix"
)

var receiverBauds = map[int]uint32{
	4800:   unix.B4800,
	9600:   unix.B9600,
	19200:  unix.B19200,
	38400:  unix.B38400,
	57600:  unix.B57600,
	115200: unix.B115200,
	230400: unix.B230400,
	460800: unix.B460800,
}

// openSerial puts the receiver UART into raw 8N1 at baud and drops whatever
// the kernel buffered before we attached, so the first line read is fresh.
func openSerial(path string, baud int) (*os.File, error) {
	spd, err := receiverBaud(baud)
	if err != nil {
		return nil, err
	}

	fd, err := unix.Open(path, unix.O_RDWR|unix.O_NOCTTY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	keep := false
	defer func() {
		if !keep {
			_ = unix.Close(fd)
		}
	}()

	tio, err := unix.IoctlGetTermios(fd, unix.TCGETS)
	if err != nil {
		return nil, fmt.Errorf("get termios %s: %w", path, err)
	}
	makeRaw(tio, spd)
	if err := unix.IoctlSetTermios(fd, unix.TCSETS, tio); err != nil {
		return nil, fmt.Errorf("set termios %s: %w", path, err)
	}
	if err := unix.IoctlSetInt(fd, unix.TCFLSH, unix.TCIFLUSH); err != nil {
		return nil, fmt.Errorf("flush %s: %w", path, err)
	}

	f := os.NewFile(uintptr(fd), path)
	if f == nil {
		return nil, fmt.Errorf("wrap fd for %s", path)
	}
	keep = true
	return f, nil
}

func makeRaw(tio *unix.Termios, spd uint32) {
	tio.Iflag &^= unix.IGNBRK | unix.BRKINT | unix.PARMRK | unix.ISTRIP | unix.INLCR | unix.IGNCR | unix.ICRNL | unix.IXON | unix.IXOFF
	tio.Oflag &^= unix.OPOST
	tio.Lflag &^= unix.ECHO | unix.ECHONL | unix.ICANON | unix.ISIG | unix.IEXTEN
	tio.Cflag &^= unix.CSIZE | unix.PARENB | unix.CSTOPB | unix.CRTSCTS | unix.CBAUD
	tio.Cflag |= unix.CS8 | unix.CREAD | unix.CLOCAL | spd
	tio.Ispeed = spd
	tio.Ospeed = spd

	// At 1 Hz a receiver is silent for most of each second; VTIME=10 returns
	// a partial read after 1s so cancellation is noticed.
	tio.Cc[unix.VMIN] = 1
	tio.Cc[unix.VTIME] = 10
}

func receiverBaud(baud int) (uint32, error) {
	if spd, ok := receiverBauds[baud]; ok {
		return spd, nil
	}
	rates := make([]int, 0, len(receiverBauds))
	for r := range receiverBauds {
		rates = append(rates, r)
	}
	sort.Ints(rates)
	return 0, fmt.Errorf("unsupported baud %d (supported: %v)", baud, rates)
}
