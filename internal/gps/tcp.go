package gps

import (
	"context"
	"fmt"
	"log"
	"net"
	"strings"
	"time"
)

const (
	redialMin = 250 * time.Millisecond
	redialMax = 10 * time.Second
)

var dialTCP = func(ctx context.Context, addr string) (net.Conn, error) {
	d := &net.Dialer{Timeout: 2 * time.Second}
	return d.DialContext(ctx, "tcp", addr)
}

func (s *Service) startTCPLocked(ctx context.Context) error {
	addr := strings.TrimSpace(s.cfg.TCPAddr)
	if addr == "" {
		return fmt.Errorf("gps tcp source requires an address")
	}
	s.updateLocked(func(st *Status) { st.TCPAddr = addr; st.Device = "tcp" })

	log.Printf("gps enabled source=tcp addr=%s", addr)
	s.runLocked(ctx, func(ctx context.Context) {
		s.dialLoop(ctx, "tcp", addr, dialTCP, func(ctx context.Context, conn net.Conn) error {
			return s.consumeNMEA(ctx, conn)
		})
	})
	return nil
}

// dialLoop keeps a connection to addr open until ctx ends, redialing with
// exponential backoff. consume runs once per connection.
func (s *Service) dialLoop(ctx context.Context, name, addr string, dial func(context.Context, string) (net.Conn, error), consume func(context.Context, net.Conn) error) {
	backoff := redialMin
	for {
		if ctx.Err() != nil {
			return
		}

		conn, err := dial(ctx, addr)
		if err != nil {
			s.setError(fmt.Sprintf("%s dial failed addr=%s: %v", name, addr, err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > redialMax {
				backoff = redialMax
			}
			continue
		}
		backoff = redialMin

		s.mu.Lock()
		// Swap the closer so Close() can interrupt an active connection.
		s.closer = conn
		s.mu.Unlock()

		err = consume(ctx, conn)
		_ = conn.Close()
		if ctx.Err() != nil {
			return
		}
		s.setError(fmt.Sprintf("%s read stopped: %v", name, err))
	}
}
