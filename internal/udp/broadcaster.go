// Package udp sends encoded packets as UDP datagrams, one packet per datagram.
package udp

import (
	"errors"
	"fmt"
	"io"
	"net"
	"strings"
)

type udpConn interface {
	io.Writer
	io.Closer
}

type (
	resolveFunc func(network, address string) (*net.UDPAddr, error)
	dialFunc    func(network string, laddr, raddr *net.UDPAddr) (udpConn, error)
)

// Broadcaster writes every packet to each configured destination.
type Broadcaster struct {
	dests []string
	conns []udpConn
}

// NewBroadcaster dials each host:port in dests.
func NewBroadcaster(dests ...string) (*Broadcaster, error) {
	return newBroadcaster(dests, net.ResolveUDPAddr, func(network string, laddr, raddr *net.UDPAddr) (udpConn, error) {
		// DialUDP selects a suitable local address automatically.
		return net.DialUDP(network, laddr, raddr)
	})
}

func newBroadcaster(dests []string, resolve resolveFunc, dial dialFunc) (*Broadcaster, error) {
	if len(dests) == 0 {
		return nil, fmt.Errorf("no udp destinations")
	}
	b := &Broadcaster{}
	for _, dest := range dests {
		addr, err := resolve("udp", dest)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("resolve dest %s: %w", dest, err)
		}
		conn, err := dial("udp", nil, addr)
		if err != nil {
			_ = b.Close()
			return nil, fmt.Errorf("dial udp %s: %w", dest, err)
		}
		b.dests = append(b.dests, dest)
		b.conns = append(b.conns, conn)
	}
	return b, nil
}

// Name identifies the sink in logs and stats.
func (b *Broadcaster) Name() string {
	return "udp:" + strings.Join(b.dests, ",")
}

// Send writes packet to every destination. A failing destination does not
// stop delivery to the others.
func (b *Broadcaster) Send(packet []byte) error {
	if len(packet) == 0 {
		return nil
	}
	var errs []error
	for i, c := range b.conns {
		if _, err := c.Write(packet); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", b.dests[i], err))
		}
	}
	return errors.Join(errs...)
}

func (b *Broadcaster) Close() error {
	var errs []error
	for _, c := range b.conns {
		if c == nil {
			continue
		}
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	b.conns = nil
	return errors.Join(errs...)
}
