package discovery

import (
	"context"
	"fmt"
	"net"
	"strings"

	"github.com/pion/mdns"
	"golang.org/x/net/ipv4"
)

// Resolver maps a host name to an IP address.
type Resolver interface {
	Resolve(ctx context.Context, host string) (net.IP, error)
}

// MDNSResolver answers <name>.local queries over multicast DNS.
type MDNSResolver struct {
	conn *mdns.Conn
}

// NewMDNSResolver joins the mDNS multicast group.
func NewMDNSResolver() (*MDNSResolver, error) {
	addr, err := net.ResolveUDPAddr("udp4", mdns.DefaultAddress)
	if err != nil {
		return nil, fmt.Errorf("resolve mdns address: %w", err)
	}
	l, err := net.ListenUDP("udp4", addr)
	if err != nil {
		return nil, fmt.Errorf("listen mdns: %w", err)
	}
	conn, err := mdns.Server(ipv4.NewPacketConn(l), &mdns.Config{})
	if err != nil {
		_ = l.Close()
		return nil, fmt.Errorf("start mdns: %w", err)
	}
	return &MDNSResolver{conn: conn}, nil
}

// Resolve queries host, appending ".local" when missing. ctx bounds the query.
func (r *MDNSResolver) Resolve(ctx context.Context, host string) (net.IP, error) {
	name := host
	if !strings.HasSuffix(name, ".local") {
		name += ".local"
	}
	_, src, err := r.conn.Query(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %w", ErrNoAnswer, name, err)
	}
	switch a := src.(type) {
	case *net.IPAddr:
		return a.IP, nil
	case *net.UDPAddr:
		return a.IP, nil
	default:
		return nil, fmt.Errorf("%w: %s answered with %T", ErrNoAnswer, name, src)
	}
}

// Close leaves the multicast group.
func (r *MDNSResolver) Close() error {
	return r.conn.Close()
}
