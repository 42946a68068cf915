package transport

import (
	"net"
	"time"
)

// UDPSocket is the part of *net.UDPConn the hub uses.
type UDPSocket interface {
	ReadFromUDP(b []byte) (int, *net.UDPAddr, error)
	WriteToUDP(b []byte, addr *net.UDPAddr) (int, error)
	SetReadDeadline(t time.Time) error
	SetWriteDeadline(t time.Time) error
	LocalAddr() net.Addr
	Close() error
}

var _ UDPSocket = (*net.UDPConn)(nil)
