// Package listener is the datagram reader (C2): it binds a UDP endpoint and
// delivers raw payloads with their source address to the ingest context.
// Rejecting payloads shorter than the v9 header and all further parsing
// happens downstream in internal/wire.
package listener

import (
	"fmt"
	"net"
)

const (
	DefaultPort       = 2055
	MaxPacketSize     = 65535
	DefaultBufferSize = 1024 * 1024 // 1MB
)

// Packet is one received UDP datagram with its source address.
type Packet struct {
	Data       []byte
	SourceAddr *net.UDPAddr
}

// UDPListener listens for NetFlow v9 datagrams on one address:port.
type UDPListener struct {
	conn     *net.UDPConn
	address  string
	port     int
	packets  chan Packet
	stopChan chan struct{}
}

// New creates a listener bound to address:port. An empty address binds all
// interfaces; port 0 uses DefaultPort.
func New(address string, port int) *UDPListener {
	if port == 0 {
		port = DefaultPort
	}
	return &UDPListener{
		address:  address,
		port:     port,
		packets:  make(chan Packet, 1000),
		stopChan: make(chan struct{}),
	}
}

// Start begins listening for UDP packets. A bind failure is fatal per
// spec.md §7 — the caller is expected to exit the process on error.
func (l *UDPListener) Start() error {
	ip := net.IPv4zero
	if l.address != "" {
		if parsed := net.ParseIP(l.address); parsed != nil {
			ip = parsed
		}
	}
	addr := &net.UDPAddr{Port: l.port, IP: ip}

	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return fmt.Errorf("listener: bind %s:%d: %w", l.address, l.port, err)
	}

	if err := conn.SetReadBuffer(DefaultBufferSize); err != nil {
		fmt.Printf("listener: warning: could not set UDP receive buffer size: %v\n", err)
	}

	l.conn = conn
	go l.readLoop()
	return nil
}

// readLoop continuously reads UDP packets until Stop is called. A read
// error other than shutdown is treated the way a malformed datagram would
// be — skipped, never fatal (spec.md §7).
func (l *UDPListener) readLoop() {
	buf := make([]byte, MaxPacketSize)

	for {
		select {
		case <-l.stopChan:
			return
		default:
			n, addr, err := l.conn.ReadFromUDP(buf)
			if err != nil {
				select {
				case <-l.stopChan:
					return
				default:
					continue
				}
			}

			data := make([]byte, n)
			copy(data, buf[:n])

			select {
			case l.packets <- Packet{Data: data, SourceAddr: addr}:
			default:
				// Channel full: drop the packet rather than block ingest.
			}
		}
	}
}

// Packets returns the channel of received packets.
func (l *UDPListener) Packets() <-chan Packet {
	return l.packets
}

// Stop halts the read loop and releases the socket.
func (l *UDPListener) Stop() {
	close(l.stopChan)
	if l.conn != nil {
		l.conn.Close()
	}
}

// Port returns the listening port.
func (l *UDPListener) Port() int {
	return l.port
}
