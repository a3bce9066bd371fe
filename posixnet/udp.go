// Package posixnet is the concrete, OS-backed implementation of
// hostapi.UDP and hostapi.ThreadNetif this module ships for running the
// DHCPv6 client over a real network interface: a real UDP6 socket with
// SO_REUSEADDR (golang.org/x/sys/unix, grounded on the teacher's
// fw/face/impl syscall helpers) and realm-local-all-routers multicast
// group membership plus hop-limit control via golang.org/x/net/ipv6, the
// way a Thread border router's host side would actually send and receive
// DHCPv6 datagrams.
package posixnet

import (
	"context"
	"fmt"
	"net"
	"sync"

	"golang.org/x/net/ipv6"

	"github.com/openthread-go/netdata/hostapi"
	"github.com/openthread-go/netdata/std/log"
)

// defaultMulticastHopLimit matches Thread's realm-local multicast scope
// (RFC 4291 §2.7 scope 3): datagrams must not cross a realm boundary.
const defaultMulticastHopLimit = 8

// UDP is a hostapi.UDP backed by a real UDP6 socket bound to ifaceName.
type UDP struct {
	ifaceName string

	mu      sync.Mutex
	conn    *net.UDPConn
	pconn   *ipv6.PacketConn
	recvFn  hostapi.UDPReceiveFunc
	closing chan struct{}
}

// New returns a UDP transport that will join its multicast groups on the
// network interface named ifaceName (e.g. "wpan0"). An empty ifaceName
// lets the kernel pick the outgoing interface for sends and skips
// multicast group membership, which is enough for unicast-only solicit
// modes and for tests running over loopback.
func New(ifaceName string) *UDP {
	return &UDP{ifaceName: ifaceName}
}

func (u *UDP) Bind(ctx context.Context, localPort uint16) error {
	u.mu.Lock()
	defer u.mu.Unlock()

	if u.conn != nil {
		return fmt.Errorf("posixnet: already bound")
	}

	lc := net.ListenConfig{Control: reuseAddr}
	pc, err := lc.ListenPacket(ctx, "udp6", fmt.Sprintf(":%d", localPort))
	if err != nil {
		return err
	}
	conn := pc.(*net.UDPConn)
	pconn := ipv6.NewPacketConn(conn)

	if err := pconn.SetMulticastHopLimit(defaultMulticastHopLimit); err != nil {
		log.Warnf("posixnet: set multicast hop limit: %v", err)
	}

	if u.ifaceName != "" {
		ifi, err := net.InterfaceByName(u.ifaceName)
		if err != nil {
			conn.Close()
			return fmt.Errorf("posixnet: interface %s: %w", u.ifaceName, err)
		}
		if err := pconn.JoinGroup(ifi, &net.UDPAddr{IP: realmLocalAllRoutersIP}); err != nil {
			log.Warnf("posixnet: join realm-local-all-routers group on %s: %v", u.ifaceName, err)
		}
	}

	u.conn = conn
	u.pconn = pconn
	u.closing = make(chan struct{})
	go u.readLoop(conn, u.closing)
	return nil
}

var realmLocalAllRoutersIP = net.ParseIP("ff03::2")

func (u *UDP) readLoop(conn *net.UDPConn, closing chan struct{}) {
	buf := make([]byte, 2048)
	for {
		n, from, err := conn.ReadFromUDPAddrPort(buf)
		if err != nil {
			select {
			case <-closing:
				return
			default:
				log.Warnf("posixnet: read: %v", err)
				return
			}
		}
		u.mu.Lock()
		fn := u.recvFn
		u.mu.Unlock()
		if fn != nil {
			payload := make([]byte, n)
			copy(payload, buf[:n])
			fn(payload, from)
		}
	}
}

// LocalPort reports the port the socket is bound to, useful when Bind was
// called with port 0 and the kernel picked one.
func (u *UDP) LocalPort() uint16 {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return 0
	}
	return uint16(u.conn.LocalAddr().(*net.UDPAddr).Port)
}

func (u *UDP) SendTo(msg hostapi.UDPMessage) error {
	u.mu.Lock()
	conn := u.conn
	u.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("posixnet: send before bind")
	}
	dest := net.UDPAddrFromAddrPort(msg.Dest)
	_, err := conn.WriteToUDP(msg.Payload, dest)
	return err
}

func (u *UDP) SetReceiveCallback(fn hostapi.UDPReceiveFunc) {
	u.mu.Lock()
	defer u.mu.Unlock()
	u.recvFn = fn
}

func (u *UDP) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.conn == nil {
		return nil
	}
	close(u.closing)
	err := u.conn.Close()
	u.conn = nil
	u.pconn = nil
	return err
}
