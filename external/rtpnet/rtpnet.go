package rtpnet

import (
	"context"
	"fmt"
	"log/slog"
	"net"
	"strconv"

	"github.com/foxseedlab/roomcall/internal/network"
	"golang.org/x/net/ipv4"
)

type UDPNetwork struct {
	iface *net.Interface
}

// NewUDPNetwork joins multicast groups on ifaceName, or on the system
// default interface when ifaceName is empty.
func NewUDPNetwork(ifaceName string) (network.Network, error) {
	n := &UDPNetwork{}
	if ifaceName == "" {
		return n, nil
	}
	iface, err := net.InterfaceByName(ifaceName)
	if err != nil {
		return nil, fmt.Errorf("multicast interface %s: %w", ifaceName, err)
	}
	n.iface = iface
	return n, nil
}

func (n *UDPNetwork) ListenUnicast() (net.PacketConn, error) {
	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: 0})
	if err != nil {
		return nil, fmt.Errorf("listen udp: %w", err)
	}
	return conn, nil
}

func (n *UDPNetwork) ListenMulticast(group string, port int) (net.PacketConn, error) {
	ip := net.ParseIP(group)
	if ip == nil || ip.To4() == nil || !ip.IsMulticast() {
		return nil, fmt.Errorf("%q is not an IPv4 multicast group", group)
	}
	// The socket is bound to the wildcard address: every room shares the
	// port, so each one hears all joined groups until filtered below.
	lc := net.ListenConfig{Control: reuseAddrControl}
	conn, err := lc.ListenPacket(context.Background(), "udp4", net.JoinHostPort("0.0.0.0", strconv.Itoa(port)))
	if err != nil {
		return nil, fmt.Errorf("listen multicast %s:%d: %w", group, port, err)
	}
	p := ipv4.NewPacketConn(conn)
	groupAddr := &net.UDPAddr{IP: ip}
	if err := p.JoinGroup(n.iface, groupAddr); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("join multicast group %s: %w", group, err)
	}
	// Our own transmissions are filtered by SSRC, loopback stays on so local
	// test senders are heard.
	if err := p.SetMulticastLoopback(true); err != nil {
		slog.Debug("failed to enable multicast loopback", "error", err, "group", group)
	}
	if err := p.SetControlMessage(ipv4.FlagDst, true); err != nil {
		_ = p.LeaveGroup(n.iface, groupAddr)
		_ = conn.Close()
		return nil, fmt.Errorf("enable destination filter for %s: %w", group, err)
	}
	return &multicastConn{PacketConn: conn, p: p, iface: n.iface, group: groupAddr}, nil
}

type multicastConn struct {
	net.PacketConn
	p     *ipv4.PacketConn
	iface *net.Interface
	group *net.UDPAddr
}

// ReadFrom skips datagrams addressed to other groups joined on the same port.
func (c *multicastConn) ReadFrom(b []byte) (int, net.Addr, error) {
	for {
		n, cm, src, err := c.p.ReadFrom(b)
		if err != nil {
			return n, src, err
		}
		if cm == nil || cm.Dst == nil || cm.Dst.Equal(c.group.IP) {
			return n, src, nil
		}
	}
}

func (c *multicastConn) Close() error {
	if err := c.p.LeaveGroup(c.iface, c.group); err != nil {
		slog.Debug("failed to leave multicast group", "error", err, "group", c.group.IP.String())
	}
	return c.PacketConn.Close()
}
