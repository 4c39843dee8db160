package network

import "net"

// Network opens the UDP endpoints RTP is received on.
type Network interface {
	// ListenUnicast binds an OS-assigned ephemeral port.
	ListenUnicast() (net.PacketConn, error)
	// ListenMulticast joins group and receives on port. Several rooms share
	// the same port, so implementations must allow the port to be reused.
	ListenMulticast(group string, port int) (net.PacketConn, error)
}

// LocalPort returns the UDP port conn is bound to, or 0.
func LocalPort(conn net.PacketConn) int {
	addr, ok := conn.LocalAddr().(*net.UDPAddr)
	if !ok {
		return 0
	}
	return addr.Port
}
