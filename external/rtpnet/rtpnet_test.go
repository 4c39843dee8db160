package rtpnet

import (
	"errors"
	"net"
	"strconv"
	"testing"
	"time"

	"github.com/foxseedlab/roomcall/internal/network"
)

func TestListenUnicast_AssignsEphemeralPort(t *testing.T) {
	n, err := NewUDPNetwork("")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	conn, err := n.ListenUnicast()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	defer conn.Close()

	port := network.LocalPort(conn)
	if port <= 0 || port > 65535 {
		t.Fatalf("expected an assigned port, got %d", port)
	}
}

func TestListenMulticast_RejectsUnicastGroup(t *testing.T) {
	n, _ := NewUDPNetwork("")
	if _, err := n.ListenMulticast("10.0.0.1", 5000); err == nil {
		t.Fatal("expected error for a non-multicast group")
	}
}

func TestNewUDPNetwork_UnknownInterface(t *testing.T) {
	if _, err := NewUDPNetwork("does-not-exist0"); err == nil {
		t.Fatal("expected error for unknown interface")
	}
}

func freeUDPPort(t *testing.T) int {
	t.Helper()
	conn, err := net.ListenPacket("udp4", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	port := network.LocalPort(conn)
	_ = conn.Close()
	return port
}

func TestListenMulticast_GroupsSharingPortStayApart(t *testing.T) {
	n, _ := NewUDPNetwork("")
	port := freeUDPPort(t)

	roomA, err := n.ListenMulticast("239.255.42.1", port)
	if err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}
	defer roomA.Close()
	roomB, err := n.ListenMulticast("239.255.42.2", port)
	if err != nil {
		t.Fatalf("second group on a shared port: %v", err)
	}
	defer roomB.Close()

	sender, err := net.Dial("udp4", net.JoinHostPort("239.255.42.2", strconv.Itoa(port)))
	if err != nil {
		t.Skipf("multicast send unavailable: %v", err)
	}
	defer sender.Close()
	if _, err := sender.Write([]byte("for-b")); err != nil {
		t.Skipf("multicast send unavailable: %v", err)
	}

	buf := make([]byte, 64)
	_ = roomB.SetReadDeadline(time.Now().Add(time.Second))
	nb, _, err := roomB.ReadFrom(buf)
	if err != nil {
		t.Skipf("multicast loopback unavailable: %v", err)
	}
	if string(buf[:nb]) != "for-b" {
		t.Fatalf("unexpected payload on group b: %q", buf[:nb])
	}

	_ = roomA.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	if na, _, err := roomA.ReadFrom(buf); err == nil {
		t.Fatalf("group a received traffic for group b: %q", buf[:na])
	}
}

func TestListenMulticast_CloseUnblocksReader(t *testing.T) {
	n, _ := NewUDPNetwork("")
	conn, err := n.ListenMulticast("239.255.42.3", freeUDPPort(t))
	if err != nil {
		t.Skipf("multicast unavailable: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		_, _, err := conn.ReadFrom(make([]byte, 16))
		done <- err
	}()
	time.Sleep(20 * time.Millisecond)
	if err := conn.Close(); err != nil {
		t.Fatalf("unexpected close error: %v", err)
	}
	select {
	case err := <-done:
		if !errors.Is(err, net.ErrClosed) {
			t.Fatalf("expected net.ErrClosed, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("reader did not return after close")
	}
}
