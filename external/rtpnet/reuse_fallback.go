//go:build !linux && !darwin && !freebsd && !netbsd && !openbsd && !dragonfly

package rtpnet

import "syscall"

func reuseAddrControl(_, _ string, _ syscall.RawConn) error {
	return nil
}
