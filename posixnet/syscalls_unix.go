//go:build linux || darwin || dragonfly || freebsd || netbsd || openbsd || illumos || solaris || android || aix

package posixnet

import (
	"syscall"

	"golang.org/x/sys/unix"
)

// reuseAddr sets SO_REUSEADDR on the listening socket, so a daemon
// restart can rebind the DHCPv6 client port immediately instead of
// waiting out TIME_WAIT, the way YaNFD's unicast UDP transport does for
// its own listeners.
func reuseAddr(_, _ string, c syscall.RawConn) error {
	var err error
	c.Control(func(fd uintptr) {
		err = unix.SetsockoptInt(int(fd), unix.SOL_SOCKET, unix.SO_REUSEADDR, 1)
	})
	return err
}
