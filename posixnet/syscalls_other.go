//go:build windows || wasm || js

package posixnet

import "syscall"

// reuseAddr is a no-op on platforms without the Unix SO_REUSEADDR knob,
// mirroring the teacher's wasm stand-in for its own syscall helpers.
func reuseAddr(_, _ string, _ syscall.RawConn) error {
	return nil
}
