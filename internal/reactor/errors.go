package reactor

import "golang.org/x/sys/unix"

// isWouldBlock reports whether err represents a would-block condition on
// a non-blocking socket, which the reactor treats as "try again on the
// next writable pass", not a failure.
func isWouldBlock(err error) bool {
	return err == unix.EAGAIN || err == unix.EWOULDBLOCK
}
