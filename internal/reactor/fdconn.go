package reactor

import (
	"net"
	"time"

	"golang.org/x/sys/unix"
)

// fdConn adapts a raw non-blocking socket fd, managed entirely by the
// Reactor's epoll loop, to the minimal net.Conn surface Session needs
// (Write for the drain path, Close, RemoteAddr). Reads never go through
// this type — the reactor calls unix.Read directly so it stays the only
// thing that ever blocks-or-not on this fd.
type fdConn struct {
	fd     int
	remote net.Addr
}

func (c *fdConn) Read(b []byte) (int, error) {
	n, err := unix.Read(c.fd, b)
	if err != nil {
		return 0, err
	}
	return n, nil
}

func (c *fdConn) Write(b []byte) (int, error) {
	n, err := unix.Write(c.fd, b)
	if err != nil {
		if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
			return n, nil
		}
		return n, err
	}
	return n, nil
}

func (c *fdConn) Close() error { return unix.Close(c.fd) }

func (c *fdConn) RemoteAddr() net.Addr { return c.remote }
func (c *fdConn) LocalAddr() net.Addr  { return &net.TCPAddr{} }

func (c *fdConn) SetDeadline(t time.Time) error      { return nil }
func (c *fdConn) SetReadDeadline(t time.Time) error   { return nil }
func (c *fdConn) SetWriteDeadline(t time.Time) error  { return nil }
