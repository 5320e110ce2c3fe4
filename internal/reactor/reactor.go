package reactor

import (
	"fmt"
	"net"
	"sort"
	"time"

	"golang.org/x/sys/unix"

	"github.com/originfall/core/internal/wire"
)

// Severity classifies a per-client error for the reactor's disconnect
// policy (§7): only should-disconnect errors tear a session down.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityFatal
)

// Error is the tagged error record every reactor-visible failure carries.
type Error struct {
	Severity        Severity
	Message         string
	ShouldDisconnect bool
}

func (e *Error) Error() string { return e.Message }

// Disconnect wraps err (or creates a fresh record) marked should_disconnect.
func Disconnect(severity Severity, format string, args ...any) *Error {
	return &Error{Severity: severity, Message: fmt.Sprintf(format, args...), ShouldDisconnect: true}
}

// Warn wraps a recoverable, non-disconnecting condition.
func Warn(format string, args ...any) *Error {
	return &Error{Severity: SeverityWarning, Message: fmt.Sprintf(format, args...), ShouldDisconnect: false}
}

// Handler is invoked once per fully-decoded inbound frame. Returning a
// should-disconnect *Error tears the session down after the call.
type Handler func(s *Session, frame wire.Frame) error

// DisconnectFunc is invoked synchronously, before the session is removed
// from the reactor and its socket closed, letting callers clean up
// entity-map/player state first (§4.3: "disconnect(key) — synchronously
// call the configured disconnect callback then unregister").
type DisconnectFunc func(s *Session)

// Reactor owns the listening socket, the epoll set, and the Session
// registry. It is not safe for concurrent use — it is meant to run its
// entire lifetime on one goroutine, per §5's single-threaded model.
type Reactor struct {
	listenFD int
	epollFD  int

	sessions map[Key]*Session
	fdToKey  map[int]Key
	nextKey  Key

	handler      Handler
	onDisconnect DisconnectFunc
	acceptGate   func() bool

	pollTimeout time.Duration
}

// SetAcceptGate installs a predicate consulted once per inbound
// connection, before it is registered with the epoll set; returning
// false drops the connection immediately with no Session ever created.
// server/login and server/shard use this to back a connection-rate
// internal/ratelimit.TokenBucket, since a single listening socket has no
// other admission point (§5: "no shared-memory concurrency" still means
// the rate limiter itself needs no locking — it is only ever consulted
// from the reactor's own goroutine).
func (r *Reactor) SetAcceptGate(gate func() bool) {
	r.acceptGate = gate
}

// selfKey is reserved for the listening socket (§4.3).
const selfKey Key = 0

// New binds addr and prepares the epoll set. It does not start accepting
// connections until Run is called.
func New(addr string, pollTimeout time.Duration, handler Handler, onDisconnect DisconnectFunc) (*Reactor, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("reactor: resolve %q: %w", addr, err)
	}

	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM|unix.SOCK_NONBLOCK, 0)
	if err != nil {
		return nil, fmt.Errorf("reactor: socket: %w", err)
	}
	if err := unix.SetsockoptInt(fd, unix.SOL_SOCKET, unix.SO_REUSEADDR, 1); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: setsockopt SO_REUSEADDR: %w", err)
	}

	var sa unix.SockaddrInet4
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	sa.Port = tcpAddr.Port
	if err := unix.Bind(fd, &sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: bind %q: %w", addr, err)
	}
	if err := unix.Listen(fd, 1024); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: listen: %w", err)
	}

	epfd, err := unix.EpollCreate1(0)
	if err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: epoll_create1: %w", err)
	}

	r := &Reactor{
		listenFD:     fd,
		epollFD:      epfd,
		sessions:     make(map[Key]*Session),
		fdToKey:      make(map[int]Key),
		nextKey:      1,
		handler:      handler,
		onDisconnect: onDisconnect,
		pollTimeout:  pollTimeout,
	}

	if err := unix.EpollCtl(epfd, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN,
		Fd:     int32(fd),
	}); err != nil {
		unix.Close(fd)
		unix.Close(epfd)
		return nil, fmt.Errorf("reactor: epoll_ctl listen fd: %w", err)
	}

	return r, nil
}

// Close tears down the listening socket and epoll set. Sessions are not
// individually closed; callers should Disconnect them first if a clean
// shutdown matters.
func (r *Reactor) Close() error {
	unix.Close(r.epollFD)
	return unix.Close(r.listenFD)
}

// SessionCount reports how many connections are currently registered.
func (r *Reactor) SessionCount() int { return len(r.sessions) }

// Session looks up a registered session by key.
func (r *Reactor) Session(key Key) (*Session, bool) {
	s, ok := r.sessions[key]
	return s, ok
}

// Sessions returns all registered sessions in a deterministic (key-sorted)
// order, matching §4.4's "set operations are deterministic (iterate
// sorted)" discipline carried through the rest of the core.
func (r *Reactor) Sessions() []*Session {
	keys := make([]Key, 0, len(r.sessions))
	for k := range r.sessions {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool { return keys[i] < keys[j] })
	out := make([]*Session, len(keys))
	for i, k := range keys {
		out[i] = r.sessions[k]
	}
	return out
}

// SessionForPlayer resolves pcID to its live game session, if connected.
// This gives *Reactor the same shape as spatial.Sessions structurally
// (no import of internal/spatial needed) so the entity map and NPC AI can
// address observers without the reactor depending on spatial at all.
func (r *Reactor) SessionForPlayer(pcID int32) (*Session, bool) {
	for _, s := range r.sessions {
		if s.Kind == ClientGame && s.Game.PCID == pcID {
			return s, true
		}
	}
	return nil, false
}

// Disconnect synchronously invokes the configured disconnect callback,
// then unregisters and closes the session (§4.3).
func (r *Reactor) Disconnect(key Key) {
	s, ok := r.sessions[key]
	if !ok {
		return
	}
	if r.onDisconnect != nil {
		r.onDisconnect(s)
	}
	unix.EpollCtl(r.epollFD, unix.EPOLL_CTL_DEL, int(fdOf(s)), nil)
	delete(r.fdToKey, int(fdOf(s)))
	delete(r.sessions, key)
	s.Close()
}

// registerFD wraps an accepted or dialed raw fd into a Session and adds
// it to the epoll set, watching both readable and writable readiness
// (§4.3: "a client is processed only when both readable and writable are
// asserted").
func (r *Reactor) registerFD(fd int, remote net.Addr, kind ClientKind) *Session {
	key := r.nextKey
	r.nextKey++

	conn := &fdConn{fd: fd, remote: remote}
	s := newSession(key, conn)
	s.Kind = kind

	r.sessions[key] = s
	r.fdToKey[fd] = key

	unix.EpollCtl(r.epollFD, unix.EPOLL_CTL_ADD, fd, &unix.EpollEvent{
		Events: unix.EPOLLIN | unix.EPOLLOUT,
		Fd:     int32(fd),
	})
	return s
}

// Poll runs exactly one readiness pass: accept any pending connections,
// service every ready client fd, and return. EINTR yields an empty batch
// rather than an error (§4.3/§5).
func (r *Reactor) Poll() error {
	var events [128]unix.EpollEvent
	n, err := unix.EpollWait(r.epollFD, events[:], int(r.pollTimeout/time.Millisecond))
	if err != nil {
		if err == unix.EINTR {
			return nil
		}
		return fmt.Errorf("reactor: epoll_wait: %w", err)
	}

	for i := 0; i < n; i++ {
		fd := int(events[i].Fd)
		if fd == r.listenFD {
			r.acceptLoop()
			continue
		}
		key, ok := r.fdToKey[fd]
		if !ok {
			continue
		}
		readable := events[i].Events&unix.EPOLLIN != 0
		writable := events[i].Events&(unix.EPOLLOUT|unix.EPOLLHUP|unix.EPOLLERR) != 0
		if events[i].Events&(unix.EPOLLHUP|unix.EPOLLERR) != 0 {
			r.Disconnect(key)
			continue
		}
		if readable && writable {
			r.service(key)
		} else if writable {
			// only a partial flush was pending; drain it without decoding
			s := r.sessions[key]
			if s != nil {
				if err := s.drainWrites(); err != nil {
					r.Disconnect(key)
				}
			}
		}
	}

	r.sweepShouldDC()
	return nil
}

// sweepShouldDC disconnects every session a tick task has marked for
// removal (§5: "expiration marks should_dc = true and the next poll pass
// disconnects them"). A session may go idle without reporting another
// epoll event at all, so this cannot rely on the dispatch loop above.
func (r *Reactor) sweepShouldDC() {
	var stale []Key
	for key, s := range r.sessions {
		if s.ShouldDC {
			stale = append(stale, key)
		}
	}
	for _, key := range stale {
		r.Disconnect(key)
	}
}

// Connect dials addr for an outbound server-to-server link (§4.3) and
// registers the resulting socket under the given client kind. The dial
// itself is synchronous for simplicity — shard/login links are few and
// established at process startup or on reconnect, not in the hot path.
func (r *Reactor) Connect(addr string, kind ClientKind) (*Session, error) {
	tcpAddr, err := net.ResolveTCPAddr("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("reactor: resolve %q: %w", addr, err)
	}
	fd, err := unix.Socket(unix.AF_INET, unix.SOCK_STREAM, 0)
	if err != nil {
		return nil, fmt.Errorf("reactor: socket: %w", err)
	}
	var sa unix.SockaddrInet4
	if ip4 := tcpAddr.IP.To4(); ip4 != nil {
		copy(sa.Addr[:], ip4)
	}
	sa.Port = tcpAddr.Port
	if err := unix.Connect(fd, &sa); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: connect %q: %w", addr, err)
	}
	if err := unix.SetNonblock(fd, true); err != nil {
		unix.Close(fd)
		return nil, fmt.Errorf("reactor: set nonblocking: %w", err)
	}
	return r.registerFD(fd, tcpAddr, kind), nil
}

// acceptLoop drains every pending connection on the listening socket
// (level-triggered epoll re-fires until the backlog is empty anyway, but
// draining here avoids an extra wait-cycle of latency per connection).
func (r *Reactor) acceptLoop() {
	for {
		fd, sa, err := unix.Accept4(r.listenFD, unix.SOCK_NONBLOCK)
		if err != nil {
			if err == unix.EAGAIN || err == unix.EWOULDBLOCK {
				return
			}
			return
		}
		if r.acceptGate != nil && !r.acceptGate() {
			unix.Close(fd)
			continue
		}
		remote := sockaddrToAddr(sa)
		r.registerFD(fd, remote, ClientUnknown)
	}
}

// service decodes and dispatches exactly one packet from a ready session,
// then flushes any queued outbound data (§2 control flow: "dispatches
// exactly one packet to a handler keyed by packet ID").
func (r *Reactor) service(key Key) {
	s := r.sessions[key]
	if s == nil {
		return
	}

	buf := make([]byte, 4096)
	fd := fdOf(s)
	readN, err := unix.Read(fd, buf)
	if err != nil && err != unix.EAGAIN && err != unix.EWOULDBLOCK {
		r.Disconnect(key)
		return
	}
	if readN > 0 {
		got, ferr := s.feed(buf[:readN])
		if ferr != nil {
			r.Disconnect(key)
			return
		}
		if got {
			if herr := r.handler(s, *s.pending); herr != nil {
				if de, ok := herr.(*Error); ok && de.ShouldDisconnect {
					r.Disconnect(key)
					return
				}
			}
			s.pending = nil
		}
	} else if readN == 0 && err == nil {
		r.Disconnect(key)
		return
	}

	if s.HasPendingWrites() {
		if err := s.drainWrites(); err != nil {
			r.Disconnect(key)
		}
	}
}

func fdOf(s *Session) int {
	if c, ok := s.conn.(*fdConn); ok {
		return c.fd
	}
	return -1
}

func sockaddrToAddr(sa unix.Sockaddr) net.Addr {
	switch v := sa.(type) {
	case *unix.SockaddrInet4:
		return &net.TCPAddr{IP: net.IP(v.Addr[:]), Port: v.Port}
	default:
		return &net.TCPAddr{}
	}
}
