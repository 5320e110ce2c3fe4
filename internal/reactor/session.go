// Package reactor implements the single-threaded, readiness-polled event
// loop that owns every client and server-to-server TCP connection: a
// listening socket, an epoll set, and a dense-integer-keyed Session map.
//
// The shape follows daemon/manager/session.go's state-carrying Session
// type and daemon/manager/store.go's map-keyed registry, generalized from
// a transfer-session state machine to a protocol session that owns an
// inbound/outbound byte buffer and a wire.Cipher.
package reactor

import (
	"fmt"
	"net"
	"time"

	"github.com/originfall/core/internal/wire"
)

// ClientKind tags what a Session has authenticated as.
type ClientKind int

const (
	ClientUnknown ClientKind = iota
	ClientGame
	ClientLoginServer
	ClientShardServer
)

// GameIdentity holds the fields a game_client Session carries once known.
type GameIdentity struct {
	AccountID int64
	SerialKey uint64
	PCID      int32 // 0 until PC_ENTER succeeds
}

// ShardIdentity holds the fields a shard_server Session carries.
type ShardIdentity struct {
	ShardID int32
}

// Key is the dense integer the reactor uses to address a Session. Key 0
// is reserved for the listening socket and is never assigned to a real
// connection (§4.3).
type Key uint32

// Session is one TCP connection's mutable state. Only the reactor
// goroutine ever touches a Session — there is deliberately no mutex here;
// the whole point of the single-threaded event loop (§5) is that entity
// and session state never needs locking.
type Session struct {
	Key  Key
	Addr net.Addr

	conn   net.Conn
	cipher *wire.Cipher

	inbound    []byte // accumulates partial reads until a full frame is present
	pending    *wire.Frame
	outbound   [][]byte // queued encrypted frames awaiting a writable pass
	outOffset  int      // bytes of outbound[0] already written

	Kind  ClientKind
	Game  GameIdentity
	Shard ShardIdentity

	ShouldDC   bool
	LastHeard  time.Time
}

func newSession(key Key, conn net.Conn) *Session {
	return &Session{
		Key:       key,
		Addr:      conn.RemoteAddr(),
		conn:      conn,
		cipher:    wire.NewCipher(),
		inbound:   make([]byte, 0, 4096),
		LastHeard: time.Now(),
	}
}

// Cipher exposes the session's cipher so PC_ENTER handling can switch
// keying phase.
func (s *Session) Cipher() *wire.Cipher { return s.cipher }

// Pending returns the decoded-but-not-yet-consumed inbound packet, if
// any. A handler calls GetPacket to type-check and clear it.
func (s *Session) Pending() *wire.Frame { return s.pending }

// GetPacket verifies the pending frame matches expected and returns its
// payload, consuming the pending slot. It is the Go analogue of
// get_packet::<T>(expected_id) in §4.2: the caller still owns decoding
// the payload into its own struct via wire.Reader.
func (s *Session) GetPacket(expected wire.ID) ([]byte, error) {
	if s.pending == nil {
		return nil, fmt.Errorf("reactor: no pending packet on session %d", s.Key)
	}
	if s.pending.ID != expected {
		return nil, fmt.Errorf("reactor: session %d expected packet %d, got %d", s.Key, expected, s.pending.ID)
	}
	payload := s.pending.Payload
	s.pending = nil
	return payload, nil
}

// feed appends newly-read bytes and tries to extract one full frame. It
// returns true if a frame is now pending.
func (s *Session) feed(data []byte) (bool, error) {
	s.inbound = append(s.inbound, data...)
	if len(s.inbound) < wire.HeaderSize {
		return false, nil
	}
	length, err := wire.ReadLength(s.inbound[:wire.HeaderSize])
	if err != nil {
		return false, err
	}
	if length > wire.MaxPacketSize {
		return false, fmt.Errorf("reactor: session %d sent oversized frame (%d bytes)", s.Key, length)
	}
	total := wire.HeaderSize + int(length)
	if len(s.inbound) < total {
		return false, nil
	}

	body := make([]byte, length)
	copy(body, s.inbound[wire.HeaderSize:total])
	s.inbound = append(s.inbound[:0], s.inbound[total:]...)

	if len(body) < wire.IDSize {
		return false, fmt.Errorf("reactor: session %d frame shorter than packet id field", s.Key)
	}
	s.cipher.XORBlocks(body)
	frame, err := wire.DecodeBody(body)
	if err != nil {
		return false, err
	}
	s.pending = &frame
	s.LastHeard = time.Now()
	return true, nil
}

// QueuePacket encrypts and enqueues id/payload for the next writable
// pass. It never blocks; SendPacket only calls it, and a composite
// response is several calls in a row, written out in queue order.
func (s *Session) QueuePacket(id wire.ID, payload []byte) {
	frame := wire.Encode(id, payload)
	body := frame[wire.HeaderSize:]
	s.cipher.XORBlocks(body)
	s.outbound = append(s.outbound, frame)
}

// SendPacket queues and returns immediately; actual transmission happens
// on the next writable-readiness pass (§4.1: "send -> encrypt -> write ->
// drain"). The split keeps every write non-blocking as §5 requires.
func (s *Session) SendPacket(id wire.ID, payload []byte) {
	s.QueuePacket(id, payload)
}

// HasPendingWrites reports whether the session has data queued to flush.
func (s *Session) HasPendingWrites() bool {
	return len(s.outbound) > 0
}

// drainWrites writes as much queued data as the socket will currently
// accept without blocking. It is only ever called by the reactor on
// writable readiness.
func (s *Session) drainWrites() error {
	for len(s.outbound) > 0 {
		buf := s.outbound[0]
		n, err := s.conn.Write(buf[s.outOffset:])
		if n > 0 {
			s.outOffset += n
		}
		if err != nil {
			if isWouldBlock(err) {
				return nil
			}
			return err
		}
		if s.outOffset >= len(buf) {
			s.outbound = s.outbound[1:]
			s.outOffset = 0
		} else {
			// short, non-blocking write: wait for the next writable pass
			return nil
		}
	}
	return nil
}

// Close releases the underlying connection. The reactor calls this after
// invoking the disconnect callback and removing the session from its map.
func (s *Session) Close() error {
	return s.conn.Close()
}
