package loginshard

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"

	"github.com/originfall/core/internal/identity"
	"github.com/originfall/core/internal/quicutil"
	"github.com/quic-go/quic-go"
)

// msgType tags the payload carried by one frame.
type msgType uint8

const (
	msgLoginData msgType = iota + 1
	msgUpdatePCShard
	msgChannelStatuses
	msgAck
)

// quicConfig matches the teacher's daemon/transport/quic_connection.go
// dial/listen settings — there is exactly one long-lived stream per
// connection here rather than the file-transfer daemon's many concurrent
// chunk streams, but the keepalive/idle-timeout tuning a persistent
// server-to-server link wants is the same.
var quicConfig = &quic.Config{
	KeepAlivePeriod: 10e9,
	MaxIdleTimeout:  60e9,
}

// Link is one end of the persistent login↔shard control connection
// (§4.9), carried over a single QUIC stream. QUIC (rather than the
// legacy TCP wire used for clients) is the same choice the file-transfer
// daemon made for its own server-to-server channel: built-in connection
// migration and a transport-level handshake under whatever TLS config is
// configured. That said, a self-signed dev certificate authenticates
// nothing on its own, so every frame after the QUIC handshake is also
// AEAD-sealed under session keys this package's application-level
// Ed25519/X25519 handshake derives, with a nonce generated by XORing
// IVBase against a strictly increasing per-direction counter — the same
// deterministic-nonce scheme the file-transfer daemon used for chunk
// encryption, generalized from a chunk index to a frame counter.
type Link struct {
	conn    io.ReadWriteCloser
	keys    sessionKeys
	sendCtr uint64
	recvCtr uint64
}

// DialShard opens a shard's outbound QUIC connection to its login server,
// opens the control stream, and completes the mutual handshake. ticketKey,
// if non-empty, additionally binds the handshake to a shared secret out
// of band from either party's identity key (defense in depth against a
// stolen identity key alone being sufficient to impersonate a shard).
func DialShard(ctx context.Context, addr string, shardID string, id *identity.KeyPair, ticketKey []byte) (*Link, error) {
	qconn, err := quic.DialAddr(ctx, addr, quicutil.MakeClientTLSConfig(), quicConfig)
	if err != nil {
		return nil, fmt.Errorf("loginshard: dial %s: %w", addr, err)
	}
	stream, err := qconn.OpenStreamSync(ctx)
	if err != nil {
		qconn.CloseWithError(0, "stream open failed")
		return nil, fmt.Errorf("loginshard: open control stream: %w", err)
	}
	keys, err := clientHandshake(stream, shardID, id, ticketKey)
	if err != nil {
		qconn.CloseWithError(0, "handshake failed")
		return nil, err
	}
	return &Link{conn: stream, keys: keys}, nil
}

// Listener accepts inbound shard control connections on the login server.
type Listener struct {
	ln *quic.Listener
}

// ListenLogin starts the login server's QUIC listener. certPEM/keyPEM
// come from quicutil.GenerateSelfSignedCert in production, or a real
// certificate if one is configured.
func ListenLogin(addr string, certPEM, keyPEM []byte) (*Listener, error) {
	tlsConfig, err := quicutil.MakeTLSConfig(certPEM, keyPEM)
	if err != nil {
		return nil, err
	}
	ln, err := quic.ListenAddr(addr, tlsConfig, quicConfig)
	if err != nil {
		return nil, fmt.Errorf("loginshard: listen %s: %w", addr, err)
	}
	return &Listener{ln: ln}, nil
}

// Accept blocks for the next shard connection, opens its control stream,
// and completes the login server's side of the handshake. shardID, if
// non-empty, pins the connection to one expected shard identity string;
// pass "" to accept any shard (the login server learns which shard this
// is from the shard's own identity key / subsequent traffic).
func (l *Listener) Accept(ctx context.Context, shardID string, id *identity.KeyPair, ticketKey []byte) (*Link, error) {
	qconn, err := l.ln.Accept(ctx)
	if err != nil {
		return nil, fmt.Errorf("loginshard: accept: %w", err)
	}
	stream, err := qconn.AcceptStream(ctx)
	if err != nil {
		qconn.CloseWithError(0, "stream accept failed")
		return nil, fmt.Errorf("loginshard: accept control stream: %w", err)
	}
	keys, err := serverHandshake(stream, shardID, id, ticketKey)
	if err != nil {
		qconn.CloseWithError(0, "handshake failed")
		return nil, err
	}
	return &Link{conn: stream, keys: keys}, nil
}

// Close stops accepting new shard connections.
func (l *Listener) Close() error { return l.ln.Close() }

// Close tears down the underlying connection.
func (l *Link) Close() error { return l.conn.Close() }

func deriveNonce(ivBase [12]byte, counter uint64) [12]byte {
	var nonce [12]byte
	var cb [8]byte
	binary.LittleEndian.PutUint64(cb[:], counter)
	for i := 0; i < 8; i++ {
		nonce[i] = ivBase[i] ^ cb[i]
	}
	copy(nonce[8:], ivBase[8:])
	return nonce
}

func (l *Link) sendFrame(typ msgType, payload []byte) error {
	nonce := deriveNonce(l.keys.IVBase, l.sendCtr)
	l.sendCtr++
	sealed, err := identity.Seal(l.keys.PayloadKey[:], nonce[:], []byte{byte(typ)}, payload)
	if err != nil {
		return fmt.Errorf("loginshard: seal frame: %w", err)
	}
	var header [5]byte
	binary.LittleEndian.PutUint32(header[:4], uint32(len(sealed)))
	header[4] = byte(typ)
	if _, err := l.conn.Write(header[:]); err != nil {
		return fmt.Errorf("loginshard: write header: %w", err)
	}
	if _, err := l.conn.Write(sealed); err != nil {
		return fmt.Errorf("loginshard: write body: %w", err)
	}
	return nil
}

func (l *Link) recvFrame() (msgType, []byte, error) {
	var header [5]byte
	if _, err := io.ReadFull(l.conn, header[:]); err != nil {
		return 0, nil, err
	}
	n := binary.LittleEndian.Uint32(header[:4])
	typ := msgType(header[4])
	sealed := make([]byte, n)
	if _, err := io.ReadFull(l.conn, sealed); err != nil {
		return 0, nil, fmt.Errorf("loginshard: read body: %w", err)
	}
	nonce := deriveNonce(l.keys.IVBase, l.recvCtr)
	l.recvCtr++
	payload, err := identity.Open(l.keys.PayloadKey[:], nonce[:], []byte{byte(typ)}, sealed)
	if err != nil {
		return 0, nil, fmt.Errorf("loginshard: open frame: %w", err)
	}
	return typ, payload, nil
}

// SendLoginData forwards ld to the shard (§4.9 step 2).
func (l *Link) SendLoginData(ld LoginData) error {
	return l.sendFrame(msgLoginData, ld.encode())
}

// SendUpdatePCShard reports a population change to the login server
// (§4.9 steps 5-6).
func (l *Link) SendUpdatePCShard(u UpdatePCShard) error {
	return l.sendFrame(msgUpdatePCShard, u.encode())
}

// SendChannelStatuses reports current per-channel load.
func (l *Link) SendChannelStatuses(c ChannelStatuses) error {
	return l.sendFrame(msgChannelStatuses, c.encode())
}

// sendAck acknowledges receipt of a ChannelStatuses update.
func (l *Link) sendAck() error { return l.sendFrame(msgAck, nil) }

// Message is one decoded, already-authenticated frame off the link.
// Exactly one of the typed fields is non-nil, selected by Type.
type Message struct {
	Type            msgType
	LoginData       *LoginData
	UpdatePCShard   *UpdatePCShard
	ChannelStatuses *ChannelStatuses
}

// Recv blocks for the next frame and decodes it by type. Callers loop on
// Recv from a dedicated goroutine (the control link is the one place in
// this codebase where that's appropriate, since it
// blocks on network I/O independent of either process's reactor poll).
func (l *Link) Recv() (Message, error) {
	typ, payload, err := l.recvFrame()
	if err != nil {
		return Message{}, err
	}
	switch typ {
	case msgLoginData:
		ld, err := decodeLoginData(payload)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: typ, LoginData: &ld}, nil
	case msgUpdatePCShard:
		u, err := decodeUpdatePCShard(payload)
		if err != nil {
			return Message{}, err
		}
		return Message{Type: typ, UpdatePCShard: &u}, nil
	case msgChannelStatuses:
		c, err := decodeChannelStatuses(payload)
		if err != nil {
			return Message{}, err
		}
		if err := l.sendAck(); err != nil {
			return Message{}, err
		}
		return Message{Type: typ, ChannelStatuses: &c}, nil
	case msgAck:
		return Message{Type: typ}, nil
	default:
		return Message{}, fmt.Errorf("loginshard: unknown frame type %d", typ)
	}
}
