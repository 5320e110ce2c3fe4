package loginshard

import (
	"crypto/rand"
	"encoding/binary"
	"errors"

	"github.com/zeebo/blake3"
)

// GenerateSerialKey returns a fresh, unpredictable serial key for a newly
// authenticated player (§4.9 step 1). The client carries this value,
// unauthenticated, from the login server to the shard over its own TCP
// connection — high entropy is what stands between a guessed key and
// impersonating another player's arrival, since §4.1 gives the client no
// other credential at that point.
func GenerateSerialKey() (uint64, error) {
	var b [8]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.LittleEndian.Uint64(b[:]), nil
}

// ErrTicketKeySize is returned by SignTicket when the shared ticket key
// isn't exactly 32 bytes (a blake3 keyed-hash requirement); VerifyTicket
// reports false for such a key.
var ErrTicketKeySize = errors.New("loginshard: ticket key must be 32 bytes")

// SignTicket computes a keyed BLAKE3 MAC over a LoginData's identity
// fields. The login↔shard link is already authenticated by the X25519
// handshake in this package's handshake.go, so this exists as a second,
// independent binding of serial_key to pc_uid/fe_key — defense in depth
// against a relay or proxy sitting between shard processes that forwards
// frames without re-running the handshake, mirroring how the file-
// transfer daemon layered an Ed25519 manifest signature on top of an
// already-authenticated QUIC connection.
func SignTicket(key []byte, ld LoginData) ([32]byte, error) {
	var out [32]byte
	if len(key) != 32 {
		return out, ErrTicketKeySize
	}
	h, err := blake3.NewKeyed(key)
	if err != nil {
		return out, err
	}
	h.Write(ld.encode())
	copy(out[:], h.Sum(nil))
	return out, nil
}

// VerifyTicket reports whether mac is the correct SignTicket output for
// ld under key.
func VerifyTicket(key []byte, mac [32]byte, ld LoginData) bool {
	want, err := SignTicket(key, ld)
	if err != nil {
		return false
	}
	return want == mac
}
