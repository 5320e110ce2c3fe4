package loginshard

import (
	"crypto/ed25519"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/originfall/core/internal/identity"
	"golang.org/x/crypto/hkdf"
)

// Grounded on internal/crypto/handshake/handshake.go's ClientHandshake/
// ServerHandshake: a JSON client-hello/server-hello exchange over a
// plain stream, X25519 ephemeral keys for forward secrecy, Ed25519
// signatures over the transcript for mutual authentication, and
// HKDF-SHA256 over (ECDH shared secret, transcript hash) for session key
// derivation. Reused near-verbatim because a shard dialing its login
// server needs exactly the same shape of handshake a file-transfer peer
// did — mutual auth plus forward secrecy before anything sensitive
// crosses the wire — just with a different transcript domain string and
// a different identity package underneath.

type clientHello struct {
	Type      string `json:"type"`
	ShardID   string `json:"shard_id"`
	ClientEph string `json:"client_eph_pub"`
	ClientID  string `json:"client_id_pub"`
	Sig       string `json:"sig,omitempty"`
	TokenHMAC string `json:"token_hmac,omitempty"`
}

type serverHello struct {
	Type      string `json:"type"`
	ServerEph string `json:"server_eph_pub"`
	ServerID  string `json:"server_id_pub"`
	Sig       string `json:"sig,omitempty"`
}

// sessionKeys is the pair of handshake-derived secrets used to AEAD-wrap
// every frame exchanged over the control link afterward.
type sessionKeys struct {
	PayloadKey [32]byte
	IVBase     [12]byte
}

func serialize(v any) []byte { b, _ := json.Marshal(v); return b }

const handshakeDomain = "ORIGINFALL-LOGINSHARD|"

func sign(priv ed25519.PrivateKey, parts ...[]byte) string {
	msg := []byte(handshakeDomain)
	for i, p := range parts {
		msg = append(msg, p...)
		if i+1 < len(parts) {
			msg = append(msg, '|')
		}
	}
	return base64.StdEncoding.EncodeToString(ed25519.Sign(priv, msg))
}

func verify(pub ed25519.PublicKey, sigB64 string, parts ...[]byte) bool {
	msg := []byte(handshakeDomain)
	for i, p := range parts {
		msg = append(msg, p...)
		if i+1 < len(parts) {
			msg = append(msg, '|')
		}
	}
	sig, err := base64.StdEncoding.DecodeString(sigB64)
	if err != nil {
		return false
	}
	return ed25519.Verify(pub, msg, sig)
}

func deriveKeys(shared []byte, transcript []byte) (sessionKeys, error) {
	salt := sha256.Sum256(transcript)
	h := hkdf.New(sha256.New, shared, salt[:], []byte("originfall-loginshard-session-keys"))
	var out [44]byte
	if _, err := io.ReadFull(h, out[:]); err != nil {
		return sessionKeys{}, err
	}
	var sk sessionKeys
	copy(sk.PayloadKey[:], out[:32])
	copy(sk.IVBase[:], out[32:44])
	return sk, nil
}

func computeTokenHMAC(secret, transcript []byte) string {
	h := hmac.New(sha256.New, secret)
	h.Write(transcript)
	return base64.StdEncoding.EncodeToString(h.Sum(nil))
}

// clientHandshake runs the shard side of the connection: dial, hello,
// verify the login server's reply, derive session keys. shardID both
// labels the connection and binds the transcript so a captured handshake
// cannot be replayed against a different shard's identity.
func clientHandshake(rw io.ReadWriter, shardID string, id *identity.KeyPair, ticketKey []byte) (sessionKeys, error) {
	eph, err := identity.GenerateEphemeral()
	if err != nil {
		return sessionKeys{}, err
	}
	ephB64 := base64.StdEncoding.EncodeToString(eph.Public[:])
	idB64 := base64.StdEncoding.EncodeToString(id.Public)

	ch := clientHello{Type: "client_hello", ShardID: shardID, ClientEph: ephB64, ClientID: idB64}
	ch.Sig = sign(id.Private, []byte("client"), []byte(shardID), []byte(ephB64), []byte(idB64))
	transcript := serialize(ch)
	if len(ticketKey) > 0 {
		ch.TokenHMAC = computeTokenHMAC(ticketKey, transcript)
	}

	if err := json.NewEncoder(rw).Encode(&ch); err != nil {
		return sessionKeys{}, fmt.Errorf("loginshard: send client hello: %w", err)
	}

	var sh serverHello
	if err := json.NewDecoder(rw).Decode(&sh); err != nil {
		return sessionKeys{}, fmt.Errorf("loginshard: read server hello: %w", err)
	}
	if sh.Type != "server_hello" {
		return sessionKeys{}, fmt.Errorf("loginshard: unexpected message type %q", sh.Type)
	}

	srvPub, err := base64.StdEncoding.DecodeString(sh.ServerID)
	if err != nil || len(srvPub) != ed25519.PublicKeySize {
		return sessionKeys{}, fmt.Errorf("loginshard: bad server identity key")
	}
	if sh.Sig == "" || !verify(ed25519.PublicKey(srvPub), sh.Sig, []byte("server"), []byte(shardID), []byte(sh.ServerEph), []byte(sh.ServerID)) {
		return sessionKeys{}, fmt.Errorf("loginshard: server handshake signature invalid")
	}

	srvEphB, err := base64.StdEncoding.DecodeString(sh.ServerEph)
	if err != nil || len(srvEphB) != 32 {
		return sessionKeys{}, fmt.Errorf("loginshard: bad server ephemeral key")
	}
	var srvEph [32]byte
	copy(srvEph[:], srvEphB)
	shared, err := identity.SharedSecret(eph, srvEph)
	if err != nil {
		return sessionKeys{}, fmt.Errorf("loginshard: %w", err)
	}

	fullTranscript := append(transcript, serialize(sh)...)
	return deriveKeys(shared[:], fullTranscript)
}

// serverHandshake runs the login server side: read hello, verify,
// reply, derive the same session keys the shard derived.
func serverHandshake(rw io.ReadWriter, shardID string, id *identity.KeyPair, ticketKey []byte) (sessionKeys, error) {
	var ch clientHello
	if err := json.NewDecoder(rw).Decode(&ch); err != nil {
		return sessionKeys{}, fmt.Errorf("loginshard: read client hello: %w", err)
	}
	if ch.Type != "client_hello" {
		return sessionKeys{}, fmt.Errorf("loginshard: unexpected message type %q", ch.Type)
	}
	if shardID != "" && ch.ShardID != shardID {
		return sessionKeys{}, fmt.Errorf("loginshard: shard id mismatch")
	}

	cliPub, err := base64.StdEncoding.DecodeString(ch.ClientID)
	if err != nil || len(cliPub) != ed25519.PublicKeySize {
		return sessionKeys{}, fmt.Errorf("loginshard: bad client identity key")
	}
	if ch.Sig == "" || !verify(ed25519.PublicKey(cliPub), ch.Sig, []byte("client"), []byte(ch.ShardID), []byte(ch.ClientEph), []byte(ch.ClientID)) {
		return sessionKeys{}, fmt.Errorf("loginshard: client handshake signature invalid")
	}

	tokenHMAC := ch.TokenHMAC
	ch.TokenHMAC = ""
	transcript := serialize(ch)
	if len(ticketKey) > 0 {
		if tokenHMAC == "" || !strings.EqualFold(computeTokenHMAC(ticketKey, transcript), tokenHMAC) {
			return sessionKeys{}, fmt.Errorf("loginshard: token binding invalid")
		}
	}

	eph, err := identity.GenerateEphemeral()
	if err != nil {
		return sessionKeys{}, err
	}
	ephB64 := base64.StdEncoding.EncodeToString(eph.Public[:])
	idB64 := base64.StdEncoding.EncodeToString(id.Public)
	sh := serverHello{Type: "server_hello", ServerEph: ephB64, ServerID: idB64}
	sh.Sig = sign(id.Private, []byte("server"), []byte(ch.ShardID), []byte(ephB64), []byte(idB64))

	if err := json.NewEncoder(rw).Encode(&sh); err != nil {
		return sessionKeys{}, fmt.Errorf("loginshard: send server hello: %w", err)
	}

	cliEphB, err := base64.StdEncoding.DecodeString(ch.ClientEph)
	if err != nil || len(cliEphB) != 32 {
		return sessionKeys{}, fmt.Errorf("loginshard: bad client ephemeral key")
	}
	var cliEph [32]byte
	copy(cliEph[:], cliEphB)
	shared, err := identity.SharedSecret(eph, cliEph)
	if err != nil {
		return sessionKeys{}, fmt.Errorf("loginshard: %w", err)
	}

	fullTranscript := append(transcript, serialize(sh)...)
	return deriveKeys(shared[:], fullTranscript)
}
