// Package identity provides the Ed25519 process identity and X25519
// ephemeral key-exchange primitives every server in the cluster uses to
// authenticate the login↔shard control channel (§4.9).
//
// Adapted from internal/crypto's peer-authentication keypair helpers:
// the file-transfer daemon used Ed25519 to sign manifests and X25519 for
// per-transfer forward secrecy. A shard or login server needs exactly the
// same two primitives for exactly the same reason — a durable identity to
// sign a handshake transcript with, and a fresh ephemeral pair per
// connection so a compromised long-term key cannot retroactively decrypt
// past sessions.
package identity

import (
	"crypto/ed25519"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"

	"golang.org/x/crypto/curve25519"
)

// KeyPair is a server's durable Ed25519 identity.
type KeyPair struct {
	Public  ed25519.PublicKey
	Private ed25519.PrivateKey
}

// Generate creates a fresh Ed25519 identity.
func Generate() (*KeyPair, error) {
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("identity: generate: %w", err)
	}
	return &KeyPair{Public: pub, Private: priv}, nil
}

// Fingerprint returns a human-displayable SHA-256 fingerprint of the
// public key, suitable for an operator to eyeball in a log line.
func (k *KeyPair) Fingerprint() string {
	sum := sha256.Sum256(k.Public)
	return "SHA256:" + hex.EncodeToString(sum[:])
}

// Ephemeral is a per-connection X25519 key-exchange pair. Callers must
// discard it once the connection's session keys are derived — retaining
// it defeats the forward secrecy the handshake exists to provide.
type Ephemeral struct {
	Public  [32]byte
	Private [32]byte
}

// GenerateEphemeral creates a fresh X25519 pair.
func GenerateEphemeral() (*Ephemeral, error) {
	var e Ephemeral
	if _, err := rand.Read(e.Private[:]); err != nil {
		return nil, fmt.Errorf("identity: generate ephemeral: %w", err)
	}
	curve25519.ScalarBaseMult(&e.Public, &e.Private)
	return &e, nil
}

// ErrInvalidExchange is returned when an ECDH computation yields an
// all-zero shared secret, which only happens for a maliciously chosen or
// corrupted peer public key.
var ErrInvalidExchange = errors.New("identity: ECDH produced an invalid (all-zero) shared secret")

// SharedSecret performs X25519 ECDH between our ephemeral private key and
// the peer's ephemeral public key.
func SharedSecret(ours *Ephemeral, theirPublic [32]byte) ([32]byte, error) {
	var secret [32]byte
	curve25519.ScalarMult(&secret, &ours.Private, &theirPublic)
	zero := true
	for _, b := range secret {
		if b != 0 {
			zero = false
			break
		}
	}
	if zero {
		return secret, ErrInvalidExchange
	}
	return secret, nil
}
