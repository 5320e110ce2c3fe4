// Package wire implements the legacy client-facing binary protocol: packet
// framing, packet ID constants, the two-phase block cipher, and the
// UTF-16LE fixed-string helpers every payload struct needs.
//
// Every payload on the wire is a fixed-size, C-compatible record; there is
// no reflection-based marshaling here on purpose — see §4.1/§9 of the
// protocol notes this package implements: byte-for-byte compatibility with
// a legacy client rules out anything but explicit per-field encoding.
package wire

import (
	"encoding/binary"
	"fmt"
)

// ID identifies a packet type. The wire value is a u32; grouping into
// direction bands (CL2LS, LS2CL, CL2FE, FE2CL, FE2LS, LS2FE) is a naming
// convention only, not a bit-layout.
type ID uint32

const (
	// Client <-> Login server.
	PCL2LSReqLogin    ID = 1
	PLS2CLRepLoginSucc ID = 2
	PLS2CLRepLoginFail ID = 3

	// Client <-> Shard ("FE", front-end).
	PCL2FEReqPCEnter    ID = 100
	PFE2CLRepPCEnterSucc ID = 101
	PFE2CLRepPCEnterFail ID = 102

	// Entity visibility.
	PFE2CLPCNew  ID = 110
	PFE2CLPCExit ID = 111
	PFE2CLNPCNew ID = 112
	PFE2CLNPCExit ID = 113
	PFE2CLNPCMove ID = 114

	// Buddy flow (S3).
	PCL2FEReqMakeBuddy          ID = 200
	PFE2CLRepMakeBuddySuccToAccepter ID = 201
	PCL2FEAcceptMakeBuddy       ID = 202
	PFE2CLAcceptMakeBuddySucc   ID = 203
	PFE2CLAcceptMakeBuddyFail   ID = 204

	// Chat / system message.
	PCL2FEFreeChat    ID = 300
	PFE2CLSystemMessage ID = 301

	// Vehicle expiry (S5).
	PFE2CLPCVehicleOffSucc       ID = 400
	PFE2CLPCDeleteTimeLimitItem  ID = 401

	// Login <-> Shard server-server channel (§4.9).
	PLS2FELoginData           ID = 500
	PFE2LSUpdatePCShard       ID = 501
	PFE2LSUpdateChannelStatuses ID = 502
	PLS2FEChannelStatusesAck  ID = 503
)

// Exit codes embedded in the game protocol (§6).
const (
	ExitCodeReqByPC     = 1
	ExitCodeReqByServer = 2
	ExitCodeHack        = 4
	ExitCodeServerError = 99
)

// MaxPacketSize bounds the inbound receive buffer (§4.2: "receive buffers
// grow to the max packet size (clamped)").
const MaxPacketSize = 65536

// HeaderSize is the byte length of the length-prefix field.
const HeaderSize = 4

// IDSize is the byte length of the packet ID field; also the cipher's
// block size, since the packet ID occupies exactly one cipher block
// (§4.1: "the first 8 bytes of payload are the packet ID and are
// decrypted as a single 8-byte block").
const IDSize = 8

// Frame holds a decoded packet: its ID and the raw payload bytes
// following the ID field.
type Frame struct {
	ID      ID
	Payload []byte
}

// Encode serializes id and payload into a length-prefixed frame ready for
// encryption. The returned slice is: [4-byte length][8-byte ID][payload],
// where length covers everything after the length field itself.
func Encode(id ID, payload []byte) []byte {
	body := make([]byte, IDSize+len(payload))
	binary.LittleEndian.PutUint64(body[:8], uint64(id))
	copy(body[8:], payload)

	out := make([]byte, HeaderSize+len(body))
	binary.LittleEndian.PutUint32(out[:HeaderSize], uint32(len(body)))
	copy(out[HeaderSize:], body)
	return out
}

// DecodeBody splits a decrypted frame body (everything after the length
// prefix) into its packet ID and payload.
func DecodeBody(body []byte) (Frame, error) {
	if len(body) < IDSize {
		return Frame{}, fmt.Errorf("wire: frame body too short for packet id: %d bytes", len(body))
	}
	id := ID(binary.LittleEndian.Uint64(body[:8]))
	payload := make([]byte, len(body)-IDSize)
	copy(payload, body[IDSize:])
	return Frame{ID: id, Payload: payload}, nil
}

// ReadLength decodes the 4-byte little-endian length prefix.
func ReadLength(header []byte) (uint32, error) {
	if len(header) != HeaderSize {
		return 0, fmt.Errorf("wire: length header must be %d bytes, got %d", HeaderSize, len(header))
	}
	return binary.LittleEndian.Uint32(header), nil
}
