package wire

import "encoding/binary"

// KeyMode names which of a Session's two keys currently encrypts the wire.
type KeyMode int

const (
	// ModeNone is only valid before a connection is registered; no traffic
	// is ever sent or received in this mode.
	ModeNone KeyMode = iota
	// ModeEKey is the pre-login phase: a hard-coded pre-shared key.
	ModeEKey
	// ModeFEKey is the post-login phase: the key delivered by the login
	// server during the shard-select handshake (§4.9).
	ModeFEKey
)

// PresharedEKey is the hard-coded 8-byte key every session starts in
// before PC_ENTER succeeds. Real deployments would not hard-code this in
// a single constant visible to every process, but the legacy wire format
// requires it: a brand-new TCP connection has exchanged no key material
// yet, so *something* fixed has to seed the first decrypt.
var PresharedEKey = [8]byte{0x67, 0x45, 0x23, 0x01, 0xEF, 0xCD, 0xAB, 0x89}

// Cipher implements the two-keying-phase 8-byte-block stream cipher:
// every 8-byte block of the frame body (ID + payload, unpadded) is XORed
// against a key schedule derived from the active 8-byte key and the
// block's index, so repeated blocks of plaintext do not repeat on the
// wire; a final partial block uses a truncated keystream block.
type Cipher struct {
	mode KeyMode
	key  [8]byte
}

// NewCipher returns a cipher seeded with the pre-shared key in ModeEKey.
func NewCipher() *Cipher {
	return &Cipher{mode: ModeEKey, key: PresharedEKey}
}

// Mode reports the active keying phase.
func (c *Cipher) Mode() KeyMode { return c.mode }

// SetEKey installs a fresh per-session e_key and leaves the cipher in
// ModeEKey. The PC_ENTER_SUCC path does not call it: the shard queues that
// reply, already encrypted under the current key, and then calls
// SwitchToFEKey.
func (c *Cipher) SetEKey(key uint64) {
	binary.LittleEndian.PutUint64(c.key[:], key)
	c.mode = ModeEKey
}

// SwitchToFEKey atomically (with respect to the caller's single-threaded
// reactor loop — no locking needed) installs the login-delivered key and
// switches keying phase. Once called, subsequent reads/writes use fe_key
// until the session closes.
func (c *Cipher) SwitchToFEKey(key uint64) {
	binary.LittleEndian.PutUint64(c.key[:], key)
	c.mode = ModeFEKey
}

// schedule expands the 8-byte key into a per-block keystream block. Block
// index is mixed in so that the Nth 8-byte block of a frame is not simply
// XORed with the raw key; this is a deliberately simple, table-free
// schedule, not a cryptographic primitive — the legacy wire format has no
// integrity tag and was never meant to resist a motivated adversary, only
// to obscure casual packet sniffing.
func (c *Cipher) schedule(blockIndex uint64) [8]byte {
	var ks [8]byte
	mix := binary.LittleEndian.Uint64(c.key[:]) ^ (blockIndex * 0x9E3779B97F4A7C15)
	mix ^= mix >> 33
	mix *= 0xFF51AFD7ED558CCD
	mix ^= mix >> 33
	binary.LittleEndian.PutUint64(ks[:], mix)
	return ks
}

// XORBlocks encrypts or decrypts (the operation is its own inverse) buf
// in place, 8 bytes at a time. A final partial block, if any, is XORed
// against a truncated keystream block.
func (c *Cipher) XORBlocks(buf []byte) {
	for off := 0; off < len(buf); off += 8 {
		end := off + 8
		if end > len(buf) {
			end = len(buf)
		}
		ks := c.schedule(uint64(off / 8))
		for i := off; i < end; i++ {
			buf[i] ^= ks[i-off]
		}
	}
}

// DecryptID decrypts exactly the first 8-byte block of a frame body
// in place — enough to recover the packet ID without touching the rest
// of the (possibly much larger) payload yet.
func (c *Cipher) DecryptID(body []byte) {
	if len(body) < 8 {
		return
	}
	ks := c.schedule(0)
	for i := 0; i < 8; i++ {
		body[i] ^= ks[i]
	}
}

// DeriveEKey computes the per-session e_key handed to the client inside
// the still-e_key-encrypted PC_ENTER_SUCC reply (§4.1, S1). The inputs
// are the server time the reply carries, and two 32-bit seeds derived
// from identifiers already known to both sides at that point in the
// handshake (iv1 = pc_id+1, iv2 = fusion_matter+1), so the client can
// reproduce exactly this derivation to decrypt everything that follows.
func DeriveEKey(serverTime uint64, iv1, iv2 uint32) uint64 {
	mix := serverTime ^ uint64(iv1)<<32 ^ uint64(iv2)
	mix ^= mix >> 33
	mix *= 0xFF51AFD7ED558CCD
	mix ^= mix >> 33
	mix *= 0xC4CEB9FE1A85EC53
	mix ^= mix >> 33
	return mix
}
