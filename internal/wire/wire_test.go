package wire

import "testing"

func TestEncodeDecodeFrame(t *testing.T) {
	payload := []byte{1, 2, 3, 4}
	frame := Encode(PCL2FEReqPCEnter, payload)

	length, err := ReadLength(frame[:HeaderSize])
	if err != nil {
		t.Fatalf("ReadLength: %v", err)
	}
	if int(length) != len(frame)-HeaderSize {
		t.Fatalf("length = %d, want %d", length, len(frame)-HeaderSize)
	}

	body := frame[HeaderSize:]
	decoded, err := DecodeBody(body)
	if err != nil {
		t.Fatalf("DecodeBody: %v", err)
	}
	if decoded.ID != PCL2FEReqPCEnter {
		t.Fatalf("ID = %d, want %d", decoded.ID, PCL2FEReqPCEnter)
	}
	if string(decoded.Payload) != string(payload) {
		t.Fatalf("Payload = %v, want %v", decoded.Payload, payload)
	}
}

func TestCipherRoundTrip(t *testing.T) {
	enc := NewCipher()
	dec := NewCipher()

	body := Encode(PCL2LSReqLogin, []byte("hello world, this is a test payload"))[HeaderSize:]
	plain := append([]byte(nil), body...)

	enc.XORBlocks(body)
	if string(body) == string(plain) {
		t.Fatalf("expected ciphertext to differ from plaintext")
	}
	dec.XORBlocks(body)
	if string(body) != string(plain) {
		t.Fatalf("decrypted body does not match original")
	}
}

func TestCipherKeySwitch(t *testing.T) {
	c := NewCipher()
	if c.Mode() != ModeEKey {
		t.Fatalf("expected initial mode ModeEKey")
	}
	key := DeriveEKey(1234, 5, 6)
	c.SwitchToFEKey(key)
	if c.Mode() != ModeFEKey {
		t.Fatalf("expected ModeFEKey after switch")
	}
}

func TestDecryptIDOnlyTouchesFirstBlock(t *testing.T) {
	enc := NewCipher()
	body := Encode(PFE2CLPCNew, []byte("0123456789ABCDEF"))[HeaderSize:]
	enc.XORBlocks(body)
	cipherPayload := append([]byte(nil), body[8:]...)

	dec := NewCipher()
	dec.DecryptID(body)
	if string(body[8:]) != string(cipherPayload) {
		t.Fatalf("DecryptID must not touch bytes past the first 8-byte block")
	}
	decoded, err := DecodeBody(body[:8])
	if err != nil {
		t.Fatalf("DecodeBody of a bare 8-byte ID block should succeed: %v", err)
	}
	if decoded.ID != PFE2CLPCNew {
		t.Fatalf("recovered ID = %d, want %d", decoded.ID, PFE2CLPCNew)
	}
}

func TestFixedString16RoundTrip(t *testing.T) {
	raw := EncodeFixedString16("alice", 16)
	if len(raw) != 32 {
		t.Fatalf("expected 32 bytes for width 16, got %d", len(raw))
	}
	if got := DecodeFixedString16(raw); got != "alice" {
		t.Fatalf("DecodeFixedString16 = %q, want alice", got)
	}
}

func TestFixedString16Truncates(t *testing.T) {
	raw := EncodeFixedString16("this name is far too long", 8)
	got := DecodeFixedString16(raw)
	if len(got) >= 8 {
		t.Fatalf("expected truncated string shorter than width, got %q", got)
	}
}

func TestWriterReaderRoundTrip(t *testing.T) {
	w := NewWriter(32)
	w.U32(42)
	w.I32(-7)
	w.U64(1 << 40)
	w.FixedString16("bob", 8)

	r := NewReader(w.Bytes())
	if got := r.U32(); got != 42 {
		t.Fatalf("U32 = %d, want 42", got)
	}
	if got := r.I32(); got != -7 {
		t.Fatalf("I32 = %d, want -7", got)
	}
	if got := r.U64(); got != 1<<40 {
		t.Fatalf("U64 = %d, want %d", got, 1<<40)
	}
	if got := r.FixedString16(8); got != "bob" {
		t.Fatalf("FixedString16 = %q, want bob", got)
	}
	if r.Err() != nil {
		t.Fatalf("unexpected Err(): %v", r.Err())
	}
}

func TestReaderShortRead(t *testing.T) {
	r := NewReader([]byte{1, 2})
	_ = r.U32()
	if r.Err() == nil {
		t.Fatalf("expected short-read error")
	}
}
