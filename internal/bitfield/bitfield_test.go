package bitfield

import (
	"encoding/json"
	"testing"
)

func TestSetGet(t *testing.T) {
	f := New(129)
	if f.Get(42) {
		t.Fatalf("expected bit 42 clear initially")
	}
	if err := f.Set(42, true); err != nil {
		t.Fatalf("Set(42): %v", err)
	}
	if !f.Get(42) {
		t.Fatalf("expected bit 42 set")
	}
	if err := f.Set(42, false); err != nil {
		t.Fatalf("Set(42, false): %v", err)
	}
	if f.Get(42) {
		t.Fatalf("expected bit 42 clear after unset")
	}
}

func TestOutOfRange(t *testing.T) {
	f := New(32)
	if err := f.Set(32, true); err == nil {
		t.Fatalf("expected error setting bit 32 of a 32-bit field")
	}
	if err := f.Set(-1, true); err == nil {
		t.Fatalf("expected error setting negative index")
	}
	if f.Get(100) {
		t.Fatalf("Get of out-of-range index must report false, not panic")
	}
}

func TestRoundTrip(t *testing.T) {
	f := New(129)
	f.Set(0, true)
	f.Set(128, true)
	f.Set(64, true)

	raw := f.ToBytes()
	g, err := FromBytes(129, raw)
	if err != nil {
		t.Fatalf("FromBytes: %v", err)
	}
	for _, bit := range []int{0, 64, 128} {
		if !g.Get(bit) {
			t.Fatalf("expected bit %d set after round trip", bit)
		}
	}
	if g.Get(1) {
		t.Fatalf("expected bit 1 clear after round trip")
	}
}

func TestFromBytesSizeMismatch(t *testing.T) {
	if _, err := FromBytes(129, make([]byte, 4)); err == nil {
		t.Fatalf("expected size mismatch error")
	}
}

func TestChunk(t *testing.T) {
	f := New(256)
	f.Set(0, true)
	f.Set(63, true)
	f.Set(64, true)

	if got := f.Chunk(0); got != (1<<0)|(1<<63) {
		t.Fatalf("Chunk(0) = %#x, want bits 0 and 63 set", got)
	}
	if got := f.Chunk(1); got != 1 {
		t.Fatalf("Chunk(1) = %#x, want bit 0 (global bit 64) set", got)
	}

	f.SetChunk(2, 0xFF)
	for i := 128; i < 136; i++ {
		if !f.Get(i) {
			t.Fatalf("expected bit %d set after SetChunk(2, 0xFF)", i)
		}
	}
}

func TestJSONRoundTrip(t *testing.T) {
	f := New(129)
	f.Set(42, true)
	f.Set(128, true)

	raw, err := json.Marshal(f)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	g := New(0)
	if err := json.Unmarshal(raw, g); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if g.Len() != 129 {
		t.Fatalf("Len() = %d, want 129", g.Len())
	}
	if !g.Get(42) || !g.Get(128) {
		t.Fatalf("expected bits 42 and 128 set after JSON round trip")
	}
	if g.Get(0) {
		t.Fatalf("expected bit 0 clear after JSON round trip")
	}
}
