package identity

import (
	"path/filepath"
	"testing"
)

func TestGenerateFingerprintStable(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if k.Fingerprint() != k.Fingerprint() {
		t.Fatalf("Fingerprint not stable across calls")
	}
	if len(k.Fingerprint()) < len("SHA256:")+8 {
		t.Fatalf("Fingerprint looks too short: %q", k.Fingerprint())
	}
}

func TestSharedSecretAgrees(t *testing.T) {
	a, err := GenerateEphemeral()
	if err != nil {
		t.Fatalf("GenerateEphemeral a: %v", err)
	}
	b, err := GenerateEphemeral()
	if err != nil {
		t.Fatalf("GenerateEphemeral b: %v", err)
	}

	sa, err := SharedSecret(a, b.Public)
	if err != nil {
		t.Fatalf("SharedSecret a->b: %v", err)
	}
	sb, err := SharedSecret(b, a.Public)
	if err != nil {
		t.Fatalf("SharedSecret b->a: %v", err)
	}
	if sa != sb {
		t.Fatalf("ECDH shared secrets disagree: %x vs %x", sa, sb)
	}
}

func TestKeystoreRoundTrip(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "shard.key")
	if err := SaveKeystore(path, k, "correct horse battery staple"); err != nil {
		t.Fatalf("SaveKeystore: %v", err)
	}

	loaded, err := LoadKeystore(path, "correct horse battery staple")
	if err != nil {
		t.Fatalf("LoadKeystore: %v", err)
	}
	if loaded.Fingerprint() != k.Fingerprint() {
		t.Fatalf("loaded identity fingerprint mismatch")
	}

	if _, err := LoadKeystore(path, "wrong passphrase"); err != ErrInvalidPassphrase {
		t.Fatalf("LoadKeystore with wrong passphrase = %v, want ErrInvalidPassphrase", err)
	}
}

func TestKeystoreInsecureMode(t *testing.T) {
	k, err := Generate()
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	path := filepath.Join(t.TempDir(), "dev.key")
	if err := SaveKeystore(path, k, ""); err != nil {
		t.Fatalf("SaveKeystore insecure: %v", err)
	}

	loaded, err := LoadKeystore(path+".insecure", "")
	if err != nil {
		t.Fatalf("LoadKeystore insecure: %v", err)
	}
	if loaded.Fingerprint() != k.Fingerprint() {
		t.Fatalf("insecure round trip mismatch")
	}
}

func TestSealOpenRoundTrip(t *testing.T) {
	key := make([]byte, 32)
	nonce := make([]byte, 12)
	ct, err := Seal(key, nonce, []byte("aad"), []byte("hello shard"))
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	pt, err := Open(key, nonce, []byte("aad"), ct)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if string(pt) != "hello shard" {
		t.Fatalf("Open = %q, want %q", pt, "hello shard")
	}
	if _, err := Open(key, nonce, []byte("wrong aad"), ct); err == nil {
		t.Fatalf("Open with wrong AAD should fail")
	}
}
