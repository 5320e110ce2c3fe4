package identity

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"golang.org/x/crypto/argon2"
)

// Argon2id parameters for keystore passphrase derivation. Values match
// the OWASP-recommended interactive baseline, carried over unchanged from
// the file-transfer daemon's keystore.
const (
	argon2Time      = 3
	argon2Memory    = 65536
	argon2Threads   = 4
	argon2KeyLen    = 32
	saltSize        = 32
	keystoreVersion = 1
)

// ErrInvalidPassphrase is returned when a keystore fails to decrypt,
// whether from a wrong passphrase or a corrupted file — AES-GCM can't
// distinguish the two, and the keystore shouldn't leak which it was.
var ErrInvalidPassphrase = errors.New("identity: invalid passphrase or corrupted keystore")

// keystoreEntry is the on-disk JSON envelope for an Argon2id+AES-256-GCM
// encrypted Ed25519 private key.
type keystoreEntry struct {
	Version       int    `json:"version"`
	KDF           string `json:"kdf"`
	Argon2Time    int    `json:"argon2_time"`
	Argon2Memory  int    `json:"argon2_memory"`
	Argon2Threads int    `json:"argon2_threads"`
	Salt          []byte `json:"salt"`
	Nonce         []byte `json:"nonce"`
	Ciphertext    []byte `json:"ciphertext"`
}

// SaveKeystore encrypts k's private key with passphrase and writes it to
// path. An empty passphrase stores the key unencrypted (a ".insecure"
// suffix is appended so the risk is visible in a directory listing);
// this exists for local dev shards only, never production ones.
func SaveKeystore(path string, k *KeyPair, passphrase string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("identity: create keystore dir: %w", err)
	}

	var data []byte
	if passphrase == "" {
		data = k.Private
		path += ".insecure"
	} else {
		entry, err := encryptKey(k.Private, passphrase)
		if err != nil {
			return fmt.Errorf("identity: encrypt keystore: %w", err)
		}
		data, err = json.MarshalIndent(entry, "", "  ")
		if err != nil {
			return fmt.Errorf("identity: marshal keystore: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0o600); err != nil {
		return fmt.Errorf("identity: write keystore: %w", err)
	}
	return nil
}

// LoadKeystore decrypts and reconstructs a KeyPair previously written by
// SaveKeystore.
func LoadKeystore(path string, passphrase string) (*KeyPair, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("identity: read keystore: %w", err)
	}

	if filepath.Ext(path) == ".insecure" {
		if len(data) != ed25519PrivateKeySize {
			return nil, errors.New("identity: invalid unencrypted keystore size")
		}
		return keyPairFromPrivate(data), nil
	}

	var entry keystoreEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("identity: unmarshal keystore: %w", err)
	}
	priv, err := decryptKey(&entry, passphrase)
	if err != nil {
		return nil, err
	}
	return keyPairFromPrivate(priv), nil
}

func encryptKey(privateKey []byte, passphrase string) (*keystoreEntry, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, fmt.Errorf("generate salt: %w", err)
	}
	derived := argon2.IDKey([]byte(passphrase), salt, argon2Time, argon2Memory, argon2Threads, argon2KeyLen)

	nonce := make([]byte, 12)
	if _, err := rand.Read(nonce); err != nil {
		return nil, fmt.Errorf("generate nonce: %w", err)
	}
	ciphertext, err := Seal(derived, nonce, nil, privateKey)
	if err != nil {
		return nil, err
	}

	return &keystoreEntry{
		Version:       keystoreVersion,
		KDF:           "argon2id",
		Argon2Time:    argon2Time,
		Argon2Memory:  argon2Memory,
		Argon2Threads: argon2Threads,
		Salt:          salt,
		Nonce:         nonce,
		Ciphertext:    ciphertext,
	}, nil
}

func decryptKey(entry *keystoreEntry, passphrase string) ([]byte, error) {
	if entry.Version != keystoreVersion {
		return nil, fmt.Errorf("identity: unsupported keystore version %d", entry.Version)
	}
	if entry.KDF != "argon2id" {
		return nil, fmt.Errorf("identity: unsupported KDF %q", entry.KDF)
	}
	derived := argon2.IDKey([]byte(passphrase), entry.Salt, uint32(entry.Argon2Time), uint32(entry.Argon2Memory), uint8(entry.Argon2Threads), argon2KeyLen)
	plaintext, err := Open(derived, entry.Nonce, nil, entry.Ciphertext)
	if err != nil {
		return nil, ErrInvalidPassphrase
	}
	if len(plaintext) != ed25519PrivateKeySize {
		return nil, errors.New("identity: decrypted key has invalid size")
	}
	return plaintext, nil
}

const ed25519PrivateKeySize = 64

func keyPairFromPrivate(priv []byte) *KeyPair {
	pub := make([]byte, 32)
	copy(pub, priv[32:])
	return &KeyPair{Public: pub, Private: priv}
}

// Seal and Open are the package's AES-256-GCM primitives: used above to
// wrap the keystore envelope, and by loginshard to wrap control-channel
// frames under the handshake-derived PayloadKey.
func Seal(key, nonce, aad, plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("identity: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("identity: gcm: %w", err)
	}
	return gcm.Seal(nil, nonce, plaintext, aad), nil
}

// Open decrypts and authenticates ciphertext sealed by Seal.
func Open(key, nonce, aad, ciphertext []byte) ([]byte, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("identity: aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("identity: gcm: %w", err)
	}
	pt, err := gcm.Open(nil, nonce, ciphertext, aad)
	if err != nil {
		return nil, fmt.Errorf("identity: gcm open: %w", err)
	}
	return pt, nil
}

// DefaultKeystorePath returns the conventional on-disk location for a
// server's identity keystore, following the same XDG/APPDATA convention
// the file-transfer daemon used.
func DefaultKeystorePath(role string) string {
	if appData := os.Getenv("APPDATA"); appData != "" {
		return filepath.Join(appData, "originfall", role+".key")
	}
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "originfall", role+".key")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "originfall", role+".key")
}
