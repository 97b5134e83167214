package backup

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"
	"io"
	"os"

	"golang.org/x/crypto/argon2"
)

// A sealed snapshot is the SQLite file encrypted with AES-256-GCM under a
// key stretched from the owner's passphrase with argon2id. On-disk layout:
// 16-byte salt, 12-byte nonce, ciphertext.
const (
	saltLen  = 16
	nonceLen = 12
	keyLen   = 32
)

// argon2id cost parameters for the passphrase stretch.
const (
	kdfPasses  = 3
	kdfMemory  = 64 * 1024
	kdfThreads = 4
)

// NewSalt returns a fresh random key-derivation salt.
func NewSalt() ([]byte, error) {
	salt := make([]byte, saltLen)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return nil, fmt.Errorf("new salt: %w", err)
	}
	return salt, nil
}

// SnapshotKey stretches a passphrase and salt into an AES-256 key.
func SnapshotKey(passphrase string, salt []byte) []byte {
	return argon2.IDKey([]byte(passphrase), salt, kdfPasses, kdfMemory, kdfThreads, keyLen)
}

func snapshotCipher(passphrase string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(SnapshotKey(passphrase, salt))
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return gcm, nil
}

// SealSnapshot encrypts the database copy at srcPath into dstPath.
func SealSnapshot(srcPath, dstPath, passphrase string, salt []byte) error {
	plaintext, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read snapshot: %w", err)
	}

	gcm, err := snapshotCipher(passphrase, salt)
	if err != nil {
		return err
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return fmt.Errorf("new nonce: %w", err)
	}

	out := make([]byte, 0, saltLen+nonceLen+len(plaintext)+gcm.Overhead())
	out = append(out, salt...)
	out = append(out, nonce...)
	out = gcm.Seal(out, nonce, plaintext, nil)

	if err := os.WriteFile(dstPath, out, 0600); err != nil {
		return fmt.Errorf("write sealed snapshot: %w", err)
	}
	return nil
}

// OpenSnapshot decrypts the sealed snapshot at srcPath into dstPath. The
// salt and nonce come from the file header; GCM authentication rejects a
// wrong passphrase or tampered ciphertext.
func OpenSnapshot(srcPath, dstPath, passphrase string) error {
	data, err := os.ReadFile(srcPath)
	if err != nil {
		return fmt.Errorf("read sealed snapshot: %w", err)
	}
	if len(data) < saltLen+nonceLen {
		return fmt.Errorf("sealed snapshot truncated")
	}

	salt := data[:saltLen]
	nonce := data[saltLen : saltLen+nonceLen]
	ciphertext := data[saltLen+nonceLen:]

	gcm, err := snapshotCipher(passphrase, salt)
	if err != nil {
		return err
	}

	plaintext, err := gcm.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return fmt.Errorf("open snapshot: %w", err)
	}

	if err := os.WriteFile(dstPath, plaintext, 0600); err != nil {
		return fmt.Errorf("write snapshot: %w", err)
	}
	return nil
}
