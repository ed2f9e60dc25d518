package storage

import (
	"bytes"
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

// Objects written with a password use this envelope:
// magic(8) + salt(16) + nonce(12) + ciphertext + tag(16).
const (
	gcmMagic     = "GCM3NCR0"
	saltLen      = 16
	nonceLen     = 12
	pbkdf2Rounds = 100000
)

// ErrNoPassword is returned when an encrypted object is fetched without a password.
var ErrNoPassword = errors.New("object is encrypted but no password is configured")

func deriveKey(password string, salt []byte) []byte {
	return pbkdf2.Key([]byte(password), salt, pbkdf2Rounds, 32, sha256.New)
}

func newGCM(password string, salt []byte) (cipher.AEAD, error) {
	block, err := aes.NewCipher(deriveKey(password, salt))
	if err != nil {
		return nil, fmt.Errorf("create cipher: %w", err)
	}
	return cipher.NewGCM(block)
}

// IsEncrypted reports whether data carries the envelope header.
func IsEncrypted(data []byte) bool {
	return len(data) >= len(gcmMagic) && bytes.Equal(data[:len(gcmMagic)], []byte(gcmMagic))
}

// Encrypt seals plain under a key derived from password.
func Encrypt(plain []byte, password string) ([]byte, error) {
	salt := make([]byte, saltLen)
	nonce := make([]byte, nonceLen)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}

	out := make([]byte, 0, len(gcmMagic)+saltLen+nonceLen+len(plain)+gcm.Overhead())
	out = append(out, gcmMagic...)
	out = append(out, salt...)
	out = append(out, nonce...)
	return gcm.Seal(out, nonce, plain, nil), nil
}

// Decrypt opens an envelope produced by Encrypt.
func Decrypt(data []byte, password string) ([]byte, error) {
	if !IsEncrypted(data) {
		return nil, errors.New("missing encryption header")
	}
	if len(data) < len(gcmMagic)+saltLen+nonceLen+16 {
		return nil, fmt.Errorf("encrypted data too short: %d bytes", len(data))
	}
	salt := data[8:24]
	nonce := data[24:36]

	gcm, err := newGCM(password, salt)
	if err != nil {
		return nil, err
	}
	plain, err := gcm.Open(nil, nonce, data[36:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}
