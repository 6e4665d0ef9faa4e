// Package crypto seals and unseals tenant connection credentials with a
// process-wide symmetric key.
//
// Wire format (fixed contract; external workers must reproduce it exactly):
// AES-CFB ciphertext with the 16-byte IV prepended, whole blob standard
// base64-encoded.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
)

// Box encrypts and decrypts credential blobs with a fixed AES key.
type Box struct {
	key []byte
}

// New builds a Box from a base64-encoded AES key (16, 24 or 32 bytes).
func New(encodedKey string) (*Box, error) {
	key, err := base64.StdEncoding.DecodeString(encodedKey)
	if err != nil {
		return nil, fmt.Errorf("decode credential key: %w", err)
	}
	switch len(key) {
	case 16, 24, 32:
	default:
		return nil, fmt.Errorf("credential key must be 16, 24 or 32 bytes, got %d", len(key))
	}
	return &Box{key: key}, nil
}

// Encrypt seals a plaintext credential into the IV-prefixed base64 format.
func (b *Box) Encrypt(plaintext string) (string, error) {
	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	buf := make([]byte, aes.BlockSize+len(plaintext))
	iv := buf[:aes.BlockSize]
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	cipher.NewCFBEncrypter(block, iv).XORKeyStream(buf[aes.BlockSize:], []byte(plaintext))
	return base64.StdEncoding.EncodeToString(buf), nil
}

// Decrypt unseals a blob produced by Encrypt (or a byte-compatible external
// implementation).
func (b *Box) Decrypt(blob string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(blob)
	if err != nil {
		return "", fmt.Errorf("decode credential blob: %w", err)
	}
	if len(raw) < aes.BlockSize {
		return "", fmt.Errorf("credential blob too short: %d bytes", len(raw))
	}

	block, err := aes.NewCipher(b.key)
	if err != nil {
		return "", fmt.Errorf("init cipher: %w", err)
	}

	iv := raw[:aes.BlockSize]
	plaintext := make([]byte, len(raw)-aes.BlockSize)
	cipher.NewCFBDecrypter(block, iv).XORKeyStream(plaintext, raw[aes.BlockSize:])
	return string(plaintext), nil
}
