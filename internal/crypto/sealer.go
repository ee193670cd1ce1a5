// Package crypto seals small secrets, such as persisted auth sessions, with
// AES-256-GCM.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
)

var (
	ErrEmptyKey        = errors.New("crypto: sealing key is empty")
	ErrKeySize         = errors.New("crypto: sealing key must be 32 bytes")
	ErrCiphertextShort = errors.New("crypto: sealed value too short")
)

// Sealer encrypts values with a random nonce prepended to the ciphertext.
type Sealer struct {
	aead cipher.AEAD
}

// NewSealer builds a sealer from a raw 32-byte key.
func NewSealer(key []byte) (*Sealer, error) {
	if len(key) == 0 {
		return nil, ErrEmptyKey
	}
	if len(key) != 32 {
		return nil, ErrKeySize
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("new cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("new gcm: %w", err)
	}
	return &Sealer{aead: aead}, nil
}

// NewSealerFromBase64 decodes a standard base64 key, as found in
// SUPABASE_SESSION_ENCRYPTION_KEY.
func NewSealerFromBase64(encoded string) (*Sealer, error) {
	if encoded == "" {
		return nil, ErrEmptyKey
	}
	key, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("decode sealing key: %w", err)
	}
	return NewSealer(key)
}

// Seal encrypts plaintext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("read nonce: %w", err)
	}
	return s.aead.Seal(nonce, nonce, plaintext, nil), nil
}

// Open decrypts a value produced by Seal.
func (s *Sealer) Open(sealed []byte) ([]byte, error) {
	n := s.aead.NonceSize()
	if len(sealed) < n {
		return nil, ErrCiphertextShort
	}
	plaintext, err := s.aead.Open(nil, sealed[:n], sealed[n:], nil)
	if err != nil {
		return nil, fmt.Errorf("open sealed value: %w", err)
	}
	return plaintext, nil
}
