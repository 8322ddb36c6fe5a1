// Package cryptoseal encrypts tokens at rest in the client database. The key
// is derived from the persisted device id, so a copied database file is
// useless without the device identity that created it.
package cryptoseal

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/pbkdf2"
)

const (
	keyLen   = 32
	nonceLen = 12
	// iterations follows the PBKDF2 policy for low-entropy inputs; the
	// device id is random but stable, so the cost runs once per process.
	iterations = 100000
	appSalt    = "calepin-token-seal-v1"
)

// Sealer seals and unseals byte strings with a device-bound AES-256-GCM key.
type Sealer struct {
	key []byte
}

// New derives the sealing key from the device id via PBKDF2-HMAC-SHA256.
func New(deviceID string) *Sealer {
	key := pbkdf2.Key([]byte(deviceID), []byte(appSalt), iterations, keyLen, sha256.New)
	return &Sealer{key: key}
}

// Seal encrypts plaintext and returns nonce || ciphertext.
func (s *Sealer) Seal(plaintext []byte) ([]byte, error) {
	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	nonce := make([]byte, nonceLen)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return nil, fmt.Errorf("random nonce: %w", err)
	}

	return gcm.Seal(nonce, nonce, plaintext, nil), nil
}

// Unseal decrypts data produced by Seal.
func (s *Sealer) Unseal(sealed []byte) ([]byte, error) {
	if len(sealed) < nonceLen {
		return nil, errors.New("sealed data too short")
	}

	block, err := aes.NewCipher(s.key)
	if err != nil {
		return nil, fmt.Errorf("aes cipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("gcm: %w", err)
	}

	plaintext, err := gcm.Open(nil, sealed[:nonceLen], sealed[nonceLen:], nil)
	if err != nil {
		return nil, fmt.Errorf("unseal: %w", err)
	}
	return plaintext, nil
}
