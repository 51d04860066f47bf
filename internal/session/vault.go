package session

import (
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/nacl/secretbox"
)

const nonceSize = 24

// Vault seals values with a key that never leaves the process.
type Vault struct {
	key [32]byte
}

// NewVault draws a random key.
func NewVault() (*Vault, error) {
	v := &Vault{}
	if _, err := rand.Read(v.key[:]); err != nil {
		return nil, fmt.Errorf("failed to generate vault key: %w", err)
	}
	return v, nil
}

// Seal encrypts plaintext under a fresh nonce, which prefixes the returned box.
func (v *Vault) Seal(plaintext []byte) ([]byte, error) {
	var nonce [nonceSize]byte
	if _, err := rand.Read(nonce[:]); err != nil {
		return nil, fmt.Errorf("failed to generate nonce: %w", err)
	}
	return secretbox.Seal(nonce[:], plaintext, &nonce, &v.key), nil
}

// Open decrypts a box produced by [Vault.Seal].
func (v *Vault) Open(box []byte) ([]byte, error) {
	if len(box) < nonceSize+secretbox.Overhead {
		return nil, fmt.Errorf("sealed value too short")
	}

	var nonce [nonceSize]byte
	copy(nonce[:], box[:nonceSize])

	plaintext, ok := secretbox.Open(nil, box[nonceSize:], &nonce, &v.key)
	if !ok {
		return nil, fmt.Errorf("sealed value failed authentication")
	}
	return plaintext, nil
}
