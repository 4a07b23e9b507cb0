// Package cardsecurity encrypts sensitive card fields at rest. The card
// number and security code become AEAD ciphertext; holder name and expiry
// stay readable for display and dispatch paperwork.
package cardsecurity

import (
	"crypto/rand"
	"encoding/base64"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"

	"emporia/internal/shop/models"
	dErrors "emporia/pkg/domain-errors"
)

// Encryptor is the contract the binder consumes.
type Encryptor interface {
	// EncryptCard replaces the card's sensitive fields with ciphertext in
	// place. Calling it on an already-encrypted card is a programming
	// error and fails.
	EncryptCard(card *models.Card) error
}

// AEADEncryptor seals fields with XChaCha20-Poly1305. Each field gets its
// own random nonce, prepended to the ciphertext before base64 encoding.
type AEADEncryptor struct {
	key []byte
}

// NewAEAD builds an encryptor from a 32-byte key.
func NewAEAD(key []byte) (*AEADEncryptor, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("card key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &AEADEncryptor{key: key}, nil
}

func (e *AEADEncryptor) EncryptCard(card *models.Card) error {
	if card.Encrypted {
		return dErrors.New(dErrors.CodeConflict, "card is already encrypted")
	}

	number, err := e.seal(card.Number)
	if err != nil {
		return fmt.Errorf("encrypt card number: %w", err)
	}
	code, err := e.seal(card.SecurityCode)
	if err != nil {
		return fmt.Errorf("encrypt security code: %w", err)
	}

	card.Number = number
	card.SecurityCode = code
	card.Encrypted = true
	return nil
}

func (e *AEADEncryptor) seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Decrypt reverses seal. The checkout core never calls this; it exists for
// the dispatch tooling that charges orders out of band.
func (e *AEADEncryptor) Decrypt(ciphertext string) (string, error) {
	raw, err := base64.StdEncoding.DecodeString(ciphertext)
	if err != nil {
		return "", fmt.Errorf("decode ciphertext: %w", err)
	}
	aead, err := chacha20poly1305.NewX(e.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize() {
		return "", fmt.Errorf("ciphertext too short")
	}
	nonce, sealed := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, sealed, nil)
	if err != nil {
		return "", fmt.Errorf("open ciphertext: %w", err)
	}
	return string(plain), nil
}
