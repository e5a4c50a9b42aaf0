// Package secret converts eBay tokens between plaintext and their at-rest representation.
//
// Encrypted values are self-describing: they always start with Prefix. Plaintext and
// Ciphertext are distinct types so a call site expecting a usable token cannot be handed
// a stored value without going through Cipher.Decrypt.
package secret

import (
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

// Prefix marks a value produced by Cipher.Encrypt.
const Prefix = "ENC:v1:"

const keyInfo = "ebay-connector token cipher v1"

var (
	// ErrDecryptFailed is returned when a value carries Prefix but cannot be opened with the configured key
	ErrDecryptFailed = errors.New("decrypt_failed")

	// ErrAlreadyEncrypted is returned when Encrypt is given a value that already carries Prefix
	ErrAlreadyEncrypted = errors.New("value is already encrypted")

	// ErrEmptyKey is returned when the cipher is constructed without key material
	ErrEmptyKey = errors.New("encryption key must not be empty")
)

// Plaintext is a usable token. String() redacts it so it cannot leak through fmt or loggers.
type Plaintext string

// String implements fmt.Stringer
func (p Plaintext) String() string {
	if p == "" {
		return ""
	}
	return "[REDACTED]"
}

// Reveal returns the raw token for the single caller that needs it.
func (p Plaintext) Reveal() string {
	return string(p)
}

// Ciphertext is a stored token value. It may still be a legacy plaintext value without Prefix.
type Ciphertext string

// IsEncrypted reports whether the value carries the encrypted marker.
func (c Ciphertext) IsEncrypted() bool {
	return strings.HasPrefix(string(c), Prefix)
}

// Cipher encrypts tokens with XChaCha20-Poly1305 under a key derived from the configured secret.
type Cipher struct {
	aead cipher.AEAD
}

// NewCipher derives a 256-bit key from secret with HKDF-SHA256.
func NewCipher(secret string) (*Cipher, error) {
	if secret == "" {
		return nil, ErrEmptyKey
	}

	key := make([]byte, chacha20poly1305.KeySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(keyInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive encryption key: %w", err)
	}

	aead, err := chacha20poly1305.NewX(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	return &Cipher{aead: aead}, nil
}

// Encrypt seals a plaintext token. An empty token encrypts to an empty value.
func (c *Cipher) Encrypt(plaintext Plaintext) (Ciphertext, error) {
	if plaintext == "" {
		return "", nil
	}
	if Ciphertext(plaintext).IsEncrypted() {
		return "", ErrAlreadyEncrypted
	}

	nonce := make([]byte, c.aead.NonceSize(), c.aead.NonceSize()+len(plaintext)+c.aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}

	sealed := c.aead.Seal(nonce, nonce, []byte(plaintext), []byte(Prefix))
	return Ciphertext(Prefix + base64.RawURLEncoding.EncodeToString(sealed)), nil
}

// Decrypt opens a stored value. Values without Prefix are returned unchanged, so applying
// Decrypt to an already-decrypted token is a no-op. Values with Prefix that do not open under
// the configured key fail with ErrDecryptFailed and never come back as a token.
func (c *Cipher) Decrypt(value Ciphertext) (Plaintext, error) {
	if !value.IsEncrypted() {
		return Plaintext(value), nil
	}

	raw, err := base64.RawURLEncoding.DecodeString(strings.TrimPrefix(string(value), Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: malformed payload", ErrDecryptFailed)
	}

	if len(raw) < c.aead.NonceSize()+c.aead.Overhead() {
		return "", fmt.Errorf("%w: payload too short", ErrDecryptFailed)
	}

	nonce, sealed := raw[:c.aead.NonceSize()], raw[c.aead.NonceSize():]
	opened, err := c.aead.Open(nil, nonce, sealed, []byte(Prefix))
	if err != nil {
		return "", fmt.Errorf("%w: key mismatch or corrupted value", ErrDecryptFailed)
	}

	if Ciphertext(opened).IsEncrypted() {
		return "", fmt.Errorf("%w: nested ciphertext", ErrDecryptFailed)
	}

	return Plaintext(opened), nil
}
