package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"errors"
	"fmt"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/pbkdf2"
)

const (
	SaltSize          = 16     // Salt size in bytes
	KeySize           = 32     // ChaCha20-Poly1305 key size
	NonceSize         = chacha20poly1305.NonceSize
	TagSize           = chacha20poly1305.Overhead
	MinIterations     = 100000 // Lower bound accepted for PBKDF2
	DefaultIterations = 210000 // Default PBKDF2 iterations (OWASP minimum)
)

var (
	ErrAuthFailed        = errors.New("authentication failed")
	ErrInvalidCiphertext = fmt.Errorf("invalid ciphertext: %w", ErrAuthFailed)
	ErrInvalidKey        = errors.New("invalid key size")
)

// KDF handles key derivation from passwords
type KDF struct {
	Salt       []byte
	Iterations int
}

// NewKDF creates a new KDF with a random salt.
// Iterations below MinIterations are raised to it.
func NewKDF(iterations int) (*KDF, error) {
	salt, err := GenerateRandom(SaltSize)
	if err != nil {
		return nil, fmt.Errorf("failed to generate salt: %w", err)
	}

	return &KDF{
		Salt:       salt,
		Iterations: ClampIterations(iterations),
	}, nil
}

// ClampIterations returns n, or MinIterations when n is below it
func ClampIterations(n int) int {
	if n < MinIterations {
		return MinIterations
	}
	return n
}

// DeriveKey derives an encryption key from a password
func (k *KDF) DeriveKey(password []byte) []byte {
	return pbkdf2.Key(password, k.Salt, k.Iterations, KeySize, sha256.New)
}

// Sealed is a framed ciphertext: nonce, then ciphertext with the tag appended.
type Sealed struct {
	Nonce      []byte
	Ciphertext []byte // includes the trailing TagSize-byte tag
}

// Bytes returns the stored representation nonce || ciphertext || tag
func (s Sealed) Bytes() []byte {
	out := make([]byte, 0, len(s.Nonce)+len(s.Ciphertext))
	out = append(out, s.Nonce...)
	return append(out, s.Ciphertext...)
}

// ParseSealed splits a stored blob into nonce and ciphertext
func ParseSealed(blob []byte) (Sealed, error) {
	if len(blob) < NonceSize+TagSize {
		return Sealed{}, ErrInvalidCiphertext
	}
	return Sealed{
		Nonce:      append([]byte(nil), blob[:NonceSize]...),
		Ciphertext: append([]byte(nil), blob[NonceSize:]...),
	}, nil
}

// Cipher provides authenticated encryption with ChaCha20-Poly1305
type Cipher struct {
	key []byte
}

// NewCipher creates a new cipher with the given key
func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != KeySize {
		return nil, fmt.Errorf("%w: got %d bytes", ErrInvalidKey, len(key))
	}
	return &Cipher{key: append([]byte(nil), key...)}, nil
}

// Encrypt seals plaintext under a fresh random nonce
func (c *Cipher) Encrypt(plaintext []byte) (Sealed, error) {
	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return Sealed{}, fmt.Errorf("failed to create cipher: %w", err)
	}

	nonce, err := GenerateRandom(NonceSize)
	if err != nil {
		return Sealed{}, fmt.Errorf("failed to generate nonce: %w", err)
	}

	return Sealed{
		Nonce:      nonce,
		Ciphertext: aead.Seal(nil, nonce, plaintext, nil),
	}, nil
}

// Decrypt opens a sealed blob. Any tampering or a wrong key yields ErrAuthFailed.
func (c *Cipher) Decrypt(s Sealed) ([]byte, error) {
	if len(s.Nonce) != NonceSize || len(s.Ciphertext) < TagSize {
		return nil, ErrInvalidCiphertext
	}

	aead, err := chacha20poly1305.New(c.key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}

	plaintext, err := aead.Open(nil, s.Nonce, s.Ciphertext, nil)
	if err != nil {
		return nil, ErrAuthFailed
	}
	return plaintext, nil
}

// Seal encrypts plaintext and returns the framed blob
func (c *Cipher) Seal(plaintext []byte) ([]byte, error) {
	s, err := c.Encrypt(plaintext)
	if err != nil {
		return nil, err
	}
	return s.Bytes(), nil
}

// Open parses a framed blob and decrypts it
func (c *Cipher) Open(blob []byte) ([]byte, error) {
	s, err := ParseSealed(blob)
	if err != nil {
		return nil, err
	}
	return c.Decrypt(s)
}

// Destroy clears the cipher's key from memory
func (c *Cipher) Destroy() {
	ClearBytes(c.key)
}

// ClearBytes securely clears a byte slice
func ClearBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}

// ConstantTimeCompare performs a constant-time comparison of two byte slices
func ConstantTimeCompare(a, b []byte) bool {
	return subtle.ConstantTimeCompare(a, b) == 1
}

// GenerateRandom generates n random bytes
func GenerateRandom(n int) ([]byte, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return nil, fmt.Errorf("failed to generate random bytes: %w", err)
	}
	return b, nil
}
