// Package crypto provides cryptographic operations for kitty.
//
// Encryption uses ChaCha20-Poly1305 with:
//   - 32-byte key derived from password via PBKDF2
//   - 12-byte random nonce per encryption operation
//   - 16-byte Poly1305 tag; any modification fails authentication
//
// Stored blobs are framed as nonce || ciphertext || tag (see Sealed).
//
// Key derivation uses PBKDF2-HMAC-SHA256 with:
//   - 16-byte random salt (stored unencrypted)
//   - at least 100,000 iterations, 210,000 by default
//
// Memory safety:
//   - Use ClearBytes() to zero sensitive data after use
//   - Call Cipher.Destroy() when done with encryption operations
package crypto
