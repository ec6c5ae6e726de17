// Package catalog tracks which files kitty manages and where their
// ciphertext lives.
//
// Two Store implementations exist, one per storage mode:
//   - BoltStore: .kitty/index.db (bbolt), used with flat-file storage
//   - SQLStore: the files table of .kitty/kitty.db, used with relational storage
//
// Paths and timestamps are stored unencrypted so that list and doctor work
// without deriving a key. Checksums are taken over ciphertext, never over
// plaintext.
package catalog
