// Package core implements kitty repository operations on top of the
// crypto, storage and catalog packages.
//
// A session is a *Repo returned by Init, Open, OpenForMigration or
// OpenReadOnly. It holds the derived key and the storage backend chosen
// from the repository's storage marker, and is passed explicitly to:
//   - Add, Remove, List: maintain the set of tracked files
//   - Diff: compare working copies with their stored copies
//   - Restore: write a stored copy back, optionally keeping a backup
//   - Migrate, Cleanup: move stored copies into the SQLite database
//   - Doctor, Compact: consistency checks and maintenance
package core
