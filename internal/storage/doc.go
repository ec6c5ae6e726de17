// Package storage persists ciphertext blobs for kitty.
//
// Two interchangeable backends implement Backend:
//   - FlatFile: one file per blob under .kitty/files/<uuid>, published with
//     write-temp-then-rename inside an os.Root so locators cannot escape
//   - Relational: the content column of the files table in .kitty/kitty.db
//     (SQLite via modernc.org/sqlite, schema managed by goose)
//
// The storage-mode marker .kitty/storage.type selects the backend. It is
// read once when a repository is opened and only rewritten by migration.
//
// Backends see ciphertext only. They never log blob contents.
package storage
