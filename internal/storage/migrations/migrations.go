// Package migrations embeds the SQL schema of kitty.db.
//
// 00001 matches databases written by earlier kitty releases, which kept
// blob content on disk; it is a no-op on such databases. 00002 moves
// content into the files table.
package migrations

import "embed"

//go:embed *.sql
var Migrations embed.FS
