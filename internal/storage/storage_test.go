package storage

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/illarion/kitty/internal/dbx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openFlat(t *testing.T) (*FlatFile, string) {
	t.Helper()
	dir := t.TempDir()
	f, err := OpenFlatFile(dir)
	require.NoError(t, err)
	t.Cleanup(func() { _ = f.Close() })
	return f, dir
}

func openRelational(t *testing.T) *Relational {
	t.Helper()
	r, err := CreateRelational(context.Background(), filepath.Join(t.TempDir(), DatabaseFile))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Close() })
	return r
}

// exercised against both backends
func backends(t *testing.T) map[string]Backend {
	f, _ := openFlat(t)
	return map[string]Backend{
		"flatfile":   f,
		"relational": openRelational(t),
	}
}

func TestBackend_PutGetDelete(t *testing.T) {
	for name, b := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()

			loc, err := b.Put(ctx, "/home/u/.env", []byte("cipher-1"))
			require.NoError(t, err)
			require.NotEmpty(t, loc)

			got, err := b.Get(ctx, loc)
			require.NoError(t, err)
			assert.Equal(t, []byte("cipher-1"), got)

			ok, err := b.Exists(ctx, loc)
			require.NoError(t, err)
			assert.True(t, ok)

			locs, err := b.List(ctx)
			require.NoError(t, err)
			assert.Equal(t, []string{loc}, locs)

			require.NoError(t, b.Delete(ctx, loc))

			_, err = b.Get(ctx, loc)
			assert.ErrorIs(t, err, ErrBlobNotFound)
			assert.ErrorIs(t, b.Delete(ctx, loc), ErrBlobNotFound)

			ok, err = b.Exists(ctx, loc)
			require.NoError(t, err)
			assert.False(t, ok)

			locs, err = b.List(ctx)
			require.NoError(t, err)
			assert.Empty(t, locs)
		})
	}
}

func TestFlatFile_PutCreatesFreshLocators(t *testing.T) {
	f, dir := openFlat(t)
	ctx := context.Background()

	a, err := f.Put(ctx, "/home/u/secret.env", []byte("a"))
	require.NoError(t, err)
	b, err := f.Put(ctx, "/home/u/secret.env", []byte("b"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	// blob names never carry the tracked path
	assert.NotContains(t, a, "secret")
	_, err = os.Stat(filepath.Join(dir, filepath.FromSlash(a)))
	require.NoError(t, err)
}

func TestFlatFile_RejectsForeignLocators(t *testing.T) {
	f, dir := openFlat(t)
	ctx := context.Background()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "secret"), []byte("x"), 0600))

	for _, loc := range []string{"secret", "../secret", "files/../secret", "/etc/passwd", "files/not-a-uuid", ""} {
		_, err := f.Get(ctx, loc)
		assert.ErrorIs(t, err, ErrInvalidLocator, loc)
		assert.ErrorIs(t, f.Delete(ctx, loc), ErrInvalidLocator, loc)
	}

	_, err := os.Stat(filepath.Join(dir, "secret"))
	assert.NoError(t, err)
}

func TestFlatFile_ListSkipsTempFiles(t *testing.T) {
	f, dir := openFlat(t)
	ctx := context.Background()

	loc, err := f.Put(ctx, "", []byte("x"))
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, BlobDir, tmpPrefix+"leftover"), []byte("y"), 0600))

	locs, err := f.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{loc}, locs)
}

func TestBlobLocatorRoundTrip(t *testing.T) {
	id := uuid.New()
	got, err := ParseBlobLocator(BlobLocator(id))
	require.NoError(t, err)
	assert.Equal(t, id, got)
}

func TestRelational_PutUpsertsByPath(t *testing.T) {
	r := openRelational(t)
	ctx := context.Background()

	a, err := r.Put(ctx, "/p", []byte("one"))
	require.NoError(t, err)
	b, err := r.Put(ctx, "/p", []byte("two"))
	require.NoError(t, err)
	assert.Equal(t, a, b, "same path keeps its row")

	got, err := r.Get(ctx, a)
	require.NoError(t, err)
	assert.Equal(t, []byte("two"), got)

	n, err := r.ContentLength(ctx, a)
	require.NoError(t, err)
	assert.EqualValues(t, 3, n)

	c, err := r.Put(ctx, "/q", []byte("three"))
	require.NoError(t, err)
	assert.NotEqual(t, a, c)

	id, err := ParseRowLocator(c)
	require.NoError(t, err)
	var hash string
	require.NoError(t, r.DB().QueryRow(`SELECT hash FROM files WHERE id = ?`, id).Scan(&hash))
	assert.Equal(t, Checksum([]byte("three")), hash)
}

func TestRelational_RequiresPath(t *testing.T) {
	r := openRelational(t)
	_, err := r.Put(context.Background(), "", []byte("x"))
	assert.Error(t, err)
}

func TestRelational_UnknownRow(t *testing.T) {
	r := openRelational(t)
	ctx := context.Background()

	_, err := r.Get(ctx, "42")
	assert.ErrorIs(t, err, ErrBlobNotFound)
	_, err = r.Get(ctx, "files/abc")
	assert.ErrorIs(t, err, ErrInvalidLocator)
}

func TestRelational_RecordRepositoryOnce(t *testing.T) {
	r := openRelational(t)
	ctx := context.Background()

	require.NoError(t, r.RecordRepository(ctx, testTime(), "aa"))
	require.NoError(t, r.RecordRepository(ctx, testTime(), "bb"))

	var salt string
	require.NoError(t, r.DB().QueryRow(`SELECT salt FROM repository WHERE id = 1`).Scan(&salt))
	assert.Equal(t, "aa", salt)
}

func createLegacyDB(t *testing.T, path string) {
	t.Helper()
	db, err := dbx.OpenSQLite(context.Background(), path)
	require.NoError(t, err)
	defer db.Close()

	_, err = db.Exec(`
CREATE TABLE repository (id INTEGER PRIMARY KEY, created_at TEXT NOT NULL, salt TEXT NOT NULL);
CREATE TABLE files (
  id INTEGER PRIMARY KEY,
  original_path TEXT NOT NULL,
  repo_path TEXT NOT NULL,
  added_at TEXT NOT NULL,
  last_updated TEXT NOT NULL,
  hash TEXT NOT NULL
);
INSERT INTO files (original_path, repo_path, added_at, last_updated, hash)
VALUES ('/home/u/.env', 'files/0b9d7c1e-0a43-4a8e-9d67-6c1f0b0c4f10', '2024-01-01T10:00:00+00:00', '2024-01-02T10:00:00+00:00', 'h');
`)
	require.NoError(t, err)
}

func TestOpenRelational_LegacySchemaNeedsMigration(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DatabaseFile)
	createLegacyDB(t, path)

	r, err := OpenRelational(ctx, path)
	require.ErrorIs(t, err, ErrSchemaNeedsMigration)
	require.NotNil(t, r)
	defer r.Close()

	current, err := r.SchemaCurrent(ctx)
	require.NoError(t, err)
	assert.False(t, current)

	require.NoError(t, r.Upgrade(ctx))
	current, err = r.SchemaCurrent(ctx)
	require.NoError(t, err)
	assert.True(t, current)

	// legacy row survives with empty content
	var original string
	var content []byte
	require.NoError(t, r.DB().QueryRow(`SELECT original_path, content FROM files WHERE id = 1`).Scan(&original, &content))
	assert.Equal(t, "/home/u/.env", original)
	assert.Empty(t, content)

	ok, err := r.Exists(ctx, "1")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestOpenRelational_Missing(t *testing.T) {
	_, err := OpenRelational(context.Background(), filepath.Join(t.TempDir(), DatabaseFile))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestRelational_Compact(t *testing.T) {
	r := openRelational(t)
	require.NoError(t, r.Compact(context.Background()))
}

func TestMode_ReadWrite(t *testing.T) {
	dir := t.TempDir()

	m, err := ReadMode(dir)
	require.NoError(t, err)
	assert.Equal(t, ModeFlatFile, m, "missing marker means flat-file")

	require.NoError(t, WriteMode(dir, ModeRelational))
	m, err = ReadMode(dir)
	require.NoError(t, err)
	assert.Equal(t, ModeRelational, m)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ModeFile), []byte("file\n"), 0600))
	m, err = ReadMode(dir)
	require.NoError(t, err)
	assert.Equal(t, ModeFlatFile, m)

	require.NoError(t, os.WriteFile(filepath.Join(dir, ModeFile), []byte("postgres"), 0600))
	_, err = ReadMode(dir)
	assert.ErrorIs(t, err, ErrUnknownMode)

	assert.ErrorIs(t, WriteMode(dir, Mode("bogus")), ErrUnknownMode)
}

func testTime() time.Time {
	return time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
}

func TestRelational_SetContentFillsLegacyRow(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), DatabaseFile)
	createLegacyDB(t, path)

	r, err := CreateRelational(ctx, path)
	require.NoError(t, err)
	defer r.Close()

	require.NoError(t, r.SetContent(ctx, "1", []byte("legacy-cipher")))

	got, err := r.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, []byte("legacy-cipher"), got)

	var hash string
	require.NoError(t, r.DB().QueryRow(`SELECT hash FROM files WHERE id = 1`).Scan(&hash))
	assert.Equal(t, Checksum([]byte("legacy-cipher")), hash)

	assert.ErrorIs(t, r.SetContent(ctx, "7", []byte("x")), ErrBlobNotFound)
}
