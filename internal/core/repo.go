package core

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/illarion/kitty/internal/catalog"
	"github.com/illarion/kitty/internal/config"
	"github.com/illarion/kitty/internal/crypto"
	"github.com/illarion/kitty/internal/fsutil"
	"github.com/illarion/kitty/internal/logging"
	"github.com/illarion/kitty/internal/storage"
)

const (
	DefaultDirName      = ".kitty"
	BackupSuffix        = ".kitty-backup"
	MaxBackupCopies     = 100 // Max numbered .kitty-backup.N files per path
	passwordCheckString = "kitty-password-check"
)

// Options configure how a repository is located and logged
type Options struct {
	DirName string         // repository directory name, DefaultDirName when empty
	Logger  logging.Logger // logging.Discard() when nil
}

func (o Options) dirName() string {
	if o.DirName == "" {
		return DefaultDirName
	}
	return o.DirName
}

func (o Options) logger() logging.Logger {
	if o.Logger == nil {
		return logging.Discard()
	}
	return o.Logger
}

// RepoDir returns the repository directory for workDir. An absolute
// DirName is used as is.
func RepoDir(workDir string, opts Options) string {
	name := opts.dirName()
	if filepath.IsAbs(name) {
		return filepath.Clean(name)
	}
	return filepath.Join(workDir, name)
}

// InitOptions configure a new repository
type InitOptions struct {
	Options
	Mode       storage.Mode // ModeFlatFile when empty
	Iterations int          // crypto.DefaultIterations when zero
}

// Repo is an open repository session. It owns the derived key, the blob
// backend and the index, and is passed explicitly to every operation.
type Repo struct {
	workDir string
	dir     string
	cfg     *config.RepoConfig
	mode    storage.Mode
	backend storage.Backend
	store   catalog.Store
	cipher  *crypto.Cipher // nil for read-only sessions
	log     logging.Logger
}

// Init creates a repository under workDir and returns an open session.
func Init(ctx context.Context, workDir string, password []byte, opts InitOptions) (*Repo, error) {
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	mode := opts.Mode
	if mode == "" {
		mode = storage.ModeFlatFile
	}
	if _, err := storage.ParseMode(string(mode)); err != nil {
		return nil, err
	}
	iterations := opts.Iterations
	if iterations == 0 {
		iterations = crypto.DefaultIterations
	}

	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	dir := RepoDir(workDir, opts.Options)
	if config.RepoConfigExists(dir) {
		return nil, ErrAlreadyExists
	}
	if err := os.MkdirAll(dir, fsutil.DirPermSecure); err != nil {
		return nil, ioError("create repository directory", err)
	}

	kdf, err := crypto.NewKDF(iterations)
	if err != nil {
		return nil, err
	}
	key := kdf.DeriveKey(password)
	defer crypto.ClearBytes(key)

	cipher, err := crypto.NewCipher(key)
	if err != nil {
		return nil, err
	}
	verifier, err := cipher.Seal([]byte(passwordCheckString))
	if err != nil {
		return nil, err
	}
	cfg := config.NewRepoConfig(kdf.Salt, kdf.Iterations, verifier)

	r := &Repo{
		workDir: workDir,
		dir:     dir,
		cfg:     cfg,
		mode:    mode,
		cipher:  cipher,
		log:     opts.logger().With("repo", cfg.ID),
	}

	if mode == storage.ModeRelational {
		rel, err := storage.CreateRelational(ctx, filepath.Join(dir, storage.DatabaseFile))
		if err != nil {
			return nil, err
		}
		if err := rel.RecordRepository(ctx, cfg.CreatedAt, cfg.KDF.Salt); err != nil {
			rel.Close()
			return nil, err
		}
		r.backend, r.store = rel, catalog.NewSQLStore(rel.DB())
	} else {
		if r.backend, r.store, err = openFlatStores(dir); err != nil {
			return nil, err
		}
	}

	if err := storage.WriteMode(dir, mode); err != nil {
		r.Close()
		return nil, err
	}
	// the config is written last; its presence marks the repository initialized
	if err := cfg.Save(dir); err != nil {
		r.Close()
		return nil, err
	}

	r.log.Info(ctx, "repository initialized", "dir", dir, "mode", mode, "iterations", kdf.Iterations)
	return r, nil
}

// Open opens the repository under workDir, deriving the key once and
// verifying the password against the stored verifier.
func Open(ctx context.Context, workDir string, password []byte, opts Options) (*Repo, error) {
	return open(ctx, workDir, password, opts, false)
}

// OpenForMigration is Open for the migrate command: a relational database
// whose schema predates in-database content is accepted.
func OpenForMigration(ctx context.Context, workDir string, password []byte, opts Options) (*Repo, error) {
	return open(ctx, workDir, password, opts, true)
}

// OpenReadOnly opens a session without a key. Only operations that do not
// decrypt (List, Doctor, Compact) may be used.
func OpenReadOnly(ctx context.Context, workDir string, opts Options) (*Repo, error) {
	return open(ctx, workDir, nil, opts, true)
}

func open(ctx context.Context, workDir string, password []byte, opts Options, allowLegacy bool) (*Repo, error) {
	workDir, err := filepath.Abs(workDir)
	if err != nil {
		return nil, err
	}
	dir := RepoDir(workDir, opts)

	cfg, err := config.LoadRepoConfig(dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, ErrNotInitialized
	}
	if err != nil {
		return nil, err
	}

	r := &Repo{
		workDir: workDir,
		dir:     dir,
		cfg:     cfg,
		log:     opts.logger().With("repo", cfg.ID),
	}

	if password != nil {
		if r.cipher, err = unlockCipher(cfg, password); err != nil {
			return nil, err
		}
	}

	if r.mode, err = storage.ReadMode(dir); err != nil {
		r.Close()
		return nil, err
	}
	if r.backend, r.store, err = openStores(ctx, dir, r.mode, allowLegacy); err != nil {
		r.Close()
		return nil, err
	}

	r.log.Debug(ctx, "repository opened", "dir", dir, "mode", r.mode)
	return r, nil
}

// unlockCipher derives the key and checks it against the verifier
func unlockCipher(cfg *config.RepoConfig, password []byte) (*crypto.Cipher, error) {
	if len(password) == 0 {
		return nil, ErrPasswordRequired
	}
	salt, err := cfg.SaltBytes()
	if err != nil {
		return nil, err
	}
	verifier, err := cfg.VerifierBytes()
	if err != nil {
		return nil, err
	}

	kdf := &crypto.KDF{Salt: salt, Iterations: cfg.KDF.Iterations}
	key := kdf.DeriveKey(password)
	defer crypto.ClearBytes(key)

	cipher, err := crypto.NewCipher(key)
	if err != nil {
		return nil, err
	}
	check, err := cipher.Open(verifier)
	if err != nil || string(check) != passwordCheckString {
		cipher.Destroy()
		return nil, ErrWrongPassword
	}
	return cipher, nil
}

// openStores is the one place that chooses a backend and index by mode.
func openStores(ctx context.Context, dir string, mode storage.Mode, allowLegacy bool) (storage.Backend, catalog.Store, error) {
	switch mode {
	case storage.ModeFlatFile:
		return openFlatStores(dir)
	case storage.ModeRelational:
		rel, err := storage.OpenRelational(ctx, filepath.Join(dir, storage.DatabaseFile))
		if errors.Is(err, storage.ErrSchemaNeedsMigration) && allowLegacy {
			err = nil
		}
		if err != nil {
			if rel != nil {
				rel.Close()
			}
			return nil, nil, err
		}
		return rel, catalog.NewSQLStore(rel.DB()), nil
	default:
		return nil, nil, fmt.Errorf("%w: %q", storage.ErrUnknownMode, mode)
	}
}

func openFlatStores(dir string) (storage.Backend, catalog.Store, error) {
	flat, err := storage.OpenFlatFile(dir)
	if err != nil {
		return nil, nil, err
	}
	index, err := catalog.OpenBolt(filepath.Join(dir, catalog.IndexFile))
	if err != nil {
		flat.Close()
		return nil, nil, err
	}
	return flat, index, nil
}

// requireCurrentSchema fails with ErrSchemaNeedsMigration when the session
// was opened on a database that predates in-row content. The index cannot
// be read until migrate upgrades it.
func (r *Repo) requireCurrentSchema(ctx context.Context) error {
	rel, ok := r.backend.(*storage.Relational)
	if !ok {
		return nil
	}
	current, err := rel.SchemaCurrent(ctx)
	if err != nil {
		return err
	}
	if !current {
		return fmt.Errorf("%w: %s", storage.ErrSchemaNeedsMigration, rel.Path())
	}
	return nil
}

// Close releases the key, the index and the backend
func (r *Repo) Close() error {
	if r.cipher != nil {
		r.cipher.Destroy()
	}
	var errs []error
	if r.store != nil {
		errs = append(errs, r.store.Close())
	}
	if r.backend != nil {
		errs = append(errs, r.backend.Close())
	}
	return errors.Join(errs...)
}

// ID returns the repository id
func (r *Repo) ID() string { return r.cfg.ID }

// Dir returns the absolute repository directory
func (r *Repo) Dir() string { return r.dir }

// WorkDir returns the directory containing the repository directory
func (r *Repo) WorkDir() string { return r.workDir }

// Mode returns the storage mode the session was opened with
func (r *Repo) Mode() storage.Mode { return r.mode }

// Config returns the repository header
func (r *Repo) Config() *config.RepoConfig { return r.cfg }

func (r *Repo) requireKey() error {
	if r.cipher == nil {
		return ErrPasswordRequired
	}
	return nil
}

// resolvePath canonicalizes a user path: absolute, cleaned, symlinks
// resolved. A missing file keeps its resolved parent directory.
func resolvePath(p string) (string, error) {
	abs, err := filepath.Abs(p)
	if err != nil {
		return "", err
	}
	if resolved, err := filepath.EvalSymlinks(abs); err == nil {
		return resolved, nil
	}
	if dir, err := filepath.EvalSymlinks(filepath.Dir(abs)); err == nil {
		return filepath.Join(dir, filepath.Base(abs)), nil
	}
	return abs, nil
}

// insideDir reports whether path is dir or below it
func insideDir(path, dir string) bool {
	rel, err := filepath.Rel(dir, path)
	return err == nil && rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}
