package config

import (
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

const (
	RepoConfigFile    = "repository.toml"
	RepoConfigVersion = 1
)

var ErrInvalidRepoConfig = errors.New("invalid repository config")

// KDFConfig holds the unencrypted key derivation parameters
type KDFConfig struct {
	Salt       string `toml:"salt"` // hex
	Iterations int    `toml:"iterations"`
}

// RepoConfig is the unencrypted repository header
type RepoConfig struct {
	ID        string    `toml:"id"`
	Version   int       `toml:"version"`
	CreatedAt time.Time `toml:"created_at"`
	Verifier  string    `toml:"verifier"` // hex of a sealed check string
	KDF       KDFConfig `toml:"kdf"`
}

// NewRepoConfig builds a config for a fresh repository
func NewRepoConfig(salt []byte, iterations int, verifier []byte) *RepoConfig {
	return &RepoConfig{
		ID:        uuid.NewString(),
		Version:   RepoConfigVersion,
		CreatedAt: time.Now().UTC().Truncate(time.Second),
		Verifier:  hex.EncodeToString(verifier),
		KDF: KDFConfig{
			Salt:       hex.EncodeToString(salt),
			Iterations: iterations,
		},
	}
}

// RepoConfigPath returns the config file path inside repoDir
func RepoConfigPath(repoDir string) string {
	return filepath.Join(repoDir, RepoConfigFile)
}

// RepoConfigExists reports whether repoDir holds a repository config
func RepoConfigExists(repoDir string) bool {
	return fileExists(RepoConfigPath(repoDir))
}

// LoadRepoConfig reads and validates repository.toml
func LoadRepoConfig(repoDir string) (*RepoConfig, error) {
	var c RepoConfig
	if err := LoadTOML(RepoConfigPath(repoDir), &c); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidRepoConfig, err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Save writes repository.toml atomically
func (c *RepoConfig) Save(repoDir string) error {
	if err := SaveTOML(RepoConfigPath(repoDir), c); err != nil {
		return fmt.Errorf("failed to save repository config: %w", err)
	}
	return nil
}

// Validate checks that all required fields are present and decodable
func (c *RepoConfig) Validate() error {
	if _, err := uuid.Parse(c.ID); err != nil {
		return fmt.Errorf("%w: bad id %q", ErrInvalidRepoConfig, c.ID)
	}
	if c.Version != RepoConfigVersion {
		return fmt.Errorf("%w: unsupported version %d", ErrInvalidRepoConfig, c.Version)
	}
	if c.KDF.Iterations <= 0 {
		return fmt.Errorf("%w: bad iterations %d", ErrInvalidRepoConfig, c.KDF.Iterations)
	}
	if _, err := c.SaltBytes(); err != nil {
		return err
	}
	if _, err := c.VerifierBytes(); err != nil {
		return err
	}
	return nil
}

// SaltBytes decodes the KDF salt
func (c *RepoConfig) SaltBytes() ([]byte, error) {
	b, err := hex.DecodeString(c.KDF.Salt)
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("%w: bad salt", ErrInvalidRepoConfig)
	}
	return b, nil
}

// VerifierBytes decodes the password verifier
func (c *RepoConfig) VerifierBytes() ([]byte, error) {
	b, err := hex.DecodeString(c.Verifier)
	if err != nil || len(b) == 0 {
		return nil, fmt.Errorf("%w: bad verifier", ErrInvalidRepoConfig)
	}
	return b, nil
}
