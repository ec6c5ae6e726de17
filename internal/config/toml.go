// Package config loads and saves kitty's TOML files: the per-repository
// repository.toml and the optional per-user settings file.
package config

import (
	"bytes"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/illarion/kitty/internal/fsutil"
)

// SaveTOML encodes data and atomically replaces filePath with it.
func SaveTOML(filePath string, data any) error {
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(data); err != nil {
		return err
	}
	return fsutil.WriteFileAtomic(filePath, buf.Bytes(), fsutil.FilePermSecure)
}

// LoadTOML decodes a TOML file into data.
func LoadTOML(filePath string, data any) error {
	_, err := toml.DecodeFile(filePath, data)
	return err
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}
