// Package keyring caches repository passwords in the OS keyring, keyed by
// repository id so several repositories on one machine do not collide.
package keyring

import (
	"errors"

	"github.com/zalando/go-keyring"
)

const serviceName = "kitty"

// ErrNotFound is returned when no password is stored for a repository
var ErrNotFound = keyring.ErrNotFound

// SavePassword stores a password in the OS keyring
func SavePassword(repoID string, password []byte) error {
	return keyring.Set(serviceName, repoID, string(password))
}

// GetPassword retrieves a password from the OS keyring
func GetPassword(repoID string) ([]byte, error) {
	pw, err := keyring.Get(serviceName, repoID)
	if err != nil {
		return nil, err
	}
	return []byte(pw), nil
}

// DeletePassword removes a password from the OS keyring. Deleting an
// absent entry is not an error.
func DeletePassword(repoID string) error {
	err := keyring.Delete(serviceName, repoID)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// HasPassword checks if a password is stored in the keyring
func HasPassword(repoID string) bool {
	_, err := keyring.Get(serviceName, repoID)
	return err == nil
}
