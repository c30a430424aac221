// Package profile persists a named connection profile so repeated uploads
// to the same server do not require retyping credentials.
//
// The stored profile is opaque to the upload engine; only the CLI reads
// and writes it. Files are created with 0600 permissions because the
// credential field may hold a password or private-key material.
package profile

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// ErrCorrupt indicates the profile file exists but cannot be parsed.
var ErrCorrupt = errors.New("profile file is corrupt")

// Profile is one saved connection target.
type Profile struct {
	Protocol   string `json:"protocol"`
	Host       string `json:"host"`
	Port       int    `json:"port"`
	User       string `json:"user"`
	Credential string `json:"credential"`
	RemoteDir  string `json:"remote_dir"`
	ChunkSize  int64  `json:"chunk_size,omitempty"`
	MaxRetries int    `json:"max_retries,omitempty"`
}

// Store reads and writes one profile file.
type Store struct {
	path string
}

// NewStore creates a store over the given file path.
func NewStore(path string) *Store {
	return &Store{path: path}
}

// DefaultPath returns the conventional profile location under the user's
// configuration directory.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("resolve config dir: %w", err)
	}
	return filepath.Join(dir, "ftpush", "profile.json"), nil
}

// Save writes the profile with owner-only permissions. The write goes
// through a temporary file and a rename so a crash never leaves a
// half-written profile behind.
func (s *Store) Save(p Profile) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return fmt.Errorf("create profile dir: %w", err)
	}

	data, err := json.MarshalIndent(p, "", "  ")
	if err != nil {
		return fmt.Errorf("encode profile: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("write profile: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("commit profile: %w", err)
	}
	return nil
}

// Load reads the saved profile. A missing file is reported through the
// boolean, not an error.
func (s *Store) Load() (Profile, bool, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return Profile{}, false, nil
	}
	if err != nil {
		return Profile{}, false, fmt.Errorf("read profile: %w", err)
	}

	var p Profile
	if err := json.Unmarshal(data, &p); err != nil {
		return Profile{}, false, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	return p, true, nil
}

// Reset deletes the saved profile. Absence is not an error.
func (s *Store) Reset() error {
	err := os.Remove(s.path)
	if err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("remove profile: %w", err)
	}
	return nil
}
