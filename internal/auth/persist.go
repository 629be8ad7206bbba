package auth

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// persistedUser is the on-disk representation of a User (spec.md §6
// "Persisted state layout": "User database: one record per user").
type persistedUser struct {
	Name             string `json:"name"`
	Email            string `json:"email,omitempty"`
	Password         string `json:"password"`
	Rights           Rights `json:"rights"`
	ConfirmationCode string `json:"confirmation_code,omitempty"`
}

type persistedStore struct {
	Version       int             `json:"version"`
	DefaultRights Rights          `json:"default_rights"`
	Users         []persistedUser `json:"users"`
}

const persistVersion = 1

// Save writes every account to path atomically (write-to-tmp + rename),
// matching the convention internal/queue and internal/schedule already
// use for their own on-disk snapshots.
func (s *Store) Save(path string) error {
	s.mu.RLock()
	snap := persistedStore{Version: persistVersion, DefaultRights: s.defaultRights}
	for _, u := range s.users {
		snap.Users = append(snap.Users, persistedUser{
			Name: u.Name, Email: u.Email, Password: u.password,
			Rights: u.Rights, ConfirmationCode: u.ConfirmationCode,
		})
	}
	s.mu.RUnlock()

	data, err := json.MarshalIndent(snap, "", "  ")
	if err != nil {
		return fmt.Errorf("auth: marshalling user database: %w", err)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "passwd-*.json.tmp")
	if err != nil {
		return fmt.Errorf("auth: creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("auth: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("auth: closing temp file: %w", err)
	}
	if err := os.Chmod(tmpName, 0o600); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("auth: restricting temp file permissions: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("auth: renaming temp file to %q: %w", path, err)
	}
	return nil
}

// LoadStore reads a user database written by Save, or returns a fresh
// empty Store with defaultRights if path does not exist yet.
func LoadStore(path string, defaultRights Rights) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return NewStore(defaultRights), nil
		}
		return nil, fmt.Errorf("auth: reading %q: %w", path, err)
	}

	var snap persistedStore
	if err := json.Unmarshal(data, &snap); err != nil {
		return nil, fmt.Errorf("auth: parsing %q: %w", path, err)
	}

	s := NewStore(snap.DefaultRights)
	for _, pu := range snap.Users {
		s.users[pu.Name] = &User{
			Name: pu.Name, Email: pu.Email, password: pu.Password,
			Rights: pu.Rights, ConfirmationCode: pu.ConfirmationCode,
		}
	}
	return s, nil
}
