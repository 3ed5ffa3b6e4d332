package creds

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"nutrigate/pkg/logging"
)

// DefaultConfigDir is the per-user directory holding the credential record,
// relative to the home directory.
const DefaultConfigDir = ".config/nutrigate"

// FileName is the durable credential record within the config dir.
const FileName = "credentials.json"

// Record is the durable credential state for one tenant: the consumer
// key/secret identifying the application and, once the three-legged flow has
// completed, the long-lived user access token.
type Record struct {
	ConsumerKey       string `json:"consumer_key,omitempty"`
	ConsumerSecret    string `json:"consumer_secret,omitempty"`
	AccessToken       string `json:"access_token,omitempty"`
	AccessTokenSecret string `json:"access_token_secret,omitempty"`
}

// Merge overlays the non-empty fields of overrides onto r, field by field.
// Used both for partial saves and for applying runtime-supplied credentials
// over the persisted record at startup.
func (r Record) Merge(overrides Record) Record {
	out := r
	if overrides.ConsumerKey != "" {
		out.ConsumerKey = overrides.ConsumerKey
	}
	if overrides.ConsumerSecret != "" {
		out.ConsumerSecret = overrides.ConsumerSecret
	}
	if overrides.AccessToken != "" {
		out.AccessToken = overrides.AccessToken
	}
	if overrides.AccessTokenSecret != "" {
		out.AccessTokenSecret = overrides.AccessTokenSecret
	}
	return out
}

// HasConsumer reports whether consumer credentials are present.
func (r Record) HasConsumer() bool {
	return r.ConsumerKey != "" && r.ConsumerSecret != ""
}

// HasUserToken reports whether a user access token is present.
func (r Record) HasUserToken() bool {
	return r.AccessToken != "" && r.AccessTokenSecret != ""
}

// Store persists the credential record to a tenant-private JSON file.
//
// SECURITY: the record holds secrets. The directory is created 0700, the
// file 0600, and credential values are never logged.
type Store struct {
	mu   sync.Mutex
	path string
}

// DefaultPath returns the per-user credential file location.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("creds: resolving home directory: %w", err)
	}
	return filepath.Join(homeDir, DefaultConfigDir, FileName), nil
}

// NewStore creates a store backed by the given file path, creating the
// parent directory if needed.
func NewStore(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return nil, fmt.Errorf("creds: creating credential directory: %w", err)
	}
	return &Store{path: path}, nil
}

// Path returns the backing file path.
func (s *Store) Path() string {
	return s.path
}

// Load reads the persisted record. A missing file is not an error; it yields
// an empty record.
func (s *Store) Load() (Record, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

func (s *Store) loadLocked() (Record, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Record{}, nil
		}
		return Record{}, fmt.Errorf("creds: reading %s: %w", s.path, err)
	}

	var rec Record
	if err := json.Unmarshal(data, &rec); err != nil {
		return Record{}, fmt.Errorf("creds: parsing %s: %w", s.path, err)
	}
	return rec, nil
}

// Save merges the non-empty fields of update into the persisted record and
// writes the result back. The read-merge-write runs as one logical
// transaction under the store lock, and the file is replaced via rename so a
// concurrent reader never observes a partially written record.
func (s *Store) Save(update Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, err := s.loadLocked()
	if err != nil {
		return err
	}
	merged := existing.Merge(update)

	data, err := json.MarshalIndent(merged, "", "  ")
	if err != nil {
		return fmt.Errorf("creds: marshaling record: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), FileName+".tmp-*")
	if err != nil {
		return fmt.Errorf("creds: creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	defer func() { _ = os.Remove(tmpPath) }()

	if err := tmp.Chmod(0600); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("creds: restricting temp file permissions: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("creds: writing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("creds: closing temp file: %w", err)
	}

	if err := os.Rename(tmpPath, s.path); err != nil {
		return fmt.Errorf("creds: replacing %s: %w", s.path, err)
	}

	logging.Debug("CredStore", "Persisted credential record to %s (consumer=%t user_token=%t)",
		s.path, merged.HasConsumer(), merged.HasUserToken())
	return nil
}
