package tokenstore

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

const (
	defaultAppFolder  = "canteen-portal"
	sessionFileName   = "session.json"
	dirPermissions    = 0o700
	filePermissions   = 0o600
	tempFilePrefixFmt = ".session-*.tmp"
)

// FileStore persists the session as a single JSON file. Writes go through a
// temp file followed by a rename, so a reader never observes a partially
// written record.
type FileStore struct {
	mu   sync.Mutex
	path string
}

// NewFileStore creates a file-backed store at path. If path is empty it
// defaults to <user config dir>/canteen-portal/session.json.
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		configDir, err := os.UserConfigDir()
		if err != nil {
			home, err := os.UserHomeDir()
			if err != nil {
				return nil, errors.Wrap(err, "[NewFileStore] could not determine config directory")
			}
			configDir = filepath.Join(home, ".config")
		}
		path = filepath.Join(configDir, defaultAppFolder, sessionFileName)
	}

	if err := os.MkdirAll(filepath.Dir(path), dirPermissions); err != nil {
		return nil, errors.Wrap(err, "[NewFileStore] create directory")
	}

	return &FileStore{path: path}, nil
}

// Load reads the persisted session from disk. A missing, malformed or
// incomplete file loads as absent.
func (s *FileStore) Load() (*PersistedSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "[FileStore.Load] read")
	}

	var persisted PersistedSession
	if err := json.Unmarshal(data, &persisted); err != nil {
		log.Warn().Str("path", s.path).Msg("Persisted session is malformed, treating as absent")
		return nil, nil
	}

	if !persisted.Complete() {
		log.Warn().Str("path", s.path).Msg("Persisted session is incomplete, treating as absent")
		return nil, nil
	}

	return &persisted, nil
}

// Save writes the session atomically.
func (s *FileStore) Save(session *PersistedSession) error {
	if !session.Complete() {
		return errors.New("[FileStore.Save] refusing to persist an incomplete session")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] marshal")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), tempFilePrefixFmt)
	if err != nil {
		return errors.Wrap(err, "[FileStore.Save] create temp file")
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] write temp file")
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] close temp file")
	}
	if err := os.Chmod(tmpName, filePermissions); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] chmod temp file")
	}

	if err := os.Rename(tmpName, s.path); err != nil {
		os.Remove(tmpName)
		return errors.Wrap(err, "[FileStore.Save] rename")
	}

	return nil
}

// Clear removes the persisted session file.
func (s *FileStore) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := os.Remove(s.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "[FileStore.Clear] remove")
	}
	return nil
}
