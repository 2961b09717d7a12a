package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"fitness-dashboard/internal/models"

	log "github.com/sirupsen/logrus"
)

// JSONStore keeps every user in a single JSON document that is read and
// rewritten wholesale. There is no locking: concurrent read-modify-write
// cycles race and the last Save wins.
type JSONStore struct {
	path string
}

// NewJSONStore returns a store backed by the document at path. The file is
// created on the first Save.
func NewJSONStore(path string) *JSONStore {
	return &JSONStore{path: path}
}

// Path returns the document location.
func (s *JSONStore) Path() string {
	return s.path
}

// Load reads the whole document. A missing or malformed file yields an empty
// store.
func (s *JSONStore) Load() models.Store {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			log.Warnf("read store %s: %s", s.path, err)
		}
		return models.Store{}
	}

	var store models.Store
	if err := json.Unmarshal(data, &store); err != nil {
		log.Warnf("parse store %s, treating as empty: %s", s.path, err)
		return models.Store{}
	}
	if store == nil {
		return models.Store{}
	}
	store.Normalize()
	return store
}

// Save replaces the document with store. The new content is written to a
// temporary file in the same directory and renamed over the old one.
func (s *JSONStore) Save(store models.Store) error {
	data, err := encodeStore(store)
	if err != nil {
		return fmt.Errorf("encode store: %w", err)
	}

	dir := filepath.Dir(s.path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write store: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return fmt.Errorf("sync store: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace store: %w", err)
	}
	return nil
}

func encodeStore(store models.Store) ([]byte, error) {
	if store == nil {
		store = models.Store{}
	}
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(store); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// Get returns the record for username from a fresh read of the document.
func (s *JSONStore) Get(_ context.Context, username string) (*models.User, error) {
	store := s.Load()
	u, ok := store[username]
	if !ok {
		return nil, ErrUserNotFound
	}
	return u, nil
}

// Upsert loads the document, applies patch to username's record and saves the
// whole document.
func (s *JSONStore) Upsert(_ context.Context, username string, patch Patch) error {
	store := s.Load()

	u, exists := store[username]
	if !exists {
		u = newUser()
	}
	if err := patch(u, exists); err != nil {
		return err
	}
	if u.History == nil {
		u.History = []models.WorkoutRecord{}
	}
	store[username] = u

	return s.Save(store)
}
