// Package store persists per-user JSON documents. Every user owns one
// directory under the data root; writes are atomic replaces and updates
// are serialized per user+document with an advisory file lock.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"sync"

	"github.com/gofrs/flock"
)

// Document names a per-user JSON file.
type Document string

const (
	DocProfile     Document = "profile.json"
	DocToday       Document = "today.json"
	DocHistory     Document = "history.json"
	DocHistoryMeal Document = "history_meal.json"
	DocCounters    Document = "counters.json"
)

// ErrNotFound reports a document that has never been written.
var ErrNotFound = errors.New("document not found")

// ErrStoreIO wraps underlying filesystem failures.
var ErrStoreIO = errors.New("store I/O failure")

// Store reads and writes per-user documents under a base directory.
type Store struct {
	baseDir string

	mu    sync.Mutex
	locks map[string]*sync.Mutex
}

// New creates a store rooted at baseDir, creating it if necessary.
func New(baseDir string) (*Store, error) {
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return nil, fmt.Errorf("%w: creating data dir: %v", ErrStoreIO, err)
	}
	return &Store{
		baseDir: baseDir,
		locks:   make(map[string]*sync.Mutex),
	}, nil
}

// UserDir returns the directory for a user, creating it lazily.
func (s *Store) UserDir(userID string) (string, error) {
	dir := filepath.Join(s.baseDir, userID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("%w: creating user dir: %v", ErrStoreIO, err)
	}
	return dir, nil
}

func (s *Store) docPath(userID string, doc Document) (string, error) {
	dir, err := s.UserDir(userID)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, string(doc)), nil
}

// mutex returns the in-process lock for one user+document pair.
// Different users never contend.
func (s *Store) mutex(userID string, doc Document) *sync.Mutex {
	key := userID + "/" + string(doc)
	s.mu.Lock()
	defer s.mu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

// Read unmarshals a document into v. A missing file yields ErrNotFound;
// an empty or corrupt file yields the zero value of v without error, so
// a half-finished onboarding never wedges the user.
func (s *Store) Read(userID string, doc Document, v any) error {
	path, err := s.docPath(userID, doc)
	if err != nil {
		return err
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("%w: reading %s: %v", ErrStoreIO, doc, err)
	}
	if len(data) == 0 {
		return nil
	}
	// Decode into a scratch value: json.Unmarshal fills fields that
	// decode before the failing one, and a partially populated v would
	// be persisted as truth by the next Update.
	scratch := reflect.New(reflect.TypeOf(v).Elem())
	if err := json.Unmarshal(data, scratch.Interface()); err != nil {
		return nil
	}
	reflect.ValueOf(v).Elem().Set(scratch.Elem())
	return nil
}

// Write atomically replaces a document: the content goes to a temporary
// file in the same directory which is then renamed into place, so a
// crash mid-write never exposes a half-written document.
func (s *Store) Write(userID string, doc Document, v any) error {
	path, err := s.docPath(userID, doc)
	if err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("%w: encoding %s: %v", ErrStoreIO, doc, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), string(doc)+".tmp-*")
	if err != nil {
		return fmt.Errorf("%w: creating temp file: %v", ErrStoreIO, err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("%w: writing %s: %v", ErrStoreIO, doc, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: closing %s: %v", ErrStoreIO, doc, err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("%w: replacing %s: %v", ErrStoreIO, doc, err)
	}
	return nil
}

// Update applies mutator to the current document content under an
// exclusive lock scoped to this user+document. The lock combines an
// in-process mutex with an advisory flock, so concurrent updates from
// this process or another one are serialized and no write is lost. A
// missing document starts the mutator from the zero value of v.
func (s *Store) Update(userID string, doc Document, v any, mutator func() error) error {
	path, err := s.docPath(userID, doc)
	if err != nil {
		return err
	}

	m := s.mutex(userID, doc)
	m.Lock()
	defer m.Unlock()

	fl := flock.New(path + ".lock")
	if err := fl.Lock(); err != nil {
		return fmt.Errorf("%w: locking %s: %v", ErrStoreIO, doc, err)
	}
	defer fl.Unlock()

	if err := s.Read(userID, doc, v); err != nil && !errors.Is(err, ErrNotFound) {
		return err
	}
	if err := mutator(); err != nil {
		return err
	}
	return s.Write(userID, doc, v)
}
