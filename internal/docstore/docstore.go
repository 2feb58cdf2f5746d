// Package docstore maintains the registry of uploaded source documents
// and their backing files inside a managed storage area.
package docstore

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/charmbracelet/log"
)

// ErrDuplicateName is returned when registering a document whose name is
// already taken. Re-uploading requires an explicit remove first.
var ErrDuplicateName = errors.New("document name already registered")

// RegistrationError indicates that a document could not be registered.
type RegistrationError struct {
	Name string
	Err  error
}

func (e *RegistrationError) Error() string {
	return fmt.Sprintf("register %q: %v", e.Name, e.Err)
}

func (e *RegistrationError) Unwrap() error { return e.Err }

// Document represents one registered source document.
type Document struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"` // recorded at registration time
	Hash    string    `json:"hash"` // xxh64 of the registered bytes
	AddedAt time.Time `json:"added_at"`
}

// Store is the registry of uploaded documents. All backing files live under
// a single managed root directory owned by this store.
type Store struct {
	root string

	mu   sync.Mutex
	docs []Document // registration order
}

// New creates a document store rooted at the given directory.
func New(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage root: %w", err)
	}
	return &Store{root: root}, nil
}

// Root returns the managed storage directory.
func (s *Store) Root() string { return s.root }

// Register writes data to a fresh location derived from name and records the
// document. The write is verified by re-reading the file size; a write is not
// trusted merely because it returned without error.
func (s *Store) Register(name string, data []byte) (Document, error) {
	name = filepath.Base(name)
	if name == "" || name == "." || name == string(filepath.Separator) {
		return Document{}, &RegistrationError{Name: name, Err: errors.New("invalid document name")}
	}
	if len(data) == 0 {
		return Document{}, &RegistrationError{Name: name, Err: errors.New("document is empty")}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.docs {
		if d.Name == name {
			return Document{}, &RegistrationError{Name: name, Err: ErrDuplicateName}
		}
	}

	path := filepath.Join(s.root, name)
	if err := os.WriteFile(path, data, 0644); err != nil {
		return Document{}, &RegistrationError{Name: name, Err: err}
	}

	info, err := os.Stat(path)
	if err != nil {
		return Document{}, &RegistrationError{Name: name, Err: fmt.Errorf("verify write: %w", err)}
	}
	if info.Size() != int64(len(data)) {
		_ = os.Remove(path)
		return Document{}, &RegistrationError{
			Name: name,
			Err:  fmt.Errorf("verify write: wrote %d bytes, found %d", len(data), info.Size()),
		}
	}

	doc := Document{
		Name:    name,
		Path:    path,
		Size:    info.Size(),
		Hash:    fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data)),
		AddedAt: time.Now().UTC(),
	}
	s.docs = append(s.docs, doc)

	log.Debug("Registered document", "name", name, "size", doc.Size)
	return doc, nil
}

// Restore rebuilds the registry from the files already present under the
// storage root, ordered by modification time so the registration order of a
// previous run is preserved. Hidden files are ignored.
func (s *Store) Restore() error {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return fmt.Errorf("failed to read storage root: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var restored []Document
	for _, entry := range entries {
		if entry.IsDir() || strings.HasPrefix(entry.Name(), ".") {
			continue
		}

		path := filepath.Join(s.root, entry.Name())
		info, err := entry.Info()
		if err != nil {
			log.Warn("Skipping unreadable document file", "path", path, "error", err)
			continue
		}

		data, err := os.ReadFile(path)
		if err != nil {
			log.Warn("Skipping unreadable document file", "path", path, "error", err)
			continue
		}

		restored = append(restored, Document{
			Name:    entry.Name(),
			Path:    path,
			Size:    info.Size(),
			Hash:    fmt.Sprintf("xxh64:%016x", xxhash.Sum64(data)),
			AddedAt: info.ModTime().UTC(),
		})
	}

	sort.Slice(restored, func(i, j int) bool {
		return restored[i].AddedAt.Before(restored[j].AddedAt)
	})

	s.docs = restored
	log.Debug("Restored document registry", "count", len(restored))
	return nil
}

// Remove deletes the backing file (best-effort; a missing file is not an
// error) and drops the registry entry. Returns whether an entry existed.
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i, d := range s.docs {
		if d.Name == name {
			if err := os.Remove(d.Path); err != nil && !os.IsNotExist(err) {
				log.Warn("Failed to delete document file", "path", d.Path, "error", err)
			}
			s.docs = append(s.docs[:i], s.docs[i+1:]...)
			return true
		}
	}
	return false
}

// Clear removes all entries and deletes all backing files best-effort.
// Calling Clear on an empty store is a no-op.
func (s *Store) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.docs {
		if err := os.Remove(d.Path); err != nil && !os.IsNotExist(err) {
			log.Warn("Failed to delete document file", "path", d.Path, "error", err)
		}
	}
	s.docs = nil
}

// Fingerprint returns a stable hash of the registered document set, built
// from the names and content hashes independent of registration order. An
// empty store has an empty fingerprint.
func (s *Store) Fingerprint() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(s.docs) == 0 {
		return ""
	}

	entries := make([]string, len(s.docs))
	for i, d := range s.docs {
		entries[i] = d.Name + "\x00" + d.Hash
	}
	sort.Strings(entries)

	h := xxhash.New()
	for _, e := range entries {
		h.WriteString(e)
		h.WriteString("\n")
	}
	return fmt.Sprintf("xxh64:%016x", h.Sum64())
}

// Documents returns all registered documents in registration order.
func (s *Store) Documents() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Document, len(s.docs))
	copy(out, s.docs)
	return out
}

// Valid returns only documents whose backing file currently exists with a
// non-zero size. Presence is re-checked on every call, never cached, and the
// registry is not pruned.
func (s *Store) Valid() []Document {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []Document
	for _, d := range s.docs {
		info, err := os.Stat(d.Path)
		if err != nil || info.Size() == 0 {
			continue
		}
		out = append(out, d)
	}
	return out
}

// Get returns the registered document with the given name.
func (s *Store) Get(name string) (Document, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, d := range s.docs {
		if d.Name == name {
			return d, true
		}
	}
	return Document{}, false
}

// Count returns the number of registered documents.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.docs)
}
