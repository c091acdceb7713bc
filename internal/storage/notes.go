package storage

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/google/uuid"

	"transcripto/internal/domain"
)

// NoteExt is the extension of stored note documents.
const NoteExt = ".pdf"

// ErrNoteNotFound is returned for unknown or unrecognised note filenames.
var ErrNoteNotFound = errors.New("note not found")

// NoteStore keeps one document per note in a directory. Writes go through a
// hidden temp file and a rename so readers never see a partial document.
type NoteStore struct {
	dir  string
	mu   sync.Mutex
	lock *flock.Flock
}

func NewNoteStore(dir string) (*NoteStore, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create notes directory: %w", err)
	}
	return &NoteStore{dir: dir, lock: flock.New(filepath.Join(dir, ".notes.lock"))}, nil
}

func (s *NoteStore) Dir() string {
	return s.dir
}

// Save writes the document produced by write under title and returns its
// path. An existing note with the same title is replaced.
func (s *NoteStore) Save(title string, write func(w io.Writer) error) (string, error) {
	if title == "" || title != filepath.Base(title) || strings.HasPrefix(title, ".") {
		return "", fmt.Errorf("invalid note title %q", title)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return "", fmt.Errorf("lock notes directory: %w", err)
	}
	defer s.lock.Unlock()

	final := filepath.Join(s.dir, title+NoteExt)
	tmp, err := os.CreateTemp(s.dir, "."+uuid.NewString()+"-*.tmp")
	if err != nil {
		return "", fmt.Errorf("create temp note: %w", err)
	}

	if err := write(tmp); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return "", err
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("close temp note: %w", err)
	}

	if err := os.Rename(tmp.Name(), final); err != nil {
		os.Remove(tmp.Name())
		return "", fmt.Errorf("store note: %w", err)
	}

	return final, nil
}

// List returns all stored notes, newest first.
func (s *NoteStore) List() ([]domain.NoteEntry, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read notes directory: %w", err)
	}

	notes := make([]domain.NoteEntry, 0, len(entries))
	for _, entry := range entries {
		if !isNoteFile(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Removed between ReadDir and Info.
			continue
		}

		name := entry.Name()
		notes = append(notes, domain.NoteEntry{
			Title:    strings.NewReplacer("_", " ", "-", " ").Replace(strings.TrimSuffix(name, NoteExt)),
			Filename: name,
			MTime:    float64(info.ModTime().UnixNano()) / float64(time.Second),
		})
	}

	sort.SliceStable(notes, func(i, j int) bool {
		return notes[i].MTime > notes[j].MTime
	})
	return notes, nil
}

// CountSince counts notes modified after since.
func (s *NoteStore) CountSince(since time.Time) (int, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return 0, fmt.Errorf("read notes directory: %w", err)
	}

	count := 0
	for _, entry := range entries {
		if !isNoteFile(entry) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if info.ModTime().After(since) {
			count++
		}
	}
	return count, nil
}

// Path resolves a stored note filename to its location on disk.
func (s *NoteStore) Path(filename string) (string, error) {
	name := filepath.Base(filename)
	if name != filename || strings.HasPrefix(name, ".") || strings.ToLower(filepath.Ext(name)) != NoteExt {
		return "", ErrNoteNotFound
	}

	path := filepath.Join(s.dir, name)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", ErrNoteNotFound
	}
	return path, nil
}

func isNoteFile(entry os.DirEntry) bool {
	name := entry.Name()
	return entry.Type().IsRegular() && !strings.HasPrefix(name, ".") && filepath.Ext(name) == NoteExt
}
