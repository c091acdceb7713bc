package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/gofrs/flock"

	"transcripto/internal/domain"
)

// DefaultProfile is returned until a profile has been saved.
var DefaultProfile = domain.UserProfile{Name: "User", Email: "", Initials: "U"}

// ProfileStore keeps the single user profile as a JSON document. Saves
// replace the whole document; the last write wins.
type ProfileStore struct {
	mu   sync.RWMutex
	path string
	lock *flock.Flock
}

func NewProfileStore(path string) (*ProfileStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create profile directory: %w", err)
	}
	return &ProfileStore{path: path, lock: flock.New(path + ".lock")}, nil
}

func (s *ProfileStore) Load() (domain.UserProfile, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	file, err := os.Open(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return DefaultProfile, nil
	}
	if err != nil {
		return domain.UserProfile{}, fmt.Errorf("open profile: %w", err)
	}
	defer file.Close()

	var profile domain.UserProfile
	if err := json.NewDecoder(file).Decode(&profile); err != nil {
		if errors.Is(err, io.EOF) {
			return DefaultProfile, nil
		}
		return domain.UserProfile{}, fmt.Errorf("decode profile: %w", err)
	}
	return profile, nil
}

// Save stores profile, deriving initials from the name when they are empty.
// It returns the profile as stored.
func (s *ProfileStore) Save(profile domain.UserProfile) (domain.UserProfile, error) {
	if strings.TrimSpace(profile.Initials) == "" {
		profile.Initials = Initials(profile.Name)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.lock.Lock(); err != nil {
		return domain.UserProfile{}, fmt.Errorf("lock profile: %w", err)
	}
	defer s.lock.Unlock()

	if err := s.saveLocked(profile); err != nil {
		return domain.UserProfile{}, err
	}
	return profile, nil
}

// Initials takes the first letter of each space separated word, upper-cased.
func Initials(name string) string {
	var b strings.Builder
	for _, word := range strings.Fields(name) {
		for _, r := range word {
			b.WriteRune(r)
			break
		}
	}
	if b.Len() == 0 {
		return "U"
	}
	return strings.ToUpper(b.String())
}

func (s *ProfileStore) saveLocked(profile domain.UserProfile) error {
	tmp, err := os.CreateTemp(filepath.Dir(s.path), "profile-*.json")
	if err != nil {
		return fmt.Errorf("create temp profile: %w", err)
	}

	encoder := json.NewEncoder(tmp)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(profile); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("encode profile: %w", err)
	}

	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("close temp profile: %w", err)
	}

	if err := os.Rename(tmp.Name(), s.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replace profile file: %w", err)
	}
	return nil
}
