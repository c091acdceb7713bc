package storage

import (
	"bytes"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcripto/internal/domain"
	"transcripto/internal/logging"
)

func TestSaveUploadKeepsExtension(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewFileManager(dir, 1024, logging.Discard())
	require.NoError(t, err)

	path, err := fm.SaveUpload(strings.NewReader("ID3 some audio bytes"), "meeting.MP3")
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Equal(t, ".mp3", filepath.Ext(path))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "ID3 some audio bytes", string(data))

	fm.Remove(path)
	_, err = os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))

	// Removing twice is harmless.
	fm.Remove(path)
}

func TestSaveUploadRejectsEmpty(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewFileManager(dir, 1024, logging.Discard())
	require.NoError(t, err)

	_, err = fm.SaveUpload(strings.NewReader(""), "a.wav")
	require.Error(t, err)
	assert.Equal(t, domain.KindSaveFailed, domain.KindOf(err))

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries)
}

func TestSaveUploadEnforcesLimit(t *testing.T) {
	dir := t.TempDir()
	fm, err := NewFileManager(dir, 4096, logging.Discard())
	require.NoError(t, err)

	_, err = fm.SaveUpload(bytes.NewReader(make([]byte, 4097)), "a.wav")
	require.Error(t, err)
	assert.Equal(t, domain.KindBadInput, domain.KindOf(err))
	assert.Contains(t, domain.Message(err), "4.0 KiB")

	entries, _ := os.ReadDir(dir)
	assert.Empty(t, entries, "partial upload must be removed")

	path, err := fm.SaveUpload(bytes.NewReader(make([]byte, 4096)), "a.wav")
	require.NoError(t, err)
	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, int64(4096), info.Size())
}

func writeNote(t *testing.T, store *NoteStore, title, body string) string {
	t.Helper()
	path, err := store.Save(title, func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	})
	require.NoError(t, err)
	return path
}

func TestNoteStoreSaveAndList(t *testing.T) {
	store, err := NewNoteStore(t.TempDir())
	require.NoError(t, err)

	notes, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, notes)

	old := writeNote(t, store, "Old_Note", "old")
	past := time.Now().Add(-time.Hour)
	require.NoError(t, os.Chtimes(old, past, past))
	writeNote(t, store, "Team-Sync", "new")

	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "readme.txt"), []byte("x"), 0o644))

	notes, err = store.List()
	require.NoError(t, err)
	require.Len(t, notes, 2)

	assert.Equal(t, "Team-Sync.pdf", notes[0].Filename)
	assert.Equal(t, "Team Sync", notes[0].Title)
	assert.Equal(t, "Old_Note.pdf", notes[1].Filename)
	assert.Equal(t, "Old Note", notes[1].Title)
	assert.Greater(t, notes[0].MTime, notes[1].MTime)
}

func TestNoteStoreFailedWriteLeavesNothing(t *testing.T) {
	store, err := NewNoteStore(t.TempDir())
	require.NoError(t, err)

	_, err = store.Save("Broken", func(w io.Writer) error {
		_, _ = io.WriteString(w, "half")
		return errors.New("render failed")
	})
	require.Error(t, err)

	notes, err := store.List()
	require.NoError(t, err)
	assert.Empty(t, notes)

	entries, err := os.ReadDir(store.Dir())
	require.NoError(t, err)
	for _, e := range entries {
		assert.True(t, strings.HasPrefix(e.Name(), ".notes.lock"), "unexpected leftover %s", e.Name())
	}
}

func TestNoteStoreRejectsUnsafeTitles(t *testing.T) {
	store, err := NewNoteStore(t.TempDir())
	require.NoError(t, err)

	for _, title := range []string{"", "../escape", ".hidden"} {
		_, err := store.Save(title, func(w io.Writer) error { return nil })
		assert.Error(t, err, title)
	}
}

func TestNoteStoreCountSince(t *testing.T) {
	store, err := NewNoteStore(t.TempDir())
	require.NoError(t, err)

	count, err := store.CountSince(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Zero(t, count)

	writeNote(t, store, "Recent", "a")
	stale := writeNote(t, store, "Stale", "b")
	past := time.Now().Add(-8 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(stale, past, past))

	count, err = store.CountSince(time.Now().Add(-7 * 24 * time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, count)
}

func TestNoteStorePath(t *testing.T) {
	store, err := NewNoteStore(t.TempDir())
	require.NoError(t, err)
	saved := writeNote(t, store, "Weekly", "x")

	path, err := store.Path("Weekly.pdf")
	require.NoError(t, err)
	assert.Equal(t, saved, path)

	for _, name := range []string{"Weekly.docx", "Missing.pdf", "../Weekly.pdf", ".notes.lock"} {
		_, err := store.Path(name)
		assert.ErrorIs(t, err, ErrNoteNotFound, name)
	}
}

func TestProfileStore(t *testing.T) {
	store, err := NewProfileStore(filepath.Join(t.TempDir(), "profile", "user_profile.json"))
	require.NoError(t, err)

	profile, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, DefaultProfile, profile)

	saved, err := store.Save(domain.UserProfile{Name: "ada  lovelace", Email: "ada@example.com"})
	require.NoError(t, err)
	assert.Equal(t, "AL", saved.Initials)

	profile, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, domain.UserProfile{Name: "ada  lovelace", Email: "ada@example.com", Initials: "AL"}, profile)

	_, err = store.Save(domain.UserProfile{Name: "Grace Hopper", Initials: "gh!"})
	require.NoError(t, err)
	profile, err = store.Load()
	require.NoError(t, err)
	assert.Equal(t, "gh!", profile.Initials)
	assert.Empty(t, profile.Email, "save replaces the whole document")
}

func TestInitials(t *testing.T) {
	assert.Equal(t, "U", Initials(""))
	assert.Equal(t, "U", Initials("   "))
	assert.Equal(t, "JD", Initials("jane doe"))
	assert.Equal(t, "ÉB", Initials("élodie bernard"))
}
