package services

import (
	"bytes"
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"transcripto/internal/config"
	"transcripto/internal/domain"
	"transcripto/internal/logging"
)

type fakeFiles struct {
	mu        sync.Mutex
	states    []domain.FileState
	uploadErr error
	getErr    error
	deleteErr error

	uploadMIMEs []string
	gets        int
	deletes     []string
	deleteCtxOK []bool
}

func (f *fakeFiles) UploadFile(ctx context.Context, path, mimeType string) (domain.StagedAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.uploadMIMEs = append(f.uploadMIMEs, mimeType)
	if f.uploadErr != nil {
		return domain.StagedAsset{}, f.uploadErr
	}
	return domain.StagedAsset{Name: "files/abc", URI: "https://files.test/abc", MIMEType: mimeType, State: domain.FileStatePending}, nil
}

func (f *fakeFiles) GetFile(ctx context.Context, name string) (domain.StagedAsset, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.gets++
	if f.getErr != nil {
		return domain.StagedAsset{}, f.getErr
	}
	state := domain.FileStatePending
	if len(f.states) > 0 {
		idx := f.gets - 1
		if idx >= len(f.states) {
			idx = len(f.states) - 1
		}
		state = f.states[idx]
	}
	return domain.StagedAsset{Name: name, URI: "https://files.test/abc", MIMEType: "audio/mp3", State: state}, nil
}

func (f *fakeFiles) DeleteFile(ctx context.Context, name string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, name)
	f.deleteCtxOK = append(f.deleteCtxOK, ctx.Err() == nil)
	return f.deleteErr
}

type fakeClock struct {
	now    time.Time
	sleeps int
	err    error
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(ctx context.Context, d time.Duration) error {
	c.sleeps++
	c.now = c.now.Add(d)
	return c.err
}

type fakeGenerator struct {
	resp  GenerateResponse
	err   error
	calls int
	parts []Part
}

func (g *fakeGenerator) GenerateContent(ctx context.Context, model string, parts []Part) (GenerateResponse, error) {
	g.calls++
	g.parts = parts
	return g.resp, g.err
}

type fakeText struct {
	reply   string
	err     error
	prompts []string
}

func (t *fakeText) Generate(ctx context.Context, model, prompt string) (string, error) {
	t.prompts = append(t.prompts, prompt)
	return t.reply, t.err
}

type memorySaver struct {
	saved map[string][]byte
	err   error
}

func (m *memorySaver) Save(title string, write func(w io.Writer) error) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	var buf bytes.Buffer
	if err := write(&buf); err != nil {
		return "", err
	}
	if m.saved == nil {
		m.saved = map[string][]byte{}
	}
	m.saved[title] = buf.Bytes()
	return "/notes/" + title + ".pdf", nil
}

type recordingRenderer struct {
	docs []domain.NoteDocument
}

func (r *recordingRenderer) Render(doc domain.NoteDocument, w io.Writer) error {
	r.docs = append(r.docs, doc)
	_, err := io.WriteString(w, "doc:"+doc.Title)
	return err
}

func testConfig() config.Config {
	return config.Config{
		ModelTranscribe: "gemini-test",
		ModelNotes:      "gemini-test",
		ModelChat:       "gemini-test",
		PollInterval:    2 * time.Second,
		PollTimeout:     120 * time.Second,
	}
}

func newTestStager(files FileAPI) (*Stager, *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)}
	s := NewStager(testConfig(), files, logging.Discard())
	s.Sleep = clock.Sleep
	s.Now = clock.Now
	return s, clock
}

func writeAudio(t *testing.T, name string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte("ID3 fake audio"), 0o644))
	return path
}

var errBoom = errors.New("boom")
