package storage

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"transcripto/internal/domain"
)

const sniffBytes = 3072

// FileManager owns the temporary upload directory.
type FileManager struct {
	uploadDir      string
	maxUploadBytes int64
	log            *log.Logger
}

func NewFileManager(uploadDir string, maxUploadBytes int64, logger *log.Logger) (*FileManager, error) {
	if err := os.MkdirAll(uploadDir, 0o755); err != nil {
		return nil, fmt.Errorf("create dir %s: %w", uploadDir, err)
	}
	return &FileManager{uploadDir: uploadDir, maxUploadBytes: maxUploadBytes, log: logger}, nil
}

// SaveUpload streams r to a uniquely named file in the upload directory,
// keeping the extension of filename. The caller must Remove the returned path.
func (fm *FileManager) SaveUpload(r io.Reader, filename string) (string, error) {
	const op = "save upload"

	sample := make([]byte, sniffBytes)
	n, err := io.ReadFull(r, sample)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return "", fm.readError(op, err)
	}
	sample = sample[:n]
	if n == 0 {
		return "", domain.E(domain.KindSaveFailed, op, "failed to save audio file to disk: upload is empty", nil)
	}

	detected := mimetype.Detect(sample).String()
	if !strings.HasPrefix(detected, "audio/") && !strings.HasPrefix(detected, "video/") {
		fm.log.Warn("upload does not look like audio", "filename", filename, "detected", detected)
	}

	ext := strings.ToLower(filepath.Ext(filename))
	path := filepath.Join(fm.uploadDir, uuid.NewString()+ext)

	if err := fm.writeWithLimit(path, sample, r); err != nil {
		return "", err
	}

	fm.log.Debug("upload saved", "path", path, "detected", detected)
	return path, nil
}

// Remove deletes a temporary upload; failures are logged.
func (fm *FileManager) Remove(path string) {
	if path == "" {
		return
	}
	if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		fm.log.Warn("failed to remove temp upload", "path", path, "err", err)
	}
}

func (fm *FileManager) writeWithLimit(path string, sample []byte, r io.Reader) error {
	const op = "save upload"

	if fm.maxUploadBytes > 0 && int64(len(sample)) > fm.maxUploadBytes {
		return fm.tooLarge(op)
	}

	out, err := os.Create(path)
	if err != nil {
		return domain.E(domain.KindSaveFailed, op, "failed to save file locally", err)
	}

	cleanup := func(err error) error {
		out.Close()
		os.Remove(path)
		return err
	}

	if _, err := out.Write(sample); err != nil {
		return cleanup(domain.E(domain.KindSaveFailed, op, "failed to save file locally", err))
	}

	rest := r
	if fm.maxUploadBytes > 0 {
		// One byte past the limit is enough to know it was exceeded.
		rest = io.LimitReader(r, fm.maxUploadBytes-int64(len(sample))+1)
	}

	written, err := io.Copy(out, rest)
	if err != nil {
		return cleanup(fm.readError(op, err))
	}
	if fm.maxUploadBytes > 0 && int64(len(sample))+written > fm.maxUploadBytes {
		return cleanup(fm.tooLarge(op))
	}

	if err := out.Close(); err != nil {
		os.Remove(path)
		return domain.E(domain.KindSaveFailed, op, "failed to save file locally", err)
	}
	return nil
}

func (fm *FileManager) readError(op string, err error) error {
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		return fm.tooLarge(op)
	}
	return domain.E(domain.KindSaveFailed, op, "failed to read uploaded file", err)
}

func (fm *FileManager) tooLarge(op string) error {
	return domain.E(domain.KindBadInput, op,
		fmt.Sprintf("audio file exceeds maximum size of %s", humanize.IBytes(uint64(fm.maxUploadBytes))), nil)
}
