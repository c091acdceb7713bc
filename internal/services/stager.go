package services

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"transcripto/internal/config"
	"transcripto/internal/domain"
)

// cleanupTimeout bounds best-effort remote deletes, which run even after the
// request context is cancelled.
const cleanupTimeout = 30 * time.Second

var audioMIMETypes = map[string]string{
	".mp3":  "audio/mp3",
	".wav":  "audio/wav",
	".m4a":  "audio/m4a",
	".flac": "audio/flac",
	".webm": "audio/webm",
}

// AudioMIMEType returns the content type for a supported audio extension.
func AudioMIMEType(path string) (string, bool) {
	mime, ok := audioMIMETypes[strings.ToLower(filepath.Ext(path))]
	return mime, ok
}

// IsAllowedAudio reports whether filename carries a supported extension.
func IsAllowedAudio(filename string) bool {
	_, ok := AudioMIMEType(filename)
	return ok
}

// Stager uploads audio to the remote asset store and waits for it to become
// usable. On success the caller owns the returned asset and must delete it.
type Stager struct {
	files    FileAPI
	log      *log.Logger
	interval time.Duration
	timeout  time.Duration

	// Sleep and Now are swapped out in tests.
	Sleep func(ctx context.Context, d time.Duration) error
	Now   func() time.Time
}

func NewStager(cfg config.Config, files FileAPI, logger *log.Logger) *Stager {
	return &Stager{
		files:    files,
		log:      logger,
		interval: cfg.PollInterval,
		timeout:  cfg.PollTimeout,
		Sleep:    sleepContext,
		Now:      time.Now,
	}
}

func (s *Stager) Stage(ctx context.Context, localPath string) (domain.StagedAsset, error) {
	const op = "stage"

	info, err := os.Stat(localPath)
	if err != nil || info.IsDir() {
		return domain.StagedAsset{}, domain.E(domain.KindBadInput, op, "audio file not found: "+filepath.Base(localPath), err)
	}

	mimeType, ok := AudioMIMEType(localPath)
	if !ok {
		return domain.StagedAsset{}, domain.E(domain.KindUnsupportedType, op, "unsupported file type: "+filepath.Ext(localPath), nil)
	}

	s.log.Info("uploading audio", "file", filepath.Base(localPath), "mime", mimeType, "size", info.Size())

	asset, err := s.files.UploadFile(ctx, localPath, mimeType)
	if err != nil {
		return domain.StagedAsset{}, domain.E(remoteKind(err, domain.KindUploadFailed), op, "failed to upload audio file", err)
	}

	deadline := s.Now().Add(s.timeout)
	for {
		current, err := s.files.GetFile(ctx, asset.Name)
		if err != nil {
			s.Release(ctx, asset)
			return domain.StagedAsset{}, domain.E(remoteKind(err, domain.KindStatusUnavailable), op, "file status unavailable", err)
		}

		switch current.State {
		case domain.FileStateActive:
			if current.URI == "" {
				current.URI = asset.URI
			}
			if current.MIMEType == "" {
				current.MIMEType = mimeType
			}
			s.log.Debug("asset ready", "name", current.Name)
			return current, nil
		case domain.FileStateFailed:
			s.Release(ctx, asset)
			return domain.StagedAsset{}, domain.E(domain.KindProcessingFailed, op, "remote processing failed for "+asset.Name, nil)
		}

		if !s.Now().Before(deadline) {
			s.Release(ctx, asset)
			return domain.StagedAsset{}, domain.E(domain.KindTimeout, op,
				fmt.Sprintf("asset %s not ready after %s", asset.Name, s.timeout), nil)
		}

		if err := s.Sleep(ctx, s.interval); err != nil {
			s.Release(ctx, asset)
			return domain.StagedAsset{}, domain.E(domain.KindTimeout, op, "waiting for asset interrupted", err)
		}
	}
}

// Release deletes the asset remotely. Failures are logged only.
func (s *Stager) Release(ctx context.Context, asset domain.StagedAsset) {
	if asset.Name == "" {
		return
	}

	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cleanupTimeout)
	defer cancel()

	if err := s.files.DeleteFile(ctx, asset.Name); err != nil {
		s.log.Warn("failed to delete staged asset", "name", asset.Name, "err", err)
		return
	}
	s.log.Info("deleted staged asset", "name", asset.Name)
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
