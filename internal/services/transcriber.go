package services

import (
	"context"
	"errors"
	"strings"

	"github.com/charmbracelet/log"

	"transcripto/internal/config"
	"transcripto/internal/domain"
)

const transcribeInstruction = "Please transcribe this audio clearly with punctuation."

// Transcriber turns a staged audio asset into text with a single
// generateContent call.
type Transcriber struct {
	stager *Stager
	gen    ContentGenerator
	model  string
	log    *log.Logger
}

func NewTranscriber(cfg config.Config, stager *Stager, gen ContentGenerator, logger *log.Logger) *Transcriber {
	return &Transcriber{stager: stager, gen: gen, model: cfg.ModelTranscribe, log: logger}
}

// TranscribeFile stages localPath and transcribes it.
func (t *Transcriber) TranscribeFile(ctx context.Context, localPath string) (string, error) {
	asset, err := t.stager.Stage(ctx, localPath)
	if err != nil {
		return "", err
	}
	return t.Transcribe(ctx, asset)
}

// Transcribe consumes asset: it is deleted remotely exactly once before
// Transcribe returns, whatever the outcome.
func (t *Transcriber) Transcribe(ctx context.Context, asset domain.StagedAsset) (string, error) {
	const op = "transcribe"
	defer t.stager.Release(ctx, asset)

	if asset.State != domain.FileStateActive {
		return "", domain.E(domain.KindBadInput, op, "asset "+asset.Name+" is not ready", nil)
	}

	parts := []Part{
		{Text: transcribeInstruction},
		{FileData: &FileData{MIMEType: asset.MIMEType, FileURI: asset.URI}},
	}

	t.log.Info("requesting transcription", "model", t.model, "asset", asset.Name)

	resp, err := t.gen.GenerateContent(ctx, t.model, parts)
	if err != nil {
		if errors.Is(err, ErrMalformedResponse) {
			return "", domain.E(domain.KindMalformedResponse, op, "unparseable transcription response", err)
		}
		return "", domain.E(generationKind(err), op, "transcription call failed", err)
	}

	text, err := resp.FirstText()
	if err != nil {
		return "", domain.E(domain.KindMalformedResponse, op, "unparseable transcription response", err)
	}

	text = strings.TrimSpace(text)
	if text == "" {
		return "", domain.E(domain.KindEmptyResult, op, "the model returned an empty transcript", nil)
	}

	t.log.Info("transcription complete", "chars", len(text))
	return text, nil
}

func generationKind(err error) domain.Kind {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.NotFound() {
		return domain.KindModelUnavailable
	}
	return remoteKind(err, domain.KindGenerationFailed)
}
