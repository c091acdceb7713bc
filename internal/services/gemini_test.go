package services

import (
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcripto/internal/domain"
	"transcripto/internal/logging"
	"transcripto/internal/testsupport"
)

func TestGeminiClientFileLifecycle(t *testing.T) {
	fake := testsupport.NewFakeGemini(t)
	cfg := testsupport.NewConfig(t, testsupport.WithGemini(fake))
	client := NewGeminiClient(cfg)
	ctx := context.Background()

	path := writeAudio(t, "talk.mp3")
	asset, err := client.UploadFile(ctx, path, "audio/mp3")
	require.NoError(t, err)

	assert.Equal(t, "files/f1", asset.Name)
	assert.Equal(t, domain.FileStatePending, asset.State)
	assert.Equal(t, "audio/mp3", fake.UploadMIME())
	assert.Equal(t, len("ID3 fake audio"), fake.UploadedBytes())

	current, err := client.GetFile(ctx, asset.Name)
	require.NoError(t, err)
	assert.Equal(t, domain.FileStateActive, current.State)
	assert.Equal(t, fake.URL()+"/v1beta/files/f1", current.URI)

	require.NoError(t, client.DeleteFile(ctx, asset.Name))
	assert.Equal(t, []string{"files/f1"}, fake.Deletes())
}

func TestGeminiClientGenerateContent(t *testing.T) {
	fake := testsupport.NewFakeGemini(t)
	fake.Transcript = "hello from the fake"
	client := NewGeminiClient(testsupport.NewConfig(t, testsupport.WithGemini(fake)))

	resp, err := client.GenerateContent(context.Background(), "models/gemini-test", []Part{{Text: "hi"}})
	require.NoError(t, err)

	text, err := resp.FirstText()
	require.NoError(t, err)
	assert.Equal(t, "hello from the fake", text)
}

func TestGeminiClientErrors(t *testing.T) {
	t.Run("invalid key", func(t *testing.T) {
		fake := testsupport.NewFakeGemini(t)
		cfg := testsupport.NewConfig(t, testsupport.WithGemini(fake))
		cfg.GeminiAPIKey = "wrong-key"
		client := NewGeminiClient(cfg)

		_, err := client.GetFile(context.Background(), "files/f1")
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.Unauthorized())
		assert.Equal(t, "API_KEY_INVALID", apiErr.Reason)
		assert.Equal(t, domain.KindUnauthorized, remoteKind(err, domain.KindStatusUnavailable))
	})

	t.Run("missing key", func(t *testing.T) {
		cfg := testsupport.NewConfig(t, testsupport.WithoutAPIKey())
		client := NewGeminiClient(cfg)

		_, err := client.UploadFile(context.Background(), writeAudio(t, "a.mp3"), "audio/mp3")
		assert.Equal(t, domain.KindUnauthorized, domain.KindOf(err))
	})

	t.Run("model not found", func(t *testing.T) {
		fake := testsupport.NewFakeGemini(t)
		fake.GenerateStatus = http.StatusNotFound
		client := NewGeminiClient(testsupport.NewConfig(t, testsupport.WithGemini(fake)))

		_, err := client.GenerateContent(context.Background(), "nope", nil)
		var apiErr *APIError
		require.True(t, errors.As(err, &apiErr))
		assert.True(t, apiErr.NotFound())
		assert.Equal(t, domain.KindModelUnavailable, generationKind(err))
	})
}

func TestTranscribeFileAgainstFakeGemini(t *testing.T) {
	fake := testsupport.NewFakeGemini(t)
	fake.States = []string{"PROCESSING", "ACTIVE"}
	cfg := testsupport.NewConfig(t, testsupport.WithGemini(fake))

	client := NewGeminiClient(cfg)
	stager := NewStager(cfg, client, logging.Discard())
	tr := NewTranscriber(cfg, stager, client, logging.Discard())

	text, err := tr.TranscribeFile(context.Background(), writeAudio(t, "talk.webm"))
	require.NoError(t, err)

	assert.Equal(t, fake.Transcript, text)
	assert.Equal(t, "audio/webm", fake.UploadMIME())
	assert.Equal(t, 1, fake.GenerateCalls())
	assert.Equal(t, []string{"files/f1"}, fake.Deletes())
}

func TestOpenAIServiceGenerate(t *testing.T) {
	fake := testsupport.NewFakeGemini(t)
	fake.Notes = "  the notes \n"
	svc := NewOpenAIService(testsupport.NewConfig(t, testsupport.WithGemini(fake)))

	out, err := svc.Generate(context.Background(), "gemini-test", "make notes")
	require.NoError(t, err)
	assert.Equal(t, "the notes", out)
	assert.Equal(t, []string{"make notes"}, fake.ChatPrompts())
}

func TestOpenAIServiceErrors(t *testing.T) {
	t.Run("unknown model", func(t *testing.T) {
		fake := testsupport.NewFakeGemini(t)
		fake.ChatStatus = http.StatusNotFound
		svc := NewOpenAIService(testsupport.NewConfig(t, testsupport.WithGemini(fake)))

		_, err := svc.Generate(context.Background(), "nope", "x")
		require.Error(t, err)
		assert.Equal(t, domain.KindModelUnavailable, textErrorKind(err))
	})

	t.Run("bad key", func(t *testing.T) {
		fake := testsupport.NewFakeGemini(t)
		cfg := testsupport.NewConfig(t, testsupport.WithGemini(fake))
		cfg.GeminiAPIKey = "wrong-key"
		svc := NewOpenAIService(cfg)

		_, err := svc.Generate(context.Background(), "gemini-test", "x")
		require.Error(t, err)
		assert.Equal(t, domain.KindUnauthorized, textErrorKind(err))
	})

	t.Run("missing key", func(t *testing.T) {
		svc := NewOpenAIService(testsupport.NewConfig(t, testsupport.WithoutAPIKey()))

		_, err := svc.Generate(context.Background(), "gemini-test", "x")
		assert.Equal(t, domain.KindUnauthorized, textErrorKind(err))
	})
}
