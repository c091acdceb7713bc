package services

import (
	"context"
	"encoding/json"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"transcripto/internal/domain"
	"transcripto/internal/logging"
)

func generateResponse(t *testing.T, raw string) GenerateResponse {
	t.Helper()
	var resp GenerateResponse
	require.NoError(t, json.Unmarshal([]byte(raw), &resp))
	return resp
}

func newTestTranscriber(files *fakeFiles, gen ContentGenerator) *Transcriber {
	stager, _ := newTestStager(files)
	return NewTranscriber(testConfig(), stager, gen, logging.Discard())
}

func TestTranscribeFileSuccess(t *testing.T) {
	files := &fakeFiles{states: []domain.FileState{domain.FileStateActive}}
	gen := &fakeGenerator{resp: generateResponse(t, `{"candidates":[{"content":{"parts":[{"text":"  Hello there.  \n"}]}}]}`)}
	tr := newTestTranscriber(files, gen)

	text, err := tr.TranscribeFile(context.Background(), writeAudio(t, "talk.mp3"))
	require.NoError(t, err)

	assert.Equal(t, "Hello there.", text)
	assert.Equal(t, 1, gen.calls)
	assert.Equal(t, []string{"files/abc"}, files.deletes)

	require.Len(t, gen.parts, 2)
	assert.Equal(t, transcribeInstruction, gen.parts[0].Text)
	require.NotNil(t, gen.parts[1].FileData)
	assert.Equal(t, "https://files.test/abc", gen.parts[1].FileData.FileURI)
	assert.Equal(t, "audio/mp3", gen.parts[1].FileData.MIMEType)
}

func TestTranscribeDeletesAssetExactlyOnce(t *testing.T) {
	cases := []struct {
		name string
		gen  *fakeGenerator
		kind domain.Kind
	}{
		{
			name: "generation failure",
			gen:  &fakeGenerator{err: errBoom},
			kind: domain.KindGenerationFailed,
		},
		{
			name: "malformed body",
			gen:  &fakeGenerator{err: fmt.Errorf("%w: decode", ErrMalformedResponse)},
			kind: domain.KindMalformedResponse,
		},
		{
			name: "no candidates",
			gen:  &fakeGenerator{resp: GenerateResponse{}},
			kind: domain.KindMalformedResponse,
		},
		{
			name: "empty text",
			gen:  &fakeGenerator{resp: generateResponse(t, `{"candidates":[{"content":{"parts":[{"text":"   "}]}}]}`)},
			kind: domain.KindEmptyResult,
		},
		{
			name: "model missing",
			gen:  &fakeGenerator{err: &APIError{StatusCode: 404, Status: "NOT_FOUND", Message: "models/x is not found"}},
			kind: domain.KindModelUnavailable,
		},
		{
			name: "key rejected",
			gen:  &fakeGenerator{err: &APIError{StatusCode: 403, Status: "PERMISSION_DENIED", Message: "denied"}},
			kind: domain.KindUnauthorized,
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			files := &fakeFiles{states: []domain.FileState{domain.FileStateActive}}
			tr := newTestTranscriber(files, tc.gen)

			_, err := tr.TranscribeFile(context.Background(), writeAudio(t, "talk.wav"))
			require.Error(t, err)
			assert.Equal(t, tc.kind, domain.KindOf(err))
			assert.Equal(t, []string{"files/abc"}, files.deletes)
		})
	}
}

func TestTranscribeDeleteFailureDoesNotFailResult(t *testing.T) {
	files := &fakeFiles{states: []domain.FileState{domain.FileStateActive}, deleteErr: errBoom}
	gen := &fakeGenerator{resp: generateResponse(t, `{"candidates":[{"content":{"parts":[{"text":"ok"}]}}]}`)}
	tr := newTestTranscriber(files, gen)

	text, err := tr.TranscribeFile(context.Background(), writeAudio(t, "talk.mp3"))
	require.NoError(t, err)
	assert.Equal(t, "ok", text)
	assert.Len(t, files.deletes, 1)
}

func TestTranscribeStagingFailureSkipsGeneration(t *testing.T) {
	files := &fakeFiles{states: []domain.FileState{domain.FileStateFailed}}
	gen := &fakeGenerator{}
	tr := newTestTranscriber(files, gen)

	_, err := tr.TranscribeFile(context.Background(), writeAudio(t, "talk.mp3"))
	require.Error(t, err)
	assert.Equal(t, domain.KindProcessingFailed, domain.KindOf(err))
	assert.Zero(t, gen.calls)
	// Deleted by the stager only.
	assert.Len(t, files.deletes, 1)
}
