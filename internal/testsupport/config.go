package testsupport

import (
	"path/filepath"
	"testing"
	"time"

	"transcripto/internal/config"
)

// ConfigOption customises the generated test configuration.
type ConfigOption func(*config.Config)

// NewConfig returns a config rooted in a fresh temp directory with short
// poll timings and a test credential.
func NewConfig(t testing.TB, opts ...ConfigOption) config.Config {
	t.Helper()

	base := t.TempDir()
	cfg := config.Config{
		Port:                "0",
		GeminiAPIKey:        "test-key-0123456789",
		GeminiBaseURL:       config.DefaultGeminiBaseURL,
		GeminiOpenAIBaseURL: config.DefaultGeminiOpenAIBaseURL,
		ModelTranscribe:     "gemini-test",
		ModelNotes:          "gemini-test",
		ModelChat:           "gemini-test",
		MaxUploadBytes:      1 * 1024 * 1024,
		DataDir:             base,
		UploadDir:           filepath.Join(base, "uploads"),
		NotesDir:            filepath.Join(base, "generated_docs"),
		ProfilePath:         filepath.Join(base, "user_profile.json"),
		StaticDir:           filepath.Join(base, "static"),
		PollInterval:        10 * time.Millisecond,
		PollTimeout:         time.Second,
		RequestTimeout:      10 * time.Second,
		LogLevel:            "error",
	}

	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// WithoutAPIKey clears the credential.
func WithoutAPIKey() ConfigOption {
	return func(cfg *config.Config) {
		cfg.GeminiAPIKey = ""
	}
}

// WithGemini points both remote endpoints at a fake server.
func WithGemini(fake *FakeGemini) ConfigOption {
	return func(cfg *config.Config) {
		cfg.GeminiBaseURL = fake.URL()
		cfg.GeminiOpenAIBaseURL = fake.URL() + "/v1beta/openai"
		cfg.GeminiAPIKey = fake.APIKey
	}
}
