package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

const (
	DefaultGeminiBaseURL       = "https://generativelanguage.googleapis.com"
	DefaultGeminiOpenAIBaseURL = "https://generativelanguage.googleapis.com/v1beta/openai"
	DefaultModel               = "gemini-2.5-flash"
)

type Config struct {
	Port                string
	GeminiAPIKey        string
	GeminiBaseURL       string
	GeminiOpenAIBaseURL string
	ModelTranscribe     string
	ModelNotes          string
	ModelChat           string
	MaxUploadBytes      int64
	DataDir             string
	UploadDir           string
	NotesDir            string
	ProfilePath         string
	StaticDir           string
	PollInterval        time.Duration
	PollTimeout         time.Duration
	RequestTimeout      time.Duration
	LogLevel            string
	AllowedOrigins      []string
}

// fileConfig mirrors Config for the optional TOML file. Zero values mean
// "not set".
type fileConfig struct {
	Port                  string   `toml:"port"`
	GeminiAPIKey          string   `toml:"gemini_api_key"`
	GeminiBaseURL         string   `toml:"gemini_base_url"`
	GeminiOpenAIBaseURL   string   `toml:"gemini_openai_base_url"`
	ModelTranscribe       string   `toml:"model_transcribe"`
	ModelNotes            string   `toml:"model_notes"`
	ModelChat             string   `toml:"model_chat"`
	MaxUploadMB           int64    `toml:"max_upload_mb"`
	DataDir               string   `toml:"data_dir"`
	UploadDir             string   `toml:"upload_dir"`
	NotesDir              string   `toml:"notes_dir"`
	ProfilePath           string   `toml:"profile_path"`
	StaticDir             string   `toml:"static_dir"`
	PollIntervalSeconds   int64    `toml:"poll_interval_seconds"`
	PollTimeoutSeconds    int64    `toml:"poll_timeout_seconds"`
	RequestTimeoutSeconds int64    `toml:"request_timeout_seconds"`
	LogLevel              string   `toml:"log_level"`
	AllowedOrigins        []string `toml:"allowed_origins"`
}

// LoadConfig builds the configuration from the optional TOML file named by
// TRANSCRIPTO_CONFIG, then applies environment overrides.
func LoadConfig() (Config, error) {
	file, err := readFile(os.Getenv("TRANSCRIPTO_CONFIG"))
	if err != nil {
		return Config{}, err
	}

	cfg := Config{}

	cfg.Port = envOrDefault("PORT", or(file.Port, "5000"))
	cfg.GeminiAPIKey = strings.TrimSpace(envOrDefault("GEMINI_API_KEY", file.GeminiAPIKey))
	cfg.GeminiBaseURL = envOrDefault("GEMINI_BASE_URL", or(file.GeminiBaseURL, DefaultGeminiBaseURL))
	cfg.GeminiOpenAIBaseURL = envOrDefault("GEMINI_OPENAI_BASE_URL", or(file.GeminiOpenAIBaseURL, DefaultGeminiOpenAIBaseURL))
	cfg.ModelTranscribe = envOrDefault("GEMINI_MODEL_TRANSCRIBE", or(file.ModelTranscribe, DefaultModel))
	cfg.ModelNotes = envOrDefault("GEMINI_MODEL_NOTES", or(file.ModelNotes, DefaultModel))
	cfg.ModelChat = envOrDefault("GEMINI_MODEL_CHAT", or(file.ModelChat, DefaultModel))
	cfg.LogLevel = envOrDefault("LOG_LEVEL", or(file.LogLevel, "info"))

	cfg.DataDir = envOrDefault("DATA_DIR", or(file.DataDir, "."))
	cfg.UploadDir = envOrDefault("UPLOAD_DIR", or(file.UploadDir, filepath.Join(cfg.DataDir, "uploads")))
	cfg.NotesDir = envOrDefault("NOTES_DIR", or(file.NotesDir, filepath.Join(cfg.DataDir, "generated_docs")))
	cfg.ProfilePath = envOrDefault("PROFILE_PATH", or(file.ProfilePath, filepath.Join(cfg.DataDir, "user_profile.json")))
	cfg.StaticDir = envOrDefault("STATIC_DIR", or(file.StaticDir, "."))

	maxUploadMB, err := parseIntEnv("MAX_UPLOAD_MB", orInt(file.MaxUploadMB, 50))
	if err != nil {
		return Config{}, fmt.Errorf("parse MAX_UPLOAD_MB: %w", err)
	}
	cfg.MaxUploadBytes = maxUploadMB * 1024 * 1024

	pollInterval, err := parseIntEnv("POLL_INTERVAL_SECONDS", orInt(file.PollIntervalSeconds, 2))
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_INTERVAL_SECONDS: %w", err)
	}
	cfg.PollInterval = time.Duration(pollInterval) * time.Second

	pollTimeout, err := parseIntEnv("POLL_TIMEOUT_SECONDS", orInt(file.PollTimeoutSeconds, 120))
	if err != nil {
		return Config{}, fmt.Errorf("parse POLL_TIMEOUT_SECONDS: %w", err)
	}
	cfg.PollTimeout = time.Duration(pollTimeout) * time.Second

	reqTimeout, err := parseIntEnv("REQUEST_TIMEOUT_SECONDS", orInt(file.RequestTimeoutSeconds, 600))
	if err != nil {
		return Config{}, fmt.Errorf("parse REQUEST_TIMEOUT_SECONDS: %w", err)
	}
	cfg.RequestTimeout = time.Duration(reqTimeout) * time.Second

	cfg.AllowedOrigins = file.AllowedOrigins
	if origins := envOrDefault("ALLOWED_ORIGINS", ""); origins != "" {
		cfg.AllowedOrigins = splitList(origins)
	}

	for _, dir := range []*string{&cfg.DataDir, &cfg.UploadDir, &cfg.NotesDir, &cfg.ProfilePath, &cfg.StaticDir} {
		abs, err := filepath.Abs(*dir)
		if err != nil {
			return Config{}, fmt.Errorf("resolve path %s: %w", *dir, err)
		}
		*dir = abs
	}

	return cfg, nil
}

// HasAPIKey reports whether the remote-service credential is configured.
func (c Config) HasAPIKey() bool {
	return c.GeminiAPIKey != ""
}

// MaskedAPIKey returns the credential in a form that is safe to log.
func (c Config) MaskedAPIKey() string {
	key := c.GeminiAPIKey
	switch {
	case key == "":
		return "<missing>"
	case len(key) > 10:
		return key[:6] + "..." + key[len(key)-4:]
	default:
		return "<set>"
	}
}

func readFile(path string) (fileConfig, error) {
	var fc fileConfig
	path = strings.TrimSpace(path)
	if path == "" {
		return fc, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return fc, fmt.Errorf("config file %s not found", path)
	}
	if err != nil {
		return fc, fmt.Errorf("read config file: %w", err)
	}

	if err := toml.Unmarshal(data, &fc); err != nil {
		return fc, fmt.Errorf("parse config file %s: %w", path, err)
	}
	return fc, nil
}

func envOrDefault(key, fallback string) string {
	if val, ok := os.LookupEnv(key); ok && val != "" {
		return val
	}
	return fallback
}

func parseIntEnv(key string, fallback int64) (int64, error) {
	value := envOrDefault(key, "")
	if value == "" {
		return fallback, nil
	}

	num, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return 0, err
	}
	if num <= 0 {
		return 0, fmt.Errorf("must be positive, got %d", num)
	}
	return num, nil
}

func or(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return value
	}
	return fallback
}

func orInt(value, fallback int64) int64 {
	if value > 0 {
		return value
	}
	return fallback
}

func splitList(value string) []string {
	var out []string
	for _, item := range strings.Split(value, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	return out
}
