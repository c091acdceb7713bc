package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	openai "github.com/sashabaranov/go-openai"

	"transcripto/internal/config"
	"transcripto/internal/domain"
)

// TextGenerator produces text from a single prompt.
type TextGenerator interface {
	Generate(ctx context.Context, model, prompt string) (string, error)
}

// OpenAIService drives Gemini through its OpenAI-compatible chat endpoint.
type OpenAIService struct {
	apiKey string
	client *openai.Client
}

func NewOpenAIService(cfg config.Config) *OpenAIService {
	oc := openai.DefaultConfig(cfg.GeminiAPIKey)
	oc.BaseURL = strings.TrimRight(cfg.GeminiOpenAIBaseURL, "/")
	oc.HTTPClient = &http.Client{Timeout: cfg.RequestTimeout}

	return &OpenAIService{
		apiKey: cfg.GeminiAPIKey,
		client: openai.NewClientWithConfig(oc),
	}
}

func (s *OpenAIService) Generate(ctx context.Context, model, prompt string) (string, error) {
	if s.apiKey == "" {
		return "", domain.E(domain.KindUnauthorized, "generate", "GEMINI_API_KEY is missing or not set", nil)
	}

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleUser, Content: prompt},
		},
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no choices returned", ErrMalformedResponse)
	}

	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}

// textErrorKind classifies a TextGenerator failure by the remote status code.
func textErrorKind(err error) domain.Kind {
	if domain.KindOf(err) == domain.KindUnauthorized {
		return domain.KindUnauthorized
	}
	if errors.Is(err, ErrMalformedResponse) {
		return domain.KindMalformedResponse
	}

	status := 0
	var apiErr *openai.APIError
	var reqErr *openai.RequestError
	switch {
	case errors.As(err, &apiErr):
		status = apiErr.HTTPStatusCode
	case errors.As(err, &reqErr):
		status = reqErr.HTTPStatusCode
	}

	switch status {
	case http.StatusUnauthorized, http.StatusForbidden:
		return domain.KindUnauthorized
	case http.StatusNotFound:
		return domain.KindModelUnavailable
	}
	return domain.KindGenerationFailed
}
