package services

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"transcripto/internal/config"
	"transcripto/internal/domain"
)

const chatSystemPrompt = "You are a friendly AI assistant for Transcripto. Your task is to process user requests, summarize notes, and pull action items. Be concise and helpful."

// Chat answers free-form questions. An attached note is referenced by title
// only; its content is not loaded.
type Chat struct {
	gen   TextGenerator
	model string
	log   *log.Logger
}

func NewChat(cfg config.Config, gen TextGenerator, logger *log.Logger) *Chat {
	return &Chat{gen: gen, model: cfg.ModelChat, log: logger}
}

func (c *Chat) Reply(ctx context.Context, message, attachedNote string) (string, error) {
	const op = "chat"

	message = strings.TrimSpace(message)
	if message == "" {
		return "", domain.E(domain.KindBadInput, op, "empty message", nil)
	}

	reply, err := c.gen.Generate(ctx, c.model, BuildChatPrompt(message, attachedNote))
	if err != nil {
		return "", domain.E(textErrorKind(err), op, "AI chat request failed", err)
	}

	c.log.Debug("chat reply", "chars", len(reply), "attached", attachedNote != "")
	return reply, nil
}

func BuildChatPrompt(message, attachedNote string) string {
	if strings.TrimSpace(attachedNote) == "" {
		return fmt.Sprintf("%s\n\nUSER: %s", chatSystemPrompt, message)
	}
	return fmt.Sprintf("%s\n\nCONTEXT: The user has attached the note titled '%s'. Analyze the note to answer the question.\n\nUSER: %s",
		chatSystemPrompt, attachedNote, message)
}
