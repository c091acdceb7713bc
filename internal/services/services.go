package services

import (
	"github.com/charmbracelet/log"

	"transcripto/internal/config"
)

// Suite bundles the remote-model services built from one Config.
type Suite struct {
	Gemini      *GeminiClient
	Text        *OpenAIService
	Stager      *Stager
	Transcriber *Transcriber
	Notes       *Notes
	Chat        *Chat
}

func NewSuite(cfg config.Config, notes NoteSaver, logger *log.Logger) *Suite {
	gemini := NewGeminiClient(cfg)
	text := NewOpenAIService(cfg)
	stager := NewStager(cfg, gemini, logger)

	return &Suite{
		Gemini:      gemini,
		Text:        text,
		Stager:      stager,
		Transcriber: NewTranscriber(cfg, stager, gemini, logger),
		Notes:       NewNotes(cfg, text, NewPDFService(), notes, logger),
		Chat:        NewChat(cfg, text, logger),
	}
}
