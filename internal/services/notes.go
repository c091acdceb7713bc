package services

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"transcripto/internal/config"
	"transcripto/internal/domain"
)

const notesInstruction = `Review the transcript of the recording below and turn it into clear, well organised notes that reflect exactly what was said.
Structure the notes with headings, bullet points and sections that highlight key topics, decisions, names, dates and action items.
Add timestamps where they help connect a note to the recording. Keep the notes concise but informative and professional in tone.
Finish with a brief summary of the most important points and takeaways.`

// NoteSaver persists a rendered document under a title and returns its path.
type NoteSaver interface {
	Save(title string, write func(w io.Writer) error) (string, error)
}

type NotesRequest struct {
	Transcript string
	Template   string
	Prompt     string
	Title      string
}

// Notes turns transcripts into stored note documents.
type Notes struct {
	gen      TextGenerator
	model    string
	renderer DocumentRenderer
	store    NoteSaver
	log      *log.Logger

	Now func() time.Time
}

func NewNotes(cfg config.Config, gen TextGenerator, renderer DocumentRenderer, store NoteSaver, logger *log.Logger) *Notes {
	return &Notes{
		gen:      gen,
		model:    cfg.ModelNotes,
		renderer: renderer,
		store:    store,
		log:      logger,
		Now:      time.Now,
	}
}

func (n *Notes) Synthesize(ctx context.Context, req NotesRequest) (domain.NoteResult, error) {
	const op = "synthesize"

	if strings.TrimSpace(req.Transcript) == "" {
		return domain.NoteResult{}, domain.E(domain.KindBadInput, op, "no transcript to generate notes from", nil)
	}

	prompt := BuildNotesPrompt(req.Transcript, req.Template, req.Prompt)

	n.log.Info("generating structured notes", "model", n.model, "template", req.Template != "")

	text, err := n.gen.Generate(ctx, n.model, prompt)
	if err != nil {
		kind := textErrorKind(err)
		msg := "note generation call failed"
		if kind == domain.KindModelUnavailable {
			msg = "the AI model specified is incorrect or unavailable"
		}
		return domain.NoteResult{}, domain.E(kind, op, msg, err)
	}

	title := SanitizeTitle(req.Title, n.Now())
	doc := RenderNotes(title, text)

	path, err := n.store.Save(title, func(w io.Writer) error {
		return n.renderer.Render(doc, w)
	})
	if err != nil {
		return domain.NoteResult{}, domain.E(domain.KindPersistFailed, op, "failed to save notes document", err)
	}

	n.log.Info("notes generated", "title", title, "path", path)
	return domain.NoteResult{Title: title, DocumentPath: path}, nil
}

// BuildNotesPrompt appends either the style template or, when there is no
// template, the user's prompt.
func BuildNotesPrompt(transcript, template, userPrompt string) string {
	var b strings.Builder
	b.WriteString(notesInstruction)
	b.WriteString("\n\nTranscript:\n")
	b.WriteString(transcript)

	switch {
	case strings.TrimSpace(template) != "":
		fmt.Fprintf(&b, "\n\nUse this note style template: %s.", template)
	case strings.TrimSpace(userPrompt) != "":
		fmt.Fprintf(&b, "\n\nUser's prompt: %s", userPrompt)
	}
	return b.String()
}

var titleStrip = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\-]`)

// SanitizeTitle makes custom safe for use as a filename. An empty result
// falls back to a timestamped name.
func SanitizeTitle(custom string, now time.Time) string {
	title := titleStrip.ReplaceAllString(strings.ReplaceAll(strings.TrimSpace(custom), " ", "-"), "")
	if title == "" {
		title = "AI_Notes_" + now.UTC().Format("20060102150405")
	}
	return title
}

// HumanizeTitle turns a stored title back into display text.
func HumanizeTitle(title string) string {
	return strings.NewReplacer("_", " ", "-", " ").Replace(title)
}

// RenderNotes splits generated text into a heading plus bullet and paragraph
// lines. Blank lines are dropped.
func RenderNotes(title, text string) domain.NoteDocument {
	doc := domain.NoteDocument{
		Title: title,
		Lines: []domain.NoteLine{{Style: domain.LineHeading, Text: HumanizeTitle(title)}},
	}

	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
			continue
		case strings.HasPrefix(line, "•"), strings.HasPrefix(line, "-"):
			doc.Lines = append(doc.Lines, domain.NoteLine{Style: domain.LineBullet, Text: line})
		default:
			doc.Lines = append(doc.Lines, domain.NoteLine{Style: domain.LineParagraph, Text: line})
		}
	}
	return doc
}
