package services

import (
	"fmt"
	"io"
	"strings"

	"github.com/jung-kurt/gofpdf/v2"

	"transcripto/internal/domain"
)

// DocumentRenderer writes a note document in its stored format.
type DocumentRenderer interface {
	Render(doc domain.NoteDocument, w io.Writer) error
}

type PDFService struct{}

func NewPDFService() *PDFService {
	return &PDFService{}
}

func (s *PDFService) Render(doc domain.NoteDocument, w io.Writer) error {
	pdf := gofpdf.New("P", "mm", "A4", "")
	pdf.SetTitle(doc.Title, true)
	pdf.SetAuthor("transcripto", false)
	pdf.SetMargins(20, 20, 20)
	pdf.SetAutoPageBreak(true, 20)
	pdf.AddPage()

	// Core fonts are cp1252; bullets and accented text need translating.
	tr := pdf.UnicodeTranslatorFromDescriptor("")

	for _, line := range doc.Lines {
		switch line.Style {
		case domain.LineHeading:
			pdf.SetFont("Helvetica", "B", 18)
			pdf.MultiCell(0, 9, tr(line.Text), "", "L", false)
			pdf.Ln(4)
		case domain.LineBullet:
			pdf.SetFont("Helvetica", "", 11)
			pdf.SetX(pdf.GetX() + 6)
			pdf.MultiCell(0, 6, tr(bulletText(line.Text)), "", "L", false)
			pdf.Ln(1)
		default:
			pdf.SetFont("Helvetica", "", 11)
			pdf.MultiCell(0, 6, tr(line.Text), "", "L", false)
			pdf.Ln(2)
		}
	}

	if err := pdf.Output(w); err != nil {
		return fmt.Errorf("write pdf: %w", err)
	}
	return nil
}

// bulletText normalises "-" and "•" markers to a single bullet glyph.
func bulletText(text string) string {
	text = strings.TrimSpace(text)
	text = strings.TrimPrefix(text, "•")
	text = strings.TrimPrefix(text, "-")
	return "• " + strings.TrimSpace(text)
}
