package extractor

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
	"github.com/kirillkom/corpus-qa/internal/core/ports"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/corpus-qa/internal/infrastructure/extractor/spreadsheet"
)

// Selector routes a document to the extractor matching its mime type,
// falling back to the filename extension and then to plain text.
type Selector struct {
	plain ports.TextExtractor
	pdf   ports.TextExtractor
	sheet ports.TextExtractor
}

func NewSelector(storage ports.ObjectStorage) *Selector {
	return &Selector{
		plain: plaintext.NewExtractor(storage),
		pdf:   pdf.NewExtractor(storage),
		sheet: spreadsheet.NewExtractor(storage),
	}
}

func (s *Selector) Extract(ctx context.Context, doc *domain.Document) (string, error) {
	return s.pick(doc).Extract(ctx, doc)
}

func (s *Selector) pick(doc *domain.Document) ports.TextExtractor {
	mime := strings.ToLower(doc.MimeType)
	ext := strings.ToLower(filepath.Ext(doc.Filename))

	switch {
	case mime == "application/pdf" || ext == ".pdf":
		return s.pdf
	case strings.Contains(mime, "spreadsheetml") || ext == ".xlsx" || ext == ".xlsm":
		return s.sheet
	default:
		return s.plain
	}
}
