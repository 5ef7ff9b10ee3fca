package extractor

import (
	"context"
	"testing"

	"github.com/kirillkom/corpus-qa/internal/core/domain"
)

type namedExtractor struct {
	name string
}

func (e *namedExtractor) Extract(context.Context, *domain.Document) (string, error) {
	return e.name, nil
}

func TestSelectorPicksByMimeAndExtension(t *testing.T) {
	selector := &Selector{
		plain: &namedExtractor{name: "plain"},
		pdf:   &namedExtractor{name: "pdf"},
		sheet: &namedExtractor{name: "sheet"},
	}

	cases := []struct {
		mime     string
		filename string
		want     string
	}{
		{"application/pdf", "report.bin", "pdf"},
		{"application/octet-stream", "report.PDF", "pdf"},
		{"application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", "data.bin", "sheet"},
		{"", "metrics.xlsx", "sheet"},
		{"", "macro.XLSM", "sheet"},
		{"text/plain", "notes.txt", "plain"},
		{"", "readme.md", "plain"},
	}

	for _, tc := range cases {
		doc := &domain.Document{MimeType: tc.mime, Filename: tc.filename}
		got, err := selector.Extract(context.Background(), doc)
		if err != nil {
			t.Fatalf("Extract(%s, %s) error = %v", tc.mime, tc.filename, err)
		}
		if got != tc.want {
			t.Fatalf("Extract(%s, %s) routed to %s, want %s", tc.mime, tc.filename, got, tc.want)
		}
	}
}
