package parse

import (
	"context"
	"fmt"
	"io"

	"docpipe/internal/pkg/pdfextract"
)

// PDFParser extracts plain text from PDF files.
type PDFParser struct{}

func NewPDFParser() *PDFParser {
	return &PDFParser{}
}

func (p *PDFParser) Parse(_ context.Context, r io.Reader) (string, error) {
	text, err := pdfextract.ExtractText(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnsupportedFormat, err)
	}
	return text, nil
}

func (p *PDFParser) Extensions() []string {
	return []string{".pdf"}
}
