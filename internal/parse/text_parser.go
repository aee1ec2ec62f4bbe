package parse

import (
	"context"
	"fmt"
	"io"
	"unicode/utf8"
)

// TextParser accepts UTF-8 plain text files.
type TextParser struct{}

func NewTextParser() *TextParser {
	return &TextParser{}
}

func (p *TextParser) Parse(_ context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("read text file failed: %w", err)
	}
	if !utf8.Valid(data) {
		return "", fmt.Errorf("%w: not valid utf-8", ErrUnsupportedFormat)
	}
	return string(data), nil
}

func (p *TextParser) Extensions() []string {
	return []string{".txt", ".md", ".log", ".csv"}
}
