// Package parse turns raw uploaded bytes into plain text. Parsers are
// selected by file extension; unsupported or undecodable content is a
// permanent failure, never retried.
package parse

import (
	"context"
	"errors"
	"io"
)

var (
	ErrUnsupportedFormat = errors.New("unsupported document format")
	ErrNoText            = errors.New("document contains no extractable text")
)

type Parser interface {
	Parse(ctx context.Context, r io.Reader) (string, error)
	Extensions() []string
}
