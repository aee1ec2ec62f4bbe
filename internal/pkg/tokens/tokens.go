// Package tokens counts model tokens for chunk budgeting.
package tokens

import (
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter reports how many model tokens a text consumes.
type Counter interface {
	Count(text string) int
}

// TiktokenCounter counts with a real BPE encoding.
type TiktokenCounter struct {
	enc *tiktoken.Tiktoken
}

// NewTiktokenCounter loads the named encoding (e.g. "cl100k_base").
func NewTiktokenCounter(encoding string) (*TiktokenCounter, error) {
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		return nil, err
	}
	return &TiktokenCounter{enc: enc}, nil
}

func (c *TiktokenCounter) Count(text string) int {
	return len(c.enc.Encode(text, nil, nil))
}

// HeuristicCounter approximates tokens as runes/4 (minimum 1 for
// non-empty text). Used when the BPE files are unavailable, e.g.
// offline environments and tests.
type HeuristicCounter struct{}

func (HeuristicCounter) Count(text string) int {
	if text == "" {
		return 0
	}
	n := utf8.RuneCountInString(text) / 4
	if n < 1 {
		n = 1
	}
	return n
}

// NewCounter returns a tiktoken-backed counter, falling back to the
// heuristic when the encoding cannot be loaded.
func NewCounter(encoding string) Counter {
	if c, err := NewTiktokenCounter(encoding); err == nil {
		return c
	}
	return HeuristicCounter{}
}
