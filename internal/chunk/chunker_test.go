package chunk

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"docpipe/internal/pkg/tokens"
)

func TestChunker_Deterministic(t *testing.T) {
	c := NewChunker(10, 2, tokens.HeuristicCounter{})
	text := strings.Repeat("abcdefghij", 5)

	first := c.Split(text)
	second := c.Split(text)

	assert.Equal(t, first, second, "re-chunking the same text must be identical")
}

func TestChunker_OrdinalsAndOverlap(t *testing.T) {
	c := NewChunker(4, 1, tokens.HeuristicCounter{})

	pieces := c.Split("abcdefgh")
	require.NotEmpty(t, pieces)

	for i, p := range pieces {
		assert.Equal(t, i, p.Ordinal)
		assert.NotEmpty(t, p.Text)
		assert.Greater(t, p.TokenCount, 0)
	}
	// stride is size-overlap = 3
	assert.Equal(t, "abcd", pieces[0].Text)
	assert.Equal(t, "defg", pieces[1].Text)
}

func TestChunker_ShortText(t *testing.T) {
	c := NewChunker(512, 64, tokens.HeuristicCounter{})

	pieces := c.Split("tiny")
	require.Len(t, pieces, 1)
	assert.Equal(t, 0, pieces[0].Ordinal)
	assert.Equal(t, "tiny", pieces[0].Text)
}

func TestChunker_EmptyText(t *testing.T) {
	c := NewChunker(512, 64, tokens.HeuristicCounter{})
	assert.Empty(t, c.Split(""))
	assert.Empty(t, c.Split("   \n\t  "))
}

func TestChunker_CoversAllText(t *testing.T) {
	c := NewChunker(8, 0, tokens.HeuristicCounter{})
	text := "the quick brown fox jumps over the lazy dog"

	var rebuilt strings.Builder
	for _, p := range c.Split(text) {
		rebuilt.WriteString(p.Text)
	}
	assert.Equal(t, text, rebuilt.String(), "zero overlap chunks concatenate to the input")
}

func TestNewChunker_SanitizesParams(t *testing.T) {
	c := NewChunker(-1, 0, nil)
	pieces := c.Split("hello")
	require.Len(t, pieces, 1)

	// overlap >= size collapses to size/8
	c = NewChunker(8, 8, tokens.HeuristicCounter{})
	assert.NotEmpty(t, c.Split("abcdefghijklmnop"))
}
