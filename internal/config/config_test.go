package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoad_RequiresRetrievalSettings(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
[retrieval]
default_max_chunks = 8
`))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "similarity_threshold")
}

func TestLoad_RequiresEmbeddingDimension(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
[retrieval]
similarity_threshold = 0.4
`))
	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding_dimension")
}

func TestLoad_RejectsOutOfRangeThreshold(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
[retrieval]
similarity_threshold = 1.5
embedding_dimension = 1536
`))
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_FileValues(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
[app]
port = 9090

[pipeline]
workers = 8
max_retries = 5

[retrieval]
similarity_threshold = 0.4
embedding_dimension = 1536
`))
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9090, cfg.App.Port)
	assert.Equal(t, 8, cfg.Pipeline.Workers)
	assert.Equal(t, 5, cfg.Pipeline.MaxRetries)
	assert.Equal(t, 0.4, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 1536, cfg.Retrieval.EmbeddingDimension)
	assert.Equal(t, 5, cfg.Retrieval.DefaultMaxChunks, "untouched keys keep defaults")
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("CONFIG_FILE", writeConfig(t, `
[retrieval]
similarity_threshold = 0.4
embedding_dimension = 1536
`))
	t.Setenv("RETRIEVAL_SIMILARITY_THRESHOLD", "0.55")
	t.Setenv("PIPELINE_WORKERS", "16")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 0.55, cfg.Retrieval.SimilarityThreshold)
	assert.Equal(t, 16, cfg.Pipeline.Workers)
}

func TestHelperDurations(t *testing.T) {
	cfg := defaultConfig()
	assert.Equal(t, cfg.Pipeline.PollInterval().Milliseconds(), int64(cfg.Pipeline.PollIntervalMS))
	assert.Equal(t, cfg.Pipeline.VisibilityTimeout().Seconds(), float64(cfg.Pipeline.VisibilityTimeoutSeconds))
}
