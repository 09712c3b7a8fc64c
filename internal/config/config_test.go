package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	chdirEmpty(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "local", cfg.Blob.Provider)
	assert.Equal(t, 3, cfg.Pipeline.PageCap)
	assert.Equal(t, 5, cfg.Pipeline.InferenceDelaySecs)
	assert.Equal(t, 8000, cfg.Pipeline.MaxEvidenceChars)
	assert.Equal(t, 90, cfg.Updates.ConfidenceThreshold)
	assert.Equal(t, int64(1024), cfg.Anthropic.MaxTokens)
	assert.Equal(t, "pdfinfo", cfg.OCR.PdfInfoPath)
	assert.Equal(t, "json", cfg.Log.Format)
}

func TestLoad_ConfigFile(t *testing.T) {
	dir := chdirEmpty(t)

	yaml := `
store:
  driver: sqlite
  database_url: exceptions.db
pipeline:
  page_cap: 5
  inference_delay_secs: 0
updates:
  confidence_threshold: 80
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0o644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "exceptions.db", cfg.Store.DatabaseURL)
	assert.Equal(t, 5, cfg.Pipeline.PageCap)
	assert.Equal(t, 0, cfg.Pipeline.InferenceDelaySecs)
	assert.Equal(t, 80, cfg.Updates.ConfidenceThreshold)
}

func TestLoad_EnvOverride(t *testing.T) {
	chdirEmpty(t)
	t.Setenv("EXCEPTIONS_ANTHROPIC_KEY", "sk-test")
	t.Setenv("EXCEPTIONS_LOG_LEVEL", "debug")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sk-test", cfg.Anthropic.Key)
	assert.Equal(t, "debug", cfg.Log.Level)
}

func TestInitLogger_BadLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "shouty", Format: "json"})
	assert.Error(t, err)
}

// chdirEmpty moves the test into an empty temp dir so a developer's local
// config.yaml cannot leak into assertions.
func chdirEmpty(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}
