package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("FORGE_SEARCH_URL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "intentforge", cfg.Name)
	assert.Equal(t, "null", cfg.LLM.Provider)
	assert.Equal(t, 20, cfg.Session.MaxTurns)
	assert.Equal(t, 30*time.Minute, cfg.GetSessionTTL())
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
session:
  ttl: 45m
  max_turns: 8
grounding:
  fast_topics: [starcraft]
  ttl_short: 5m
`), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 45*time.Minute, cfg.GetSessionTTL())
	assert.Equal(t, 8, cfg.Session.MaxTurns)
	assert.Equal(t, []string{"starcraft"}, cfg.Grounding.FastTopics)

	short, medium, long := cfg.GetGroundingTTLs()
	assert.Equal(t, 5*time.Minute, short)
	assert.Equal(t, 6*time.Hour, medium)
	assert.Equal(t, 72*time.Hour, long)
}

func TestLoad_MalformedFileErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "forge.yaml")
	require.NoError(t, os.WriteFile(path, []byte("session: [not a map"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("GEMINI_API_KEY switches provider off null", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "key-123")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "key-123", cfg.LLM.APIKey)
		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("GEMINI_API_KEY keeps an explicit provider", func(t *testing.T) {
		t.Setenv("GEMINI_API_KEY", "key-123")

		cfg := DefaultConfig()
		cfg.LLM.Provider = "gemini"
		cfg.applyEnvOverrides()

		assert.Equal(t, "gemini", cfg.LLM.Provider)
	})

	t.Run("FORGE_SEARCH_URL enables the http provider", func(t *testing.T) {
		t.Setenv("FORGE_SEARCH_URL", "http://searx.local")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://searx.local", cfg.Search.BaseURL)
		assert.Equal(t, "http", cfg.Search.Provider)
	})

	t.Run("data paths", func(t *testing.T) {
		t.Setenv("FORGE_DATA_DIR", "/tmp/forge-data")
		t.Setenv("FORGE_MIRROR_DB", "/tmp/forge.db")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "/tmp/forge-data", cfg.Session.DataDir)
		assert.Equal(t, "/tmp/forge.db", cfg.Session.MirrorPath)
	})
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "forge.yaml")

	cfg := DefaultConfig()
	cfg.Session.MaxTurns = 7
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 7, loaded.Session.MaxTurns)
}

func TestValidate(t *testing.T) {
	cfg := DefaultConfig()
	assert.NoError(t, cfg.Validate())

	bad := DefaultConfig()
	bad.LLM.Provider = "mystery"
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.LLM.Provider = "gemini" // no key
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Session.MaxTurns = 0
	assert.Error(t, bad.Validate())

	bad = DefaultConfig()
	bad.Validator.MinWords = 50
	bad.Validator.MaxWords = 10
	assert.Error(t, bad.Validate())
}

func TestDurationFallbacks(t *testing.T) {
	cfg := DefaultConfig()
	cfg.LLM.Timeout = "not-a-duration"
	assert.Equal(t, 120*time.Second, cfg.GetLLMTimeout())

	cfg.Grounding.AssessmentCacheTTL = ""
	assert.Equal(t, 5*time.Minute, cfg.GetAssessmentCacheTTL())
}
