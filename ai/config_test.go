package ai

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assert.NotNil(t, cfg)
	assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
	assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractionHost)
	assert.Equal(t, "embeddinggemma", cfg.EmbeddingModel)
	assert.Equal(t, "qwen3:4b", cfg.ExtractionModel)
	assert.Equal(t, "none", cfg.Token)
	assert.Empty(t, cfg.SystemPrompt)
	assert.Empty(t, cfg.ExtractionPrompt)
}

func TestNewConfig(t *testing.T) {
	t.Run("with no options", func(t *testing.T) {
		cfg := NewConfig()
		assert.Equal(t, DefaultConfig(), cfg)
	})

	t.Run("with custom host", func(t *testing.T) {
		cfg := NewConfig(WithHost("http://custom:8080/v1"))

		assert.Equal(t, "http://custom:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://custom:8080/v1", cfg.ExtractionHost)
	})

	t.Run("with separate hosts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingHost("http://embed:8080/v1"),
			WithExtractionHost("http://gateway:8800/v1"),
		)

		assert.Equal(t, "http://embed:8080/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://gateway:8800/v1", cfg.ExtractionHost)
	})

	t.Run("with models token and prompts", func(t *testing.T) {
		cfg := NewConfig(
			WithEmbeddingModel("text-embedding-3-small"),
			WithExtractionModel("gpt-4o-mini"),
			WithToken("sk-test"),
			WithPrompts("be terse", "extract from {transcript}"),
		)

		assert.Equal(t, "text-embedding-3-small", cfg.EmbeddingModel)
		assert.Equal(t, "gpt-4o-mini", cfg.ExtractionModel)
		assert.Equal(t, "sk-test", cfg.Token)
		assert.Equal(t, "be terse", cfg.SystemPrompt)
		assert.Equal(t, "extract from {transcript}", cfg.ExtractionPrompt)
	})
}

func TestConfigNormalize(t *testing.T) {
	tests := []struct {
		name               string
		embeddingHost      string
		extractionHost     string
		expectedEmbedding  string
		expectedExtraction string
	}{
		{"already has /v1", "http://localhost:11434/v1", "http://localhost:11434/v1", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"missing /v1", "http://localhost:11434", "http://localhost:11434", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"has trailing slash", "http://localhost:11434/", "http://localhost:11434/", "http://localhost:11434/v1", "http://localhost:11434/v1"},
		{"empty hosts", "", "", "", ""},
		{"different formats", "http://embed:8080", "http://gateway:8800/v1", "http://embed:8080/v1", "http://gateway:8800/v1"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := &Config{
				EmbeddingHost:  tt.embeddingHost,
				ExtractionHost: tt.extractionHost,
			}

			cfg.Normalize()

			assert.Equal(t, tt.expectedEmbedding, cfg.EmbeddingHost)
			assert.Equal(t, tt.expectedExtraction, cfg.ExtractionHost)
			assert.Equal(t, "none", cfg.Token)
		})
	}
}

func TestConfigValidate(t *testing.T) {
	valid := func() *Config {
		return &Config{
			EmbeddingHost:   "http://localhost:11434",
			ExtractionHost:  "http://localhost:11434",
			EmbeddingModel:  "embeddinggemma",
			ExtractionModel: "qwen3:4b",
		}
	}

	t.Run("valid config", func(t *testing.T) {
		cfg := valid()
		require.NoError(t, cfg.Validate())
		assert.Equal(t, "http://localhost:11434/v1", cfg.EmbeddingHost)
		assert.Equal(t, "http://localhost:11434/v1", cfg.ExtractionHost)
	})

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"missing embedding host", func(c *Config) { c.EmbeddingHost = "" }, "EmbeddingHost"},
		{"missing extraction host", func(c *Config) { c.ExtractionHost = "" }, "ExtractionHost"},
		{"missing embedding model", func(c *Config) { c.EmbeddingModel = "" }, "EmbeddingModel"},
		{"missing extraction model", func(c *Config) { c.ExtractionModel = "" }, "ExtractionModel"},
		{"prompt without transcript", func(c *Config) { c.ExtractionPrompt = "extract things" }, "ExtractionPrompt"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}

	t.Run("prompt with transcript", func(t *testing.T) {
		cfg := valid()
		cfg.ExtractionPrompt = "Schema: {schema}\n\n{transcript}"
		assert.NoError(t, cfg.Validate())
	})
}

func TestConfigValidate_Integration(t *testing.T) {
	require.NoError(t, NewConfig().Validate())
	require.NoError(t, DefaultConfig().Validate())
}
