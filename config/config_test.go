package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultModels(t *testing.T) {
	c := Default()

	assert.Equal(t, "deepseek-r1:7b", c.LLM.Reasoning.Model)
	assert.Equal(t, []string{"</think>"}, c.LLM.Reasoning.Stop)
	assert.Nil(t, c.LLM.Reasoning.Temperature)

	require.NotNil(t, c.LLM.Answer.Temperature)
	assert.Equal(t, float32(0), *c.LLM.Answer.Temperature)
	assert.True(t, c.LLM.Answer.Stream)
}

func TestLoadConfigFromFileAndEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  port: "9090"
llm:
  reasoning:
    model: qwen3:8b
    stream: false
retriever:
  top_k: 3
data:
  dir: /tmp/ragchat
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	t.Setenv("CONFIG_PATH", path)
	t.Setenv("ANSWER_MODEL", "llama3.1")
	t.Setenv("RETRIEVER_TOP_K", "7")

	c := loadConfig()

	assert.Equal(t, "9090", c.Server.Port)
	assert.Equal(t, "qwen3:8b", c.LLM.Reasoning.Model)
	assert.False(t, c.LLM.Reasoning.Stream)
	assert.Equal(t, "llama3.1", c.LLM.Answer.Model)
	assert.Equal(t, 7, c.Retriever.TopK)
	assert.Equal(t, filepath.Join("/tmp/ragchat", "uploads"), c.Data.UploadDir)
	assert.Equal(t, filepath.Join("/tmp/ragchat", "vectors"), c.Data.VectorDir)
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	c := Default()
	c.Server.Port = "7070"

	require.NoError(t, c.Save(path))

	t.Setenv("CONFIG_PATH", path)
	loaded := loadConfig()
	assert.Equal(t, "7070", loaded.Server.Port)
	assert.Equal(t, c.LLM.Answer.Model, loaded.LLM.Answer.Model)
}
