package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_FromEnv(t *testing.T) {
	t.Setenv("EXTRACTOR_BINARY", "/usr/local/bin/linkparser")
	t.Setenv("MODEL_ARTIFACT", "/var/lib/phishtrap/model.json")
	t.Setenv("WEB_LISTEN_ADDR", ":9090")
	t.Setenv("EXTRACTOR_TIMEOUT", "90s")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "/usr/local/bin/linkparser", cfg.Extractor.BinaryPath)
	assert.Equal(t, "/var/lib/phishtrap/model.json", cfg.Model.ArtifactPath)
	assert.Equal(t, ":9090", cfg.Web.ListenAddr)
	assert.Equal(t, 90*time.Second, cfg.Extractor.Timeout)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EXTRACTOR_BINARY", "/usr/local/bin/linkparser")
	t.Setenv("MODEL_ARTIFACT", "/tmp/model.json")
	t.Setenv("WEB_LISTEN_ADDR", "")
	t.Setenv("EXTRACTOR_TIMEOUT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":8080", cfg.Web.ListenAddr)
	assert.Equal(t, 2*time.Minute, cfg.Extractor.Timeout)
	assert.NotEmpty(t, cfg.Extractor.ScratchRoot)
}

// TestLoad_YAMLOverriddenByEnv env переменные сильнее YAML файла
func TestLoad_YAMLOverriddenByEnv(t *testing.T) {
	yamlPath := filepath.Join(t.TempDir(), "config.yaml")
	yamlBody := `
web:
  listen_addr: ":7000"
extractor:
  binary_path: /opt/linkparser
  timeout: 45s
model:
  artifact_path: /opt/model.json
`
	require.NoError(t, os.WriteFile(yamlPath, []byte(yamlBody), 0o644))

	t.Setenv("PHISHTRAP_CONFIG", yamlPath)
	t.Setenv("WEB_LISTEN_ADDR", ":7001")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, ":7001", cfg.Web.ListenAddr)
	assert.Equal(t, "/opt/linkparser", cfg.Extractor.BinaryPath)
	assert.Equal(t, 45*time.Second, cfg.Extractor.Timeout)
	assert.Equal(t, "/opt/model.json", cfg.Model.ArtifactPath)
}

func TestLoad_MissingRequired(t *testing.T) {
	t.Setenv("EXTRACTOR_BINARY", "")
	t.Setenv("MODEL_ARTIFACT", "")

	_, err := Load()
	require.Error(t, err)
}
