package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_CreatesDefault(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "ifc-simplifier.config")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	_, err = os.Stat(path)
	require.NoError(t, err, "default config should be written on first run")

	assert.Equal(t, 5000, cfg.Server.Port)
	assert.Equal(t, 4, cfg.Processing.Workers)
	assert.Equal(t, filepath.Join(dir, "data"), cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dir, "data", "uploads"), cfg.GetUploadDir())
	assert.Empty(t, cfg.Extraction.VocabularyFile)
}

func TestLoadConfig_ReadsXML(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.config")
	content := `<?xml version="1.0" encoding="UTF-8"?>
<IFCSimplifier>
  <Server>
    <Port>9100</Port>
    <BindAddress>127.0.0.1</BindAddress>
  </Server>
  <Processing>
    <Workers>8</Workers>
  </Processing>
  <Extraction>
    <VocabularyFile>vocab/custom.yaml</VocabularyFile>
  </Extraction>
</IFCSimplifier>`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1:9100", cfg.GetServerAddr())
	assert.Equal(t, 8, cfg.Processing.Workers)
	assert.Equal(t, filepath.Join(dir, "vocab", "custom.yaml"), cfg.Extraction.VocabularyFile)
	// Sections absent from the file keep their defaults.
	assert.Equal(t, 30, cfg.Processing.SessionTimeoutMinutes)
	assert.True(t, cfg.Security.AllowFileDeletion)
}

func TestLoadConfig_EnvironmentOverrides(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "app.config")
	dataDir := filepath.Join(dir, "elsewhere")

	t.Setenv("PORT", "7070")
	t.Setenv("DATA_DIR", dataDir)
	t.Setenv("IFC_WORKERS", "2")
	t.Setenv("LOG_LEVEL", "DEBUG")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, 7070, cfg.Server.Port)
	assert.Equal(t, dataDir, cfg.GetDataDir())
	assert.Equal(t, filepath.Join(dataDir, "temp"), cfg.GetTempDir())
	assert.Equal(t, 2, cfg.Processing.Workers)
	assert.Equal(t, "debug", cfg.Advanced.LogLevel)
}

func TestLoadConfig_EnvFile(t *testing.T) {
	dir := t.TempDir()
	envFile := filepath.Join(dir, "test.env")
	require.NoError(t, os.WriteFile(envFile, []byte("IFC_VOCABULARY_FILE=/etc/ifc/vocabulary.yaml\n"), 0644))

	t.Setenv("ENV_FILE", envFile)
	t.Setenv("IFC_VOCABULARY_FILE", "")
	os.Unsetenv("IFC_VOCABULARY_FILE")

	cfg, err := LoadConfig(filepath.Join(dir, "app.config"))
	require.NoError(t, err)
	assert.Equal(t, "/etc/ifc/vocabulary.yaml", cfg.Extraction.VocabularyFile)
}

func TestLoadConfig_InvalidXML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.config")
	require.NoError(t, os.WriteFile(path, []byte("<IFCSimplifier><Server>"), 0644))

	_, err := LoadConfig(path)
	assert.Error(t, err)
}

func TestEnsureDirectories(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig()
	cfg.resolvePaths(dir)

	require.NoError(t, cfg.EnsureDirectories())
	for _, d := range []string{cfg.GetDataDir(), cfg.GetUploadDir(), cfg.GetTempDir()} {
		info, err := os.Stat(d)
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}
