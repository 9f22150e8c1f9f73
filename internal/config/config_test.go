package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validYAML = `
profile:
  name: "Aman Zav"
  resume_text: "Experienced Go developer."
  signature: "Sincerely,\nAman"

waterloo_works:
  username: "azav"

llm:
  provider: "gemini"
  model: "gemini-1.5-flash"
  api_keys:
    gemini: "key-123"

paths:
  cover_letters_dir: "./letters"

defaults:
  job_board: "direct"

browser:
  headless: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "azav", cfg.WaterlooWorks.Username)
	assert.Equal(t, "gemini", cfg.LLM.Provider)
	assert.Equal(t, "./letters", cfg.Paths.CoverLettersDir)
	assert.Equal(t, "direct", cfg.Defaults.JobBoard)
	assert.True(t, cfg.Browser.Headless)

	// unset fields pick up defaults
	assert.Equal(t, "./data", cfg.Paths.DataDir)
	assert.Equal(t, "waterworks", cfg.Defaults.FolderName)
}

func TestLoad_MissingFileMentionsInit(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "config --init")
}

func TestLoad_MalformedYAML(t *testing.T) {
	_, err := Load(writeConfig(t, "llm: [unclosed"))
	require.Error(t, err)
}

func TestValidate_AcceptsCompleteConfig(t *testing.T) {
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)
	assert.NoError(t, cfg.Validate())
}

func TestValidate_RequiresUsername(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
llm:
  provider: "gemini"
  model: "m"
  api_keys:
    gemini: "k"
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Username")
}

func TestValidate_RejectsUnknownProvider(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
waterloo_works:
  username: "azav"
llm:
  provider: "groq"
  model: "m"
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Provider")
}

func TestValidate_RequiresAPIKey(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "")
	cfg, err := Load(writeConfig(t, `
waterloo_works:
  username: "azav"
llm:
  provider: "gemini"
  model: "m"
`))
	require.NoError(t, err)

	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GOOGLE_API_KEY")
}

func TestAPIKey_EnvFallback(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "env-key")
	cfg, err := Load(writeConfig(t, `
waterloo_works:
  username: "azav"
llm:
  provider: "anthropic"
  model: "m"
`))
	require.NoError(t, err)

	assert.Equal(t, "env-key", cfg.APIKey())
}

func TestAPIKey_ConfigWinsOverEnv(t *testing.T) {
	t.Setenv("GOOGLE_API_KEY", "env-key")
	cfg, err := Load(writeConfig(t, validYAML))
	require.NoError(t, err)

	assert.Equal(t, "key-123", cfg.APIKey())
}

func TestWriteStarter(t *testing.T) {
	path := filepath.Join(t.TempDir(), ".waterworks", "config.yaml")
	require.NoError(t, WriteStarter(path))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemini", cfg.LLM.Provider)

	// refuses to clobber
	require.Error(t, WriteStarter(path))
}

func TestDocument_GetAndSet(t *testing.T) {
	path := writeConfig(t, validYAML)

	doc, err := LoadDocument(path)
	require.NoError(t, err)

	v, ok := doc.Get("llm.provider")
	require.True(t, ok)
	assert.Equal(t, "gemini", v)

	_, ok = doc.Get("llm.missing.deep")
	assert.False(t, ok)

	require.NoError(t, doc.Set("llm.model", "gemini-1.5-pro"))
	require.NoError(t, doc.Set("brand.new.key", "v"))
	require.NoError(t, doc.Save())

	reloaded, err := LoadDocument(path)
	require.NoError(t, err)
	v, ok = reloaded.Get("llm.model")
	require.True(t, ok)
	assert.Equal(t, "gemini-1.5-pro", v)
	v, ok = reloaded.Get("brand.new.key")
	require.True(t, ok)
	assert.Equal(t, "v", v)
}

func TestDocument_SetThroughScalarFails(t *testing.T) {
	doc, err := LoadDocument(writeConfig(t, validYAML))
	require.NoError(t, err)

	err = doc.Set("llm.provider.nested", "x")
	require.Error(t, err)
}
