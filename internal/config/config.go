// Package config loads and validates the YAML configuration at
// ~/.waterworks/config.yaml.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Config is the typed view of the configuration file.
type Config struct {
	Profile struct {
		Name           string `yaml:"name"`
		Email          string `yaml:"email"`
		Phone          string `yaml:"phone"`
		LinkedIn       string `yaml:"linkedin"`
		GitHub         string `yaml:"github"`
		Website        string `yaml:"website"`
		ResumeText     string `yaml:"resume_text"`
		AdditionalInfo string `yaml:"additional_info"`
		Signature      string `yaml:"signature"`
	} `yaml:"profile"`

	WaterlooWorks struct {
		Username string `yaml:"username" validate:"required"`
		Password string `yaml:"password"`
	} `yaml:"waterloo_works"`

	LLM struct {
		Provider string            `yaml:"provider" validate:"required,oneof=gemini anthropic"`
		Model    string            `yaml:"model" validate:"required"`
		APIKeys  map[string]string `yaml:"api_keys"`
	} `yaml:"llm"`

	Paths struct {
		CoverLettersDir string `yaml:"cover_letters_dir"`
		DataDir         string `yaml:"data_dir"`
	} `yaml:"paths"`

	Defaults struct {
		FolderName string `yaml:"folder_name"`
		JobBoard   string `yaml:"job_board" validate:"omitempty,oneof=full direct"`
	} `yaml:"defaults"`

	Browser struct {
		Headless bool `yaml:"headless"`
	} `yaml:"browser"`

	CoverLetter struct {
		Prompt string `yaml:"prompt"`
	} `yaml:"cover_letter"`
}

// envKeyByProvider maps providers to their conventional API key variables.
var envKeyByProvider = map[string]string{
	"gemini":    "GOOGLE_API_KEY",
	"anthropic": "ANTHROPIC_API_KEY",
}

// DefaultPath returns ~/.waterworks/config.yaml.
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home directory: %w", err)
	}
	return filepath.Join(home, ".waterworks", "config.yaml"), nil
}

// Load reads and parses the configuration file, applying defaults for unset
// optional fields.
func Load(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("configuration file not found at %s (run 'waterworks config --init')", path)
		}
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(raw, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	cfg.applyDefaults()
	return &cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Paths.CoverLettersDir == "" {
		c.Paths.CoverLettersDir = "./cover_letters"
	}
	if c.Paths.DataDir == "" {
		c.Paths.DataDir = "./data"
	}
	if c.Defaults.FolderName == "" {
		c.Defaults.FolderName = "waterworks"
	}
	if c.Defaults.JobBoard == "" {
		c.Defaults.JobBoard = "full"
	}
}

// Validate checks required fields and that an API key is available for the
// configured provider.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		if errs, ok := err.(validator.ValidationErrors); ok {
			fields := make([]string, 0, len(errs))
			for _, fe := range errs {
				fields = append(fields, fmt.Sprintf("%s (%s)", fe.Namespace(), fe.Tag()))
			}
			return fmt.Errorf("invalid configuration: %s", strings.Join(fields, ", "))
		}
		return fmt.Errorf("invalid configuration: %w", err)
	}

	if c.APIKey() == "" {
		provider := strings.ToLower(c.LLM.Provider)
		return fmt.Errorf("API key required for %s: set llm.api_keys.%s in config or the %s environment variable",
			provider, provider, envKeyByProvider[provider])
	}
	return nil
}

// APIKey resolves the key for the configured provider, preferring the config
// file over the environment.
func (c *Config) APIKey() string {
	provider := strings.ToLower(c.LLM.Provider)
	if key := c.LLM.APIKeys[provider]; key != "" {
		return key
	}
	if env := envKeyByProvider[provider]; env != "" {
		return os.Getenv(env)
	}
	return ""
}

// CoverLettersDir expands and creates the artifact directory.
func (c *Config) CoverLettersDir() (string, error) {
	return ensureDir(c.Paths.CoverLettersDir)
}

// DataDir expands and creates the tracking data directory.
func (c *Config) DataDir() (string, error) {
	return ensureDir(c.Paths.DataDir)
}

func ensureDir(path string) (string, error) {
	expanded, err := expandPath(path)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(expanded, 0o755); err != nil {
		return "", fmt.Errorf("create %s: %w", expanded, err)
	}
	return expanded, nil
}

// expandPath resolves a leading ~ to the user's home directory.
func expandPath(path string) (string, error) {
	if path == "~" || strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
	}
	return path, nil
}

// starterConfig is written by 'config --init'.
const starterConfig = `# Waterworks configuration
profile:
  name: ""
  email: ""
  resume_text: ""
  additional_info: ""
  signature: ""

waterloo_works:
  username: ""
  # Leave password empty to be prompted at login.
  password: ""

llm:
  provider: "gemini"
  model: "gemini-1.5-flash"
  api_keys:
    gemini: ""
    anthropic: ""

paths:
  cover_letters_dir: "./cover_letters"
  data_dir: "./data"

defaults:
  folder_name: "waterworks"
  job_board: "full"

browser:
  headless: false

cover_letter:
  # Optional custom prompt template. Placeholders: {company}, {job_title},
  # {job_description}, {profile}.
  prompt: ""
`

// WriteStarter creates a starter configuration file. It refuses to overwrite
// an existing one.
func WriteStarter(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("configuration already exists at %s", path)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	if err := os.WriteFile(path, []byte(starterConfig), 0o600); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}
