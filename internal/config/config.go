package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// Provider identifies an LLM provider kind. The set is closed; unknown
// names are rejected when the configuration is loaded, not at call time.
type Provider string

const (
	ProviderOpenAI Provider = "openai"
	ProviderGemini Provider = "gemini"
)

// Default models used when an agent entry names a provider but no model.
const (
	DefaultOpenAIModel = "gpt-4o"
	DefaultGeminiModel = "gemini-1.5-flash"
)

// AgentConfig binds one agent name to a provider and model. Provider may
// be empty in the config file, in which case the global default applies.
type AgentConfig struct {
	Provider Provider `json:"provider,omitempty"`
	Model    string   `json:"model,omitempty"`
}

// Thresholds are the warning limits used by the contextual and daily
// review prompts.
type Thresholds struct {
	CarbsWarningG    int     `json:"carbs_warning_g"`
	SugarWarningG    int     `json:"sugar_warning_g"`
	ProteinMinFactor float64 `json:"protein_min_factor"`
}

// Config holds all application configuration. It is loaded once at
// startup and treated as read-only afterwards.
type Config struct {
	Server struct {
		Port  string `json:"port"`
		Debug bool   `json:"debug"`
	} `json:"server"`

	DataDir string `json:"data_dir"`

	ArchivePath string `json:"archive_path"`

	LLMProvider  Provider               `json:"llm_provider"`
	OpenAIAPIKey string                 `json:"openai_api_key"`
	GeminiAPIKey string                 `json:"gemini_api_key"`
	Agents       map[string]AgentConfig `json:"agents"`

	UseLLMNorms bool `json:"use_llm_norms"`

	PendingCheckMin   int `json:"pending_check_min"`
	PendingTimeoutMin int `json:"pending_timeout_min"`

	ProviderTimeoutSec int `json:"provider_timeout_sec"`

	Thresholds Thresholds `json:"thresholds"`
}

// Load reads configuration from a JSON file. Line comments beginning
// with # or // are tolerated and stripped before parsing so the file
// can carry human annotations.
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := json.Unmarshal(StripComments(data), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// StripComments removes # and // line comments from JSON config text.
// Comment markers inside string literals are left alone.
func StripComments(data []byte) []byte {
	lines := strings.Split(string(data), "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		trimmed := strings.TrimSpace(line)
		if strings.HasPrefix(trimmed, "#") || strings.HasPrefix(trimmed, "//") {
			continue
		}
		out = append(out, stripTrailingComment(line))
	}
	return []byte(strings.Join(out, "\n"))
}

func stripTrailingComment(line string) string {
	inString := false
	for i := 0; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if inString {
				i++
			}
		case '"':
			inString = !inString
		case '#':
			if !inString {
				return line[:i]
			}
		case '/':
			if !inString && i+1 < len(line) && line[i+1] == '/' {
				return line[:i]
			}
		}
	}
	return line
}

func (c *Config) applyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = "8080"
	}
	if c.DataDir == "" {
		c.DataDir = "data"
	}
	if c.ArchivePath == "" {
		c.ArchivePath = filepath.Join(c.DataDir, "archive.db")
	}
	if c.LLMProvider == "" {
		c.LLMProvider = Provider(os.Getenv("LLM_PROVIDER"))
	}
	if c.LLMProvider == "" {
		c.LLMProvider = ProviderOpenAI
	}
	if c.OpenAIAPIKey == "" {
		c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	}
	if c.GeminiAPIKey == "" {
		c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	}
	if c.PendingCheckMin <= 0 {
		c.PendingCheckMin = 30
	}
	if c.PendingTimeoutMin <= 0 {
		c.PendingTimeoutMin = 90
	}
	if c.ProviderTimeoutSec <= 0 {
		c.ProviderTimeoutSec = 90
	}
	if c.Thresholds.CarbsWarningG <= 0 {
		c.Thresholds.CarbsWarningG = 250
	}
	if c.Thresholds.SugarWarningG <= 0 {
		c.Thresholds.SugarWarningG = 50
	}
	if c.Thresholds.ProteinMinFactor <= 0 {
		c.Thresholds.ProteinMinFactor = 1.6
	}
}

func (c *Config) validate() error {
	if !validProvider(c.LLMProvider) {
		return fmt.Errorf("unknown llm_provider %q", c.LLMProvider)
	}
	for name, agent := range c.Agents {
		if agent.Provider != "" && !validProvider(agent.Provider) {
			return fmt.Errorf("agent %q: unknown provider %q", name, agent.Provider)
		}
	}
	return nil
}

func validProvider(p Provider) bool {
	return p == ProviderOpenAI || p == ProviderGemini
}

// AgentLLM resolves the provider and model for the named agent, falling
// back to the global default provider and that provider's default model.
func (c *Config) AgentLLM(name string) (Provider, string) {
	agent := c.Agents[name]
	provider := agent.Provider
	if provider == "" {
		provider = c.LLMProvider
	}
	model := agent.Model
	if model == "" {
		if provider == ProviderOpenAI {
			model = DefaultOpenAIModel
		} else {
			model = DefaultGeminiModel
		}
	}
	return provider, model
}

// Path returns the path to the configuration file. The DIETOLOG_CONFIG
// environment variable wins, then config/config.json, then the current
// directory.
func Path() string {
	if path := os.Getenv("DIETOLOG_CONFIG"); path != "" {
		return path
	}
	configDir := "config"
	if _, err := os.Stat(configDir); err == nil {
		return filepath.Join(configDir, "config.json")
	}
	return "config.json"
}
