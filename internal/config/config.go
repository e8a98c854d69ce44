package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config is the process configuration, loaded once at startup and passed by
// reference into the adapter factory and each agent constructor. Nothing in
// the pipeline reads ambient global state.
type Config struct {
	Model    ModelConfig    `yaml:"model"`
	Search   SearchConfig   `yaml:"search"`
	Analysis AnalysisConfig `yaml:"analysis"`
	Server   ServerConfig   `yaml:"server"`
	Log      LogConfig      `yaml:"log"`
}

// ModelConfig selects and parameterizes the chat-model backend.
type ModelConfig struct {
	// Type discriminates the backend variant: "openai" or "ollama".
	Type   string       `yaml:"type"`
	OpenAI OpenAIConfig `yaml:"openai"`
	Ollama OllamaConfig `yaml:"ollama"`
}

type OpenAIConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxRetries     int    `yaml:"max_retries"`
	Stream         bool   `yaml:"stream"`
	// Proxy is an optional outbound proxy URL. It is handed directly to the
	// HTTP transport at client construction and never written to the
	// process environment.
	Proxy string `yaml:"proxy"`
}

type OllamaConfig struct {
	BaseURL        string `yaml:"base_url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type SearchConfig struct {
	APIKey         string `yaml:"api_key"`
	BaseURL        string `yaml:"base_url"`
	ResultCount    int    `yaml:"result_count"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type AnalysisConfig struct {
	EnableEvaluation bool     `yaml:"enable_evaluation"`
	CompanyName      string   `yaml:"company_name"`
	TargetCompanies  []string `yaml:"target_companies"`
	ExcludeCompanies []string `yaml:"exclude_companies"`
	FocusArea        string   `yaml:"focus_area"`
	RulesPath        string   `yaml:"rules_path"`
}

type ServerConfig struct {
	Addr           string `yaml:"addr"`
	UploadDir      string `yaml:"upload_dir"`
	MaxUploadBytes int64  `yaml:"max_upload_bytes"`
	DBPath         string `yaml:"db_path"`
}

type LogConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// Default returns the configuration used when no file is present.
func Default() *Config {
	return &Config{
		Model: ModelConfig{
			Type: "openai",
			OpenAI: OpenAIConfig{
				BaseURL:        "https://api.deepseek.com/",
				Model:          "deepseek-chat",
				TimeoutSeconds: 120,
				MaxRetries:     3,
			},
			Ollama: OllamaConfig{
				BaseURL:        "http://localhost:11434",
				Model:          "qwen3:8b",
				TimeoutSeconds: 120,
			},
		},
		Search: SearchConfig{
			BaseURL:        "https://serpapi.com/search.json",
			ResultCount:    30,
			TimeoutSeconds: 15,
		},
		Analysis: AnalysisConfig{
			EnableEvaluation: true,
			RulesPath:        "config/evaluation_rules.yaml",
		},
		Server: ServerConfig{
			Addr:           ":8080",
			UploadDir:      "uploads",
			MaxUploadBytes: 16 << 20,
			DBPath:         "data/patentwatch.db",
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads a YAML config file, layers it over the defaults, then applies
// environment-variable overrides for secrets and deploy-time switches.
// A missing file is not an error; defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}
	cfg.applyEnv()
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	setString(&c.Model.Type, "MODEL_TYPE")
	setString(&c.Model.OpenAI.APIKey, "OPENAI_API_KEY")
	setString(&c.Model.OpenAI.BaseURL, "OPENAI_BASE_URL")
	setString(&c.Model.OpenAI.Model, "OPENAI_MODEL")
	setString(&c.Model.OpenAI.Proxy, "OPENAI_PROXY")
	setString(&c.Model.Ollama.BaseURL, "OLLAMA_BASE_URL")
	setString(&c.Model.Ollama.Model, "OLLAMA_MODEL")
	setString(&c.Search.APIKey, "SERP_API_KEY")
	setString(&c.Search.BaseURL, "SERP_API_URL")
	if v := os.Getenv("ENABLE_EVALUATION"); v != "" {
		c.Analysis.EnableEvaluation = strings.EqualFold(v, "true") || v == "1"
	}
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func (c *Config) validate() error {
	switch c.Model.Type {
	case "openai", "ollama":
	default:
		return fmt.Errorf("unsupported model type: %q", c.Model.Type)
	}
	if c.Search.ResultCount <= 0 {
		c.Search.ResultCount = 30
	}
	if c.Server.MaxUploadBytes <= 0 {
		c.Server.MaxUploadBytes = 16 << 20
	}
	return nil
}
