package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig configures the HTTP listener.
type ServerConfig struct {
	Addr             string `yaml:"addr"`
	ReadTimeoutSecs  int    `yaml:"read_timeout_secs"`
	WriteTimeoutSecs int    `yaml:"write_timeout_secs"`
	// AllowedOrigins for CORS; empty means "*".
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
}

// HuggingFaceConfig points at a dataset served by the Hugging Face datasets-server.
type HuggingFaceConfig struct {
	BaseURL     string `yaml:"base_url"`
	Dataset     string `yaml:"dataset"`
	Config      string `yaml:"config"`
	Split       string `yaml:"split"`
	TokenEnv    string `yaml:"token_env"`
	PageSize    int    `yaml:"page_size"`
	TimeoutSecs int    `yaml:"timeout_secs"`
}

// CorpusConfig selects where the FAQ corpus is loaded from.
type CorpusConfig struct {
	// Type is one of "embedded", "file" or "huggingface".
	Type        string             `yaml:"type"`
	Path        string             `yaml:"path,omitempty"`
	HuggingFace *HuggingFaceConfig `yaml:"huggingface,omitempty"`
}

// FAQConfig tunes the FAQ index.
type FAQConfig struct {
	// Threshold is the minimum cosine score for an FAQ hit; nil means 0.3.
	Threshold *float64 `yaml:"threshold,omitempty"`
	Stopwords bool     `yaml:"stopwords"`
}

// OpenAIConfig holds configuration for an OpenAI-compatible chat completions API.
type OpenAIConfig struct {
	BaseURL   string `yaml:"base_url"`
	APIKeyEnv string `yaml:"api_key_env"`
	// MaxRetries nil means 2; zero disables retries.
	MaxRetries *int `yaml:"max_retries,omitempty"`
}

// GeminiConfig holds configuration for the Gemini API.
type GeminiConfig struct {
	APIKeyEnv string `yaml:"api_key_env"`
}

// LLMConfig selects and configures the completion provider.
type LLMConfig struct {
	// Provider is "openai" or "gemini".
	Provider     string        `yaml:"provider"`
	Model        string        `yaml:"model"`
	Temperature  *float64      `yaml:"temperature,omitempty"`
	TimeoutSecs  int           `yaml:"timeout_secs"`
	SystemPrompt string        `yaml:"system_prompt,omitempty"`
	OpenAI       *OpenAIConfig `yaml:"openai,omitempty"`
	Gemini       *GeminiConfig `yaml:"gemini,omitempty"`
}

// RedisConfig contains connection details for the Redis store.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password,omitempty"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix"`
	TTLSecs  int    `yaml:"ttl_secs"`
}

// SQLiteConfig locates the SQLite database.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// StoreConfig selects and configures the conversation store.
type StoreConfig struct {
	// Type is one of "memory", "sqlite" or "redis".
	Type   string        `yaml:"type"`
	SQLite *SQLiteConfig `yaml:"sqlite,omitempty"`
	Redis  *RedisConfig  `yaml:"redis,omitempty"`
}

// EscalationConfig overrides the escalation phrase list.
type EscalationConfig struct {
	Phrases []string `yaml:"phrases,omitempty"`
}

// LoggingConfig configures the process logger.
type LoggingConfig struct {
	Level string `yaml:"level"`
	// Format is "console" or "json".
	Format string `yaml:"format"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Server     ServerConfig     `yaml:"server"`
	Corpus     CorpusConfig     `yaml:"corpus"`
	FAQ        FAQConfig        `yaml:"faq"`
	LLM        LLMConfig        `yaml:"llm"`
	Store      StoreConfig      `yaml:"store"`
	Escalation EscalationConfig `yaml:"escalation"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ReadTimeout returns the server read timeout.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSecs) * time.Second
}

// WriteTimeout returns the server write timeout.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSecs) * time.Second
}

// Timeout returns the bound on a single completion call.
func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSecs) * time.Second
}

// Load reads a config from a specified path. If the file does not exist, returns defaults.
// Environment overrides are applied in both cases.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return finalize(defaultConfig())
		}
		return nil, err
	}
	cfg, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	return cfg, nil
}

// Parse decodes YAML config data, applies environment overrides and fills defaults.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	return finalize(&cfg)
}

// finalize applies environment overrides before defaults, so defaults follow the
// effective provider and store.
func finalize(cfg *AppConfig) (*AppConfig, error) {
	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	applyConfigDefaults(cfg)
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/supportbot/config.yaml.
// If neither exists, it writes defaults to ~/.config/supportbot/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := defaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err == nil {
		cfg, err := Load(userPath)
		return cfg, userPath, err
	}
	if err := Save(userPath, defaultConfig()); err != nil {
		return nil, "", err
	}
	cfg, err := finalize(defaultConfig())
	if err != nil {
		return nil, "", err
	}
	return cfg, userPath, nil
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

func defaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "supportbot", "config.yaml"), nil
}

func defaultConfig() *AppConfig {
	cfg := &AppConfig{
		Server:  ServerConfig{Addr: ":8000"},
		Corpus:  CorpusConfig{Type: "embedded"},
		LLM:     LLMConfig{Provider: "openai"},
		Store:   StoreConfig{Type: "memory"},
		Logging: LoggingConfig{Level: "info", Format: "console"},
	}
	applyConfigDefaults(cfg)
	return cfg
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Server.Addr == "" {
		cfg.Server.Addr = ":8000"
	}
	if cfg.Server.ReadTimeoutSecs == 0 {
		cfg.Server.ReadTimeoutSecs = 15
	}
	if cfg.Server.WriteTimeoutSecs == 0 {
		cfg.Server.WriteTimeoutSecs = 60
	}
	if cfg.Corpus.Type == "" {
		cfg.Corpus.Type = "embedded"
	}
	if cfg.Corpus.Type == "huggingface" {
		if cfg.Corpus.HuggingFace == nil {
			cfg.Corpus.HuggingFace = &HuggingFaceConfig{}
		}
		hf := cfg.Corpus.HuggingFace
		if hf.BaseURL == "" {
			hf.BaseURL = "https://datasets-server.huggingface.co"
		}
		if hf.Dataset == "" {
			hf.Dataset = "MakTek/Customer_support_faqs_dataset"
		}
		if hf.Config == "" {
			hf.Config = "default"
		}
		if hf.Split == "" {
			hf.Split = "train"
		}
		if hf.TokenEnv == "" {
			hf.TokenEnv = "HF_TOKEN"
		}
		if hf.PageSize == 0 {
			hf.PageSize = 100
		}
		if hf.TimeoutSecs == 0 {
			hf.TimeoutSecs = 30
		}
	}
	if cfg.FAQ.Threshold == nil {
		t := 0.3
		cfg.FAQ.Threshold = &t
	}
	if cfg.LLM.Provider == "" {
		cfg.LLM.Provider = "openai"
	}
	if cfg.LLM.Temperature == nil {
		t := 0.7
		cfg.LLM.Temperature = &t
	}
	if cfg.LLM.TimeoutSecs == 0 {
		cfg.LLM.TimeoutSecs = 30
	}
	switch cfg.LLM.Provider {
	case "openai":
		if cfg.LLM.OpenAI == nil {
			cfg.LLM.OpenAI = &OpenAIConfig{}
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "gpt-3.5-turbo"
		}
		if cfg.LLM.OpenAI.BaseURL == "" {
			cfg.LLM.OpenAI.BaseURL = "https://api.openai.com/v1"
		}
		if cfg.LLM.OpenAI.APIKeyEnv == "" {
			cfg.LLM.OpenAI.APIKeyEnv = "OPENAI_API_KEY"
		}
		if cfg.LLM.OpenAI.MaxRetries == nil {
			n := 2
			cfg.LLM.OpenAI.MaxRetries = &n
		}
	case "gemini":
		if cfg.LLM.Gemini == nil {
			cfg.LLM.Gemini = &GeminiConfig{}
		}
		if cfg.LLM.Model == "" {
			cfg.LLM.Model = "gemini-2.0-flash"
		}
		if cfg.LLM.Gemini.APIKeyEnv == "" {
			cfg.LLM.Gemini.APIKeyEnv = "GEMINI_API_KEY"
		}
	}
	if cfg.Store.Type == "" {
		cfg.Store.Type = "memory"
	}
	if cfg.Store.Type == "sqlite" {
		if cfg.Store.SQLite == nil {
			cfg.Store.SQLite = &SQLiteConfig{}
		}
		if cfg.Store.SQLite.Path == "" {
			cfg.Store.SQLite.Path = "data/supportbot.db"
		}
	}
	if cfg.Store.Type == "redis" {
		if cfg.Store.Redis == nil {
			cfg.Store.Redis = &RedisConfig{}
		}
		if cfg.Store.Redis.Addr == "" {
			cfg.Store.Redis.Addr = "localhost:6379"
		}
		if cfg.Store.Redis.Prefix == "" {
			cfg.Store.Redis.Prefix = "supportbot"
		}
	}
	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "console"
	}
}

// applyEnv overrides selected fields from SUPPORTBOT_* environment variables.
// Switching the provider drops a model chosen for the previous provider unless
// SUPPORTBOT_LLM_MODEL names one.
func applyEnv(cfg *AppConfig) error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok && v != "" {
			*dst = v
		}
	}
	setString("SUPPORTBOT_ADDR", &cfg.Server.Addr)
	setString("SUPPORTBOT_CORPUS", &cfg.Corpus.Type)
	setString("SUPPORTBOT_CORPUS_PATH", &cfg.Corpus.Path)
	if v := os.Getenv("SUPPORTBOT_LLM_PROVIDER"); v != "" && v != cfg.LLM.Provider {
		if cfg.LLM.Provider != "" {
			cfg.LLM.Model = ""
		}
		cfg.LLM.Provider = v
	}
	setString("SUPPORTBOT_LLM_MODEL", &cfg.LLM.Model)
	setString("SUPPORTBOT_STORE", &cfg.Store.Type)
	setString("SUPPORTBOT_LOG_LEVEL", &cfg.Logging.Level)
	setString("SUPPORTBOT_LOG_FORMAT", &cfg.Logging.Format)

	if v, ok := os.LookupEnv("SUPPORTBOT_FAQ_THRESHOLD"); ok && v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("SUPPORTBOT_FAQ_THRESHOLD: %w", err)
		}
		cfg.FAQ.Threshold = &f
	}
	if v := os.Getenv("SUPPORTBOT_SQLITE_PATH"); v != "" {
		if cfg.Store.SQLite == nil {
			cfg.Store.SQLite = &SQLiteConfig{}
		}
		cfg.Store.SQLite.Path = v
	}
	if v := os.Getenv("SUPPORTBOT_REDIS_ADDR"); v != "" {
		if cfg.Store.Redis == nil {
			cfg.Store.Redis = &RedisConfig{}
		}
		cfg.Store.Redis.Addr = v
	}
	return nil
}
