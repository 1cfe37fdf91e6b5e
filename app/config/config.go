package config

import (
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

const defaultPath = "config.yaml"

type Config struct {
	Log     Log     `yaml:"log"`
	HTTP    HTTP    `yaml:"http"`
	MCP     MCP     `yaml:"mcp"`
	Store   Store   `yaml:"store"`
	Prompts Prompts `yaml:"prompts"`
	LLM     LLM     `yaml:"llm"`
}

type HTTP struct {
	// Address the API listens on
	Listen string `yaml:"listen" example:"127.0.0.1:8080" validate:"required"`
	// Maximum request body size in bytes
	BodyLimit int `yaml:"body_limit" example:"4194304" validate:"gte=0"`
}

type MCP struct {
	// Serve MCP tools over stdio
	Enabled bool `yaml:"enabled" example:"false"`
}

type Store struct {
	// Directory for conversation state files
	Dir string `yaml:"dir" example:"data" validate:"required"`
}

type Prompts struct {
	// Directory with prompt overrides, embedded defaults are used when empty
	Dir string `yaml:"dir" example:"prompts"`
	// How long a loaded prompt stays cached
	TTL time.Duration `yaml:"ttl" example:"5m"`
}

type LLM struct {
	// Model used for the fallback intent classification
	Classifier *ModelConfig `yaml:"classifier"`
	// Model used for structured fact extraction
	Extractor *ModelConfig `yaml:"extractor"`
	// Model used for chat replies, protocol generation and edit patches
	Writer *ModelConfig `yaml:"writer"`
}

type ModelConfig struct {
	// OpenAI compatible base url
	BaseURL string `yaml:"base_url" example:"https://openrouter.ai/api/v1" validate:"required,url"`
	// API token
	Token string `yaml:"token" example:"sk-proj-abc123456789DEF789ghi012JKL345mno678PQR901stu234VWX" validate:"required"`
	// Model name
	Model string `yaml:"model" example:"deepseek/deepseek-chat-v3-0324:free" validate:"required"`
	// Request timeout
	Timeout time.Duration `yaml:"timeout" example:"30s"`
}

type Log struct {
	// Telegram logging config
	Telegram TelegramLog `yaml:"telegram"`
}

type TelegramLog struct {
	// Chat bot token, obtain it via BotFather
	Token string `yaml:"token" example:"1234567890:ABCdefGHIjklMNopQRstUVwxyZ-123456789"`
	// Chat ID to send messages to
	ChatID string `yaml:"chat_id" example:"1001234567890"`
}

func Load() (*Config, error) {
	return LoadFile(defaultPath)
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, oops.In("config").Errorf("failed to read config file: %w", err)
	}

	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	var result Config

	if err := yaml.Unmarshal(data, &result); err != nil {
		return nil, oops.In("config").Errorf("failed to parse YAML config: %w", err)
	}

	applyDefaults(&result)

	validate := validator.New(validator.WithRequiredStructEnabled())
	if err := validate.Struct(result); err != nil {
		return nil, oops.In("config").Errorf("failed to validate config: %w", err)
	}

	return &result, nil
}

func applyDefaults(cfg *Config) {
	if cfg.HTTP.Listen == "" {
		cfg.HTTP.Listen = "127.0.0.1:8080"
	}
	if cfg.HTTP.BodyLimit == 0 {
		cfg.HTTP.BodyLimit = 4 * 1024 * 1024
	}
	if cfg.Store.Dir == "" {
		cfg.Store.Dir = "data"
	}
	if cfg.Prompts.TTL == 0 {
		cfg.Prompts.TTL = 5 * time.Minute
	}

	for _, model := range []*ModelConfig{cfg.LLM.Classifier, cfg.LLM.Extractor, cfg.LLM.Writer} {
		if model != nil && model.Timeout == 0 {
			model.Timeout = 30 * time.Second
		}
	}
}
