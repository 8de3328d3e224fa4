package config

import (
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// DefaultModels are the vision models offered in the model selector. The
// first entry is preselected.
var DefaultModels = []string{"llava:13b", "llava:7b", "minicpm-v:8b", "moondream:latest"}

type Config struct {
	ListenAddr         string        `yaml:"listen_addr" validate:"required"`
	VisionBackend      string        `yaml:"vision_backend" validate:"oneof=ollama claude"`
	OllamaHost         string        `yaml:"ollama_host" validate:"required,url"`
	Models             []string      `yaml:"models" validate:"min=1,dive,required"`
	DefaultTemperature float64       `yaml:"default_temperature" validate:"gte=0,lte=1"`
	RequestTimeout     time.Duration `yaml:"request_timeout" validate:"gt=0"`
	ClaudeAPIKey       string        `yaml:"claude_api_key" validate:"required_if=VisionBackend claude"`
	ClaudeModel        string        `yaml:"claude_model"`
	HistoryDBPath      string        `yaml:"history_db_path"`
	LogLevel           string        `yaml:"log_level" validate:"oneof=debug info warn error"`
	LogFile            string        `yaml:"log_file"`
	LogFormat          string        `yaml:"log_format" validate:"oneof=json text"`
}

func defaults() *Config {
	return &Config{
		ListenAddr:         ":8080",
		VisionBackend:      "ollama",
		OllamaHost:         "http://localhost:11434",
		Models:             slices.Clone(DefaultModels),
		DefaultTemperature: 0.2,
		RequestTimeout:     600 * time.Second,
		ClaudeModel:        "claude-opus-4-6",
		LogLevel:           "info",
		LogFormat:          "json",
	}
}

// Load builds the configuration from built-in defaults, then the YAML file
// named by CONFIG_FILE (if any), then environment variables. Later sources
// win.
func Load() (*Config, error) {
	cfg := defaults()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		if err := loadFile(path, cfg); err != nil {
			return nil, err
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}

	if cfg.VisionBackend == "claude" && slices.Equal(cfg.Models, DefaultModels) {
		cfg.Models = []string{cfg.ClaudeModel}
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultModel is the preselected model.
func (c *Config) DefaultModel() string {
	return c.Models[0]
}

// HistoryEnabled reports whether completed analyses are recorded.
func (c *Config) HistoryEnabled() bool {
	return c.HistoryDBPath != ""
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) error {
	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.VisionBackend = getEnv("VISION_BACKEND", cfg.VisionBackend)
	cfg.OllamaHost = strings.TrimRight(getEnv("OLLAMA_HOST", cfg.OllamaHost), "/")
	cfg.ClaudeAPIKey = getEnv("CLAUDE_API_KEY", cfg.ClaudeAPIKey)
	cfg.ClaudeModel = getEnv("CLAUDE_MODEL", cfg.ClaudeModel)
	cfg.HistoryDBPath = getEnv("HISTORY_DB_PATH", cfg.HistoryDBPath)
	cfg.LogLevel = getEnv("LOG_LEVEL", cfg.LogLevel)
	cfg.LogFile = getEnv("LOG_FILE", cfg.LogFile)
	cfg.LogFormat = getEnv("LOG_FORMAT", cfg.LogFormat)

	if val, ok := os.LookupEnv("VISION_MODELS"); ok {
		cfg.Models = splitList(val)
	}
	if val, ok := os.LookupEnv("DEFAULT_TEMPERATURE"); ok {
		t, err := strconv.ParseFloat(val, 64)
		if err != nil {
			return fmt.Errorf("invalid DEFAULT_TEMPERATURE %q: %w", val, err)
		}
		cfg.DefaultTemperature = t
	}
	if val, ok := os.LookupEnv("REQUEST_TIMEOUT"); ok {
		d, err := time.ParseDuration(val)
		if err != nil {
			return fmt.Errorf("invalid REQUEST_TIMEOUT %q: %w", val, err)
		}
		cfg.RequestTimeout = d
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, defaultVal string) string {
	if val, exists := os.LookupEnv(key); exists {
		return val
	}
	return defaultVal
}
