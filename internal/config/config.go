package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"jsonlbatch/internal/engine"
)

// Config holds the runtime options for a batch run.
type Config struct {
	InputFile  string `json:"input_file,omitempty" yaml:"input_file,omitempty"`
	OutputFile string `json:"output_file,omitempty" yaml:"output_file,omitempty"`
	ErrorFile  string `json:"error_file,omitempty" yaml:"error_file,omitempty"`
	LogFile    string `json:"log_file,omitempty" yaml:"log_file,omitempty"`

	IDKey    string `json:"id_key,omitempty" yaml:"id_key,omitempty"`
	RerunKey string `json:"rerun_key,omitempty" yaml:"rerun_key,omitempty"`

	MaxConcurrency    int `json:"max_concurrency,omitempty" yaml:"max_concurrency,omitempty"`
	RequestsPerMinute int `json:"requests_per_minute,omitempty" yaml:"requests_per_minute,omitempty"`
	WriteBatchSize    int `json:"write_batch_size,omitempty" yaml:"write_batch_size,omitempty"`

	MaxRetries        int     `json:"max_retries,omitempty" yaml:"max_retries,omitempty"`
	RetryInitialDelay float64 `json:"retry_initial_delay,omitempty" yaml:"retry_initial_delay,omitempty"`
	BackoffFactor     float64 `json:"backoff_factor,omitempty" yaml:"backoff_factor,omitempty"`

	LogLevel string `json:"log_level,omitempty" yaml:"log_level,omitempty"`
}

// Default returns a Config with sensible baseline values.
func Default() Config {
	return Config{
		InputFile:         "input.jsonl",
		OutputFile:        "output.jsonl",
		ErrorFile:         "errors.jsonl",
		IDKey:             "id",
		MaxConcurrency:    10,
		RequestsPerMinute: 0,
		WriteBatchSize:    50,
		MaxRetries:        3,
		RetryInitialDelay: 1.0,
		BackoffFactor:     2.0,
		LogLevel:          "info",
	}
}

// Merge overlays set values from override onto base: non-empty strings
// and positive numbers. Zero and negative numbers leave base unchanged.
func Merge(base, override Config) Config {
	result := base

	if override.InputFile != "" {
		result.InputFile = override.InputFile
	}
	if override.OutputFile != "" {
		result.OutputFile = override.OutputFile
	}
	if override.ErrorFile != "" {
		result.ErrorFile = override.ErrorFile
	}
	if override.LogFile != "" {
		result.LogFile = override.LogFile
	}
	if override.IDKey != "" {
		result.IDKey = override.IDKey
	}
	if override.RerunKey != "" {
		result.RerunKey = override.RerunKey
	}
	if override.MaxConcurrency > 0 {
		result.MaxConcurrency = override.MaxConcurrency
	}
	if override.RequestsPerMinute > 0 {
		result.RequestsPerMinute = override.RequestsPerMinute
	}
	if override.WriteBatchSize > 0 {
		result.WriteBatchSize = override.WriteBatchSize
	}
	if override.MaxRetries > 0 {
		result.MaxRetries = override.MaxRetries
	}
	if override.RetryInitialDelay > 0 {
		result.RetryInitialDelay = override.RetryInitialDelay
	}
	if override.BackoffFactor > 0 {
		result.BackoffFactor = override.BackoffFactor
	}
	if override.LogLevel != "" {
		result.LogLevel = override.LogLevel
	}

	return result
}

// FromEnv applies environment overrides to the provided config. It loads a
// .env file from the working directory first, if one is present, so local
// development mirrors what a deployed process sees from its real
// environment.
func FromEnv(base Config) Config {
	_ = godotenv.Load()

	result := base

	if v := os.Getenv("INPUT_FILE"); v != "" {
		result.InputFile = v
	}
	if v := os.Getenv("OUTPUT_FILE"); v != "" {
		result.OutputFile = v
	}
	if v := os.Getenv("ERROR_FILE"); v != "" {
		result.ErrorFile = v
	}
	if v := os.Getenv("LOG_FILE"); v != "" {
		result.LogFile = v
	}
	if v := os.Getenv("ID_KEY"); v != "" {
		result.IDKey = v
	}
	if v := os.Getenv("RERUN_KEY"); v != "" {
		result.RerunKey = v
	}
	if v := os.Getenv("MAX_CONCURRENCY"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			result.MaxConcurrency = parsed
		}
	}
	if v := os.Getenv("REQUESTS_PER_MINUTE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			result.RequestsPerMinute = parsed
		}
	}
	if v := os.Getenv("WRITE_BATCH_SIZE"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			result.WriteBatchSize = parsed
		}
	}
	if v := os.Getenv("MAX_RETRIES"); v != "" {
		if parsed, err := strconv.Atoi(v); err == nil {
			result.MaxRetries = parsed
		}
	}
	if v := os.Getenv("RETRY_INITIAL_DELAY"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			result.RetryInitialDelay = parsed
		}
	}
	if v := os.Getenv("BACKOFF_FACTOR"); v != "" {
		if parsed, err := strconv.ParseFloat(v, 64); err == nil {
			result.BackoffFactor = parsed
		}
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		result.LogLevel = v
	}

	return result
}

// Load reads a YAML config file into Config.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Config{}, fmt.Errorf("parse yaml: %w", err)
	}
	return cfg, nil
}

// Validate checks the configuration for common misconfigurations and returns
// an error describing all issues found.
func Validate(cfg Config) error {
	var errs []string

	if cfg.InputFile == "" {
		errs = append(errs, "input_file is required")
	}
	if cfg.OutputFile == "" {
		errs = append(errs, "output_file is required")
	}
	if cfg.ErrorFile == "" {
		errs = append(errs, "error_file is required")
	}
	if cfg.IDKey == "" {
		errs = append(errs, "id_key is required")
	}
	if cfg.MaxConcurrency <= 0 {
		errs = append(errs, fmt.Sprintf("max_concurrency must be positive: %d", cfg.MaxConcurrency))
	}
	if cfg.RequestsPerMinute < 0 {
		errs = append(errs, fmt.Sprintf("requests_per_minute cannot be negative: %d", cfg.RequestsPerMinute))
	}
	if cfg.WriteBatchSize <= 0 {
		errs = append(errs, fmt.Sprintf("write_batch_size must be positive: %d", cfg.WriteBatchSize))
	}
	if cfg.MaxRetries < 0 {
		errs = append(errs, fmt.Sprintf("max_retries cannot be negative: %d", cfg.MaxRetries))
	}
	if cfg.RetryInitialDelay < 0 {
		errs = append(errs, fmt.Sprintf("retry_initial_delay cannot be negative: %.2f", cfg.RetryInitialDelay))
	}
	if cfg.BackoffFactor <= 1 {
		errs = append(errs, fmt.Sprintf("backoff_factor must be greater than 1: %.2f", cfg.BackoffFactor))
	}

	validLogLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if cfg.LogLevel != "" && !validLogLevels[strings.ToLower(cfg.LogLevel)] {
		errs = append(errs, fmt.Sprintf("invalid log_level %q: must be debug, info, warn, or error", cfg.LogLevel))
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// ToRunOptions converts a validated Config into the engine's RunOptions.
func (c Config) ToRunOptions() engine.RunOptions {
	return engine.RunOptions{
		InputFile:         c.InputFile,
		OutputFile:        c.OutputFile,
		ErrorFile:         c.ErrorFile,
		IDKey:             c.IDKey,
		RerunKey:          c.RerunKey,
		MaxConcurrency:    c.MaxConcurrency,
		RequestsPerMinute: c.RequestsPerMinute,
		WriteBatchSize:    c.WriteBatchSize,
		MaxRetries:        c.MaxRetries,
		RetryInitialDelay: time.Duration(c.RetryInitialDelay * float64(time.Second)),
		BackoffFactor:     c.BackoffFactor,
	}
}
