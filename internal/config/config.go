// Package config loads the agent configuration from the environment,
// with an optional YAML file overlay for deployments that prefer files
// over flags.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is everything the process needs at startup. Zero values are
// filled by Default before the environment is consulted.
type Config struct {
	// ListenAddr is the operator surface bind address.
	ListenAddr string `yaml:"listen_addr"`

	// StorePath is the SQLite knowledge database location.
	StorePath string `yaml:"store_path"`

	// DraftServiceURL points at the external summarizer/responder. Empty
	// selects the offline template drafter.
	DraftServiceURL string `yaml:"draft_service_url"`

	// DraftTimeout bounds a single drafting call.
	DraftTimeout time.Duration `yaml:"draft_timeout"`

	// NATSURL enables the NATS breach notifier. Empty selects the log
	// notifier.
	NATSURL string `yaml:"nats_url"`

	// BreachSubject overrides the NATS subject for SLA alerts.
	BreachSubject string `yaml:"breach_subject"`

	// EnableLearning gates pattern suggestion and outcome recording.
	EnableLearning bool `yaml:"enable_learning"`

	// EnableResponseProcessing gates the enhancement pipeline.
	EnableResponseProcessing bool `yaml:"enable_response_processing"`

	// LearningThreshold is the minimum success score for a usable pattern.
	LearningThreshold float64 `yaml:"learning_threshold"`

	// MinSamplesForLearning is the evidence floor for pattern trust.
	MinSamplesForLearning int `yaml:"min_samples_for_learning"`

	// KnowledgeCleanupDays is the age cutoff for knowledge cleanup.
	KnowledgeCleanupDays int `yaml:"knowledge_cleanup_days"`

	// HistorySize bounds the in-memory session history.
	HistorySize int `yaml:"history_size"`
}

// Default returns the stock configuration.
func Default() Config {
	return Config{
		ListenAddr:               ":8080",
		StorePath:                "database/knowledge.db",
		DraftTimeout:             30 * time.Second,
		EnableLearning:           true,
		EnableResponseProcessing: true,
		LearningThreshold:        0.7,
		MinSamplesForLearning:    10,
		KnowledgeCleanupDays:     90,
		HistorySize:              256,
	}
}

// FromEnv builds the configuration from defaults, an optional YAML file
// named by AGENT_CONFIG, then environment variable overrides, in that
// order of precedence (environment wins).
func FromEnv() (Config, error) {
	cfg := Default()

	if path := os.Getenv("AGENT_CONFIG"); path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}

	cfg.ListenAddr = getEnv("LISTEN_ADDR", cfg.ListenAddr)
	cfg.StorePath = getEnv("KNOWLEDGE_DB_PATH", cfg.StorePath)
	cfg.DraftServiceURL = getEnv("DRAFT_SERVICE_URL", cfg.DraftServiceURL)
	cfg.NATSURL = getEnv("NATS_URL", cfg.NATSURL)
	cfg.BreachSubject = getEnv("SLA_BREACH_SUBJECT", cfg.BreachSubject)

	var err error
	if cfg.EnableLearning, err = getBool("ENABLE_LEARNING", cfg.EnableLearning); err != nil {
		return Config{}, err
	}
	if cfg.EnableResponseProcessing, err = getBool("ENABLE_RESPONSE_PROCESSING", cfg.EnableResponseProcessing); err != nil {
		return Config{}, err
	}
	if cfg.LearningThreshold, err = getFloat("LEARNING_THRESHOLD", cfg.LearningThreshold); err != nil {
		return Config{}, err
	}
	if cfg.MinSamplesForLearning, err = getInt("MIN_SAMPLES_FOR_LEARNING", cfg.MinSamplesForLearning); err != nil {
		return Config{}, err
	}
	if cfg.KnowledgeCleanupDays, err = getInt("KNOWLEDGE_CLEANUP_DAYS", cfg.KnowledgeCleanupDays); err != nil {
		return Config{}, err
	}
	if cfg.HistorySize, err = getInt("HISTORY_SIZE", cfg.HistorySize); err != nil {
		return Config{}, err
	}
	if d := os.Getenv("DRAFT_TIMEOUT"); d != "" {
		cfg.DraftTimeout, err = time.ParseDuration(d)
		if err != nil {
			return Config{}, fmt.Errorf("DRAFT_TIMEOUT: %w", err)
		}
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}
	return nil
}

func (c Config) validate() error {
	if c.LearningThreshold < 0 || c.LearningThreshold > 1 {
		return fmt.Errorf("LEARNING_THRESHOLD must be in [0,1], got %v", c.LearningThreshold)
	}
	if c.MinSamplesForLearning < 0 {
		return fmt.Errorf("MIN_SAMPLES_FOR_LEARNING must be non-negative, got %d", c.MinSamplesForLearning)
	}
	if c.KnowledgeCleanupDays <= 0 {
		return fmt.Errorf("KNOWLEDGE_CLEANUP_DAYS must be positive, got %d", c.KnowledgeCleanupDays)
	}
	return nil
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getBool(key string, fallback bool) (bool, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return false, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getInt(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getFloat(key string, fallback float64) (float64, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", key, err)
	}
	return f, nil
}
