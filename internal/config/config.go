// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// CheckpointPolicy controls when a repository's checkpoint advances after a
// sync pass.
type CheckpointPolicy string

const (
	// CheckpointAlways advances the checkpoint even when some candidate
	// commits failed to store. Bounds the fetch window at the cost of
	// possibly skipping commits a retry would have fixed.
	CheckpointAlways CheckpointPolicy = "always"
	// CheckpointOnSuccess advances only when every candidate for the
	// repository was processed without error.
	CheckpointOnSuccess CheckpointPolicy = "on-success"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel         string        `mapstructure:"LOG_LEVEL"`
	ListenAddr       string        `mapstructure:"LISTEN_ADDR"`
	DBURL            string        `mapstructure:"DB_URL"`
	GithubToken      string        `mapstructure:"GITHUB_TOKEN"`
	SyncLookback     time.Duration `mapstructure:"SYNC_LOOKBACK"`
	SyncTimeout      time.Duration `mapstructure:"SYNC_TIMEOUT"`
	CheckpointPolicy string        `mapstructure:"CHECKPOINT_POLICY"`

	AIProvider string `mapstructure:"AI_PROVIDER"`
	AIAPIKey   string `mapstructure:"AI_API_KEY"`
	AIModel    string `mapstructure:"AI_MODEL"`

	RelayURL    string `mapstructure:"RELAY_URL"`
	RelayToken  string `mapstructure:"RELAY_TOKEN"`
	RelayAuthor string `mapstructure:"RELAY_AUTHOR"`
}

// LoadConfig reads configuration from an optional .env file and the
// environment.
func LoadConfig() (*Config, error) {
	viper.SetDefault("LOG_LEVEL", "info")
	viper.SetDefault("LISTEN_ADDR", ":8080")
	viper.SetDefault("SYNC_LOOKBACK", "168h") // 7 days
	viper.SetDefault("SYNC_TIMEOUT", "10m")
	viper.SetDefault("CHECKPOINT_POLICY", string(CheckpointAlways))
	viper.SetDefault("AI_PROVIDER", "anthropic")

	viper.SetConfigName(".env")
	viper.SetConfigType("env")
	viper.AddConfigPath(".")
	_ = viper.ReadInConfig() // Ignore error if file not found

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	if cfg.DBURL == "" {
		return nil, errors.New("DB_URL is a required configuration field")
	}
	if cfg.GithubToken == "" {
		return nil, errors.New("GITHUB_TOKEN is a required configuration field")
	}
	if cfg.SyncLookback <= 0 {
		return nil, errors.New("SYNC_LOOKBACK must be a positive duration")
	}

	switch CheckpointPolicy(cfg.CheckpointPolicy) {
	case CheckpointAlways, CheckpointOnSuccess:
	default:
		return nil, fmt.Errorf("CHECKPOINT_POLICY must be %q or %q", CheckpointAlways, CheckpointOnSuccess)
	}

	switch cfg.AIProvider {
	case "anthropic", "openai":
	default:
		return nil, fmt.Errorf("AI_PROVIDER must be \"anthropic\" or \"openai\", got %q", cfg.AIProvider)
	}

	return &cfg, nil
}
