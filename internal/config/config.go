// Package config provides Viper-based configuration loading for the party
// game session server.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ServerConfig holds the websocket acceptor settings.
type ServerConfig struct {
	// Host is the bind address for the HTTP listener.
	Host string `mapstructure:"host"`
	// Port is the TCP port for the HTTP listener.
	Port int `mapstructure:"port"`
}

// Addr returns the "host:port" listen address.
//
// Postcondition: Returns a non-empty string in "host:port" format.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// LoggingConfig holds structured logging settings.
type LoggingConfig struct {
	// Level is the minimum log level: "debug", "info", "warn", "error".
	Level string `mapstructure:"level"`
	// Format is the log output format: "json" or "console".
	Format string `mapstructure:"format"`
}

// GameConfig holds the round pacing settings.
type GameConfig struct {
	// QuestionDuration is how long the host has to pose the prompt.
	QuestionDuration time.Duration `mapstructure:"question_duration"`
	// AnswerDuration is how long players have to send their one message.
	AnswerDuration time.Duration `mapstructure:"answer_duration"`
	// TranslationDuration is how long results are on screen before the
	// next round.
	TranslationDuration time.Duration `mapstructure:"translation_duration"`
}

// AIConfig holds the translation relay settings. An empty APIKey disables
// the relay entirely; rounds still cycle, without translations.
type AIConfig struct {
	// APIKey authenticates against the model API.
	APIKey string `mapstructure:"api_key"`
	// Model names the model used for translations.
	Model string `mapstructure:"model"`
	// MaxTokens bounds the length of a translation.
	MaxTokens int64 `mapstructure:"max_tokens"`
	// RequestTimeout bounds one translation round-trip.
	RequestTimeout time.Duration `mapstructure:"request_timeout"`
	// PromptFile optionally overrides the built-in prompt text (YAML).
	PromptFile string `mapstructure:"prompt_file"`
}

// Enabled reports whether the relay is configured to run.
func (a AIConfig) Enabled() bool {
	return a.APIKey != ""
}

// Config is the top-level application configuration.
type Config struct {
	Server  ServerConfig  `mapstructure:"server"`
	Logging LoggingConfig `mapstructure:"logging"`
	Game    GameConfig    `mapstructure:"game"`
	AI      AIConfig      `mapstructure:"ai"`
}

// Validate checks all configuration invariants.
//
// Postcondition: Returns nil if configuration is valid, or an error describing all violations.
func (c Config) Validate() error {
	var errs []string

	if err := validateServer(c.Server); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateLogging(c.Logging); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateGame(c.Game); err != nil {
		errs = append(errs, err.Error())
	}
	if err := validateAI(c.AI); err != nil {
		errs = append(errs, err.Error())
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errs, "; "))
	}
	return nil
}

func validateServer(s ServerConfig) error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("server.port must be 1-65535, got %d", s.Port)
	}
	return nil
}

func validateLogging(l LoggingConfig) error {
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[l.Level] {
		return fmt.Errorf("logging.level must be one of [debug, info, warn, error], got %q", l.Level)
	}
	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("logging.format must be one of [json, console], got %q", l.Format)
	}
	return nil
}

func validateGame(g GameConfig) error {
	var errs []string
	if g.QuestionDuration <= 0 {
		errs = append(errs, fmt.Sprintf("game.question_duration must be positive, got %s", g.QuestionDuration))
	}
	if g.AnswerDuration <= 0 {
		errs = append(errs, fmt.Sprintf("game.answer_duration must be positive, got %s", g.AnswerDuration))
	}
	if g.TranslationDuration < time.Second {
		errs = append(errs, fmt.Sprintf("game.translation_duration must be at least 1s, got %s", g.TranslationDuration))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

func validateAI(a AIConfig) error {
	if !a.Enabled() {
		return nil
	}
	var errs []string
	if a.Model == "" {
		errs = append(errs, "ai.model must not be empty when ai.api_key is set")
	}
	if a.MaxTokens < 1 {
		errs = append(errs, fmt.Sprintf("ai.max_tokens must be >= 1, got %d", a.MaxTokens))
	}
	if a.RequestTimeout <= 0 {
		errs = append(errs, fmt.Sprintf("ai.request_timeout must be positive, got %s", a.RequestTimeout))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%s", strings.Join(errs, "; "))
	}
	return nil
}

// Load reads configuration from the given file path, applies environment variable
// overrides, and validates the result.
//
// Precondition: path must be a valid file path to a YAML configuration file.
// Postcondition: Returns a valid Config or a non-nil error.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetConfigFile(path)

	// Environment variable overrides with PARLOR_ prefix
	v.SetEnvPrefix("PARLOR")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return Config{}, fmt.Errorf("reading config file: %w", err)
	}

	return LoadFromViper(v)
}

// LoadFromViper builds a Config from an already-configured Viper instance.
//
// Precondition: v must be non-nil and have configuration values set.
// Postcondition: Returns a valid Config or a non-nil error.
func LoadFromViper(v *viper.Viper) (Config, error) {
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("game.question_duration", "20s")
	v.SetDefault("game.answer_duration", "45s")
	v.SetDefault("game.translation_duration", "15s")

	v.SetDefault("ai.model", "claude-haiku-4-5")
	v.SetDefault("ai.max_tokens", 256)
	v.SetDefault("ai.request_timeout", "10s")
}
