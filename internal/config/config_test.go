package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"
)

func validConfig() Config {
	return Config{
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 8080,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Game: GameConfig{
			QuestionDuration:    20 * time.Second,
			AnswerDuration:      45 * time.Second,
			TranslationDuration: 15 * time.Second,
		},
		AI: AIConfig{
			APIKey:         "test-key",
			Model:          "claude-haiku-4-5",
			MaxTokens:      256,
			RequestTimeout: 10 * time.Second,
		},
	}
}

func TestValidate_ValidConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_BadPort(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
}

func TestValidate_BadLogging(t *testing.T) {
	cfg := validConfig()
	cfg.Logging.Level = "trace"
	require.Error(t, cfg.Validate())

	cfg = validConfig()
	cfg.Logging.Format = "xml"
	require.Error(t, cfg.Validate())
}

func TestValidate_BadDurations(t *testing.T) {
	cfg := validConfig()
	cfg.Game.QuestionDuration = 0
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game.question_duration")

	cfg = validConfig()
	cfg.Game.TranslationDuration = 500 * time.Millisecond
	err = cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "game.translation_duration")
}

func TestValidate_AIDisabledSkipsChecks(t *testing.T) {
	cfg := validConfig()
	cfg.AI = AIConfig{}
	assert.NoError(t, cfg.Validate(), "empty api_key disables the relay and its validation")
	assert.False(t, cfg.AI.Enabled())
}

func TestValidate_AIEnabledRequiresModel(t *testing.T) {
	cfg := validConfig()
	cfg.AI.Model = ""
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ai.model")
}

func TestValidate_AggregatesViolations(t *testing.T) {
	cfg := validConfig()
	cfg.Server.Port = -1
	cfg.Logging.Level = "loud"
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")
	assert.Contains(t, err.Error(), "logging.level")
}

func TestLoad_FromFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	content := `
server:
  host: 127.0.0.1
  port: 9090
logging:
  level: debug
  format: console
game:
  question_duration: 5s
  answer_duration: 10s
  translation_duration: 3s
`
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "127.0.0.1:9090", cfg.Server.Addr())
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.Equal(t, 5*time.Second, cfg.Game.QuestionDuration)
	assert.False(t, cfg.AI.Enabled())
}

func TestLoad_DefaultsApply(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  host: localhost\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, 45*time.Second, cfg.Game.AnswerDuration)
	assert.Equal(t, int64(256), cfg.AI.MaxTokens)
}

func TestLoad_EnvOverride(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server:\n  port: 8080\n"), 0o644))

	t.Setenv("PARLOR_SERVER_PORT", "9999")
	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9999, cfg.Server.Port)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.yaml")
	assert.Error(t, err)
}

func TestValidate_PortRangeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := validConfig()
		cfg.Server.Port = rapid.IntRange(1, 65535).Draw(rt, "port")
		if err := cfg.Validate(); err != nil {
			rt.Fatalf("port in range rejected: %v", err)
		}
	})
}

func TestValidate_PortOutOfRangeProperty(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		cfg := validConfig()
		cfg.Server.Port = rapid.OneOf(
			rapid.IntRange(-1000, 0),
			rapid.IntRange(65536, 100000),
		).Draw(rt, "port")
		if err := cfg.Validate(); err == nil {
			rt.Fatalf("port %d out of range accepted", cfg.Server.Port)
		}
	})
}
