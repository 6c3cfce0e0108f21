package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "dev", cfg.AppEnv)
	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, "valuation-orchestrate", cfg.TopicOrchestrate)
	assert.Equal(t, 30*time.Second, cfg.GammaPollInterval)
	assert.Equal(t, 480*time.Second, cfg.GammaPollBudget)
	assert.Equal(t, 3, cfg.GammaMaxAttempts)
	assert.Equal(t, 3, cfg.StageMaxAttempts)
	assert.True(t, cfg.IsDev())
	assert.False(t, cfg.MailEnabled())
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("APP_ENV", "prod")
	t.Setenv("KAFKA_BROKERS", "b1:9092,b2:9092")
	t.Setenv("SMTP_HOST", "smtp.example.com")

	cfg, err := Load()
	require.NoError(t, err)
	assert.True(t, cfg.IsProd())
	assert.Equal(t, []string{"b1:9092", "b2:9092"}, cfg.KafkaBrokers)
	assert.True(t, cfg.MailEnabled())
}

func TestTestModeShrinksIntervals(t *testing.T) {
	t.Setenv("APP_ENV", "test")
	cfg, err := Load()
	require.NoError(t, err)

	interval, budget := cfg.GammaPolling()
	assert.Less(t, interval, time.Second)
	assert.Less(t, budget, time.Second)
	assert.Equal(t, time.Millisecond, cfg.StageBackoff())
}
