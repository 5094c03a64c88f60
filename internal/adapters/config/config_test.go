package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quorum/pkg/errors"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "quorum", cfg.App.Name)
	assert.Equal(t, 30*time.Second, cfg.Workflow.StageTimeout)
	assert.Equal(t, 500, cfg.Workflow.HistorySize)
	assert.Equal(t, map[string]float64{"news": 0.2, "financial": 0.4, "technical": 0.4}, cfg.Fusion.Weights)
	assert.Equal(t, 9, cfg.Execution.OpenHour)
	assert.Equal(t, 18, cfg.Execution.CloseHour)
	assert.Equal(t, "static", cfg.MarketData.Provider)
	assert.False(t, cfg.Kafka.Enabled())
	assert.Equal(t, "localhost:6379", cfg.Redis.Addr())
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("WORKERS_WATCHLIST", "THYAO,ASELS")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092,kafka-2:9092")
	t.Setenv("FUSION_WEIGHTS", "news:0.5,technical:0.5")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, []string{"THYAO", "ASELS"}, cfg.Workers.Watchlist)
	assert.True(t, cfg.Kafka.Enabled())
	assert.Len(t, cfg.Fusion.Weights, 2)
}

func TestValidate(t *testing.T) {
	t.Setenv("EXECUTION_OPEN_HOUR", "19")
	t.Setenv("FUSION_WEIGHTS", "news:0,technical:1")
	t.Setenv("SIZING_PORTFOLIO_VALUE", "0")

	_, err := Load()
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrInvalidInput)

	var multi *errors.MultiError
	require.True(t, errors.As(err, &multi))
	assert.Len(t, multi.Errors, 3)
}
