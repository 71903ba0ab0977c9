package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pairs-sentinel/internal/timeframe"
)

func validConfig() Config {
	return Config{
		StreamURL:     "wss://stream.binance.com:9443",
		Symbols:       []string{"BTCUSDT", "ETHUSDT"},
		Pair:          []string{"BTCUSDT", "ETHUSDT"},
		Timeframe:     "1s",
		QueueCapacity: 1000,
		EvalInterval:  2 * time.Second,
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:   "valid",
			mutate: func(c *Config) {},
		},
		{
			name:    "no symbols",
			mutate:  func(c *Config) { c.Symbols = nil },
			wantErr: "no symbols",
		},
		{
			name:    "pair with one leg",
			mutate:  func(c *Config) { c.Pair = []string{"BTCUSDT"} },
			wantErr: "exactly two symbols",
		},
		{
			name:    "pair leg outside symbol list",
			mutate:  func(c *Config) { c.Pair = []string{"BTCUSDT", "DOGEUSDT"} },
			wantErr: "not in the symbol list",
		},
		{
			name:    "unsupported timeframe",
			mutate:  func(c *Config) { c.Timeframe = "1h" },
			wantErr: "invalid timeframe",
		},
		{
			name:    "empty stream url",
			mutate:  func(c *Config) { c.StreamURL = "" },
			wantErr: "stream url",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestConfigValidate_PairLegsCaseInsensitive(t *testing.T) {
	cfg := validConfig()
	cfg.Pair = []string{"btcusdt", "ethusdt"}
	assert.NoError(t, cfg.Validate())
}

func TestConfigValidate_NormalizesSymbolCase(t *testing.T) {
	// YAML files may spell symbols any way; after validation they must
	// match the upper-case form ticks carry off the feed.
	cfg := validConfig()
	cfg.Symbols = []string{" btcusdt", "ethusdt "}
	cfg.Pair = []string{"btcusdt", "Ethusdt"}

	require.NoError(t, cfg.Validate())
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Symbols)
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, cfg.Pair)
}

func TestConfigValidate_TimeframeErrorType(t *testing.T) {
	cfg := validConfig()
	cfg.Timeframe = "7s"
	err := cfg.Validate()
	require.Error(t, err)
	assert.ErrorAs(t, err, &timeframe.ErrInvalidTimeframe{})
}

func TestSplitList(t *testing.T) {
	assert.Equal(t, []string{"BTCUSDT", "ETHUSDT"}, splitList("btcusdt, ethusdt"))
	assert.Equal(t, []string{"BTCUSDT"}, splitList("BTCUSDT,,  "))
	assert.Nil(t, splitList(""))
}
