// Package config
package config

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/pairs-sentinel/internal/timeframe"
)

/*
YAML config example:
db_conn_str: "host=localhost port=5432 user=postgres dbname=pairs sslmode=disable"
stream_url: "wss://stream.binance.com:9443"
symbols: ["BTCUSDT", "ETHUSDT"]
pair: ["BTCUSDT", "ETHUSDT"]
timeframe: "1s"
queue_capacity: 1000
window_capacity: 10000
zscore_window: 20
correlation_window: 20
adf_lags: 0
eval_interval: 2s
backoff_base: 1s
backoff_max: 30s
alert_history_limit: 500
correlation_floor: 0.5
stationary_pvalue: 0.05
metrics_addr: ":9100"
*/

// Config is the immutable configuration object passed to components at
// startup. The core consumes it; ownership stays with the process entry
// point.
type Config struct {
	DBConnStr string   `yaml:"db_conn_str"`
	DBMaxOpen int      `yaml:"db_max_open"`
	DBMaxIdle int      `yaml:"db_max_idle"`
	StreamURL string   `yaml:"stream_url"`
	Symbols   []string `yaml:"symbols"`
	// Pair is [Y, X]: the dependent leg first.
	Pair              []string      `yaml:"pair"`
	Timeframe         string        `yaml:"timeframe"`
	QueueCapacity     int           `yaml:"queue_capacity"`
	WindowCapacity    int           `yaml:"window_capacity"`
	ZScoreWindow      int           `yaml:"zscore_window"`
	CorrelationWindow int           `yaml:"correlation_window"`
	ADFLags           int           `yaml:"adf_lags"`
	EvalInterval      time.Duration `yaml:"eval_interval"`
	EvalLookback      time.Duration `yaml:"eval_lookback"`
	BackoffBase       time.Duration `yaml:"backoff_base"`
	BackoffMax        time.Duration `yaml:"backoff_max"`
	AlertHistoryLimit int           `yaml:"alert_history_limit"`
	CorrelationFloor  float64       `yaml:"correlation_floor"`
	StationaryPValue  float64       `yaml:"stationary_pvalue"`
	MetricsAddr       string        `yaml:"metrics_addr"`
	ExportPath        string        `yaml:"export_path"`
}

// Load builds the configuration from flags and the environment (.env files
// are honored). When -config names a YAML file, the file is the single source
// of truth and the other flags are ignored.
func Load() (Config, error) {
	// .env is optional; ignore absence.
	_ = godotenv.Load()

	configFile := flag.String("config", "", "Path to YAML config file")
	streamURL := flag.String("stream-url", "wss://stream.binance.com:9443", "Websocket feed base URL")
	symbolsFlag := flag.String("symbols", "BTCUSDT,ETHUSDT", "Comma-separated list of symbols to ingest")
	pairFlag := flag.String("pair", "BTCUSDT,ETHUSDT", "Pair to evaluate as Y,X")
	tf := flag.String("timeframe", "1s", "Bar timeframe for evaluation")
	queueCapacity := flag.Int("queue-capacity", 1000, "Bounded ingest queue capacity")
	windowCapacity := flag.Int("window-capacity", 10000, "Recent-tick window capacity per symbol")
	zscoreWindow := flag.Int("zscore-window", 20, "Rolling window for z-score")
	corrWindow := flag.Int("correlation-window", 20, "Rolling window for correlation")
	adfLags := flag.Int("adf-lags", 0, "ADF lag order (0 = auto rule)")
	evalInterval := flag.Duration("eval-interval", 2*time.Second, "Evaluation cycle interval")
	evalLookback := flag.Duration("eval-lookback", 0, "Bar lookback per cycle (0 = derived from window)")
	backoffBase := flag.Duration("backoff-base", time.Second, "Reconnect backoff base delay")
	backoffMax := flag.Duration("backoff-max", 30*time.Second, "Reconnect backoff cap")
	alertHistory := flag.Int("alert-history", 500, "Alert history retention count (0 = unlimited)")
	corrFloor := flag.Float64("correlation-floor", 0.5, "Correlation breakdown floor")
	stationaryP := flag.Float64("stationary-pvalue", 0.05, "ADF p-value threshold for stationarity")
	metricsAddr := flag.String("metrics-addr", ":9100", "Prometheus metrics listen address")
	exportPath := flag.String("export", "", "Write resampled bars as CSV to this path on shutdown")
	flag.Parse()

	var cfg Config
	if *configFile != "" {
		data, err := os.ReadFile(*configFile)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config file: %w", err)
		}
	} else {
		cfg = Config{
			DBConnStr:         os.Getenv("DB_CONN_STR"),
			DBMaxOpen:         10,
			DBMaxIdle:         5,
			StreamURL:         *streamURL,
			Symbols:           splitList(*symbolsFlag),
			Pair:              splitList(*pairFlag),
			Timeframe:         *tf,
			QueueCapacity:     *queueCapacity,
			WindowCapacity:    *windowCapacity,
			ZScoreWindow:      *zscoreWindow,
			CorrelationWindow: *corrWindow,
			ADFLags:           *adfLags,
			EvalInterval:      *evalInterval,
			EvalLookback:      *evalLookback,
			BackoffBase:       *backoffBase,
			BackoffMax:        *backoffMax,
			AlertHistoryLimit: *alertHistory,
			CorrelationFloor:  *corrFloor,
			StationaryPValue:  *stationaryP,
			MetricsAddr:       *metricsAddr,
			ExportPath:        *exportPath,
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate fails fast on configuration mistakes. Symbols and pair legs are
// canonicalized to upper case so config, feed and store all agree regardless
// of how the YAML file spells them.
func (c *Config) Validate() error {
	c.Symbols = normalizeSymbols(c.Symbols)
	c.Pair = normalizeSymbols(c.Pair)

	if len(c.Symbols) == 0 {
		return fmt.Errorf("no symbols configured")
	}
	if len(c.Pair) != 2 {
		return fmt.Errorf("pair must name exactly two symbols, got %d", len(c.Pair))
	}
	known := make(map[string]bool, len(c.Symbols))
	for _, s := range c.Symbols {
		known[s] = true
	}
	for _, leg := range c.Pair {
		if !known[leg] {
			return fmt.Errorf("pair leg %s is not in the symbol list", leg)
		}
	}
	if !timeframe.IsValidTimeframe(c.Timeframe) {
		return timeframe.ErrInvalidTimeframe{Timeframe: c.Timeframe}
	}
	if c.StreamURL == "" {
		return fmt.Errorf("stream url cannot be empty")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, strings.ToUpper(part))
		}
	}
	return out
}

func normalizeSymbols(in []string) []string {
	var out []string
	for _, s := range in {
		s = strings.ToUpper(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
