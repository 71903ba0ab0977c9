package main

import (
	"context"
	"database/sql"
	"encoding/csv"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	_ "github.com/lib/pq"

	"github.com/pairs-sentinel/internal/alert"
	"github.com/pairs-sentinel/internal/config"
	"github.com/pairs-sentinel/internal/db"
	"github.com/pairs-sentinel/internal/ingest"
	"github.com/pairs-sentinel/internal/metrics"
	"github.com/pairs-sentinel/internal/resample"
	"github.com/pairs-sentinel/internal/statarb"
	"github.com/pairs-sentinel/internal/stream"
)

// shutdownGrace bounds how long the drain loop may keep flushing after a
// termination signal.
const shutdownGrace = 5 * time.Second

func openStorage(ctx context.Context, cfg config.Config) (db.Storage, error) {
	if cfg.DBConnStr == "" {
		log.Println("Main | No DB_CONN_STR set, using in-memory tick store")
		return db.NewMemory(), nil
	}

	database, err := sql.Open("postgres", cfg.DBConnStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	database.SetMaxOpenConns(cfg.DBMaxOpen)
	database.SetMaxIdleConns(cfg.DBMaxIdle)

	if err := database.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("database unreachable: %w", err)
	}

	storage, err := db.NewPostgres(database)
	if err != nil {
		return nil, err
	}
	if err := storage.InitSchema(ctx); err != nil {
		return nil, err
	}
	return storage, nil
}

// exportBars writes the latest resampled bars for each symbol to a CSV file.
func exportBars(ctx context.Context, r *resample.Resampler, symbols []string, tf, path string, lookback time.Duration) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create export file: %w", err)
	}
	defer f.Close()

	w := csv.NewWriter(f)
	defer w.Flush()

	if err := w.Write([]string{"symbol", "timeframe", "bucket_start", "open", "high", "low", "close", "volume", "trade_count"}); err != nil {
		return err
	}

	end := time.Now().UTC()
	start := end.Add(-lookback)
	for _, symbol := range symbols {
		bars, err := r.Resample(ctx, symbol, tf, start, end)
		if err != nil {
			return fmt.Errorf("failed to resample %s for export: %w", symbol, err)
		}
		for _, b := range bars {
			record := []string{
				b.Symbol,
				b.Timeframe,
				strconv.FormatInt(b.BucketStart.UnixMilli(), 10),
				strconv.FormatFloat(b.Open, 'f', -1, 64),
				strconv.FormatFloat(b.High, 'f', -1, 64),
				strconv.FormatFloat(b.Low, 'f', -1, 64),
				strconv.FormatFloat(b.Close, 'f', -1, 64),
				strconv.FormatFloat(b.Volume, 'f', -1, 64),
				strconv.Itoa(b.TradeCount),
			}
			if err := w.Write(record); err != nil {
				return err
			}
		}
	}
	return nil
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Main | Invalid configuration: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Storage unavailability at startup is the only fatal storage error.
	storage, err := openStorage(ctx, cfg)
	if err != nil {
		log.Fatalf("Main | Failed to open tick store: %v", err)
	}

	queue := stream.NewQueue(cfg.QueueCapacity)
	window := ingest.NewRecentWindow(cfg.WindowCapacity)
	resampler := resample.NewResampler(storage, window)

	client, err := stream.NewClient(stream.ClientConfig{
		URL:         cfg.StreamURL,
		Symbols:     cfg.Symbols,
		BackoffBase: cfg.BackoffBase,
		BackoffMax:  cfg.BackoffMax,
	}, queue)
	if err != nil {
		log.Fatalf("Main | Failed to build stream client: %v", err)
	}
	client.OnStateChange(func(s stream.ConnectionState) {
		log.Printf("Main | Stream connection %s", s)
	})

	worker := ingest.NewWorker(queue, storage, window)

	engine := statarb.NewEngine(statarb.EngineConfig{
		PairID:            cfg.Pair[0] + "-" + cfg.Pair[1],
		Timeframe:         cfg.Timeframe,
		Window:            cfg.ZScoreWindow,
		CorrelationWindow: cfg.CorrelationWindow,
		ADFLags:           cfg.ADFLags,
		StationaryPValue:  cfg.StationaryPValue,
	})
	alerts := alert.NewDefaultManager(cfg.AlertHistoryLimit, cfg.CorrelationFloor)

	evaluator, err := statarb.NewEvaluator(statarb.EvaluatorConfig{
		SymbolY:  cfg.Pair[0],
		SymbolX:  cfg.Pair[1],
		Interval: cfg.EvalInterval,
		Lookback: cfg.EvalLookback,
	}, resampler, engine, alerts)
	if err != nil {
		log.Fatalf("Main | Failed to build evaluator: %v", err)
	}

	if cfg.MetricsAddr != "" {
		metrics.Serve(cfg.MetricsAddr)
		log.Printf("Main | Metrics on %s/metrics", cfg.MetricsAddr)
	}

	worker.Start(ctx)
	client.Start(ctx)
	evaluator.Start(ctx)

	log.Printf("Main | Ingesting %v, evaluating pair %s on %s", cfg.Symbols, cfg.Pair, cfg.Timeframe)

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	<-sigCh
	log.Println("Main | Shutting down...")

	cancel()
	select {
	case <-worker.Done():
	case <-time.After(shutdownGrace):
		log.Println("Main | Drain grace period expired")
	}

	if cfg.ExportPath != "" {
		exportCtx, exportCancel := context.WithTimeout(context.Background(), 10*time.Second)
		if err := exportBars(exportCtx, resampler, cfg.Symbols, cfg.Timeframe, cfg.ExportPath, 24*time.Hour); err != nil {
			log.Printf("Main | CSV export failed: %v", err)
		} else {
			log.Printf("Main | Bars exported to %s", cfg.ExportPath)
		}
		exportCancel()
	}

	log.Printf("Main | Done (stored=%d skipped=%d queueDrops=%d malformed=%d)",
		worker.Stored(), worker.Failed(), queue.Dropped(), client.Malformed())
}
