package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"go.uber.org/zap"

	"github.com/fitsocial/followgraph/internal/db"
	"github.com/fitsocial/followgraph/pkg/config"
	"github.com/fitsocial/followgraph/pkg/logging"
)

func main() {
	fix := flag.Bool("fix", false, "overwrite drifted counters with edge counts")
	flag.Parse()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	// Initialize logger
	if err := logging.InitLogger(&cfg.Logging); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logging.GetLogger().Sync()

	logger := logging.GetLogger()
	if cfg.Database.Driver != config.DriverPostgres {
		logger.Fatal("Recount needs the postgres store", zap.String("store", cfg.Database.Driver))
	}
	applyFix := *fix || cfg.Recount.Fix
	logger.Info("Starting counter recount", zap.Bool("fix", applyFix))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	database, err := db.New(&cfg.Database, cfg.Logging.Level)
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close()

	drifts, err := db.NewAccountStore(database).Recount(ctx, applyFix)
	if err != nil {
		logger.Fatal("Recount failed", zap.Error(err))
	}

	for _, d := range drifts {
		logger.Warn("Counter drift",
			zap.String("account", d.AccountID),
			zap.Any("stored", d.Stored),
			zap.Any("actual", d.Actual))
	}
	logger.Info("Recount complete", zap.Int("drifted", len(drifts)), zap.Bool("fixed", applyFix))

	if len(drifts) > 0 && !applyFix {
		stop()
		database.Close()
		logger.Sync()
		os.Exit(2)
	}
}
