package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/market-indexer/internal/config"
	"github.com/feral-file/market-indexer/internal/domain"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
	show       = flag.Bool("show", false, "Print the checkpoint and row counts")
	set        = flag.Int64("set", -1, "Force the checkpoint to this block number")
	token      = flag.Int64("token", -1, "Print the mirrored asset for this token id")
)

func main() {
	flag.Parse()

	if !*show && *set < 0 && *token < 0 {
		flag.Usage()
		os.Exit(2)
	}

	config.ChdirRepoRoot()
	cfg, err := config.LoadCheckpointToolConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}

	if err := logger.Initialize(logger.Config{Debug: cfg.Debug, SentryDSN: cfg.SentryDSN}); err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.Fatal("Failed to connect to database", zap.Error(err))
	}
	if err := store.ApplySchema(ctx, db); err != nil {
		logger.Fatal("Failed to apply database schema", zap.Error(err))
	}
	dataStore := store.NewPGStore(db)

	if *set >= 0 {
		if err := dataStore.ResetCheckpoint(ctx, uint64(*set)); err != nil {
			logger.Fatal("Failed to set checkpoint", zap.Error(err))
		}
		logger.Info("Checkpoint updated", zap.Int64("last_indexed_block", *set))
	}

	if *show {
		if err := printStatus(ctx, dataStore); err != nil {
			logger.Fatal("Failed to read status", zap.Error(err))
		}
	}

	if *token >= 0 {
		if err := printAsset(ctx, dataStore, uint64(*token)); err != nil {
			logger.Fatal("Failed to read asset", zap.Error(err))
		}
	}
}

func printStatus(ctx context.Context, dataStore store.Store) error {
	checkpoint, found, err := dataStore.ReadCheckpoint(ctx)
	if err != nil {
		return err
	}
	stats, err := dataStore.GetStats(ctx)
	if err != nil {
		return err
	}

	if found {
		fmt.Printf("last indexed block: %d\n", checkpoint)
	} else {
		fmt.Println("last indexed block: none (start_block applies)")
	}
	fmt.Printf("assets:             %d (listed %d, burned %d)\n", stats.Assets, stats.ListedAssets, stats.BurnedAssets)
	fmt.Printf("transactions:       %d\n", stats.Transactions)
	fmt.Printf("failed events:      %d\n", stats.FailedEvents)
	return nil
}

func printAsset(ctx context.Context, dataStore store.Store, tokenID uint64) error {
	asset, err := dataStore.GetAssetByTokenID(ctx, tokenID)
	if errors.Is(err, domain.ErrAssetNotFound) {
		fmt.Printf("token %d is not mirrored\n", tokenID)
		return nil
	}
	if err != nil {
		return err
	}

	out, err := json.MarshalIndent(asset, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(out))
	return nil
}
