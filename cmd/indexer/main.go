package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/feral-file/market-indexer/internal/adapter"
	"github.com/feral-file/market-indexer/internal/api/server"
	"github.com/feral-file/market-indexer/internal/block"
	"github.com/feral-file/market-indexer/internal/config"
	"github.com/feral-file/market-indexer/internal/indexer"
	"github.com/feral-file/market-indexer/internal/logger"
	"github.com/feral-file/market-indexer/internal/metadata"
	"github.com/feral-file/market-indexer/internal/providers/ethereum"
	"github.com/feral-file/market-indexer/internal/providers/jetstream"
	"github.com/feral-file/market-indexer/internal/store"
)

var (
	configFile = flag.String("config", "", "Path to configuration file")
	envPath    = flag.String("env", "config/", "Path to environment files")
)

func main() {
	flag.Parse()

	// Load configuration
	config.ChdirRepoRoot()
	cfg, err := config.LoadIndexerConfig(*configFile, *envPath)
	if err != nil {
		panic(fmt.Sprintf("Failed to load config: %v", err))
	}
	if err := cfg.Validate(); err != nil {
		panic(fmt.Sprintf("Invalid config: %v", err))
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Initialize logger with sentry integration
	err = logger.Initialize(logger.Config{
		Debug:           cfg.Debug,
		SentryDSN:       cfg.SentryDSN,
		BreadcrumbLevel: zapcore.InfoLevel,
		Tags: map[string]string{
			"service": "market-indexer",
		},
	})
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer logger.Flush(2 * time.Second)
	logger.InfoCtx(ctx, "Starting Market Indexer",
		zap.Uint64("chain_id", cfg.Ethereum.ChainID),
		zap.String("contract_address", cfg.Ethereum.ContractAddress))

	// Connect to database
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to connect to database", zap.Error(err))
	}
	if err := store.ConfigureConnectionPool(db,
		cfg.Database.MaxOpenConns,
		cfg.Database.MaxIdleConns,
		cfg.Database.ConnMaxLifetime,
		cfg.Database.ConnMaxIdleTime); err != nil {
		logger.FatalCtx(ctx, "Failed to configure connection pool", zap.Error(err))
	}
	if err := store.ApplySchema(ctx, db); err != nil {
		logger.FatalCtx(ctx, "Failed to apply database schema", zap.Error(err))
	}
	logger.InfoCtx(ctx, "Connected to database")

	// Initialize store
	dataStore := store.NewPGStore(db)

	// Initialize adapters
	clockAdapter := adapter.NewClock()
	jsonAdapter := adapter.NewJSON()
	httpClient := adapter.NewHTTPClient(cfg.Metadata.Timeout)
	natsJS := adapter.NewNatsJetStream()

	// Initialize ledger node client
	ethDialer := adapter.NewEthClientDialer()
	ethClient, err := ethDialer.Dial(ctx, cfg.Ethereum.RPCURL)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to dial ledger node", zap.Error(err))
	}

	eventSource, err := ethereum.NewEventSource(ethClient, jsonAdapter, ethereum.Config{
		ContractAddress: cfg.Ethereum.ContractAddress,
		ChainID:         cfg.Ethereum.ChainID,
	})
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create event source", zap.Error(err))
	}
	defer eventSource.Close()

	blockProvider, err := block.NewBlockProvider(
		ethereum.NewEthereumBlockFetcher(ethClient),
		block.Config{
			TTL:                cfg.Ethereum.BlockHeadTTL,
			StaleWindow:        cfg.Ethereum.BlockHeadStaleWindow,
			TimestampCacheSize: cfg.Ethereum.TimestampCacheSize,
		},
		clockAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create block provider", zap.Error(err))
	}

	// Initialize metadata resolver
	resolver := metadata.NewResolver(metadata.Config{
		Gateway: cfg.Metadata.IPFSGateway,
		Timeout: cfg.Metadata.Timeout,
	}, httpClient, jsonAdapter)

	// Initialize change notifications; disabled when no URL is configured
	notifier, err := jetstream.NewPublisher(ctx, jetstream.Config{
		URL:            cfg.NATS.URL,
		StreamName:     cfg.NATS.StreamName,
		SubjectPrefix:  cfg.NATS.SubjectPrefix,
		MaxReconnects:  cfg.NATS.MaxReconnects,
		ReconnectWait:  cfg.NATS.ReconnectWait,
		ConnectionName: cfg.NATS.ConnectionName,
	}, natsJS, jsonAdapter)
	if err != nil {
		logger.FatalCtx(ctx, "Failed to create NATS publisher", zap.Error(err))
	}
	defer notifier.Close()

	marketIndexer := indexer.NewIndexer(indexer.Config{
		StartBlock:      cfg.Ethereum.StartBlock,
		MaxBlockRange:   cfg.Ethereum.MaxBlockRange,
		PollInterval:    cfg.Indexer.PollInterval,
		IdleInterval:    cfg.Indexer.IdleInterval,
		RetryInterval:   cfg.Indexer.RetryInterval,
		MetadataWorkers: cfg.Indexer.MetadataWorkers,
	}, dataStore, eventSource, blockProvider, resolver, notifier, clockAdapter)

	// Setup signal handling
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	errCh := make(chan error, 2)

	// Start the status server
	var statusServer *server.Server
	if cfg.Server.Enabled {
		statusServer = server.New(server.Config{
			Debug:        cfg.Debug,
			Host:         cfg.Server.Host,
			Port:         cfg.Server.Port,
			ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
			WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
			IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
		}, dataStore, marketIndexer)

		go func() {
			if err := statusServer.Start(); err != nil {
				errCh <- fmt.Errorf("status server: %w", err)
			}
		}()
	}

	// Start the indexing loop
	indexerDone := make(chan struct{})
	go func() {
		defer close(indexerDone)
		if err := marketIndexer.Start(ctx); err != nil {
			errCh <- fmt.Errorf("indexer: %w", err)
		}
	}()

	// Wait for shutdown signal or error
	select {
	case sig := <-sigCh:
		logger.InfoCtx(ctx, "Received shutdown signal", zap.String("signal", sig.String()))
	case err := <-errCh:
		logger.ErrorCtx(ctx, err, zap.String("message", "Component failed, shutting down"))
	case <-indexerDone:
		logger.InfoCtx(ctx, "Indexing loop exited")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := marketIndexer.Stop(shutdownCtx); err != nil {
		logger.Error(err, zap.String("message", "Failed to stop indexer gracefully"))
	}
	cancel()

	if statusServer != nil {
		if err := statusServer.Shutdown(shutdownCtx); err != nil {
			logger.Error(err, zap.String("message", "Failed to shutdown status server"))
		}
	}

	// Use non-context logger for final shutdown message since context is already canceled
	logger.Info("Market Indexer stopped")
}
