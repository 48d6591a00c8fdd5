// Package app wires the system together at startup.
package app

import (
	"fmt"
	"log/slog"

	"custodex/internal/api"
	"custodex/internal/domain"
	"custodex/internal/engine"
	"custodex/internal/event"
	"custodex/internal/infra"
	"custodex/internal/infra/kafka"
	"custodex/internal/infra/storage"
	"custodex/internal/infra/transfer"
	"custodex/internal/ledger"
	"custodex/internal/orderbook"
	"custodex/internal/settlement"
)

// Bootstrap orchestrates the application startup sequence.
type Bootstrap struct {
	Config   *infra.Config
	Storage  *storage.Storage
	Exchange *engine.Exchange
	Hub      *api.Hub
	Server   *api.Server

	kafkaProducer *kafka.Producer
}

// NewBootstrap creates a new Bootstrap instance.
func NewBootstrap() *Bootstrap {
	return &Bootstrap{}
}

// Initialize performs core system initialization: config, logger, storage,
// transfer service, exchange engine (with state restore), fact sinks, API.
func (b *Bootstrap) Initialize(configPath string) error {
	// 1. Load Config
	cfg, err := infra.LoadConfig(configPath)
	if err != nil {
		return err
	}
	b.Config = cfg

	// 2. Setup Logger
	logger := infra.NewLogger(cfg)
	slog.SetDefault(logger)
	slog.Info("Bootstrapping",
		slog.String("app", cfg.App.Name),
		slog.String("version", cfg.App.Version))

	// 3. Storage
	store, err := storage.New(cfg.Storage.Path)
	if err != nil {
		return fmt.Errorf("storage init: %w", err)
	}
	b.Storage = store
	slog.Info("Database initialized", slog.String("path", cfg.Storage.Path))

	// 4. External transfer service
	var transferSvc domain.TransferService
	switch cfg.Transfer.Mode {
	case infra.TransferModeExternal:
		transferSvc = transfer.NewClient(cfg.Transfer.BaseURL, cfg.Transfer.APIKey)
		slog.Info("Transfer service: external", slog.String("url", cfg.Transfer.BaseURL))
	default:
		transferSvc = transfer.NewSimulator()
		slog.Warn("Transfer service: simulator (no real token movement)")
	}

	// 5. Fact sinks
	b.Hub = api.NewHub()
	sinks := []event.Sink{&event.LogSink{}, b.Hub}
	if cfg.Kafka.Enabled {
		b.kafkaProducer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		sinks = append(sinks, b.kafkaProducer)
		slog.Info("Kafka fact publishing enabled", slog.String("topic", cfg.Kafka.Topic))
	}

	// 6. Core components behind the exchange engine
	custody := ledger.New(transferSvc)
	book := orderbook.New()
	settle := settlement.New(custody, book,
		cfg.Settlement.FeePercent, domain.Account(cfg.Settlement.FeeAccount))

	b.Exchange = engine.New(custody, book, settle, store, event.NewFanout(sinks...))
	if err := b.Exchange.Restore(); err != nil {
		return fmt.Errorf("state restore: %w", err)
	}

	// 7. API server
	b.Server = api.NewServer(b.Exchange, b.Hub, cfg.Server.AllowedOrigins)

	return nil
}

// Shutdown releases external resources.
func (b *Bootstrap) Shutdown() {
	if b.kafkaProducer != nil {
		if err := b.kafkaProducer.Close(); err != nil {
			slog.Error("Kafka producer close failed", slog.Any("error", err))
		}
	}
}
