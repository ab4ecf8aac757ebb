package main

import (
	"context"
	"fmt"
	"time"

	"github.com/MarkoPoloResearchLab/walletbot/internal/addressqr"
	"github.com/MarkoPoloResearchLab/walletbot/internal/botconfig"
	"github.com/MarkoPoloResearchLab/walletbot/internal/chatapi"
	"github.com/MarkoPoloResearchLab/walletbot/internal/custody"
	"github.com/MarkoPoloResearchLab/walletbot/internal/store/gormstore"
	"github.com/MarkoPoloResearchLab/walletbot/internal/store/pgstore"
	"github.com/MarkoPoloResearchLab/walletbot/internal/telegram"
	"github.com/MarkoPoloResearchLab/walletbot/internal/telemetry"
	"github.com/MarkoPoloResearchLab/walletbot/internal/xrpl"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/conversation"
	"github.com/MarkoPoloResearchLab/walletbot/pkg/ledger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gorm.io/gorm"
)

func run(ctx context.Context, cfg botconfig.Config) error {
	logger, err := zap.NewProduction()
	if err != nil {
		return fmt.Errorf("logger init: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	metricsRegistry := prometheus.NewRegistry()
	metricsRegistry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	metrics, err := telemetry.NewMetrics(metricsRegistry)
	if err != nil {
		return err
	}

	var db *gorm.DB
	if cfg.NeedsDatabase() {
		openedDB, cleanup, err := gormstore.Open(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("database open: %w", err)
		}
		defer func() { _ = cleanup() }()
		db = openedDB
	}

	var ledgerStore ledger.Store
	if cfg.LedgerBackend == botconfig.LedgerBackendCustody {
		ledgerStore = gormstore.New(db)
	}
	if cfg.UsesPgxPool() {
		pool, err := pgxpool.New(ctx, cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("pgx pool open: %w", err)
		}
		defer pool.Close()
		ledgerStore = pgstore.New(pool)
	}

	renderer := addressqr.NewRenderer(cfg.QRCodeSize)
	ledgerClient, err := newLedgerClient(cfg, ledgerStore, renderer, logger, metrics)
	if err != nil {
		return err
	}

	var walletRegistry conversation.WalletRegistry = conversation.NewMemoryRegistry()
	if cfg.WalletStore == botconfig.WalletStoreDatabase {
		walletRegistry = gormstore.NewRegistry(db)
	}

	controller, err := conversation.NewController(
		walletRegistry,
		conversation.NewMemoryStaging(),
		ledgerClient,
		conversation.WithTransitionLogger(telemetry.TransitionLoggers{telemetry.NewTransitionLogger(logger), metrics}),
		conversation.WithLedgerTimeout(cfg.LedgerTimeout),
	)
	if err != nil {
		return fmt.Errorf("controller init: %w", err)
	}

	logger.Info("walletbot starting",
		zap.String("ledger_backend", cfg.LedgerBackend),
		zap.String("wallet_store", cfg.WalletStore),
		zap.String("ledger_store", cfg.LedgerStore),
		zap.Bool("telegram", cfg.TelegramEnabled()),
		zap.Bool("http", cfg.HTTPEnabled()))

	group, groupCtx := errgroup.WithContext(ctx)
	if cfg.IdleSweepEnabled() {
		group.Go(func() error {
			controller.RunIdleSweeper(groupCtx, cfg.SweepInterval, cfg.IdleTimeout)
			return nil
		})
	}
	if cfg.HTTPEnabled() {
		router := chatapi.NewRouter(chatapi.Config{
			ListenAddr:     cfg.HTTPListenAddr,
			AllowedOrigins: cfg.AllowedOrigins,
			Token: chatapi.TokenConfig{
				SigningKey: []byte(cfg.JWTSigningKey),
				Issuer:     cfg.JWTIssuer,
				Expiry:     cfg.TokenLifetime,
			},
		}, controller, promhttp.HandlerFor(metricsRegistry, promhttp.HandlerOpts{}), logger)
		group.Go(func() error {
			return chatapi.Run(groupCtx, cfg.HTTPListenAddr, router, logger)
		})
	}
	if cfg.TelegramEnabled() {
		api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
		if err != nil {
			return fmt.Errorf("telegram init: %w", err)
		}
		bot, err := telegram.NewBot(api, controller, logger)
		if err != nil {
			return err
		}
		updates := api.GetUpdatesChan(telegram.NewUpdateConfig())
		group.Go(func() error {
			<-groupCtx.Done()
			api.StopReceivingUpdates()
			return nil
		})
		group.Go(func() error {
			logger.Info("telegram polling", zap.String("bot", api.Self.UserName))
			return bot.Run(groupCtx, updates)
		})
	}

	err = group.Wait()
	logger.Info("walletbot stopped")
	return err
}

func newLedgerClient(cfg botconfig.Config, store ledger.Store, renderer *addressqr.Renderer, logger *zap.Logger, metrics *telemetry.Metrics) (conversation.LedgerClient, error) {
	switch cfg.LedgerBackend {
	case botconfig.LedgerBackendCustody:
		clock := func() int64 { return time.Now().UTC().Unix() }
		service, err := ledger.NewService(store, clock,
			ledger.WithOperationLogger(telemetry.OperationLoggers{telemetry.NewOperationLogger(logger), metrics}))
		if err != nil {
			return nil, fmt.Errorf("ledger service init: %w", err)
		}
		return custody.NewClient(service, cfg.FaucetGrantDrops, renderer)
	default:
		return xrpl.NewClient(cfg.XRPLRPCURL, cfg.FaucetURL, renderer, xrpl.WithLogger(logger))
	}
}
