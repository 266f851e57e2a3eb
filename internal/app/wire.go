package app

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/mwalczyk/arbot/internal/agg"
	s3blob "github.com/mwalczyk/arbot/internal/blob/s3"
	"github.com/mwalczyk/arbot/internal/cache/redis"
	"github.com/mwalczyk/arbot/internal/config"
	"github.com/mwalczyk/arbot/internal/domain"
	"github.com/mwalczyk/arbot/internal/engine"
	"github.com/mwalczyk/arbot/internal/exchange/hitbtc"
	"github.com/mwalczyk/arbot/internal/exchange/paper"
	"github.com/mwalczyk/arbot/internal/notify"
	"github.com/mwalczyk/arbot/internal/pub"
	"github.com/mwalczyk/arbot/internal/server"
	"github.com/mwalczyk/arbot/internal/server/handler"
	"github.com/mwalczyk/arbot/internal/service"
	"github.com/mwalczyk/arbot/internal/store/postgres"
)

// Dependencies bundles everything the run loop supervises. Optional pieces
// (archiver, publisher, server) are nil when their config section is disabled.
type Dependencies struct {
	Brokers   []domain.Broker
	MD        *agg.MarketDataAggregator
	Orders    *agg.OrderBrokerAggregator
	Positions *agg.PositionAggregator
	Agent     *engine.Agent

	Recorder  *service.Recorder
	Archiver  *s3blob.Archiver
	Publisher *pub.Publisher
	Notifier  *notify.Notifier
	Server    *server.Server

	// Runners are the broker loops plus any gateway loops that need their
	// own goroutine.
	Runners []func(ctx context.Context) error
}

// Wire constructs all concrete dependencies from the configuration and
// returns them with a cleanup function for shutdown.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL trade journal ---
	var orderLog domain.OrderLogStore
	var fills domain.FillStore
	if cfg.Postgres.Enabled {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Postgres.DSN,
			Host:     cfg.Postgres.Host,
			Port:     cfg.Postgres.Port,
			Database: cfg.Postgres.Database,
			User:     cfg.Postgres.User,
			Password: cfg.Postgres.Password,
			SSLMode:  cfg.Postgres.SSLMode,
			MaxConns: cfg.Postgres.PoolMaxConns,
			MinConns: cfg.Postgres.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Postgres.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		orderLog = postgres.NewOrderLogStore(pgClient)
		fills = postgres.NewFillStore(pgClient)
	}

	// --- Redis top-of-book cache ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
		PoolSize: cfg.Redis.PoolSize,
		TLS:      cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })
	bookCache := redis.NewBookCache(redisClient)

	// --- S3 fill archiver ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.Archiver = s3blob.NewArchiver(s3Client, fills,
			cfg.S3.RetentionDays, cfg.S3.ArchiveInterval.Duration, logger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	// --- Brokers ---
	hb, err := buildHitBtcBroker(cfg, logger)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	deps.Brokers = append(deps.Brokers, hb)
	deps.Runners = append(deps.Runners, hb.Run)

	if cfg.Paper.Enabled {
		pb := paper.NewBroker(cfg.Paper.MakerFee, cfg.Paper.TakerFee, cfg.Paper.Mid, logger)
		deps.Brokers = append(deps.Brokers, pb)
		deps.Runners = append(deps.Runners, pb.Run)
	}

	// --- Aggregation layer ---
	deps.MD = agg.NewMarketDataAggregator(deps.Brokers, logger)
	closers = append(closers, deps.MD.Close)

	deps.Orders, err = agg.NewOrderBrokerAggregator(deps.Brokers, logger)
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: order aggregator: %w", err)
	}
	closers = append(closers, deps.Orders.Close)

	deps.Positions = agg.NewPositionAggregator(deps.Brokers, logger)
	closers = append(closers, deps.Positions.Close)

	// --- Engine ---
	deps.Agent = engine.New(deps.Brokers, deps.MD, deps.Orders,
		cfg.Engine.MaxSize, cfg.Engine.MinProfit, deps.Notifier, logger)

	// --- Recorder ---
	commands, cancelCommands := deps.Orders.SubscribeCommands()
	closers = append(closers, cancelCommands)
	reports, cancelReports := deps.Orders.Subscribe()
	closers = append(closers, cancelReports)
	markets, cancelMarkets := deps.MD.Subscribe()
	closers = append(closers, cancelMarkets)

	deps.Recorder = service.NewRecorder(commands, reports, markets,
		orderLog, fills, bookCache, logger)

	// --- NATS market-data republisher ---
	if cfg.Nats.URL != "" {
		publisher, err := pub.NewPublisher(pub.Config{
			URL:           cfg.Nats.URL,
			SubjectPrefix: cfg.Nats.SubjectPrefix,
		}, logger)
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: nats: %w", err)
		}
		closers = append(closers, func() { _ = publisher.Close() })
		deps.Publisher = publisher
	}

	// --- Operations API ---
	if cfg.Server.Enabled {
		deps.Server = server.NewServer(server.Config{Port: cfg.Server.Port}, server.Handlers{
			Health:    handler.NewHealthHandler(),
			Engine:    handler.NewEngineHandler(deps.Agent),
			Markets:   handler.NewMarketHandler(deps.Brokers, bookCache),
			Positions: handler.NewPositionHandler(deps.Positions),
			Orders:    handler.NewOrderHandler(orderLog, logger),
		}, logger)
	}

	return deps, cleanup, nil
}

// buildHitBtcBroker assembles the live venue. The order destination decides
// whether commands reach the real order-entry socket or the paper gateway;
// market data is real either way. Balance polling runs only against the live
// destination in prod.
func buildHitBtcBroker(cfg *config.Config, logger *slog.Logger) (*hitbtc.Broker, error) {
	md := hitbtc.NewMarketDataGateway(
		cfg.HitBtc.MarketDataURL, cfg.HitBtc.PullURL, cfg.HitBtc.Symbol, logger)

	var oe hitbtc.OrderEntry
	var pg *hitbtc.PositionGateway
	switch cfg.HitBtc.OrderDestination {
	case "hitbtc":
		oe = hitbtc.NewOrderEntryGateway(
			cfg.HitBtc.OrderEntryURL, cfg.HitBtc.Symbol,
			cfg.HitBtc.ApiKey, cfg.HitBtc.Secret, logger)
		if cfg.Environment == "prod" {
			pg = hitbtc.NewPositionGateway(
				cfg.HitBtc.PullURL, cfg.HitBtc.ApiKey, cfg.HitBtc.Secret, logger)
		}
	case "paper":
		oe = paper.NewOrderGateway(logger)
	default:
		return nil, fmt.Errorf("wire: unknown order destination %q", cfg.HitBtc.OrderDestination)
	}

	return hitbtc.NewBroker(md, oe, pg, logger), nil
}
