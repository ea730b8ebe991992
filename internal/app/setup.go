package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/crossvenue/arbscan/internal/arbitrage"
	"github.com/crossvenue/arbscan/internal/matching"
	"github.com/crossvenue/arbscan/internal/notify"
	"github.com/crossvenue/arbscan/internal/realtime"
	"github.com/crossvenue/arbscan/internal/scanner"
	"github.com/crossvenue/arbscan/internal/venues"
	"github.com/crossvenue/arbscan/internal/venues/kalshi"
	"github.com/crossvenue/arbscan/internal/venues/opinion"
	"github.com/crossvenue/arbscan/internal/venues/polymarket"
	"github.com/crossvenue/arbscan/internal/venues/predict"
	"github.com/crossvenue/arbscan/pkg/cache"
	"github.com/crossvenue/arbscan/pkg/config"
	"github.com/crossvenue/arbscan/pkg/healthprobe"
	"github.com/crossvenue/arbscan/pkg/httpserver"
	"github.com/crossvenue/arbscan/pkg/types"
)

// New creates a new application instance.
func New(cfg *config.Config, logger *zap.Logger, opts *Options) (*App, error) {
	if opts == nil {
		opts = &Options{}
	}

	ctx, cancel := context.WithCancel(context.Background())

	healthChecker := healthprobe.New()

	marketCache, err := setupCache(logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("setup cache: %w", err)
	}

	adapters, streamers := setupVenues(cfg, marketCache, logger)

	matcher, err := setupMatcher(cfg, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	evaluator := setupEvaluator(cfg, logger)
	book := arbitrage.NewBook()

	scan := setupScanner(cfg, adapters, matcher, evaluator, book, logger)

	var rt *realtime.Manager
	if !opts.DisableRealtime && len(streamers) > 0 {
		rt = setupRealtime(cfg, streamers, scan, evaluator, book, logger)
	}

	broker, err := setupBroker(cfg, book, logger)
	if err != nil {
		cancel()
		return nil, err
	}

	httpServer := setupHTTPServer(cfg, logger, healthChecker, book, scan)

	return &App{
		cfg:           cfg,
		logger:        logger,
		healthChecker: healthChecker,
		httpServer:    httpServer,
		book:          book,
		scanner:       scan,
		realtime:      rt,
		broker:        broker,
		fatal:         make(chan error, 1),
		ctx:           ctx,
		cancel:        cancel,
	}, nil
}

func setupCache(logger *zap.Logger) (cache.Cache, error) {
	return cache.NewRistrettoCache(&cache.RistrettoConfig{
		NumCounters: 100000, // 10x expected max items across venues
		MaxCost:     10000,
		BufferItems: 64,
		Logger:      logger,
	})
}

// setupVenues builds one adapter per enabled venue, in display order,
// and collects the streamers for venues with a websocket endpoint.
func setupVenues(cfg *config.Config, marketCache cache.Cache, logger *zap.Logger) ([]venues.Adapter, map[types.Venue]venues.Streamer) {
	var adapters []venues.Adapter
	streamers := make(map[types.Venue]venues.Streamer)

	for _, venue := range cfg.EnabledVenues() {
		vc := cfg.Venue(venue)
		cacheTTL := time.Duration(vc.CacheSeconds) * time.Second
		stream := streamConfig(cfg.Realtime, vc.WSURL)

		switch venue {
		case types.VenuePoly:
			adapter := polymarket.NewAdapter(polymarket.Config{
				BaseURL:  vc.BaseURL,
				ClobURL:  vc.ClobURL,
				MaxPages: vc.MaxPages,
				CacheTTL: cacheTTL,
				Cache:    marketCache,
				Stream:   stream,
				Logger:   logger,
			})
			adapters = append(adapters, adapter)
			if vc.WSURL != "" {
				streamers[venue] = adapter
			}

		case types.VenueOpinion:
			adapters = append(adapters, opinion.NewAdapter(opinion.Config{
				BaseURL:  vc.BaseURL,
				APIKey:   vc.APIKey,
				MaxPages: vc.MaxPages,
				CacheTTL: cacheTTL,
				Cache:    marketCache,
				Logger:   logger,
			}))

		case types.VenuePredict:
			adapter := predict.NewAdapter(predict.Config{
				BaseURL:  vc.BaseURL,
				APIKey:   vc.APIKey,
				MaxPages: vc.MaxPages,
				CacheTTL: cacheTTL,
				Cache:    marketCache,
				Stream:   stream,
				Logger:   logger,
			})
			adapters = append(adapters, adapter)
			if vc.WSURL != "" {
				streamers[venue] = adapter
			}

		case types.VenueKalshi:
			adapter := kalshi.NewAdapter(kalshi.Config{
				BaseURL:  vc.BaseURL,
				MaxPages: vc.MaxPages,
				CacheTTL: cacheTTL,
				Cache:    marketCache,
				Stream:   stream,
				Logger:   logger,
			})
			adapters = append(adapters, adapter)
			if vc.WSURL != "" {
				streamers[venue] = adapter
			}
		}
	}

	return adapters, streamers
}

func streamConfig(rc config.RealtimeConfig, wsURL string) venues.StreamConfig {
	return venues.StreamConfig{
		URL:                   wsURL,
		DialTimeout:           rc.DialTimeout(),
		PingInterval:          rc.PingInterval(),
		PongTimeout:           rc.PongTimeout(),
		ReconnectInitialDelay: rc.ReconnectInitialDelay(),
		ReconnectMaxDelay:     rc.ReconnectMaxDelay(),
		ReconnectMaxAttempts:  rc.ReconnectMaxAttempts,
		MessageBufferSize:     rc.MessageBufferSize,
	}
}

func setupMatcher(cfg *config.Config, logger *zap.Logger) (*matching.Matcher, error) {
	mappings, err := matching.LoadMappings(cfg.MappingsFile)
	if err != nil {
		return nil, fmt.Errorf("load mappings: %w", err)
	}

	return matching.New(matching.Config{
		MinSimilarity: pairFloors(cfg.Matching.PairMinSimilarity),
		Default:       cfg.Matching.MinSimilarity,
		Logger:        logger,
	}, mappings), nil
}

// pairFloors canonicalizes the config's "POLY/KALSHI" keys into the
// matcher's order-insensitive pair keys.
func pairFloors(raw map[string]float64) map[string]float64 {
	floors := make(map[string]float64, len(raw))
	for key, floor := range raw {
		a, b, ok := strings.Cut(key, "/")
		if !ok {
			continue
		}
		floors[matching.PairKey(types.Venue(a), types.Venue(b))] = floor
	}
	return floors
}

func setupEvaluator(cfg *config.Config, logger *zap.Logger) *arbitrage.Evaluator {
	return arbitrage.NewEvaluator(arbitrage.Config{
		ThresholdPct:      cfg.Arbitrage.MinArbitrageThreshold,
		FeePerLeg:         cfg.Arbitrage.TradingFee,
		DerivedPenaltyPct: cfg.Arbitrage.DerivedPenaltyPct,
		MaxEndTimeGap:     time.Duration(cfg.Arbitrage.MaxEndTimeGapDays) * 24 * time.Hour,
		Logger:            logger,
	})
}

func setupScanner(
	cfg *config.Config,
	adapters []venues.Adapter,
	matcher *matching.Matcher,
	evaluator *arbitrage.Evaluator,
	book *arbitrage.Book,
	logger *zap.Logger,
) *scanner.Scanner {
	return scanner.New(scanner.Config{
		Interval:     cfg.ScanInterval(),
		FetchTimeout: cfg.FetchTimeout(),
		MissedScans:  cfg.Arbitrage.MissedScansForRemoval,
		Logger:       logger,
	}, adapters, matcher, evaluator, book)
}

func setupRealtime(
	cfg *config.Config,
	streamers map[types.Venue]venues.Streamer,
	scan *scanner.Scanner,
	evaluator *arbitrage.Evaluator,
	book *arbitrage.Book,
	logger *zap.Logger,
) *realtime.Manager {
	return realtime.NewManager(realtime.Config{
		TopN:   cfg.Realtime.TopMarkets,
		Logger: logger,
	}, streamers, scan, evaluator, book)
}

func setupBroker(cfg *config.Config, book *arbitrage.Book, logger *zap.Logger) (*notify.Broker, error) {
	sinks := []notify.Sink{notify.NewConsoleSink()}

	if cfg.Notification.Telegram.Enabled {
		telegram, err := notify.NewTelegramSink(notify.TelegramConfig{
			BotToken: cfg.Notification.Telegram.BotToken,
			ChatID:   cfg.Notification.Telegram.ChatID,
		})
		if err != nil {
			return nil, fmt.Errorf("setup telegram sink: %w", err)
		}
		sinks = append(sinks, telegram)
		logger.Info("telegram-notifications-enabled")
	}

	return notify.New(notify.Config{
		Cooldown: cfg.Cooldown(),
		Logger:   logger,
	}, book, sinks...), nil
}

func setupHTTPServer(
	cfg *config.Config,
	logger *zap.Logger,
	healthChecker *healthprobe.HealthChecker,
	book *arbitrage.Book,
	scan *scanner.Scanner,
) *httpserver.Server {
	return httpserver.New(&httpserver.Config{
		Port:          cfg.HTTPPort,
		Logger:        logger,
		HealthChecker: healthChecker,
		Book:          book,
		Scans:         scan,
	})
}
