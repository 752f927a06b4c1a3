package commands

import (
	"context"
	"fmt"
	"time"

	"github.com/wonny/macrolens/backend/internal/analysisconfig"
	"github.com/wonny/macrolens/backend/internal/cache"
	"github.com/wonny/macrolens/backend/internal/delivery"
	"github.com/wonny/macrolens/backend/internal/persist"
	"github.com/wonny/macrolens/backend/internal/pipeline"
	"github.com/wonny/macrolens/backend/internal/provider"
	"github.com/wonny/macrolens/backend/internal/rules"
	"github.com/wonny/macrolens/backend/internal/signals"
	"github.com/wonny/macrolens/backend/pkg/config"
	"github.com/wonny/macrolens/backend/pkg/database"
	"github.com/wonny/macrolens/backend/pkg/httputil"
	"github.com/wonny/macrolens/backend/pkg/logger"
	"github.com/wonny/macrolens/backend/pkg/redis"
)

// deps bundles everything the commands share
// ⭐ SSOT: 의존성 조립은 이 파일에서만
type deps struct {
	cfg      *config.Config
	log      *logger.Logger
	analysis *analysisconfig.Config
	snapshot *analysisconfig.Snapshot

	registry     *provider.Registry
	orchestrator *pipeline.Orchestrator

	db    *database.DB
	repo  *persist.RunRepository
	redis *redis.Client

	telegram *delivery.TelegramNotifier
	hub      *delivery.Hub
}

// buildDeps wires the application graph from environment and analysis config
func buildDeps() (*deps, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	if verbose {
		cfg.LogLevel = "debug"
	}

	log := logger.New(cfg)

	path := cfg.AnalysisConfigPath
	if analysisConfigFlag != "" {
		path = analysisConfigFlag
	}
	acfg, rawYAML, err := analysisconfig.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load analysis config: %w", err)
	}
	snap, err := analysisconfig.NewSnapshot(acfg, rawYAML)
	if err != nil {
		return nil, fmt.Errorf("snapshot analysis config: %w", err)
	}

	log.WithFields(map[string]interface{}{
		"analysis_id": acfg.Meta.AnalysisID,
		"version":     acfg.Meta.Version,
		"config_hash": snap.ConfigHash[:12],
	}).Info("Analysis config loaded")

	d := &deps{
		cfg:      cfg,
		log:      log,
		analysis: acfg,
		snapshot: snap,
		hub:      delivery.NewHub(log),
	}

	// Cross-run provider quotas live in Redis; without it only the local
	// rate limits apply
	var quota *redis.QuotaLimiter
	d.redis, err = redis.New(cfg)
	if err != nil {
		log.WithError(err).Warn("Redis unavailable, provider quotas disabled")
	} else if d.redis.Enabled() {
		quota = redis.NewQuotaLimiter(d.redis, "macrolens")
	}

	store := cache.NewStore(cache.DefaultCapacity, log)
	adapters := buildAdapters(cfg, acfg, store, quota, log)

	d.registry, err = provider.FromConfig(acfg, adapters, log)
	if err != nil {
		return nil, fmt.Errorf("build provider registry: %w", err)
	}

	d.orchestrator = pipeline.New(acfg,
		d.registry,
		signals.NewBuilder(acfg.Signals),
		rules.NewEngine(acfg.Rules),
		nil,
		cfg.RunDeadline,
		log)

	if cfg.Database.Enabled {
		d.db, err = database.New(cfg)
		if err != nil {
			return nil, fmt.Errorf("connect database: %w", err)
		}
		d.repo = persist.NewRunRepository(d.db.Pool)

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := d.repo.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		if err := d.repo.EnsureSnapshotSchema(ctx); err != nil {
			return nil, err
		}
		if err := d.repo.SaveSnapshot(ctx, *snap); err != nil {
			log.WithError(err).Warn("Failed to save config snapshot")
		}
	} else {
		log.Warn("DATABASE_URL not set, runs will not be archived")
	}

	if cfg.Telegram.Enabled {
		d.telegram = delivery.NewTelegram(
			httputil.New(log, cfg.HTTPTimeout),
			cfg.Telegram.BotToken, cfg.Telegram.ChatID, log)
	}

	return d, nil
}

// buildAdapters constructs one adapter instance per provider, each with its
// own HTTP client so rate limits and quotas do not bleed across providers
func buildAdapters(
	cfg *config.Config,
	acfg *analysisconfig.Config,
	store *cache.Store,
	quota *redis.QuotaLimiter,
	log *logger.Logger,
) map[string]provider.Adapter {
	client := func(rps float64, burst int, q *redis.QuotaConfig) *httputil.Client {
		c := httputil.New(log, cfg.HTTPTimeout).WithRateLimit(rps, burst)
		if quota != nil && q != nil {
			c = c.WithQuota(quota, *q)
		}
		return c
	}

	return map[string]provider.Adapter{
		"fred": provider.NewFRED(cfg.FRED.APIKey, client(2, 4, &redis.FREDQuota), store, acfg.Cache, log).
			WithBaseURL(cfg.FRED.BaseURL),
		"dbnomics": provider.NewDBnomics(client(1, 2, nil), store, acfg.Cache, log),
		"finnhub": provider.NewFinnhub(cfg.Finnhub.APIKey, client(1, 3, &redis.FinnhubQuota), store, acfg.Cache, log).
			WithBaseURL(cfg.Finnhub.BaseURL),
		"okx": provider.NewOKX(client(5, 10, nil), store, acfg.Cache, log).
			WithBaseURL(cfg.OKX.BaseURL),
		"alphavantage": provider.NewAlphaVantage(cfg.AlphaVantage.APIKey, client(0.5, 1, &redis.AlphaVantageQuota), store, acfg.Cache, log).
			WithBaseURL(cfg.AlphaVantage.BaseURL),
		"marketaux": provider.NewMarketaux(cfg.Marketaux.APIKey, client(0.5, 1, &redis.MarketauxQuota), store, acfg.Cache, log).
			WithBaseURL(cfg.Marketaux.BaseURL),
		"polymarket": provider.NewPolymarket(cfg.Polymarket.Enabled, client(2, 4, nil), store, acfg.Cache, log).
			WithBaseURL(cfg.Polymarket.BaseURL),
	}
}

// close releases held connections
func (d *deps) close() {
	if d.hub != nil {
		d.hub.Close()
	}
	if d.db != nil {
		d.db.Close()
	}
	if d.redis != nil {
		_ = d.redis.Close()
	}
}
