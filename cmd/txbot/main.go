package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/ishyv/tx-discord-bot-sub008/internal/activity"
	"github.com/ishyv/tx-discord-bot-sub008/internal/audit"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/links"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/ocr"
	"github.com/ishyv/tx-discord-bot-sub008/internal/automod/scam"
	"github.com/ishyv/tx-discord-bot-sub008/internal/autorole"
	"github.com/ishyv/tx-discord-bot-sub008/internal/bot"
	"github.com/ishyv/tx-discord-bot-sub008/internal/config"
	"github.com/ishyv/tx-discord-bot-sub008/internal/content"
	"github.com/ishyv/tx-discord-bot-sub008/internal/cooldown"
	"github.com/ishyv/tx-discord-bot-sub008/internal/ratelimit"
	"github.com/ishyv/tx-discord-bot-sub008/internal/reputation"
	"github.com/ishyv/tx-discord-bot-sub008/internal/storage"
	"github.com/ishyv/tx-discord-bot-sub008/internal/storage/pgstore"
	"github.com/ishyv/tx-discord-bot-sub008/internal/telemetry"
	"github.com/ishyv/tx-discord-bot-sub008/internal/users"
)

const (
	serviceName   = "txbot"
	sweepInterval = 5 * time.Minute
)

var version = "dev"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}

	logger, err := config.BuildLogger(cfg.LogLevel)
	if err != nil {
		panic(err)
	}
	defer func() {
		_ = logger.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownTracing, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName: serviceName,
		Version:     version,
		Endpoint:    cfg.Tracing.Endpoint,
		SampleRatio: cfg.Tracing.SampleRatio,
	})
	if err != nil {
		logger.Fatal("tracing init failed", zap.Error(err))
	}

	store, err := storage.New(cfg.Database.Path)
	if err != nil {
		logger.Fatal("storage init failed", zap.Error(err))
	}
	defer store.Close()
	if err := store.Migrate(); err != nil {
		logger.Fatal("migrations failed", zap.Error(err))
	}

	var userStore users.Store = store.Users()
	if cfg.Database.Driver == "postgres" {
		pg, err := pgstore.New(ctx, cfg.Database.URL)
		if err != nil {
			logger.Fatal("postgres init failed", zap.Error(err))
		}
		defer pg.Close()
		if err := pg.Migrate(ctx); err != nil {
			logger.Fatal("postgres migrations failed", zap.Error(err))
		}
		userStore = pg
	}
	logger.Info("user store ready", zap.String("driver", cfg.Database.Driver))

	if err := seedAutomation(ctx, cfg, store, logger); err != nil {
		logger.Fatal("seeding automation failed", zap.Error(err))
	}

	cooldowns, closeCooldowns := buildCooldowns(ctx, cfg, logger)
	defer closeCooldowns()

	checkContent(cfg.ContentDir, logger)

	auditLogger := audit.NewLogger(store, logger)
	go audit.RunRetention(ctx, store, cfg.Audit.RetentionDays, cfg.Audit.CleanupInterval, logger)

	pipeline, burst, closeAutomod := buildAutomod(ctx, cfg, store, logger)
	defer closeAutomod()
	if burst != nil {
		go sweep(ctx, func() int { return burst.Sweep(time.Now()) }, "burst windows", logger)
	}

	session, err := bot.NewSession(cfg.DiscordToken)
	if err != nil {
		logger.Fatal("discord session init failed", zap.Error(err))
	}
	api := bot.NewSessionAPI(session)

	svc := bot.Services{
		Activity: activity.New(userStore, cooldowns, activity.Config{
			Reward:   cfg.Activity.Reward,
			Cooldown: cfg.Activity.Cooldown,
		}, logger),
		Reputation: reputation.New(userStore, cooldowns, cfg.Reputation.Cooldown, logger),
		Autoroles:  autorole.NewEngine(autorole.StoreSource{Store: store}, logger),
		Audit:      auditLogger,
		Reports:    store,
	}
	if cfg.Automod.Enabled && cfg.Automod.RaidJoins > 0 {
		joins := ratelimit.NewLimiter(cfg.Automod.RaidJoins, cfg.Automod.RaidWindow)
		svc.JoinBurst = joins
		go sweep(ctx, func() int { return joins.Sweep(time.Now()) }, "join windows", logger)
	}
	if pipeline != nil {
		svc.Automod = pipeline
		svc.Enforcer = automod.NewEnforcer(automod.Actions{
			AuditOnly:     cfg.Automod.Actions.AuditOnly,
			Delete:        cfg.Automod.Actions.Delete,
			TimeoutAfter:  cfg.Automod.Actions.TimeoutAfter,
			TimeoutFor:    cfg.Automod.Actions.TimeoutFor,
			StrikeForgive: cfg.Automod.Actions.StrikeForgive,
		}, api, store, auditLogger, logger)
	}

	botSvc := bot.New(session, api, svc, bot.Options{
		ReputationEmoji: cfg.Reputation.Emoji,
		AuditChannelID:  cfg.Audit.ChannelID,
	}, logger)
	if err := botSvc.Start(); err != nil {
		logger.Fatal("bot start failed", zap.Error(err))
	}
	logger.Info("bot started", zap.String("version", version))
	go botSvc.RunSummaries(ctx, cfg.Audit.SummaryInterval)

	var server *http.Server
	if cfg.Health.Enabled {
		mux := http.NewServeMux()
		mux.HandleFunc("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte("ok"))
		})
		server = &http.Server{Addr: cfg.Health.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			logger.Info("health endpoint enabled", zap.String("addr", cfg.Health.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				logger.Error("health server error", zap.Error(err))
			}
		}()
	}

	<-ctx.Done()
	logger.Info("shutdown requested")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if server != nil {
		_ = server.Shutdown(shutdownCtx)
	}
	botSvc.Close()
	if err := shutdownTracing(shutdownCtx); err != nil {
		logger.Warn("tracing shutdown failed", zap.Error(err))
	}
}

func buildCooldowns(ctx context.Context, cfg config.Config, logger *zap.Logger) (*cooldown.Manager, func()) {
	if cfg.Redis.Addr != "" {
		rs, err := cooldown.NewRedisStore(ctx, cooldown.RedisOptions{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err != nil {
			logger.Fatal("redis init failed", zap.Error(err))
		}
		logger.Info("cooldowns in redis", zap.String("addr", cfg.Redis.Addr))
		return cooldown.NewManager(rs, cfg.Redis.KeyPrefix), func() { _ = rs.Close() }
	}
	mem := cooldown.NewMemoryStore()
	go sweep(ctx, mem.Sweep, "cooldowns", logger)
	return cooldown.NewManager(mem, cfg.Redis.KeyPrefix), func() {}
}

// buildAutomod returns a nil pipeline when moderation is disabled.
func buildAutomod(ctx context.Context, cfg config.Config, lists automod.DomainLists, logger *zap.Logger) (*automod.Pipeline, *ratelimit.Limiter, func()) {
	if !cfg.Automod.Enabled {
		return nil, nil, func() {}
	}

	phrases := cfg.Automod.ScamPhrases
	if len(phrases) == 0 {
		phrases = scam.DefaultPhrases
	}
	filter, err := scam.Compile(phrases)
	if err != nil {
		logger.Fatal("scam phrases invalid", zap.Error(err))
	}
	brands := cfg.Automod.ProtectedBrands
	if len(brands) == 0 {
		brands = links.DefaultBrands
	}

	deps := automod.Deps{
		Scam:   filter,
		Links:  links.NewChecker(brands),
		Lists:  lists,
		Logger: logger,
	}
	if cfg.Automod.BurstMessages > 0 {
		deps.Burst = ratelimit.NewLimiter(cfg.Automod.BurstMessages, cfg.Automod.BurstWindow)
	}

	closer := func() {}
	ocrCfg := cfg.Automod.OCR
	if ocrCfg.Enabled {
		rec, err := ocr.NewVisionRecognizer(ctx, ocr.VisionOptions{
			CredentialsFile: ocrCfg.CredentialsFile,
			CredentialsJSON: ocrCfg.CredentialsJSON,
			AccessToken:     ocrCfg.AccessToken,
			Timeout:         ocrCfg.Timeout,
		})
		if err != nil {
			logger.Fatal("vision init failed", zap.Error(err))
		}
		opts := ocr.DefaultOptions()
		if ocrCfg.MinWidth > 0 {
			opts.MinWidth = ocrCfg.MinWidth
		}
		deps.Scanner = ocr.NewScanner(rec, opts)
		deps.Fetcher = automod.NewHTTPFetcher(ocrCfg.Timeout)
		closer = func() { _ = rec.Close() }
	}

	pipeline := automod.NewPipeline(automod.Config{
		MaxMentions:        cfg.Automod.MaxMentions,
		MaxAttachmentBytes: ocrCfg.MaxBytes,
		OCRConcurrency:     ocrCfg.Concurrency,
	}, deps)
	logger.Info("automod ready",
		zap.Int("scam_phrases", filter.Len()),
		zap.Int("brands", len(brands)),
		zap.Bool("ocr", deps.Scanner != nil),
	)
	return pipeline, deps.Burst, closer
}

// seedAutomation stores the autorole rules and domain lists from config.
// Rules and domains added by earlier runs are kept.
func seedAutomation(ctx context.Context, cfg config.Config, store *storage.Store, logger *zap.Logger) error {
	rules := make([]autorole.Rule, 0, len(cfg.Autoroles))
	for _, r := range cfg.Autoroles {
		rules = append(rules, autorole.Rule{
			GuildID:   r.GuildID,
			RoleID:    r.RoleID,
			Trigger:   autorole.Trigger(r.Trigger),
			Threshold: r.Threshold,
		})
	}
	if err := (autorole.StoreSource{Store: store}).Seed(ctx, rules); err != nil {
		return err
	}
	for _, lists := range cfg.Automod.Domains {
		if err := store.SeedDomains(ctx, lists.GuildID, lists.Allow, lists.Block); err != nil {
			return fmt.Errorf("seed domains for guild %s: %w", lists.GuildID, err)
		}
	}
	if len(rules) > 0 || len(cfg.Automod.Domains) > 0 {
		logger.Info("automation seeded",
			zap.Int("autoroles", len(rules)),
			zap.Int("domain_guilds", len(cfg.Automod.Domains)),
		)
	}
	return nil
}

// checkContent validates the RPG content packs when the directory exists.
func checkContent(dir string, logger *zap.Logger) {
	if dir == "" {
		return
	}
	if _, err := os.Stat(dir); err != nil {
		logger.Info("content packs not found", zap.String("dir", dir))
		return
	}
	pack, err := content.Load(dir)
	if err != nil {
		logger.Warn("content packs failed to load", zap.String("dir", dir), zap.Error(err))
		return
	}
	if issues := pack.Validate(); len(issues) > 0 {
		for _, issue := range issues {
			logger.Warn("content issue", zap.String("path", issue.Path), zap.String("message", issue.Message))
		}
		return
	}
	logger.Info("content packs loaded",
		zap.Int("items", len(pack.Items.Items)),
		zap.Int("quests", len(pack.Quests.Quests)),
		zap.Int("store", len(pack.StoreItems())),
	)
}

func sweep(ctx context.Context, fn func() int, what string, logger *zap.Logger) {
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if removed := fn(); removed > 0 {
				logger.Debug("sweep", zap.String("what", what), zap.Int("removed", removed))
			}
		}
	}
}
