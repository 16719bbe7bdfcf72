package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"mint-radar/agent/database"
	"mint-radar/agent/internal/alerts"
	"mint-radar/agent/internal/bot"
	"mint-radar/agent/internal/engine"
	"mint-radar/agent/internal/handlers"
	"mint-radar/agent/internal/services"
	"mint-radar/agent/internal/social"
	"mint-radar/agent/internal/store"
	"mint-radar/shared/config"
	"mint-radar/shared/env"
	"mint-radar/shared/logger"
	"mint-radar/shared/notifications"
	"mint-radar/shared/persist"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func main() {
	defer func() {
		if r := recover(); r != nil {
			log.Panicf("FATAL PANIC RECOVERY: %v", r)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := env.LoadEnv(); err != nil {
		log.Fatalf("FATAL: Failed to load environment variables: %v", err)
	}
	log.Println("INFO: Environment variables loaded via shared/env.")

	cfg, err := config.LoadConfig(env.ConfigPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to load %s: %v", env.ConfigPath, err)
	}

	appLogger, err := logger.NewLogger(logger.Config{
		Level:       cfg.Logging.Level,
		Environment: cfg.App.Environment,
	})
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize logger: %v", err)
	}
	appLogger.Info("Application logger initialized successfully.", zap.String("environment", cfg.App.Environment))

	backend := openBackend(ctx, appLogger)

	tg, err := notifications.InitTelegramBot(env.TelegramBotToken, notifications.Options{
		SendRate:   cfg.Telegram.SendRate,
		SendBurst:  cfg.Telegram.SendBurst,
		MaxRetries: cfg.Telegram.MaxRetries,
		OpsChatID:  env.OpsChatID,
	}, appLogger)
	if err != nil {
		appLogger.Fatal("Failed to initialize Telegram bot", zap.Error(err))
	}
	if cfg.Telegram.MirrorErrors && env.OpsChatID != 0 {
		appLogger.MirrorTo(tg)
		appLogger.Info("Warnings and errors are mirrored to the ops chat")
	}

	mirror := store.NewMirror(backend, appLogger)
	baselines := store.NewBaselines(backend, appLogger)
	pins := store.NewPins(backend, appLogger)
	subscribers := store.NewSubscribers(backend, appLogger)
	mirror.Load(ctx)
	baselines.Load(ctx)
	pins.Load(ctx)
	subscribers.Load(ctx)
	tracking := store.NewTrackingSet(cfg.Schedule.MaxTrackingWindow)

	following := store.NewFollowing(env.MyFollowingTXT)
	if err := following.Reload(); err != nil {
		appLogger.Warn("Following list not loaded", zap.String("path", following.Path()), zap.Error(err))
	} else {
		appLogger.Info("Following list loaded", zap.Int("handles", following.Len()))
	}

	var resolver *social.Resolver
	var socials alerts.Socials
	if cfg.Social.Enabled {
		proxies := make([]social.Proxy, 0, len(cfg.Social.Proxies))
		for _, p := range cfg.Social.Proxies {
			proxies = append(proxies, social.NewPrefixProxy(p.Name, p.URL, cfg.Social.Timeout, cfg.Social.ProxyRate))
		}
		cache := social.NewCache(backend, cfg.Social.CacheTTL, appLogger)
		cache.Load(ctx)
		resolver = social.NewResolver(proxies, cache, social.Options{
			MaxUsernames:  cfg.Social.MaxUsernames,
			ProxyDelay:    cfg.Social.ProxyDelay,
			VariantDelay:  cfg.Social.VariantDelay,
			MinBodyLength: cfg.Social.MinBodyLength,
			Blacklist:     cfg.Social.Blacklist,
		}, appLogger)
		socials = social.NewLookup(resolver, following)
		appLogger.Info("Social resolver enabled", zap.Int("proxies", len(proxies)), zap.Int("cached", cache.Len()))
	} else {
		appLogger.Info("Social resolver disabled")
	}

	dispatcher := alerts.NewDispatcher(alerts.Deps{
		Messenger:   tg,
		Subscribers: subscribers,
		Pins:        pins,
		Tracking:    tracking,
		Baselines:   baselines,
		Socials:     socials,
	}, alerts.NewFilter(cfg.Filters), cfg.Market.ChainID, appLogger)

	market := services.NewDexScreener(services.DexScreenerOptions{
		BaseURL:   cfg.Market.BaseURL,
		Timeout:   cfg.Market.HTTPTimeout,
		Tries:     cfg.Market.Tries,
		RateLimit: cfg.Market.RateLimit,
		RateBurst: cfg.Market.RateBurst,
	}, appLogger)

	engineDeps := engine.Deps{
		Market:     market,
		Mirror:     mirror,
		Baselines:  baselines,
		Tracking:   tracking,
		Dispatcher: dispatcher,
	}
	botDeps := bot.Deps{
		Replier:     tg,
		Subscribers: subscribers,
		Mirror:      mirror,
		Tracking:    tracking,
		Dispatcher:  dispatcher,
		Following:   following,
		Config:      cfg,
	}
	apiDeps := handlers.APIDeps{
		Mirror:      mirror,
		Tracking:    tracking,
		Subscribers: subscribers,
		Baselines:   baselines,
		Following:   following,
		AdminToken:  env.AdminToken,
	}
	// A nil *social.Resolver must not become a non-nil interface.
	if resolver != nil {
		engineDeps.Resolver = resolver
		botDeps.Scraper = resolver
		apiDeps.Scraper = resolver
	}
	eng := engine.New(engineDeps, cfg.Market.ChainID, cfg.Schedule, cfg.Social.QueueSize, appLogger)
	apiDeps.Tasks = eng
	commandBot := bot.New(botDeps, appLogger)

	validateSubscribers(ctx, tg, subscribers, appLogger)
	if env.AlertChatID != 0 {
		if added, err := subscribers.Add(ctx, env.AlertChatID); err != nil {
			appLogger.Warn("Failed to subscribe alert chat", zap.Int64("chatID", env.AlertChatID), zap.Error(err))
		} else if added {
			appLogger.Info("Alert chat subscribed", zap.Int64("chatID", env.AlertChatID))
		}
	}

	appLogger.Info("Setting up web server...")
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery(), handlers.RequestID(), handlers.AccessLog(appLogger))

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowOrigins = []string{"*"}
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Length", "Content-Type", "Authorization", "X-Request-ID"}
	router.Use(cors.New(corsConfig))

	handlers.RegisterRoutes(router, appLogger)
	handlers.RegisterAPIRoutes(router, apiDeps, appLogger)

	if env.PublicURL != "" {
		handlers.RegisterWebhook(router, ctx, env.TelegramBotToken, commandBot.HandleUpdate, appLogger)
		hookURL := strings.TrimRight(env.PublicURL, "/") + "/webhook/" + env.TelegramBotToken
		if err := tg.SetWebhook(hookURL); err != nil {
			appLogger.Fatal("Failed to register Telegram webhook", zap.Error(err))
		}
		appLogger.Info("Telegram webhook registered", zap.String("publicURL", env.PublicURL))
	} else {
		if err := tg.SetWebhook(""); err != nil {
			appLogger.Warn("Failed to clear Telegram webhook", zap.Error(err))
		}
		appLogger.Info("Starting Telegram long polling...")
		go commandBot.StartListening(ctx, tg.API())
	}

	srv := &http.Server{
		Addr:              ":" + env.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		appLogger.Info("Starting web server", zap.String("address", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			appLogger.Fatal("Could not start web server.", zap.Error(err))
		}
	}()

	appLogger.Info("Application startup complete. Engine running...", zap.Strings("tasks", eng.Tasks()))
	eng.Run(ctx)

	appLogger.Info("Shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		appLogger.Warn("Web server shutdown error", zap.Error(err))
	}
	if err := mirror.Flush(shutdownCtx); err != nil {
		appLogger.Warn("Final mirror flush failed", zap.Error(err))
	}
	if err := baselines.Flush(shutdownCtx); err != nil {
		appLogger.Warn("Final baseline flush failed", zap.Error(err))
	}
	appLogger.Info("Shutdown complete")
}

// openBackend stores state documents in Postgres when DATABASE_URL is set, else in flat files.
func openBackend(ctx context.Context, appLogger *logger.Logger) persist.Backend {
	if env.DATABASE_URL == "" {
		appLogger.Info("Using flat-file state", zap.String("dataDir", env.DataDir))
		return persist.NewFiles(map[string]string{
			store.DocMirror:      env.MirrorJSON,
			store.DocBaselines:   env.FirstSeenFile,
			store.DocPins:        env.PinsJSON,
			store.DocSubscribers: env.SubsFile,
			social.DocCache:      env.TwitterCacheJSON,
		})
	}

	appLogger.Info("Running database migrations...")
	if err := database.MigrateDatabase(env.DATABASE_URL); err != nil {
		appLogger.Fatal("Database migration failed", zap.Error(err))
	}
	appLogger.Info("Connecting to database...")
	db, err := database.ConnectToDatabase(ctx, env.DATABASE_URL)
	if err != nil {
		appLogger.Fatal("Database connection failed", zap.Error(err))
	}
	appLogger.Info("Database connection established successfully.")
	return database.NewDocumentStore(db)
}

// validateSubscribers drops chats the bot can no longer reach. Transient errors keep the chat.
func validateSubscribers(ctx context.Context, tg *notifications.Telegram, subscribers *store.Subscribers, appLogger *logger.Logger) {
	for _, chatID := range subscribers.List() {
		ok, err := tg.ValidateDestination(ctx, chatID)
		if err != nil {
			appLogger.Warn("Could not validate subscriber", zap.Int64("chatID", chatID), zap.Error(err))
			continue
		}
		if ok {
			continue
		}
		if _, err := subscribers.Remove(ctx, chatID); err != nil {
			appLogger.Warn("Failed to remove unreachable subscriber", zap.Int64("chatID", chatID), zap.Error(err))
			continue
		}
		appLogger.Info("Removed unreachable subscriber", zap.Int64("chatID", chatID))
	}
	appLogger.Info("Subscribers validated", zap.Int("count", subscribers.Len()))
}
