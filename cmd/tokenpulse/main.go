package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/rewired-gh/tokenpulse/internal/alerts"
	"github.com/rewired-gh/tokenpulse/internal/api"
	"github.com/rewired-gh/tokenpulse/internal/config"
	"github.com/rewired-gh/tokenpulse/internal/feed"
	"github.com/rewired-gh/tokenpulse/internal/logger"
	"github.com/rewired-gh/tokenpulse/internal/monitor"
	"github.com/rewired-gh/tokenpulse/internal/storage"
	"github.com/rewired-gh/tokenpulse/internal/telegram"
	"github.com/rewired-gh/tokenpulse/internal/tokens"
	"github.com/rewired-gh/tokenpulse/internal/ui"
	"github.com/rewired-gh/tokenpulse/internal/upstream"
)

var configPath = flag.String("config", "", "Path to configuration file (defaults plus TOKENPULSE_* env when empty)")

func main() {
	flag.Parse()

	// .env is optional; real environment variables win.
	_ = godotenv.Load()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Invalid configuration: %v", err)
	}

	if err := logger.Init(cfg.Logging.Level, cfg.Logging.Format, cfg.Logging.File); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer logger.Sync()
	logger.Info("Configuration loaded (source: %s, storage: %s)", cfg.Tokens.Source, cfg.Storage.Backend)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	kv, err := openStorage(ctx, cfg)
	if err != nil {
		logger.Fatal("Failed to initialize storage: %v", err)
	}
	defer func() {
		if err := kv.Close(); err != nil {
			logger.Error("Failed to close storage: %v", err)
		}
	}()

	engine := alerts.New(storage.NewAlertStore(kv, cfg.Alerts.StorageKey))
	sim := feed.New(feed.Config{
		MinInterval:    cfg.Feed.MinInterval,
		MaxInterval:    cfg.Feed.MaxInterval,
		MaxPriceMove:   cfg.Feed.MaxPriceMove,
		MaxChangeDrift: cfg.Feed.MaxChangeDrift,
	}, nil)

	mon := monitor.New(
		tokens.NewStore(),
		sim,
		engine,
		newSource(cfg),
		storage.NewTokenCache(kv),
		monitor.Config{RefreshInterval: cfg.Tokens.RefreshInterval},
	)

	if cfg.Telegram.Enabled {
		tg, err := telegram.NewClient(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Telegram.MaxRetries, cfg.Telegram.RetryDelayBase)
		if err != nil {
			// Alerts still reach the API stream and the terminal UI.
			logger.Error("Failed to initialize Telegram client, continuing without it: %v", err)
		} else {
			tg.SetAlertLister(engine)
			tg.ListenForCommands(ctx)
			mon.AddNotifier(tg)
			mon.AddStatusNotifier(tg)
			logger.Info("Telegram client initialized successfully")
		}
	} else {
		logger.Debug("Telegram notifications disabled")
	}

	var wg sync.WaitGroup

	if cfg.Server.Enabled {
		hub := api.NewHub(cfg.Server.AllowedOrigins)
		mon.AddNotifier(hub)
		mon.AddTickObserver(hub.OnTick)
		srv := api.NewServer(mon, hub, cfg.Server.AllowedOrigins)

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := srv.ListenAndServe(ctx, cfg.Server.Addr); err != nil {
				logger.Error("HTTP server failed: %v", err)
				cancel()
			}
		}()
	}

	wg.Add(1)
	go func() {
		defer wg.Done()
		mon.Run(ctx)
	}()

	logger.Info("Token dashboard running (refresh: %v, feed: %v-%v)",
		cfg.Tokens.RefreshInterval, cfg.Feed.MinInterval, cfg.Feed.MaxInterval)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	if cfg.UI.Enabled {
		logger.Info("Terminal UI enabled, logging to %s", cfg.Logging.File)
		app := ui.NewApp(mon, cfg.UI.RefreshRate)
		go func() {
			select {
			case <-app.Done():
				return
			case <-sigChan:
			case <-ctx.Done():
			}
			app.Stop()
		}()
		if err := app.Run(); err != nil {
			logger.Error("Terminal UI failed: %v", err)
		}
	} else {
		select {
		case <-sigChan:
			logger.Info("Shutdown signal received, cleaning up...")
		case <-ctx.Done():
		}
	}

	cancel()
	wg.Wait()
	mon.Shutdown()
	logger.Info("Service stopped")
}

func openStorage(ctx context.Context, cfg *config.Config) (storage.KV, error) {
	switch cfg.Storage.Backend {
	case "redis":
		return storage.NewRedis(ctx, cfg.Storage.RedisAddr, cfg.Storage.RedisPassword, cfg.Storage.RedisDB)
	default:
		return storage.NewSQLite(cfg.Storage.DBPath)
	}
}

func newSource(cfg *config.Config) upstream.Source {
	if cfg.Tokens.Source == "http" {
		return upstream.NewHTTPSource(cfg.Tokens.URL, cfg.Tokens.Timeout, upstream.ClientConfig{
			MaxRetries:     cfg.Tokens.MaxRetries,
			RetryDelayBase: cfg.Tokens.RetryDelayBase,
		})
	}
	return upstream.NewMockSource(cfg.Tokens.MockCount, cfg.Tokens.MockDelay, nil)
}
