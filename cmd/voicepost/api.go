package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/NamiraNet/voicepost/internal/api"
	"github.com/NamiraNet/voicepost/internal/cache"
	"github.com/NamiraNet/voicepost/internal/logger"
	"github.com/NamiraNet/voicepost/internal/model"
	"github.com/NamiraNet/voicepost/internal/monitor"
	"github.com/NamiraNet/voicepost/internal/notify"
	"github.com/NamiraNet/voicepost/internal/service"
	"github.com/NamiraNet/voicepost/internal/storage"
	"github.com/NamiraNet/voicepost/internal/upload"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the voicepost HTTP API for uploads, transcription and post generation.`,
	Run:   runAPIServer,
}

func runAPIServer(cmd *cobra.Command, args []string) {
	logger, err := logger.InitForAPI(cfg.App.LogLevel, cfg.App.LogFile)
	if err != nil {
		fmt.Println("Failed to initialize logger:", err)
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store, err := storage.Open(cfg.Storage.DataFolder, logger.Named("storage"))
	if err != nil {
		logger.Fatal("Failed to open storage", zap.String("dir", cfg.Storage.DataFolder), zap.Error(err))
	}
	uploads, err := upload.NewHandler(cfg.Storage.UploadFolder, cfg.Storage.MaxUploadSize, store.Audio, logger.Named("upload"))
	if err != nil {
		logger.Fatal("Failed to prepare upload folder", zap.String("dir", cfg.Storage.UploadFolder), zap.Error(err))
	}

	st := newStack(logger, reg)
	whisper := model.NewWhisperClient(cfg.Models.WhisperURL, cfg.Models.WhisperModel,
		model.WithTimeout(cfg.Models.RequestTimeout),
		model.WithLogger(logger.Named("whisper")))

	models := model.NewRegistry()
	for _, m := range []model.Model{whisper, st.chat} {
		if err := models.Register(m); err != nil {
			logger.Fatal("Failed to register model", zap.String("model", m.Name()), zap.Error(err))
		}
	}

	draftCache, closeCache := newDraftCache(logger)
	defer closeCache()

	dispatcher := newNotifier(logger)
	var notifier service.DraftNotifier
	if dispatcher != nil {
		notifier = dispatcher
	}

	svc := service.New(service.Options{
		Bridge:      st.bridge,
		Drafter:     st.posts,
		Transcriber: whisper,
		Store:       store,
		Uploads:     uploads,
		Cache:       draftCache,
		Notifier:    notifier,
		ModelName:   cfg.Models.LLMModel,
		Language:    cfg.Models.DefaultLanguage,
		Generation:  st.generationConfig(),
		Logger:      logger.Named("service"),
	})

	mon := monitor.New()
	handler := api.NewHandler(api.HandlerOptions{
		Service: svc,
		Uploads: uploads,
		Store:   store,
		Pool:    st.pool,
		Guard:   st.guard,
		Models:  models,
		Cache:   draftCache,
		Monitor: mon,
		Version: api.VersionInfo{
			Version:   version,
			Commit:    commit,
			Date:      date,
			GoVersion: goVersion,
			Platform:  platform,
		},
		SpeechModel: cfg.Models.WhisperModel,
		TextModel:   cfg.Models.LLMModel,
		Logger:      logger.Named("api"),
	})

	router, err := api.NewRouter(handler, api.RouterConfig{
		CORSOrigins: cfg.Security.CORSOrigins,
		ForceHTTPS:  cfg.Security.ForceHTTPS,
		RateLimit:   cfg.RateLimit,
		Metrics:     api.NewMetrics(reg, metricsNamespace),
		Gatherer:    reg,
	}, logger.Named("http"))
	if err != nil {
		logger.Fatal("Failed to build router", zap.Error(err))
	}

	ctx, stop := context.WithCancel(context.Background())
	defer stop()
	go cleanupUploads(ctx, uploads, logger)

	serverAddr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		logger.Info("Server starting",
			zap.String("address", server.Addr),
			zap.Int("workers", cfg.Worker.Count),
			zap.Duration("generation_timeout", cfg.Generation.Timeout),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal("Server failed to start", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Server shutting down...")
	stop()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("Server forced to shutdown", zap.Error(err))
	}
	st.close()

	if dispatcher != nil {
		drainCtx, cancelDrain := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancelDrain()
		if err := dispatcher.Close(drainCtx); err != nil {
			logger.Warn("Pending draft notifications dropped", zap.Error(err))
		}
	}
}

// newDraftCache uses redis when REDIS_ADDR is set and the server answers.
func newDraftCache(logger *zap.Logger) (cache.DraftCache, func()) {
	if cfg.Redis.Addr == "" {
		logger.Info("Draft cache disabled")
		return cache.Nop{}, func() {}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warn("Redis unreachable, draft cache disabled", zap.String("addr", cfg.Redis.Addr), zap.Error(err))
		_ = client.Close()
		return cache.Nop{}, func() {}
	}
	logger.Info("Connected to Redis successfully", zap.String("addr", cfg.Redis.Addr))

	rc := cache.NewRedisCache(client, cfg.Redis.DraftTTL, logger.Named("cache"))
	return rc, func() { _ = rc.Close() }
}

// newNotifier returns nil when no bot token is configured.
func newNotifier(logger *zap.Logger) *notify.Dispatcher {
	if cfg.Telegram.BotToken == "" || cfg.Telegram.Channel == "" {
		return nil
	}

	telegramTransport := &http.Transport{}
	if proxyURL := cfg.Telegram.ProxyURL; proxyURL != "" {
		proxy, err := url.Parse(proxyURL)
		if err != nil {
			logger.Fatal("Failed to parse proxy URL", zap.Error(err))
		}
		telegramTransport.Proxy = http.ProxyURL(proxy)
	}

	telegram, err := notify.NewTelegram(
		cfg.Telegram.BotToken,
		cfg.Telegram.Channel,
		cfg.Telegram.Template,
		&http.Client{
			Timeout:   10 * time.Second,
			Transport: telegramTransport,
		},
	)
	if err != nil {
		logger.Fatal("Failed to create Telegram notifier", zap.Error(err))
	}
	return notify.NewDispatcher(telegram, cfg.Telegram.SendingInterval, logger.Named("telegram"))
}

func cleanupUploads(ctx context.Context, uploads *upload.Handler, logger *zap.Logger) {
	if cfg.Storage.CleanupAge <= 0 {
		return
	}
	ticker := time.NewTicker(time.Hour)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			deleted, err := uploads.Cleanup(cfg.Storage.CleanupAge)
			if err != nil {
				logger.Error("Upload cleanup failed", zap.Error(err))
				continue
			}
			if len(deleted) > 0 {
				logger.Info("Removed old uploads", zap.Int("count", len(deleted)))
			}
		}
	}
}
