package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/slotswap/internal/config"
	"github.com/iliyamo/slotswap/internal/database"
	"github.com/iliyamo/slotswap/internal/handler"
	"github.com/iliyamo/slotswap/internal/lib/logger/sl"
	"github.com/iliyamo/slotswap/internal/metrics"
	"github.com/iliyamo/slotswap/internal/middleware"
	"github.com/iliyamo/slotswap/internal/queue"
	"github.com/iliyamo/slotswap/internal/repository"
	"github.com/iliyamo/slotswap/internal/router"
	"github.com/iliyamo/slotswap/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.Load()
	log := setupLogger(cfg.Env)
	log.Info("starting slotswap", slog.String("env", cfg.Env))

	db, err := database.Open(database.Params{
		User: cfg.DBUser,
		Pass: cfg.DBPass,
		Host: cfg.DBHost,
		Port: cfg.DBPort,
		Name: cfg.DBName,
	})
	if err != nil {
		log.Error("failed to connect to database", sl.Err(err))
		os.Exit(1)
	}
	defer db.Close()

	// Redis is optional: without it rate limiting and caching pass through.
	var rdb *redis.Client
	if client, err := config.NewRedisClient(config.LoadRedisConfig()); err != nil {
		log.Warn("redis unavailable, rate limit and cache disabled", sl.Err(err))
	} else {
		rdb = client
		defer rdb.Close()
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var (
		m        *metrics.Metrics
		recorder service.TransitionRecorder
	)
	if cfg.MetricsEnabled {
		m = metrics.New()
		recorder = m
	}

	var publisher service.EventPublisher
	if amqpCfg := config.LoadAMQPConfig(); amqpCfg.Enabled {
		pub := queue.NewPublisher(log, amqpCfg.URL, amqpCfg.Queue)
		defer pub.Close()
		publisher = pub
		go queue.NewConsumer(log, amqpCfg.URL, amqpCfg.Queue, amqpCfg.LogPath).Run(ctx)
	}

	store := repository.NewStore(db)
	swaps := service.NewSwaps(log, store, publisher, recorder)
	events := service.NewEvents(log, store)
	expose := !cfg.IsProduction()

	e := echo.New()
	e.HideBanner = true
	e.Validator = handler.NewValidator()
	e.Use(echomw.Recover())
	e.Use(requestLogger(log))
	var metricsHandler http.Handler
	if m != nil {
		e.Use(m.Middleware())
		metricsHandler = m.Handler()
	}

	rlCfg := config.LoadRateLimitConfig()
	cacheCfg := config.LoadCacheConfig()
	rateLimit := middleware.NewTokenBucket(log, rlCfg, rdb)
	mw := router.Middlewares{
		RateLimit:  rateLimit,
		Cache:      middleware.NewRedisCache(log, cacheCfg, rdb),
		Invalidate: middleware.InvalidateCache(log, cacheCfg, rdb),
	}

	router.RegisterRoutes(e, store.DB(), metricsHandler)
	router.RegisterAuth(e, handler.NewAuthHandler(log, cfg, repository.NewUserRepo(db), repository.NewTokenRepo(db)), cfg.JWTSecret, rateLimit)
	router.RegisterEvents(e, handler.NewEventHandler(events, expose), cfg.JWTSecret, mw)
	router.RegisterSwaps(e, handler.NewSwapHandler(swaps, expose), cfg.JWTSecret, mw)

	go func() {
		addr := ":" + cfg.Port
		log.Info("listening", slog.String("addr", addr))
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("server stopped", sl.Err(err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", sl.Err(err))
		return
	}
	log.Info("server stopped")
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case config.EnvLocal:
		log = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	case config.EnvDevelopment:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}))
	default:
		log = slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	}

	return log
}

// requestLogger feeds echo's access log into slog.
func requestLogger(log *slog.Logger) echo.MiddlewareFunc {
	return echomw.RequestLoggerWithConfig(echomw.RequestLoggerConfig{
		LogMethod:    true,
		LogURI:       true,
		LogStatus:    true,
		LogLatency:   true,
		LogRemoteIP:  true,
		LogError:     true,
		HandleError:  true,
		LogRequestID: true,
		LogValuesFunc: func(c echo.Context, v echomw.RequestLoggerValues) error {
			attrs := []slog.Attr{
				slog.String("method", v.Method),
				slog.String("uri", v.URI),
				slog.Int("status", v.Status),
				slog.Duration("latency", v.Latency),
				slog.String("remote_ip", v.RemoteIP),
			}
			level := slog.LevelInfo
			if v.Error != nil {
				attrs = append(attrs, sl.Err(v.Error))
				level = slog.LevelError
			}
			log.LogAttrs(c.Request().Context(), level, "request", attrs...)
			return nil
		},
	})
}
