package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"
	"time"

	"macmarket/internal/bot"
	"macmarket/internal/cache"
	"macmarket/internal/config"
	"macmarket/internal/db"
	"macmarket/internal/handler"
	"macmarket/internal/job"
	"macmarket/internal/metrics"
	"macmarket/internal/readiness"
	"macmarket/internal/repository"
	"macmarket/internal/service"
	signalengine "macmarket/internal/signal"
	"macmarket/pkg/logger"
	"macmarket/pkg/tracing"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"

	_ "macmarket/docs"
)

var (
	loadEnvFunc            = godotenv.Load
	loadConfigFunc         = config.Load
	loadModesFunc          = config.LoadModes
	initLoggerFunc         = logger.Init
	initPostgresFunc       = db.InitPostgres
	initRedisFunc          = cache.InitRedis
	initTracerFunc         = tracing.InitTracer
	newSignalEngineFunc    = signalengine.NewEngine
	newScorerFunc          = readiness.NewScorer
	newAlertPollerFunc     = job.NewAlertPoller
	startAlertPollerFunc   = func(p *job.AlertPoller, ctx context.Context) { go p.Start(ctx) }
	newRunRetentionFunc    = job.NewRunRetention
	startRunRetentionFunc  = func(j *job.RunRetention, ctx context.Context) { go j.Start(ctx) }
	startTelegramBotFunc   = bot.StartTelegramBot
	newHandlerFunc         = handler.New
	newRouterFunc          = gin.New
	metricsRegistry        = prometheus.DefaultRegisterer
	metricsGatherer        = prometheus.DefaultGatherer
	setupSignalNotify      = ossignal.Notify
	waitForSignalFunc      = func(quit <-chan os.Signal) { <-quit }
	startHTTPServerFunc    = func(srv *http.Server) error { return srv.ListenAndServe() }
	shutdownHTTPServerFunc = func(srv *http.Server, ctx context.Context) error { return srv.Shutdown(ctx) }
)

// @title           MacMarket API
// @version         1.0
// @description     HACO trend-state signals, readiness scoring, scans, backtests and alerts.

// @host      localhost:8080
// @BasePath  /
func main() {
	_ = loadEnvFunc()

	cfg := loadConfigFunc()
	if _, err := initLoggerFunc(logger.Config{Level: cfg.LogLevel, Format: cfg.LogFormat}); err != nil {
		log.Warn().Err(err).Msg("invalid logger config, using defaults")
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	os.Setenv("DATABASE_URL", cfg.DatabaseURL)
	os.Setenv("REDIS_URL", cfg.RedisURL)
	initPostgresFunc(ctx)
	initRedisFunc(ctx)

	tp, tracer, err := initTracerFunc(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to initialize tracer")
	}
	defer func() {
		if err := tp.Shutdown(context.Background()); err != nil {
			log.Error().Err(err).Msg("error shutting down tracer provider")
		}
	}()

	rec := metrics.New(metricsRegistry)

	// Repositories stay as untyped nils without Postgres so the services
	// can detect them.
	var (
		barStore service.BarStore
		runRepo  service.BacktestRunRepository
		ruleRepo service.AlertRuleRepository
		pruner   job.RunPruner
	)
	if db.Pool != nil {
		candles := repository.NewCandleRepository(db.Pool, tracer)
		runs := repository.NewBacktestRepository(db.Pool, tracer)
		rules := repository.NewAlertRepository(db.Pool, tracer)
		for name, m := range map[string]interface{ RunMigrations(context.Context) error }{
			"candles": candles, "backtest runs": runs, "alert rules": rules,
		} {
			if err := m.RunMigrations(ctx); err != nil {
				log.Fatal().Err(err).Str("schema", name).Msg("failed to run migrations")
			}
		}
		barStore, runRepo, ruleRepo, pruner = candles, runs, rules, runs
	}

	var (
		barCache service.SeriesCache
		cursors  service.AlertCursorStore
	)
	if cache.Client != nil {
		barCache = cache.NewBarCache(cache.Client, time.Duration(cfg.BarCacheTTLSecs)*time.Second)
		cursors = cache.NewCursorStore(cache.Client)
	}

	modes, err := loadModesFunc(cfg.ModeProfilesPath)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load mode profiles")
	}
	engine, err := newSignalEngineFunc(cfg.HACO, cfg.HACOLT)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid HACO parameters")
	}
	scorer, err := newScorerFunc(cfg.Readiness)
	if err != nil {
		log.Fatal().Err(err).Msg("invalid readiness config")
	}

	barService := service.NewBarService(tracer, barStore, barCache, rec)
	signalService := service.NewSignalService(tracer, barService, engine, scorer, modes, rec, cfg.ScanWorkers).
		WithLookback(cfg.Lookback)
	backtestService := service.NewBacktestService(tracer, signalService, runRepo, rec, cfg.BacktestMinReadiness)
	alertService := service.NewAlertService(tracer, signalService, ruleRepo, cursors, rec)

	dispatcher := startTelegramBotFunc(cfg.TelegramBotToken, signalService)
	var notifier job.Notifier
	if dispatcher != nil {
		notifier = dispatcher
	}
	if cursors != nil {
		poller := newAlertPollerFunc(tracer, alertService, notifier, cfg.AlertSymbols, time.Duration(cfg.AlertPollSecs)*time.Second)
		startAlertPollerFunc(poller, ctx)
	} else {
		log.Warn().Msg("no cursor store, alert poller disabled")
	}
	retention := newRunRetentionFunc(tracer, pruner, time.Duration(cfg.BacktestRetentionDays)*24*time.Hour)
	startRunRetentionFunc(retention, ctx)

	h := newHandlerFunc(tracer, barService, signalService, backtestService, alertService)

	r := newRouterFunc()
	r.Use(gin.Recovery())
	r.Use(cors.Default())
	r.Use(otelgin.Middleware(tracing.ServiceName))
	r.Use(handler.RequestID())
	r.Use(handler.RequestLogger())
	r.Use(rec.GinMiddleware())

	api := r.Group("/")
	api.Use(handler.NewRateLimiter(cfg.HTTPRateLimitPerMin).Middleware())
	h.RegisterRoutes(api)

	r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(metricsGatherer, promhttp.HandlerOpts{})))
	r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	srv := &http.Server{
		Addr:              httpAddr(cfg.HTTPPort),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	serve := startHTTPServerFunc
	go func() {
		log.Info().Str("addr", srv.Addr).Msg("http server listening")
		if err := serve(srv); err != nil && err != http.ErrServerClosed {
			log.Fatal().Err(err).Msg("listen failed")
		}
	}()

	quit := make(chan os.Signal, 1)
	setupSignalNotify(quit, syscall.SIGINT, syscall.SIGTERM)
	waitForSignalFunc(quit)
	log.Info().Msg("shutting down server")

	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := shutdownHTTPServerFunc(srv, shutdownCtx); err != nil {
		log.Error().Err(err).Msg("server forced to shutdown")
	}
	db.Close()

	log.Info().Msg("server exiting")
}

func httpAddr(port int) string {
	if port <= 0 {
		port = 8080
	}
	return fmt.Sprintf(":%d", port)
}
