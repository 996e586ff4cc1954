package main

import (
	"context"
	"fmt"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"log/slog"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"go.uber.org/zap"
	"go.uber.org/zap/exp/zapslog"

	"portfolio_aggregator/internal/cache"
	"portfolio_aggregator/internal/client"
	"portfolio_aggregator/internal/config"
	"portfolio_aggregator/internal/denylist"
	"portfolio_aggregator/internal/metrics"
	"portfolio_aggregator/internal/pkg/utils"
	"portfolio_aggregator/internal/ratelimit"
	"portfolio_aggregator/internal/restapi"
	"portfolio_aggregator/internal/service"
)

func main() {
	_ = godotenv.Load()

	log := logrus.New()
	log.SetFormatter(&logrus.JSONFormatter{})
	log.SetOutput(os.Stdout)
	log.SetLevel(logrus.InfoLevel)

	zapLogger, err := zap.NewProduction()
	if err != nil {
		log.Fatalf("Failed to initialize zap logger: %v", err)
	}
	defer zapLogger.Sync()

	slogHandler := zapslog.NewHandler(zapLogger.Core())
	slog.SetDefault(slog.New(slogHandler))

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	if level, err := logrus.ParseLevel(cfg.Logging.Level); err == nil {
		log.SetLevel(level)
	}

	zapLogger.Info("Configuration loaded", zap.String("path", cfgPath))

	metrics.MustRegister()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Cache backing stores: Postgres when a DSN is configured, in-memory
	// otherwise.
	var metadataStore, denylistStore cache.Store
	if cfg.Cache.PostgresDSN != "" {
		pool, err := cache.NewPool(ctx, cfg.Cache.PostgresDSN)
		if err != nil {
			zapLogger.Fatal("Failed to connect to postgres", zap.Error(err))
		}
		defer pool.Close()
		if err := cache.EnsureSchema(ctx, pool); err != nil {
			zapLogger.Fatal("Failed to ensure cache schema", zap.Error(err))
		}
		metadataStore = cache.NewPostgresStore(pool, "metadata")
		denylistStore = cache.NewPostgresStore(pool, "denylist")
		zapLogger.Info("Using postgres-backed caches")
	} else {
		metadataStore = cache.NewMemoryStore()
		denylistStore = cache.NewMemoryStore()
		zapLogger.Info("Using in-memory caches")
	}

	sweepInterval := time.Duration(cfg.Cache.SweepIntervalMinutes) * time.Minute
	metadataCache := cache.New("metadata", metadataStore,
		time.Duration(cfg.Cache.MetadataTTLHours)*time.Hour, zapLogger)
	metadataCache.StartSweeper(ctx, sweepInterval)
	denylistCache := cache.New("denylist", denylistStore,
		time.Duration(cfg.Cache.DenylistTTLHours)*time.Hour, zapLogger)
	denylistCache.StartSweeper(ctx, sweepInterval)

	denylistResolver := denylist.NewResolver(denylistCache, zapLogger)

	tokenAPILimiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.TokenAPI.MaxRequestsPerWindow,
		Window:      time.Duration(cfg.TokenAPI.WindowMillis) * time.Millisecond,
		MaxRetries:  cfg.TokenAPI.MaxRetries,
		RetryAfter:  time.Duration(cfg.TokenAPI.RetryAfterMillis) * time.Millisecond,
	}, zapLogger)

	// Upstream clients.
	lifiClient := client.NewLiFiClient(cfg.TokenAPI.BaseURL,
		time.Duration(cfg.TokenAPI.RequestTimeoutMillis)*time.Millisecond, zapLogger)
	dexScreenerClient := client.NewDEXScreenerClient(cfg.PriceAPI.BaseURL,
		time.Duration(cfg.PriceAPI.RequestTimeoutMillis)*time.Millisecond, zapLogger,
		cfg.PriceAPI.MaxTokensPerBatchRequest)
	hyperliquidClient := client.NewHyperliquidClient(cfg.Exchange.BaseURL,
		time.Duration(cfg.Exchange.RequestTimeoutMillis)*time.Millisecond, zapLogger)
	solanaClient := client.NewSolanaClient(cfg.Solana.RPCEndpoint,
		cfg.Solana.RateLimit, cfg.Solana.RateBurst, zapLogger)

	// Services.
	metadataService := service.NewTokenMetadataService(lifiClient, metadataCache,
		denylistResolver, tokenAPILimiter, cfg.TokenAPI.MaxTokensPerBatchRequest, zapLogger)
	priceService := service.NewTokenPriceService(dexScreenerClient,
		time.Duration(cfg.PriceAPI.CacheTTLMinutes)*time.Minute,
		cfg.PriceAPI.MaxTokensPerBatchRequest, zapLogger)

	solanaFetcher := service.NewSolanaFetcher(solanaClient, metadataService, priceService, zapLogger)
	evmFetcher := service.NewEVMFetcher(lifiClient, metadataService, priceService,
		denylistResolver, cfg.EVMChains, zapLogger)
	exchangeFetcher := service.NewExchangeFetcher(hyperliquidClient,
		cfg.Exchange.StableQuoteSymbol, zapLogger)

	portfolioService := service.NewPortfolioService(solanaFetcher, evmFetcher,
		exchangeFetcher, cfg.Portfolio.DustThresholdUSD, zapLogger)
	zapLogger.Info("PortfolioService initialized")

	handler := restapi.NewPortfolioHandler(portfolioService, solanaFetcher,
		evmFetcher, exchangeFetcher, zapLogger)
	router := restapi.SetupRouter(handler, zapLogger)

	pprofRouter := router.Group("/debug/pprof")
	{
		pprofRouter.GET("/", gin.WrapF(pprof.Index))
		pprofRouter.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pprofRouter.GET("/profile", gin.WrapF(pprof.Profile))
		pprofRouter.GET("/symbol", gin.WrapF(pprof.Symbol))
		pprofRouter.GET("/trace", gin.WrapF(pprof.Trace))
		pprofRouter.GET("/heap", gin.WrapH(pprof.Handler("heap")))
		pprofRouter.GET("/goroutine", gin.WrapH(pprof.Handler("goroutine")))
	}

	srv := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		IdleTimeout:  time.Duration(cfg.Server.IdleTimeout) * time.Second,
	}

	go func() {
		zapLogger.Info(fmt.Sprintf("Server starting on port %s", cfg.Server.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	zapLogger.Info("Shutting down server...")

	ctxShutdown, cancelShutdown := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(ctxShutdown); err != nil {
		zapLogger.Fatal("Server forced to shutdown", zap.Error(err))
	}
	zapLogger.Info("Server exiting")
}
