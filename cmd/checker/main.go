// Command checker resolves one combined portfolio from the command line and
// prints it as JSON. Useful for smoke-testing the pipeline without the HTTP
// server.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/cache"
	"portfolio_aggregator/internal/client"
	"portfolio_aggregator/internal/config"
	"portfolio_aggregator/internal/denylist"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
	"portfolio_aggregator/internal/ratelimit"
	"portfolio_aggregator/internal/service"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func main() {
	_ = godotenv.Load()

	var (
		solanaAddr   = flag.String("solana", "", "Solana wallet address")
		evmAddr      = flag.String("evm", "", "EVM wallet address")
		exchangeAddr = flag.String("exchange", "", "exchange account address")
		timeout      = flag.Duration("timeout", 2*time.Minute, "overall resolution timeout")
	)
	flag.Parse()

	zapLogger, err := zap.NewDevelopment()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer zapLogger.Sync()

	cfgPath := utils.GetEnv("CONFIG_PATH", "config/config.yaml")
	cfg, err := config.LoadConfig(cfgPath)
	if err != nil {
		zapLogger.Fatal("Failed to load configuration", zap.Error(err))
	}

	req := entity.PortfolioRequest{
		SolanaAddress:   *solanaAddr,
		EVMAddress:      *evmAddr,
		ExchangeAddress: *exchangeAddr,
	}
	if req.IsEmpty() {
		flag.Usage()
		os.Exit(2)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	// One-shot runs always use in-memory caches; persistence buys nothing for
	// a single resolution.
	metadataCache := cache.New("metadata", cache.NewMemoryStore(), 0, zapLogger)
	denylistCache := cache.New("denylist", cache.NewMemoryStore(),
		time.Duration(cfg.Cache.DenylistTTLHours)*time.Hour, zapLogger)
	denylistResolver := denylist.NewResolver(denylistCache, zapLogger)

	tokenAPILimiter := ratelimit.New(ratelimit.Config{
		MaxRequests: cfg.TokenAPI.MaxRequestsPerWindow,
		Window:      time.Duration(cfg.TokenAPI.WindowMillis) * time.Millisecond,
		MaxRetries:  cfg.TokenAPI.MaxRetries,
		RetryAfter:  time.Duration(cfg.TokenAPI.RetryAfterMillis) * time.Millisecond,
	}, zapLogger)

	lifiClient := client.NewLiFiClient(cfg.TokenAPI.BaseURL,
		time.Duration(cfg.TokenAPI.RequestTimeoutMillis)*time.Millisecond, zapLogger)
	dexScreenerClient := client.NewDEXScreenerClient(cfg.PriceAPI.BaseURL,
		time.Duration(cfg.PriceAPI.RequestTimeoutMillis)*time.Millisecond, zapLogger,
		cfg.PriceAPI.MaxTokensPerBatchRequest)
	hyperliquidClient := client.NewHyperliquidClient(cfg.Exchange.BaseURL,
		time.Duration(cfg.Exchange.RequestTimeoutMillis)*time.Millisecond, zapLogger)
	solanaClient := client.NewSolanaClient(cfg.Solana.RPCEndpoint,
		cfg.Solana.RateLimit, cfg.Solana.RateBurst, zapLogger)

	metadataService := service.NewTokenMetadataService(lifiClient, metadataCache,
		denylistResolver, tokenAPILimiter, cfg.TokenAPI.MaxTokensPerBatchRequest, zapLogger)
	priceService := service.NewTokenPriceService(dexScreenerClient,
		time.Duration(cfg.PriceAPI.CacheTTLMinutes)*time.Minute,
		cfg.PriceAPI.MaxTokensPerBatchRequest, zapLogger)

	portfolioService := service.NewPortfolioService(
		service.NewSolanaFetcher(solanaClient, metadataService, priceService, zapLogger),
		service.NewEVMFetcher(lifiClient, metadataService, priceService,
			denylistResolver, cfg.EVMChains, zapLogger),
		service.NewExchangeFetcher(hyperliquidClient, cfg.Exchange.StableQuoteSymbol, zapLogger),
		cfg.Portfolio.DustThresholdUSD,
		zapLogger,
	)

	view, err := portfolioService.GetPortfolio(ctx, req)
	if err != nil {
		zapLogger.Fatal("Portfolio resolution failed", zap.Error(err))
	}

	out, err := json.MarshalIndent(view, "", "  ")
	if err != nil {
		zapLogger.Fatal("Failed to encode portfolio", zap.Error(err))
	}
	fmt.Println(string(out))
}
