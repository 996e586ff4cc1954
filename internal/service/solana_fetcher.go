package service

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/metrics"
	"portfolio_aggregator/internal/pkg/utils"
	"portfolio_aggregator/internal/port"
)

const (
	// wrappedSOLMint prices native SOL through its wrapped SPL form.
	wrappedSOLMint = "So11111111111111111111111111111111111111112"

	solDecimals = 9
)

type solanaFetcherImpl struct {
	rpc      port.SolanaClient
	metadata port.TokenMetadataService
	prices   port.TokenPriceService
	logger   *zap.Logger
}

// NewSolanaFetcher creates the Solana chain fetcher: native balance plus SPL
// holdings, enriched with metadata and USD prices.
func NewSolanaFetcher(
	rpc port.SolanaClient,
	metadata port.TokenMetadataService,
	prices port.TokenPriceService,
	logger *zap.Logger,
) port.ChainFetcher {
	return &solanaFetcherImpl{
		rpc:      rpc,
		metadata: metadata,
		prices:   prices,
		logger:   logger.Named("SolanaFetcher"),
	}
}

// FetchPortfolio implements the port.ChainFetcher interface.
func (s *solanaFetcherImpl) FetchPortfolio(ctx context.Context, ownerAddress string) ([]entity.PortfolioItem, error) {
	if ownerAddress == "" {
		return nil, nil
	}
	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(entity.ChainSolana).Observe(time.Since(start).Seconds())
	}()

	var (
		lamports uint64
		holdings []entity.Holding
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lamports, err = s.rpc.GetNativeBalance(gctx, ownerAddress)
		return err
	})
	g.Go(func() error {
		var err error
		holdings, err = s.rpc.GetTokenHoldings(gctx, ownerAddress)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	mints := make([]string, 0, len(holdings))
	for _, h := range holdings {
		mints = append(mints, h.Mint)
	}

	metadata, err := s.metadata.Resolve(ctx, entity.ChainSolana, mints)
	if err != nil {
		return nil, err
	}

	priceable := append(utils.DistinctStrings(mints), wrappedSOLMint)
	prices, err := s.prices.GetPrices(ctx, entity.ChainSolana, priceable)
	if err != nil {
		s.logger.Warn("price lookup failed, holdings will be unpriced", zap.Error(err))
		prices = map[string]entity.TokenPrice{}
	}

	var items []entity.PortfolioItem
	if lamports > 0 {
		solPrice := prices[strings.ToLower(wrappedSOLMint)]
		items = append(items, entity.PortfolioItem{
			Address:        wrappedSOLMint,
			Name:           "Solana",
			Symbol:         "SOL",
			Decimals:       solDecimals,
			PriceUSD:       solPrice.PriceUSD,
			Amount:         float64(lamports) / utils.Pow10(solDecimals),
			Chain:          entity.ChainSolana,
			PriceChange24h: solPrice.PriceChange24h,
			Volume24h:      solPrice.Volume24h,
		})
	}

	for _, h := range holdings {
		md, ok := metadata[strings.ToLower(h.Mint)]
		if !ok {
			// Denylisted mint, resolver already omitted it.
			continue
		}
		decimals := md.Decimals
		if decimals == 0 {
			decimals = h.Decimals
		}
		price := prices[strings.ToLower(h.Mint)]
		item := entity.PortfolioItem{
			Address:        h.Mint,
			Name:           md.Name,
			Symbol:         md.Symbol,
			Decimals:       decimals,
			LogoURI:        md.LogoURI,
			PriceUSD:       price.PriceUSD,
			Amount:         float64(h.Amount) / utils.Pow10(decimals),
			Chain:          entity.ChainSolana,
			PriceChange24h: price.PriceChange24h,
			Volume24h:      price.Volume24h,
		}
		if item.PriceUSD > 0 && utils.RoundsToZeroUSD(item.ValueUSD()) {
			continue
		}
		items = append(items, item)
	}

	s.logger.Debug("Solana portfolio fetched",
		zap.String("owner", ownerAddress), zap.Int("items", len(items)))
	return items, nil
}
