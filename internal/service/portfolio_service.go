package service

import (
	"context"
	"sort"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/port"
)

// portfolioServiceImpl implements the PortfolioService interface: it fans the
// request out to every venue concurrently, merges the results across chains
// and produces the final value-sorted view.
type portfolioServiceImpl struct {
	solana           port.ChainFetcher
	evm              port.ChainFetcher
	exchange         port.ExchangeFetcher
	dustThresholdUSD float64
	logger           *zap.Logger
}

// NewPortfolioService creates a new instance of PortfolioService.
func NewPortfolioService(
	solana port.ChainFetcher,
	evm port.ChainFetcher,
	exchange port.ExchangeFetcher,
	dustThresholdUSD float64,
	logger *zap.Logger,
) port.PortfolioService {
	return &portfolioServiceImpl{
		solana:           solana,
		evm:              evm,
		exchange:         exchange,
		dustThresholdUSD: dustThresholdUSD,
		logger:           logger.Named("PortfolioService"),
	}
}

// GetPortfolio implements the port.PortfolioService interface. Venue fetches
// run concurrently and fail fast: one failing venue fails the whole request
// rather than silently under-reporting the portfolio.
func (s *portfolioServiceImpl) GetPortfolio(ctx context.Context, req entity.PortfolioRequest) (*entity.PortfolioView, error) {
	if req.IsEmpty() {
		return &entity.PortfolioView{Items: []entity.AggregatedPortfolioItem{}}, nil
	}

	var (
		solanaItems []entity.PortfolioItem
		evmItems    []entity.PortfolioItem
		exchange    *entity.ExchangePortfolio
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		solanaItems, err = s.solana.FetchPortfolio(gctx, req.SolanaAddress)
		return err
	})
	g.Go(func() error {
		var err error
		evmItems, err = s.evm.FetchPortfolio(gctx, req.EVMAddress)
		return err
	})
	g.Go(func() error {
		var err error
		exchange, err = s.exchange.FetchPortfolio(gctx, req.ExchangeAddress)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	// Venue order is fixed so aggregation output is deterministic.
	combined := make([]entity.PortfolioItem, 0, len(solanaItems)+len(evmItems))
	combined = append(combined, solanaItems...)
	combined = append(combined, evmItems...)
	if exchange != nil {
		combined = append(combined, exchange.Items...)
	}

	aggregated := Aggregate(combined)

	// Dust is dropped before any summary statistic so totals reflect exactly
	// the items the caller sees.
	items := make([]entity.AggregatedPortfolioItem, 0, len(aggregated))
	for _, item := range aggregated {
		if item.ValueUSD() <= s.dustThresholdUSD {
			continue
		}
		items = append(items, item)
	}

	var totalValue, weightedPnL float64
	for _, item := range items {
		totalValue += item.ValueUSD()
	}
	if totalValue > 0 {
		for _, item := range items {
			weightedPnL += item.ValueUSD() / totalValue * item.PriceChange24h
		}
	}

	sort.SliceStable(items, func(i, j int) bool {
		return items[i].ValueUSD() > items[j].ValueUSD()
	})

	s.logger.Debug("Portfolio resolved",
		zap.Int("items", len(items)),
		zap.Float64("totalValueUSD", totalValue))
	return &entity.PortfolioView{
		Items:         items,
		TotalValueUSD: totalValue,
		WeightedPnL:   weightedPnL,
	}, nil
}
