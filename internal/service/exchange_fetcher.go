package service

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/metrics"
	"portfolio_aggregator/internal/port"
)

// symbolCorrections maps exchange-internal coin tickers to their canonical
// symbols (the exchange lists bridged assets under prefixed names).
var symbolCorrections = map[string]string{
	"UETH": "ETH",
	"UBTC": "BTC",
	"USOL": "SOL",
}

type exchangeFetcherImpl struct {
	api               port.ExchangeAPI
	stableQuoteSymbol string
	logger            *zap.Logger
}

// NewExchangeFetcher creates the exchange account fetcher: spot balances plus
// open perpetual positions, priced from the live mid-price map.
func NewExchangeFetcher(api port.ExchangeAPI, stableQuoteSymbol string, logger *zap.Logger) port.ExchangeFetcher {
	return &exchangeFetcherImpl{
		api:               api,
		stableQuoteSymbol: stableQuoteSymbol,
		logger:            logger.Named("ExchangeFetcher"),
	}
}

// FetchPortfolio implements the port.ExchangeFetcher interface.
func (s *exchangeFetcherImpl) FetchPortfolio(ctx context.Context, ownerAddress string) (*entity.ExchangePortfolio, error) {
	if ownerAddress == "" {
		return nil, nil
	}
	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues(entity.VenueExchange).Observe(time.Since(start).Seconds())
	}()

	var (
		spot      []entity.SpotBalance
		positions []entity.PerpPosition
		mids      map[string]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		spot, err = s.api.GetSpotBalances(gctx, ownerAddress)
		return err
	})
	g.Go(func() error {
		var err error
		positions, err = s.api.GetPerpPositions(gctx, ownerAddress)
		return err
	})
	g.Go(func() error {
		var err error
		mids, err = s.api.GetAllMids(gctx)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	portfolio := &entity.ExchangePortfolio{Positions: positions}

	for _, balance := range spot {
		if balance.Total <= 0 {
			continue
		}
		symbol := canonicalSymbol(balance.Coin)
		portfolio.Items = append(portfolio.Items, entity.PortfolioItem{
			Address:  balance.Coin,
			Name:     symbol,
			Symbol:   symbol,
			PriceUSD: s.spotPrice(balance.Coin, symbol, mids),
			Amount:   balance.Total,
			Chain:    entity.VenueExchange,
			Type:     entity.ItemTypeSpot,
		})
	}

	for _, pos := range positions {
		if pos.Size == 0 {
			continue
		}
		symbol := canonicalSymbol(pos.Coin)
		pnlPercent := 0.0
		if pos.PositionValue > 0 {
			pnlPercent = pos.UnrealizedPnl / pos.PositionValue * 100
		}
		portfolio.Items = append(portfolio.Items, entity.PortfolioItem{
			Address:        pos.Coin,
			Name:           symbol,
			Symbol:         symbol,
			PriceUSD:       pos.EntryPrice,
			Amount:         math.Abs(pos.Size),
			Chain:          entity.VenueExchange,
			PriceChange24h: pnlPercent,
			Type:           entity.ItemTypePerp,
		})
	}

	s.logger.Debug("Exchange portfolio fetched",
		zap.String("owner", ownerAddress),
		zap.Int("items", len(portfolio.Items)),
		zap.Int("positions", len(portfolio.Positions)))
	return portfolio, nil
}

// spotPrice resolves a USD price for a spot coin: the stable quote asset is
// pegged to 1, everything else takes the live mid. A coin with no mid keeps a
// last-resort price of 1 so the holding stays visible rather than valued at
// zero.
func (s *exchangeFetcherImpl) spotPrice(coin, symbol string, mids map[string]float64) float64 {
	if symbol == s.stableQuoteSymbol {
		return 1
	}
	if mid, ok := mids[coin]; ok && mid > 0 {
		return mid
	}
	if mid, ok := mids[symbol]; ok && mid > 0 {
		return mid
	}
	s.logger.Warn("no mid price for spot coin, defaulting to 1", zap.String("coin", coin))
	return 1
}

func canonicalSymbol(coin string) string {
	if corrected, ok := symbolCorrections[coin]; ok {
		return corrected
	}
	return coin
}
