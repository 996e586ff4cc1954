package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/client"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
	"portfolio_aggregator/internal/port"
)

const (
	stablecoinUSDCSymbol = "USDC"
	stablecoinUSDTSymbol = "USDT"
	stablecoinDAISymbol  = "DAI"
)

var stablecoinSymbols = map[string]struct{}{
	stablecoinUSDCSymbol: {},
	stablecoinUSDTSymbol: {},
	stablecoinDAISymbol:  {},
}

// tokenPriceServiceImpl implements the TokenPriceService interface on top of
// the DEX Screener pairs API with a short-TTL in-process price cache.
type tokenPriceServiceImpl struct {
	logger            *zap.Logger
	dexscreenerClient client.DEXScreenerClient
	pricesCache       *gocache.Cache // key "chainID_tokenAddress" -> entity.TokenPrice
	batchSize         int
}

// NewTokenPriceService creates a new instance of TokenPriceService.
func NewTokenPriceService(
	dexscreenerClient client.DEXScreenerClient,
	cacheTTL time.Duration,
	batchSize int,
	logger *zap.Logger,
) port.TokenPriceService {
	return &tokenPriceServiceImpl{
		logger:            logger.Named("TokenPriceService"),
		dexscreenerClient: dexscreenerClient,
		pricesCache:       gocache.New(cacheTTL, 10*time.Minute),
		batchSize:         batchSize,
	}
}

// GetPrices implements the port.TokenPriceService interface. chainID is the
// DEX Screener chain identifier (e.g. "ethereum", "solana"). Tokens with no
// tradeable pair are absent from the result rather than zero-priced.
func (s *tokenPriceServiceImpl) GetPrices(ctx context.Context, chainID string, addresses []string) (map[string]entity.TokenPrice, error) {
	result := make(map[string]entity.TokenPrice)
	if len(addresses) == 0 {
		return result, nil
	}

	lowered := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		lowered = append(lowered, strings.ToLower(addr))
	}
	lowered = utils.DistinctStrings(lowered)

	var uncached []string
	for _, addr := range lowered {
		if cached, found := s.pricesCache.Get(priceCacheKey(chainID, addr)); found {
			if price, ok := cached.(entity.TokenPrice); ok {
				result[addr] = price
				continue
			}
		}
		uncached = append(uncached, addr)
	}
	if len(uncached) == 0 {
		return result, nil
	}

	for _, batch := range utils.BatchStrings(uncached, s.batchSize) {
		pairs, err := s.dexscreenerClient.GetTokenPairs(ctx, chainID, batch)
		if err != nil {
			return nil, fmt.Errorf("failed to get token pairs for chain %s: %w", chainID, err)
		}

		pairsByBaseToken := make(map[string][]client.PairData)
		for _, pair := range pairs {
			base := strings.ToLower(pair.BaseToken.Address)
			pairsByBaseToken[base] = append(pairsByBaseToken[base], pair)
		}

		for _, addr := range batch {
			best := s.selectBestPriceFromPairs(pairsByBaseToken[addr], addr)
			if best == nil {
				s.logger.Debug("No suitable price found for token",
					zap.String("chainId", chainID), zap.String("address", addr))
				continue
			}
			price, err := strconv.ParseFloat(best.PriceUsd, 64)
			if err != nil {
				s.logger.Warn("Failed to parse price string to float",
					zap.String("priceUsd", best.PriceUsd),
					zap.String("address", addr),
					zap.Error(err))
				continue
			}
			tokenPrice := entity.TokenPrice{
				PriceUSD:       price,
				PriceChange24h: best.PriceChange.H24,
				Volume24h:      best.Volume.H24,
			}
			s.pricesCache.Set(priceCacheKey(chainID, addr), tokenPrice, gocache.DefaultExpiration)
			result[addr] = tokenPrice
		}
	}
	return result, nil
}

// selectBestPriceFromPairs selects the most trustworthy pair for a base token.
// Priority: pairs quoted in stablecoins (USDC, USDT, DAI) with the highest
// liquidity. Fallback: the pair with the highest liquidity overall.
func (s *tokenPriceServiceImpl) selectBestPriceFromPairs(pairs []client.PairData, baseTokenAddress string) *client.PairData {
	var bestOverallPair *client.PairData
	var bestStablecoinPair *client.PairData

	for _, p := range pairs {
		pair := p
		if !strings.EqualFold(pair.BaseToken.Address, baseTokenAddress) {
			continue
		}
		if pair.PriceUsd == "" || pair.PriceUsd == "0" {
			continue
		}

		_, isStablecoin := stablecoinSymbols[strings.ToUpper(pair.QuoteToken.Symbol)]
		if isStablecoin {
			if bestStablecoinPair == nil || liquidityUSD(&pair) > liquidityUSD(bestStablecoinPair) {
				bestStablecoinPair = &pair
			}
		}
		if bestOverallPair == nil || liquidityUSD(&pair) > liquidityUSD(bestOverallPair) {
			bestOverallPair = &pair
		}
	}

	if bestStablecoinPair != nil {
		return bestStablecoinPair
	}
	return bestOverallPair
}

func liquidityUSD(pair *client.PairData) float64 {
	if pair == nil || pair.Liquidity == nil {
		return 0
	}
	return pair.Liquidity.Usd
}

func priceCacheKey(chainID, address string) string {
	return chainID + "_" + strings.ToLower(address)
}
