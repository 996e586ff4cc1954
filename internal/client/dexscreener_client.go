package client

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"
)

// DEXScreenerClient fetches trading-pair data (USD price, 24h change, 24h
// volume) for batches of token addresses on one chain.
type DEXScreenerClient interface {
	GetTokenPairs(ctx context.Context, chainID string, tokenAddresses []string) ([]PairData, error)
}

// PairData is one trading pair from the DEX Screener API, trimmed to the
// fields the price service consumes.
type PairData struct {
	ChainID     string          `json:"chainId"`
	PairAddress string          `json:"pairAddress"`
	BaseToken   PairToken       `json:"baseToken"`
	QuoteToken  PairToken       `json:"quoteToken"`
	PriceUsd    string          `json:"priceUsd"`
	Volume      PairVolume      `json:"volume"`
	PriceChange PairPriceChange `json:"priceChange"`
	Liquidity   *PairLiquidity  `json:"liquidity"` // pointer to handle nulls
}

// PairToken identifies one side of a trading pair.
type PairToken struct {
	Address string `json:"address"`
	Name    string `json:"name"`
	Symbol  string `json:"symbol"`
}

// PairVolume is trading volume over different periods.
type PairVolume struct {
	H24 float64 `json:"h24"`
}

// PairPriceChange is price change percentage over different periods.
type PairPriceChange struct {
	H24 float64 `json:"h24"`
}

// PairLiquidity is the liquidity backing a pair.
type PairLiquidity struct {
	Usd float64 `json:"usd"`
}

type dexScreenerClientImpl struct {
	client              *fasthttp.Client
	baseURL             string
	timeout             time.Duration
	logger              *zap.Logger
	maxTokensPerRequest int
}

// NewDEXScreenerClient creates a new instance of dexScreenerClientImpl.
func NewDEXScreenerClient(baseURL string, timeout time.Duration, logger *zap.Logger, maxTokensPerRequest int) DEXScreenerClient {
	return &dexScreenerClientImpl{
		client:              &fasthttp.Client{},
		baseURL:             strings.TrimRight(baseURL, "/"),
		timeout:             timeout,
		logger:              logger.Named("DEXScreenerClient"),
		maxTokensPerRequest: maxTokensPerRequest,
	}
}

// GetTokenPairs implements the DEXScreenerClient interface.
func (c *dexScreenerClientImpl) GetTokenPairs(ctx context.Context, chainID string, tokenAddresses []string) ([]PairData, error) {
	if len(tokenAddresses) == 0 {
		return nil, fmt.Errorf("tokenAddresses cannot be empty")
	}
	if len(tokenAddresses) > c.maxTokensPerRequest {
		return nil, fmt.Errorf("number of token addresses (%d) exceeds max tokens per request (%d)", len(tokenAddresses), c.maxTokensPerRequest)
	}

	url := fmt.Sprintf("%s/tokens/v1/%s/%s", c.baseURL, chainID, strings.Join(tokenAddresses, ","))
	c.logger.Debug("Requesting token pairs", zap.String("chainId", chainID), zap.Int("tokens", len(tokenAddresses)))

	raw, err := doRequest(ctx, c.client, "dexscreener", fasthttp.MethodGet, url, nil, c.timeout)
	if err != nil {
		return nil, err
	}

	// The endpoint answers either a bare array of pairs or an object wrapping
	// one under "pairs", depending on the route version.
	var wrapper struct {
		Pairs []PairData `json:"pairs"`
	}
	if err := json.Unmarshal(raw, &wrapper); err == nil && wrapper.Pairs != nil {
		return wrapper.Pairs, nil
	}

	var pairs []PairData
	if err := json.Unmarshal(raw, &pairs); err != nil {
		return nil, fmt.Errorf("failed to unmarshal pairs response from %s: %w", url, err)
	}
	if len(pairs) == 0 {
		c.logger.Warn("price API returned 200 OK with no pairs",
			zap.String("chainId", chainID),
			zap.Strings("tokens", tokenAddresses))
	}
	return pairs, nil
}
