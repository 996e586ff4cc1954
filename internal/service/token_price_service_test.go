package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/client"
)

type fakeDEXScreenerClient struct {
	pairs []client.PairData
	err   error
	calls int
}

func (f *fakeDEXScreenerClient) GetTokenPairs(context.Context, string, []string) ([]client.PairData, error) {
	f.calls++
	return f.pairs, f.err
}

func pair(base, quote, priceUsd string, liquidity, change, volume float64) client.PairData {
	return client.PairData{
		ChainID:     "ethereum",
		BaseToken:   client.PairToken{Address: base, Symbol: "BASE"},
		QuoteToken:  client.PairToken{Address: "0xquote", Symbol: quote},
		PriceUsd:    priceUsd,
		Liquidity:   &client.PairLiquidity{Usd: liquidity},
		PriceChange: client.PairPriceChange{H24: change},
		Volume:      client.PairVolume{H24: volume},
	}
}

func TestGetPricesPrefersStablecoinQuote(t *testing.T) {
	dex := &fakeDEXScreenerClient{pairs: []client.PairData{
		// Deeper liquidity, but a volatile quote asset.
		pair("0xtoken", "WETH", "101.5", 5_000_000, 2, 10_000),
		pair("0xtoken", "USDC", "100.0", 1_000_000, 1.5, 8_000),
	}}
	svc := NewTokenPriceService(dex, time.Minute, 30, zap.NewNop())

	prices, err := svc.GetPrices(context.Background(), "ethereum", []string{"0xToken"})
	require.NoError(t, err)
	require.Contains(t, prices, "0xtoken")
	assert.Equal(t, 100.0, prices["0xtoken"].PriceUSD)
	assert.Equal(t, 1.5, prices["0xtoken"].PriceChange24h)
	assert.Equal(t, 8_000.0, prices["0xtoken"].Volume24h)
}

func TestGetPricesFallsBackToHighestLiquidity(t *testing.T) {
	dex := &fakeDEXScreenerClient{pairs: []client.PairData{
		pair("0xtoken", "WETH", "99.0", 500_000, 0, 0),
		pair("0xtoken", "WBNB", "101.0", 2_000_000, 0, 0),
	}}
	svc := NewTokenPriceService(dex, time.Minute, 30, zap.NewNop())

	prices, err := svc.GetPrices(context.Background(), "ethereum", []string{"0xtoken"})
	require.NoError(t, err)
	assert.Equal(t, 101.0, prices["0xtoken"].PriceUSD)
}

func TestGetPricesSkipsZeroAndEmptyPrices(t *testing.T) {
	dex := &fakeDEXScreenerClient{pairs: []client.PairData{
		pair("0xtoken", "USDC", "0", 1_000_000, 0, 0),
		pair("0xtoken", "USDT", "", 2_000_000, 0, 0),
	}}
	svc := NewTokenPriceService(dex, time.Minute, 30, zap.NewNop())

	prices, err := svc.GetPrices(context.Background(), "ethereum", []string{"0xtoken"})
	require.NoError(t, err)
	assert.NotContains(t, prices, "0xtoken", "tokens without a usable price are omitted")
}

func TestGetPricesIgnoresPairsForOtherBaseTokens(t *testing.T) {
	dex := &fakeDEXScreenerClient{pairs: []client.PairData{
		pair("0xother", "USDC", "55.0", 1_000_000, 0, 0),
	}}
	svc := NewTokenPriceService(dex, time.Minute, 30, zap.NewNop())

	prices, err := svc.GetPrices(context.Background(), "ethereum", []string{"0xtoken"})
	require.NoError(t, err)
	assert.Empty(t, prices)
}

func TestGetPricesCachesResults(t *testing.T) {
	dex := &fakeDEXScreenerClient{pairs: []client.PairData{
		pair("0xtoken", "USDC", "42.0", 1_000_000, 0, 0),
	}}
	svc := NewTokenPriceService(dex, time.Minute, 30, zap.NewNop())
	ctx := context.Background()

	_, err := svc.GetPrices(ctx, "ethereum", []string{"0xtoken"})
	require.NoError(t, err)
	require.Equal(t, 1, dex.calls)

	prices, err := svc.GetPrices(ctx, "ethereum", []string{"0xTOKEN"})
	require.NoError(t, err)
	assert.Equal(t, 1, dex.calls, "second lookup must be served from cache")
	assert.Equal(t, 42.0, prices["0xtoken"].PriceUSD)
}

func TestGetPricesEmptyInput(t *testing.T) {
	dex := &fakeDEXScreenerClient{}
	svc := NewTokenPriceService(dex, time.Minute, 30, zap.NewNop())

	prices, err := svc.GetPrices(context.Background(), "ethereum", nil)
	require.NoError(t, err)
	assert.Empty(t, prices)
	assert.Zero(t, dex.calls)
}

func TestGetPricesPropagatesClientError(t *testing.T) {
	dex := &fakeDEXScreenerClient{err: context.DeadlineExceeded}
	svc := NewTokenPriceService(dex, time.Minute, 30, zap.NewNop())

	_, err := svc.GetPrices(context.Background(), "ethereum", []string{"0xtoken"})
	assert.Error(t, err)
}
