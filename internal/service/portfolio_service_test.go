package service

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
)

type fakeChainFetcher struct {
	items []entity.PortfolioItem
	err   error
	calls int
}

func (f *fakeChainFetcher) FetchPortfolio(_ context.Context, owner string) ([]entity.PortfolioItem, error) {
	if owner == "" {
		return nil, nil
	}
	f.calls++
	return f.items, f.err
}

type fakeExchangeFetcher struct {
	portfolio *entity.ExchangePortfolio
	err       error
	calls     int
}

func (f *fakeExchangeFetcher) FetchPortfolio(_ context.Context, owner string) (*entity.ExchangePortfolio, error) {
	if owner == "" {
		return nil, nil
	}
	f.calls++
	return f.portfolio, f.err
}

func TestGetPortfolioEmptyRequestShortCircuits(t *testing.T) {
	solana := &fakeChainFetcher{}
	evm := &fakeChainFetcher{}
	exchange := &fakeExchangeFetcher{}
	svc := NewPortfolioService(solana, evm, exchange, 0.02, zap.NewNop())

	view, err := svc.GetPortfolio(context.Background(), entity.PortfolioRequest{})
	require.NoError(t, err)
	require.NotNil(t, view)
	assert.Empty(t, view.Items)
	assert.Zero(t, view.TotalValueUSD)
	assert.Zero(t, solana.calls+evm.calls+exchange.calls, "no venue may be queried")
}

func TestGetPortfolioSkipsVenuesWithoutAddress(t *testing.T) {
	solana := &fakeChainFetcher{items: []entity.PortfolioItem{
		{Symbol: "SOL", Amount: 2, PriceUSD: 150, Chain: entity.ChainSolana},
	}}
	evm := &fakeChainFetcher{}
	exchange := &fakeExchangeFetcher{}
	svc := NewPortfolioService(solana, evm, exchange, 0.02, zap.NewNop())

	view, err := svc.GetPortfolio(context.Background(), entity.PortfolioRequest{SolanaAddress: "wallet"})
	require.NoError(t, err)
	assert.Equal(t, 1, solana.calls)
	assert.Zero(t, evm.calls)
	assert.Zero(t, exchange.calls)
	require.Len(t, view.Items, 1)
	assert.InDelta(t, 300, view.TotalValueUSD, 1e-9)
}

func TestGetPortfolioFailsFastOnVenueError(t *testing.T) {
	boom := errors.New("rpc unavailable")
	solana := &fakeChainFetcher{err: boom}
	evm := &fakeChainFetcher{items: []entity.PortfolioItem{
		{Symbol: "ETH", Amount: 1, PriceUSD: 2000, Chain: "ethereum"},
	}}
	exchange := &fakeExchangeFetcher{portfolio: &entity.ExchangePortfolio{}}
	svc := NewPortfolioService(solana, evm, exchange, 0.02, zap.NewNop())

	view, err := svc.GetPortfolio(context.Background(), entity.PortfolioRequest{
		SolanaAddress:   "s",
		EVMAddress:      "0xe",
		ExchangeAddress: "0xh",
	})
	require.ErrorIs(t, err, boom)
	assert.Nil(t, view, "a failing venue must fail the whole request")
}

func TestGetPortfolioDropsDustBeforeTotals(t *testing.T) {
	evm := &fakeChainFetcher{items: []entity.PortfolioItem{
		{Symbol: "ETH", Amount: 1, PriceUSD: 2000, Chain: "ethereum"},
		{Symbol: "SHIB", Amount: 100, PriceUSD: 0.0001, Chain: "ethereum"}, // $0.01 of dust
	}}
	svc := NewPortfolioService(&fakeChainFetcher{}, evm, &fakeExchangeFetcher{}, 0.02, zap.NewNop())

	view, err := svc.GetPortfolio(context.Background(), entity.PortfolioRequest{EVMAddress: "0xe"})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.Equal(t, "ETH", view.Items[0].Symbol)
	assert.InDelta(t, 2000, view.TotalValueUSD, 1e-9, "dust must not contribute to the total")
}

func TestGetPortfolioAggregatesAcrossVenues(t *testing.T) {
	solana := &fakeChainFetcher{items: []entity.PortfolioItem{
		{Symbol: "WSOL", Amount: 1, PriceUSD: 150, Chain: entity.ChainSolana},
	}}
	exchange := &fakeExchangeFetcher{portfolio: &entity.ExchangePortfolio{
		Items: []entity.PortfolioItem{
			{Symbol: "SOL", Amount: 2, PriceUSD: 150, Chain: entity.VenueExchange, Type: entity.ItemTypeSpot},
		},
	}}
	svc := NewPortfolioService(solana, &fakeChainFetcher{}, exchange, 0.02, zap.NewNop())

	view, err := svc.GetPortfolio(context.Background(), entity.PortfolioRequest{
		SolanaAddress:   "s",
		ExchangeAddress: "0xh",
	})
	require.NoError(t, err)
	require.Len(t, view.Items, 1)
	assert.True(t, view.Items[0].IsAggregated)
	assert.Equal(t, "SOL", view.Items[0].Symbol)
	assert.Equal(t, 3.0, view.Items[0].Amount)
}

func TestGetPortfolioSortsByValueDescending(t *testing.T) {
	evm := &fakeChainFetcher{items: []entity.PortfolioItem{
		{Symbol: "USDC", Amount: 100, PriceUSD: 1, Chain: "ethereum"},
		{Symbol: "ETH", Amount: 1, PriceUSD: 2000, Chain: "ethereum"},
		{Symbol: "ARB", Amount: 10, PriceUSD: 1.2, Chain: "arbitrum"},
	}}
	svc := NewPortfolioService(&fakeChainFetcher{}, evm, &fakeExchangeFetcher{}, 0.02, zap.NewNop())

	view, err := svc.GetPortfolio(context.Background(), entity.PortfolioRequest{EVMAddress: "0xe"})
	require.NoError(t, err)
	require.Len(t, view.Items, 3)
	assert.Equal(t, "ETH", view.Items[0].Symbol)
	assert.Equal(t, "USDC", view.Items[1].Symbol)
	assert.Equal(t, "ARB", view.Items[2].Symbol)
}

func TestGetPortfolioWeightedPnL(t *testing.T) {
	evm := &fakeChainFetcher{items: []entity.PortfolioItem{
		{Symbol: "ETH", Amount: 1, PriceUSD: 3000, PriceChange24h: 10, Chain: "ethereum"},
		{Symbol: "USDC", Amount: 1000, PriceUSD: 1, PriceChange24h: 0, Chain: "ethereum"},
	}}
	svc := NewPortfolioService(&fakeChainFetcher{}, evm, &fakeExchangeFetcher{}, 0.02, zap.NewNop())

	view, err := svc.GetPortfolio(context.Background(), entity.PortfolioRequest{EVMAddress: "0xe"})
	require.NoError(t, err)
	// 3000/4000 * 10 + 1000/4000 * 0 = 7.5
	assert.InDelta(t, 7.5, view.WeightedPnL, 1e-9)
	assert.InDelta(t, 4000, view.TotalValueUSD, 1e-9)
}
