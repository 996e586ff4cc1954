package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/cache"
	"portfolio_aggregator/internal/config"
	"portfolio_aggregator/internal/denylist"
	"portfolio_aggregator/internal/domain/entity"
)

type fakeBalanceAPI struct {
	rows  []entity.EVMTokenBalance
	err   error
	calls int
}

func (f *fakeBalanceAPI) GetWalletBalances(context.Context, string, []string) ([]entity.EVMTokenBalance, error) {
	f.calls++
	return f.rows, f.err
}

// stubMetadataService resolves from a fixed map and records Remember calls.
type stubMetadataService struct {
	resolved   map[string]entity.TokenMetadata // "chainID-address" -> metadata
	remembered []entity.TokenMetadata
}

func (s *stubMetadataService) Resolve(_ context.Context, chainID string, addresses []string) (map[string]entity.TokenMetadata, error) {
	out := make(map[string]entity.TokenMetadata)
	for _, addr := range addresses {
		lower := strings.ToLower(addr)
		if md, ok := s.resolved[chainID+"-"+lower]; ok {
			out[lower] = md
		}
	}
	return out, nil
}

func (s *stubMetadataService) Remember(_ context.Context, md entity.TokenMetadata) {
	s.remembered = append(s.remembered, md)
}

// stubPriceService serves prices from a fixed per-chain map.
type stubPriceService struct {
	prices map[string]map[string]entity.TokenPrice // chain key -> lowercase address -> price
	err    error
}

func (s *stubPriceService) GetPrices(_ context.Context, chainID string, addresses []string) (map[string]entity.TokenPrice, error) {
	if s.err != nil {
		return nil, s.err
	}
	out := make(map[string]entity.TokenPrice)
	for _, addr := range addresses {
		lower := strings.ToLower(addr)
		if p, ok := s.prices[chainID][lower]; ok {
			out[lower] = p
		}
	}
	return out, nil
}

var testChains = []config.EVMChain{
	{ChainID: 1, Key: "ethereum", Name: "Ethereum", NativeSymbol: "ETH", NativeDecimals: 18},
	{ChainID: 42161, Key: "arbitrum", Name: "Arbitrum One", NativeSymbol: "ETH", NativeDecimals: 18},
}

func newEVMHarness(t *testing.T, api *fakeBalanceAPI, md *stubMetadataService, prices *stubPriceService) (*evmFetcherImpl, *denylist.Resolver) {
	t.Helper()
	logger := zap.NewNop()
	denylistResolver := denylist.NewResolver(
		cache.New("denylist", cache.NewMemoryStore(), time.Hour, logger), logger)
	fetcher := NewEVMFetcher(api, md, prices, denylistResolver, testChains, logger).(*evmFetcherImpl)
	return fetcher, denylistResolver
}

const testWallet = "0x1111111111111111111111111111111111111111"

func TestEVMFetcherEmptyAddressShortCircuits(t *testing.T) {
	api := &fakeBalanceAPI{}
	f, _ := newEVMHarness(t, api, &stubMetadataService{}, &stubPriceService{})

	items, err := f.FetchPortfolio(context.Background(), "")
	require.NoError(t, err)
	assert.Nil(t, items)
	assert.Zero(t, api.calls)
}

func TestEVMFetcherRejectsInvalidAddress(t *testing.T) {
	api := &fakeBalanceAPI{}
	f, _ := newEVMHarness(t, api, &stubMetadataService{}, &stubPriceService{})

	_, err := f.FetchPortfolio(context.Background(), "not-an-address")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid EVM address")
	assert.Zero(t, api.calls, "validation must precede the network call")
}

func TestEVMFetcherBuildsItemsFromInlineMetadata(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{
			ChainID: "1", Address: "0xToken", Name: "Wrapped Ether", Symbol: "WETH",
			Decimals: 18, LogoURI: "weth.png", PriceUSD: 2000,
			Amount: "1500000000000000000",
		},
	}}
	md := &stubMetadataService{}
	prices := &stubPriceService{prices: map[string]map[string]entity.TokenPrice{
		"ethereum": {"0xtoken": {PriceUSD: 2000, PriceChange24h: 3.5, Volume24h: 1e6}},
	}}
	f, _ := newEVMHarness(t, api, md, prices)

	items, err := f.FetchPortfolio(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, items, 1)

	item := items[0]
	assert.Equal(t, "WETH", item.Symbol)
	assert.Equal(t, "ethereum", item.Chain)
	assert.InDelta(t, 1.5, item.Amount, 1e-12)
	assert.Equal(t, 2000.0, item.PriceUSD)
	assert.InDelta(t, 3.5, item.PriceChange24h, 1e-9)

	require.Len(t, md.remembered, 1, "complete inline metadata must be learned")
	assert.Equal(t, "WETH", md.remembered[0].Symbol)
}

func TestEVMFetcherSkipsDenylistedTokens(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{ChainID: "42161", Address: "0xBad", Name: "Scam", Symbol: "SCAM", Decimals: 18, PriceUSD: 5, Amount: "1000000000000000000"},
		{ChainID: "42161", Address: entity.ZeroAddress, Name: "Ether", Symbol: "ETH", Decimals: 18, PriceUSD: 2000, Amount: "1000000000000000000"},
	}}
	f, denylistResolver := newEVMHarness(t, api, &stubMetadataService{}, &stubPriceService{})
	ctx := context.Background()

	require.NoError(t, denylistResolver.Add(ctx, "0xbad", "42161"))
	// Even a denylist entry for the zero address must not hide native funds.
	require.NoError(t, denylistResolver.Add(ctx, strings.ToLower(entity.ZeroAddress), "42161"))

	items, err := f.FetchPortfolio(ctx, testWallet)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "ETH", items[0].Symbol)
	assert.Equal(t, entity.ZeroAddress, items[0].Address)
}

func TestEVMFetcherResolvesMissingMetadata(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{ChainID: "1", Address: "0xMystery", Decimals: 0, PriceUSD: 2, Amount: "3000000"},
	}}
	md := &stubMetadataService{resolved: map[string]entity.TokenMetadata{
		"1-0xmystery": {ChainID: "1", Address: "0xMystery", Name: "Mystery", Symbol: "MYST", Decimals: 6},
	}}
	f, _ := newEVMHarness(t, api, md, &stubPriceService{})

	items, err := f.FetchPortfolio(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, items, 1)
	assert.Equal(t, "MYST", items[0].Symbol)
	assert.InDelta(t, 3.0, items[0].Amount, 1e-12)
}

func TestEVMFetcherDropsZeroBalanceRows(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{ChainID: "1", Address: "0xZeroBal", Name: "Dead Token", Symbol: "DEAD", Decimals: 18, Amount: "0"},
		{ChainID: "1", Address: "0xToken", Name: "T", Symbol: "T", Decimals: 18, PriceUSD: 1, Amount: "1000000000000000000"},
	}}
	f, _ := newEVMHarness(t, api, &stubMetadataService{}, &stubPriceService{})

	items, err := f.FetchPortfolio(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, items, 1, "an unpriced zero balance must not survive as a zero-amount item")
	assert.Equal(t, "T", items[0].Symbol)
}

func TestEVMFetcherBackfillsNativeMetadataFromConfig(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{ChainID: "1", Address: entity.ZeroAddress, PriceUSD: 2000, Amount: "1000000000000000000"},
	}}
	md := &stubMetadataService{}
	f, _ := newEVMHarness(t, api, md, &stubPriceService{})

	items, err := f.FetchPortfolio(context.Background(), testWallet)
	require.NoError(t, err)
	require.Len(t, items, 1, "native funds must survive a balances row without metadata")

	item := items[0]
	assert.Equal(t, "ETH", item.Symbol)
	assert.Equal(t, "Ethereum", item.Name)
	assert.Equal(t, uint8(18), item.Decimals)
	assert.InDelta(t, 1.0, item.Amount, 1e-12)
}

func TestEVMFetcherDropsRowsWithoutUsableMetadata(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{ChainID: "1", Address: "0xGone", PriceUSD: 1, Amount: "1000"},
	}}
	f, _ := newEVMHarness(t, api, &stubMetadataService{}, &stubPriceService{})

	items, err := f.FetchPortfolio(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEVMFetcherSkipsUnconfiguredChains(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{ChainID: "999", Address: "0xToken", Name: "T", Symbol: "T", Decimals: 18, PriceUSD: 1, Amount: "1000000000000000000"},
	}}
	f, _ := newEVMHarness(t, api, &stubMetadataService{}, &stubPriceService{})

	items, err := f.FetchPortfolio(context.Background(), testWallet)
	require.NoError(t, err)
	assert.Empty(t, items)
}

func TestEVMFetcherPriceFailureDegradesToInlinePrices(t *testing.T) {
	api := &fakeBalanceAPI{rows: []entity.EVMTokenBalance{
		{ChainID: "1", Address: "0xToken", Name: "T", Symbol: "T", Decimals: 18, PriceUSD: 7, Amount: "1000000000000000000"},
	}}
	prices := &stubPriceService{err: context.DeadlineExceeded}
	f, _ := newEVMHarness(t, api, &stubMetadataService{}, prices)

	items, err := f.FetchPortfolio(context.Background(), testWallet)
	require.NoError(t, err, "price enrichment failures must not fail the fetch")
	require.Len(t, items, 1)
	assert.Equal(t, 7.0, items[0].PriceUSD)
	assert.Zero(t, items[0].PriceChange24h)
}
