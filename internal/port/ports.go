package port

import (
	"context"

	"portfolio_aggregator/internal/domain/entity"
)

// ChainFetcher produces the normalized holdings of one owner address on one
// chain. An empty address returns (nil, nil) without any network call.
type ChainFetcher interface {
	FetchPortfolio(ctx context.Context, ownerAddress string) ([]entity.PortfolioItem, error)
}

// ExchangeFetcher produces the normalized spot and perpetual holdings of an
// exchange account, keeping the raw position records alongside.
type ExchangeFetcher interface {
	FetchPortfolio(ctx context.Context, ownerAddress string) (*entity.ExchangePortfolio, error)
}

// PortfolioService is the pipeline entry point: concurrent per-venue fetch,
// cross-chain aggregation, dust filtering and summary statistics.
type PortfolioService interface {
	GetPortfolio(ctx context.Context, req entity.PortfolioRequest) (*entity.PortfolioView, error)
}

// TokenMetadataService resolves token metadata cache-first, batching uncached
// addresses into bounded rate-limited upstream lookups. Every requested
// address is present in the result; unresolvable tokens map to a placeholder
// record unless they are denylisted, in which case they are omitted.
type TokenMetadataService interface {
	Resolve(ctx context.Context, chainID string, addresses []string) (map[string]entity.TokenMetadata, error)

	// Remember caches a complete metadata record observed inline in another
	// API's response, so later lookups skip the network.
	Remember(ctx context.Context, md entity.TokenMetadata)
}

// TokenPriceService returns USD price, 24h change and 24h volume for tokens
// on one chain, keyed by lowercase address. Tokens with no resolvable price
// are absent from the map.
type TokenPriceService interface {
	GetPrices(ctx context.Context, chainID string, addresses []string) (map[string]entity.TokenPrice, error)
}

// SolanaClient is the RPC surface the Solana fetcher needs.
type SolanaClient interface {
	// GetNativeBalance returns the owner's balance in lamports.
	GetNativeBalance(ctx context.Context, owner string) (uint64, error)

	// GetTokenHoldings returns one Holding per token account across both the
	// Token and Token-2022 programs.
	GetTokenHoldings(ctx context.Context, owner string) ([]entity.Holding, error)
}

// BalanceAPI is the multi-chain EVM balances upstream (balances with inline
// metadata and prices, batched across networks in a single call).
type BalanceAPI interface {
	GetWalletBalances(ctx context.Context, wallet string, chains []string) ([]entity.EVMTokenBalance, error)
}

// TokenAPI is the token-lookup-by-address upstream. Lookup errors may carry
// denylist signals in their message.
type TokenAPI interface {
	GetTokens(ctx context.Context, chainID string, addresses []string) (map[string]entity.TokenMetadata, error)
	GetToken(ctx context.Context, chainID, address string) (*entity.TokenMetadata, error)
}

// ExchangeAPI is the exchange account-state upstream.
type ExchangeAPI interface {
	GetSpotBalances(ctx context.Context, user string) ([]entity.SpotBalance, error)
	GetPerpPositions(ctx context.Context, user string) ([]entity.PerpPosition, error)
	GetAllMids(ctx context.Context) (map[string]float64, error)
}
