package entity

// Venue identifiers for the sources a holding can come from.
const (
	ChainSolana   = "solana"
	VenueExchange = "hyperliquid"
)

// ZeroAddress marks the native asset of an EVM network in upstream responses.
const ZeroAddress = "0x0000000000000000000000000000000000000000"

// Item types for exchange holdings.
const (
	ItemTypeSpot = "spot"
	ItemTypePerp = "perp"
)

// PortfolioItem is one held asset on one venue, normalized to human units
// and priced in USD.
type PortfolioItem struct {
	Address        string  `json:"address"`
	Name           string  `json:"name"`
	Symbol         string  `json:"symbol"`
	Decimals       uint8   `json:"decimals"`
	LogoURI        string  `json:"logoURI,omitempty"`
	PriceUSD       float64 `json:"priceUSD"`
	Amount         float64 `json:"amount"`
	Chain          string  `json:"chain"`
	PriceChange24h float64 `json:"priceChange24h"`
	Volume24h      float64 `json:"volume24h,omitempty"`
	Type           string  `json:"type,omitempty"`
}

// ValueUSD returns the USD value of the held amount.
func (i PortfolioItem) ValueUSD() float64 {
	return i.Amount * i.PriceUSD
}

// PortfolioRequest carries the per-venue wallet addresses for one combined
// portfolio fetch. An empty field means "no wallet connected on that venue"
// and short-circuits the corresponding fetch without any network call.
type PortfolioRequest struct {
	SolanaAddress   string `json:"solanaAddress"`
	EVMAddress      string `json:"evmAddress"`
	ExchangeAddress string `json:"exchangeAddress"`
}

// IsEmpty reports whether no venue has a wallet to resolve.
func (r PortfolioRequest) IsEmpty() bool {
	return r.SolanaAddress == "" && r.EVMAddress == "" && r.ExchangeAddress == ""
}

// PortfolioView is the final aggregated portfolio returned to callers.
type PortfolioView struct {
	Items         []AggregatedPortfolioItem `json:"items"`
	TotalValueUSD float64                   `json:"totalValueUSD"`
	WeightedPnL   float64                   `json:"weightedPnL"`
}
