package entity

// Holding is the raw Solana form of a token balance: one SPL token account
// with its mint and base-unit amount. It is transient and converted into a
// PortfolioItem during normalization.
type Holding struct {
	Mint     string `json:"mint"`
	ATA      string `json:"ata"`
	Amount   uint64 `json:"amount"`
	Decimals uint8  `json:"decimals"`
}

// SpotBalance is a raw exchange spot balance.
type SpotBalance struct {
	Coin  string  `json:"coin"`
	Total float64 `json:"total"`
	Hold  float64 `json:"hold"`
}

// PerpPosition is a raw open perpetual position on the exchange. Size keeps
// its sign (negative for shorts); the normalized PortfolioItem uses the
// absolute size, so callers needing direction must consult this record.
type PerpPosition struct {
	Coin           string  `json:"coin"`
	Size           float64 `json:"size"`
	EntryPrice     float64 `json:"entryPrice"`
	PositionValue  float64 `json:"positionValue"`
	UnrealizedPnl  float64 `json:"unrealizedPnl"`
	ReturnOnEquity float64 `json:"returnOnEquity,omitempty"`
}

// ExchangePortfolio couples the normalized exchange items with the raw
// position records they were derived from.
type ExchangePortfolio struct {
	Items     []PortfolioItem `json:"items"`
	Positions []PerpPosition  `json:"positions,omitempty"`
}

// EVMTokenBalance is one validated token balance row from the multi-chain
// balances API, still in base units but already carrying inline metadata and
// price where the upstream provided them.
type EVMTokenBalance struct {
	ChainID  string
	Address  string
	Name     string
	Symbol   string
	Decimals uint8
	LogoURI  string
	PriceUSD float64
	// Amount is the raw base-unit balance as a decimal string.
	Amount string
}
