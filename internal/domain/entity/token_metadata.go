package entity

// TokenMetadata holds the immutable descriptive facts about a token on a
// specific chain. Once observed it is safe to cache indefinitely.
type TokenMetadata struct {
	ChainID   string  `json:"chainId"`
	Address   string  `json:"address"`
	Name      string  `json:"name"`
	Symbol    string  `json:"symbol"`
	Decimals  uint8   `json:"decimals"`
	LogoURI   string  `json:"logoURI,omitempty"`
	Volume24h float64 `json:"volume24h,omitempty"`
}

// Placeholder values used when a token's metadata cannot be resolved.
const (
	UnknownTokenName   = "Unknown Token"
	UnknownTokenSymbol = "UNKNOWN"
)

// PlaceholderMetadata builds the degraded record used when metadata
// resolution fails for a single token. Placeholders are never cached.
func PlaceholderMetadata(chainID, address string, decimals uint8) TokenMetadata {
	return TokenMetadata{
		ChainID:  chainID,
		Address:  address,
		Name:     UnknownTokenName,
		Symbol:   UnknownTokenSymbol,
		Decimals: decimals,
	}
}

// IsComplete reports whether the record carries everything the fetchers need
// without a follow-up lookup.
func (m TokenMetadata) IsComplete() bool {
	return m.Name != "" && m.Symbol != "" && m.Decimals > 0
}

// TokenPrice is the live pricing snapshot for one token.
type TokenPrice struct {
	PriceUSD       float64 `json:"priceUSD"`
	PriceChange24h float64 `json:"priceChange24h"`
	Volume24h      float64 `json:"volume24h"`
}
