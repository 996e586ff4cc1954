package entity

// AggregatedPortfolioItem merges one or more PortfolioItems that share a
// canonical symbol (e.g. WETH on Ethereum and native ETH on Arbitrum).
//
// PriceUSD and PriceChange24h are amount-weighted averages over
// OriginalItems; Amount is the arithmetic sum. Both averages are zero when
// the total amount is zero.
type AggregatedPortfolioItem struct {
	PortfolioItem

	// Chains lists every venue contributing to this item, in first-seen order.
	Chains []string `json:"chains"`

	// OriginalItems retains the source items for audit and recomputation.
	OriginalItems []PortfolioItem `json:"originalItems"`

	// IsAggregated is true only when a canonicalization rule actually merged
	// at least one alias-mapped symbol into this item.
	IsAggregated bool `json:"isAggregated"`
}
