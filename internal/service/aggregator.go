package service

import (
	"strings"

	"portfolio_aggregator/internal/domain/entity"
)

// symbolAliases maps every symbol of a wrapped-asset family onto its
// canonical symbol, so the same economic exposure held on different venues
// rolls up into one line. Symbols outside this table never aggregate: the
// same ticker on two chains can be two unrelated tokens.
var symbolAliases = map[string]string{
	"ETH":  "ETH",
	"WETH": "ETH",
	"BTC":  "BTC",
	"WBTC": "BTC",
	"SOL":  "SOL",
	"WSOL": "SOL",
}

// canonicalLogos overrides the logo of a merged group whose source items may
// disagree (a wrapped token's logo should not represent the canonical asset).
var canonicalLogos = map[string]string{
	"ETH": "https://raw.githubusercontent.com/trustwallet/assets/master/blockchains/ethereum/info/logo.png",
}

// Aggregate merges items whose symbols belong to the same alias family into
// single holdings with amount-weighted prices. Everything else passes through
// wrapped but unmerged, keyed per chain. First-seen order is preserved.
func Aggregate(items []entity.PortfolioItem) []entity.AggregatedPortfolioItem {
	type group struct {
		canonical string
		items     []entity.PortfolioItem
	}

	groups := make(map[string]*group)
	var order []string
	for _, item := range items {
		upper := strings.ToUpper(item.Symbol)
		canonical, aliased := symbolAliases[upper]

		var key string
		if aliased {
			key = canonical
		} else {
			// Non-aliased assets sharing a ticker across chains stay distinct.
			key = upper + "-" + item.Chain
		}

		g, ok := groups[key]
		if !ok {
			g = &group{canonical: canonical}
			groups[key] = g
			order = append(order, key)
		}
		g.items = append(g.items, item)
	}

	out := make([]entity.AggregatedPortfolioItem, 0, len(order))
	for _, key := range order {
		g := groups[key]
		if len(g.items) == 1 {
			item := g.items[0]
			out = append(out, entity.AggregatedPortfolioItem{
				PortfolioItem: item,
				Chains:        []string{item.Chain},
				OriginalItems: []entity.PortfolioItem{item},
			})
			continue
		}
		out = append(out, merge(g.canonical, g.items))
	}
	return out
}

// merge recomputes one aggregated line from its source items: summed amount,
// amount-weighted price and 24h change, chains in first-seen order. The first
// item seeds the display fields.
func merge(canonical string, items []entity.PortfolioItem) entity.AggregatedPortfolioItem {
	merged := items[0]
	merged.Symbol = canonical

	var totalAmount, weightedPrice, weightedChange, totalVolume float64
	var chains []string
	seen := make(map[string]struct{})
	for _, item := range items {
		totalAmount += item.Amount
		weightedPrice += item.PriceUSD * item.Amount
		weightedChange += item.PriceChange24h * item.Amount
		totalVolume += item.Volume24h
		if _, ok := seen[item.Chain]; !ok {
			seen[item.Chain] = struct{}{}
			chains = append(chains, item.Chain)
		}
	}

	merged.Amount = totalAmount
	merged.Volume24h = totalVolume
	if totalAmount > 0 {
		merged.PriceUSD = weightedPrice / totalAmount
		merged.PriceChange24h = weightedChange / totalAmount
	} else {
		merged.PriceUSD = 0
		merged.PriceChange24h = 0
	}
	if logo, ok := canonicalLogos[canonical]; ok {
		merged.LogoURI = logo
	}

	return entity.AggregatedPortfolioItem{
		PortfolioItem: merged,
		Chains:        chains,
		OriginalItems: items,
		IsAggregated:  true,
	}
}
