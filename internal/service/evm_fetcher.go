package service

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/config"
	"portfolio_aggregator/internal/denylist"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/metrics"
	"portfolio_aggregator/internal/pkg/utils"
	"portfolio_aggregator/internal/port"
)

type evmFetcherImpl struct {
	api      port.BalanceAPI
	metadata port.TokenMetadataService
	prices   port.TokenPriceService
	denylist *denylist.Resolver
	chains   map[string]config.EVMChain // numeric chain ID string -> chain config
	logger   *zap.Logger
}

// NewEVMFetcher creates the EVM fetcher. All configured networks are scanned
// through the aggregated balances API in a single upstream call.
func NewEVMFetcher(
	api port.BalanceAPI,
	metadata port.TokenMetadataService,
	prices port.TokenPriceService,
	denylistResolver *denylist.Resolver,
	chains []config.EVMChain,
	logger *zap.Logger,
) port.ChainFetcher {
	chainMap := make(map[string]config.EVMChain, len(chains))
	for _, chain := range chains {
		chainMap[strconv.FormatInt(chain.ChainID, 10)] = chain
	}
	return &evmFetcherImpl{
		api:      api,
		metadata: metadata,
		prices:   prices,
		denylist: denylistResolver,
		chains:   chainMap,
		logger:   logger.Named("EVMFetcher"),
	}
}

// FetchPortfolio implements the port.ChainFetcher interface.
func (s *evmFetcherImpl) FetchPortfolio(ctx context.Context, ownerAddress string) ([]entity.PortfolioItem, error) {
	if ownerAddress == "" {
		return nil, nil
	}
	if !common.IsHexAddress(ownerAddress) {
		return nil, fmt.Errorf("invalid EVM address: %s", ownerAddress)
	}
	start := time.Now()
	defer func() {
		metrics.FetchDuration.WithLabelValues("evm").Observe(time.Since(start).Seconds())
	}()

	chainKeys := make([]string, 0, len(s.chains))
	for _, chain := range s.chains {
		chainKeys = append(chainKeys, chain.Key)
	}

	balances, err := s.api.GetWalletBalances(ctx, ownerAddress, chainKeys)
	if err != nil {
		return nil, err
	}

	// Learn complete inline metadata; resolve the gaps per chain in batches.
	incompleteByChain := make(map[string][]string)
	for _, row := range balances {
		md := rowMetadata(row)
		if md.IsComplete() {
			s.metadata.Remember(ctx, md)
			continue
		}
		if row.Address != entity.ZeroAddress {
			incompleteByChain[row.ChainID] = append(incompleteByChain[row.ChainID], row.Address)
		}
	}
	resolved := make(map[string]entity.TokenMetadata)
	for chainID, addrs := range incompleteByChain {
		found, err := s.metadata.Resolve(ctx, chainID, addrs)
		if err != nil {
			return nil, err
		}
		for addr, md := range found {
			resolved[chainID+"-"+addr] = md
		}
	}

	// One price lookup per chain, covering every priced address on it.
	pricesByChain := s.lookupPrices(ctx, balances)

	var items []entity.PortfolioItem
	for _, row := range balances {
		chain, ok := s.chains[row.ChainID]
		if !ok {
			s.logger.Warn("balances row for unconfigured chain, skipping",
				zap.String("chainId", row.ChainID), zap.String("address", row.Address))
			continue
		}
		// The native pseudo-address is never denylist-gated.
		if row.Address != entity.ZeroAddress && s.denylist.IsDenylisted(ctx, strings.ToLower(row.Address), row.ChainID) {
			continue
		}

		md := rowMetadata(row)
		if !md.IsComplete() {
			if row.Address == entity.ZeroAddress {
				// The native asset is never dropped; the chain config backfills
				// whatever the balances row left out.
				md = nativeMetadata(chain, md)
			} else {
				fromLookup, ok := resolved[row.ChainID+"-"+strings.ToLower(row.Address)]
				if !ok {
					// Denylisted mid-flight or unresolvable without even decimals.
					s.logger.Debug("dropping balance row without usable metadata",
						zap.String("chainId", row.ChainID), zap.String("address", row.Address))
					continue
				}
				md = fromLookup
				if md.Decimals == 0 {
					md.Decimals = row.Decimals
				}
			}
		}

		amount, err := utils.ParseBaseUnits(row.Amount, md.Decimals)
		if err != nil {
			return nil, fmt.Errorf("chain %s token %s: %w", row.ChainID, row.Address, err)
		}
		if amount <= 0 {
			continue
		}

		item := entity.PortfolioItem{
			Address:  row.Address,
			Name:     md.Name,
			Symbol:   md.Symbol,
			Decimals: md.Decimals,
			LogoURI:  md.LogoURI,
			PriceUSD: row.PriceUSD,
			Amount:   amount,
			Chain:    chain.Key,
		}
		if price, ok := pricesByChain[row.ChainID][strings.ToLower(row.Address)]; ok {
			if item.PriceUSD == 0 {
				item.PriceUSD = price.PriceUSD
			}
			item.PriceChange24h = price.PriceChange24h
			item.Volume24h = price.Volume24h
		}
		if item.PriceUSD > 0 && utils.RoundsToZeroUSD(item.ValueUSD()) {
			continue
		}
		items = append(items, item)
	}

	s.logger.Debug("EVM portfolio fetched",
		zap.String("owner", ownerAddress), zap.Int("items", len(items)))
	return items, nil
}

// lookupPrices enriches balances with 24h change and volume. Price failures
// degrade to inline prices only, they never fail the fetch.
func (s *evmFetcherImpl) lookupPrices(ctx context.Context, balances []entity.EVMTokenBalance) map[string]map[string]entity.TokenPrice {
	addrsByChain := make(map[string][]string)
	for _, row := range balances {
		if row.Address == entity.ZeroAddress {
			continue
		}
		addrsByChain[row.ChainID] = append(addrsByChain[row.ChainID], row.Address)
	}

	out := make(map[string]map[string]entity.TokenPrice, len(addrsByChain))
	for chainID, addrs := range addrsByChain {
		chain, ok := s.chains[chainID]
		if !ok {
			continue
		}
		prices, err := s.prices.GetPrices(ctx, chain.Key, addrs)
		if err != nil {
			s.logger.Warn("price enrichment failed for chain",
				zap.String("chain", chain.Key), zap.Error(err))
			continue
		}
		out[chainID] = prices
	}
	return out
}

// nativeMetadata fills the gaps of a native (zero-address) row from the chain
// configuration. Inline fields from the balances API win when present.
func nativeMetadata(chain config.EVMChain, md entity.TokenMetadata) entity.TokenMetadata {
	if md.Name == "" {
		md.Name = chain.Name
	}
	if md.Symbol == "" {
		md.Symbol = chain.NativeSymbol
	}
	if md.Decimals == 0 {
		md.Decimals = chain.NativeDecimals
	}
	return md
}

func rowMetadata(row entity.EVMTokenBalance) entity.TokenMetadata {
	return entity.TokenMetadata{
		ChainID:  row.ChainID,
		Address:  row.Address,
		Name:     row.Name,
		Symbol:   row.Symbol,
		Decimals: row.Decimals,
		LogoURI:  row.LogoURI,
	}
}
