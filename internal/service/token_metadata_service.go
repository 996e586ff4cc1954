package service

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"portfolio_aggregator/internal/cache"
	"portfolio_aggregator/internal/denylist"
	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/pkg/utils"
	"portfolio_aggregator/internal/port"
	"portfolio_aggregator/internal/ratelimit"
)

type tokenMetadataServiceImpl struct {
	api       port.TokenAPI
	cache     *cache.ExpiringCache
	denylist  *denylist.Resolver
	limiter   *ratelimit.Limiter
	batchSize int
	logger    *zap.Logger
}

// NewTokenMetadataService creates the cache-first metadata resolver. All
// upstream calls go through the shared rate limiter; uncached addresses are
// looked up in batches of at most batchSize.
func NewTokenMetadataService(
	api port.TokenAPI,
	metadataCache *cache.ExpiringCache,
	denylistResolver *denylist.Resolver,
	limiter *ratelimit.Limiter,
	batchSize int,
	logger *zap.Logger,
) port.TokenMetadataService {
	return &tokenMetadataServiceImpl{
		api:       api,
		cache:     metadataCache,
		denylist:  denylistResolver,
		limiter:   limiter,
		batchSize: batchSize,
		logger:    logger.Named("TokenMetadataService"),
	}
}

// Resolve implements the port.TokenMetadataService interface. The result maps
// lowercase address to metadata for every requested address except denylisted
// ones; tokens the upstream cannot describe get a placeholder record.
func (s *tokenMetadataServiceImpl) Resolve(ctx context.Context, chainID string, addresses []string) (map[string]entity.TokenMetadata, error) {
	result := make(map[string]entity.TokenMetadata)
	if len(addresses) == 0 {
		return result, nil
	}

	lowered := make([]string, 0, len(addresses))
	for _, addr := range addresses {
		lowered = append(lowered, strings.ToLower(addr))
	}
	lowered = utils.DistinctStrings(lowered)

	var uncached []string
	for _, addr := range lowered {
		if s.denylist.IsDenylisted(ctx, addr, chainID) {
			continue
		}
		var md entity.TokenMetadata
		hit, err := s.cache.Get(ctx, cache.Key(chainID, addr), &md)
		if err != nil {
			s.logger.Warn("metadata cache read failed, falling through to upstream",
				zap.String("address", addr), zap.Error(err))
		}
		if hit {
			result[addr] = md
			continue
		}
		uncached = append(uncached, addr)
	}

	if len(uncached) == 0 {
		return result, nil
	}
	s.logger.Debug("Resolving uncached token metadata",
		zap.String("chainId", chainID), zap.Int("count", len(uncached)))

	for _, batch := range utils.BatchStrings(uncached, s.batchSize) {
		found, err := s.resolveBatch(ctx, chainID, batch)
		if err != nil {
			// The whole batch failed; fall back to one lookup per address so a
			// single bad token cannot poison its neighbours.
			s.logger.Warn("batch metadata lookup failed, retrying addresses individually",
				zap.String("chainId", chainID), zap.Int("batch", len(batch)), zap.Error(err))
			found = map[string]entity.TokenMetadata{}
		}

		for _, addr := range batch {
			if md, ok := found[addr]; ok {
				s.remember(ctx, chainID, addr, md)
				result[addr] = md
				continue
			}
			md, ok := s.resolveSingle(ctx, chainID, addr)
			if !ok {
				continue // denylisted mid-flight
			}
			result[addr] = md
		}
	}
	return result, nil
}

// resolveBatch runs one rate-limited batch lookup, returning results keyed by
// lowercase address.
func (s *tokenMetadataServiceImpl) resolveBatch(ctx context.Context, chainID string, batch []string) (map[string]entity.TokenMetadata, error) {
	var found map[string]entity.TokenMetadata
	err := s.limiter.Execute(ctx, func(ctx context.Context) error {
		var err error
		found, err = s.api.GetTokens(ctx, chainID, batch)
		return err
	})
	return found, err
}

// resolveSingle looks one address up individually. Failures are classified
// against the denylist: a denylist rejection blocks the token and omits it
// from the result (ok=false), anything else degrades to a placeholder.
func (s *tokenMetadataServiceImpl) resolveSingle(ctx context.Context, chainID, addr string) (entity.TokenMetadata, bool) {
	var md *entity.TokenMetadata
	err := s.limiter.Execute(ctx, func(ctx context.Context) error {
		var err error
		md, err = s.api.GetToken(ctx, chainID, addr)
		return err
	})
	if err != nil {
		if s.denylist.HandlePotentialDenylistError(ctx, err.Error(), addr, chainID) {
			return entity.TokenMetadata{}, false
		}
		s.logger.Warn("token metadata unresolvable, using placeholder",
			zap.String("chainId", chainID), zap.String("address", addr), zap.Error(err))
		return entity.PlaceholderMetadata(chainID, addr, 0), true
	}

	s.remember(ctx, chainID, addr, *md)
	return *md, true
}

// Remember implements the port.TokenMetadataService interface.
func (s *tokenMetadataServiceImpl) Remember(ctx context.Context, md entity.TokenMetadata) {
	if !md.IsComplete() {
		return
	}
	s.remember(ctx, md.ChainID, strings.ToLower(md.Address), md)
}

// remember caches a resolved record. Placeholders and partial records are
// skipped so a transient upstream gap can heal on a later lookup.
func (s *tokenMetadataServiceImpl) remember(ctx context.Context, chainID, addr string, md entity.TokenMetadata) {
	if !md.IsComplete() {
		return
	}
	if err := s.cache.Set(ctx, cache.Key(chainID, addr), md); err != nil {
		s.logger.Warn("failed to cache token metadata",
			zap.String("chainId", chainID), zap.String("address", addr), zap.Error(err))
	}
}
