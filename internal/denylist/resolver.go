package denylist

import (
	"context"
	"regexp"
	"strings"

	"go.uber.org/zap"

	"portfolio_aggregator/internal/cache"
	"portfolio_aggregator/internal/metrics"
)

// denylistSignals are the case-insensitive substrings that identify a
// permanent per-token rejection from the upstream token API.
var denylistSignals = []string{
	"deny list",
	"denylist",
	"is invalid",
}

// tokenRefPattern extracts the offending "chainID-address" pair from error
// text such as "Token 42161-0xabc123 is invalid or in deny list."
var tokenRefPattern = regexp.MustCompile(`(?i)token\s+([0-9a-z]+)-([0-9a-z]+)`)

// Resolver gates token lookups against a TTL-bounded denylist cache. A token
// that is structurally invalid upstream is asked for at most once per TTL
// window system-wide: every metadata call site consults IsDenylisted before
// issuing a request and reports failures through
// HandlePotentialDenylistError.
type Resolver struct {
	cache  *cache.ExpiringCache
	logger *zap.Logger
}

// NewResolver creates a Resolver over the given denylist cache instance.
func NewResolver(c *cache.ExpiringCache, logger *zap.Logger) *Resolver {
	return &Resolver{
		cache:  c,
		logger: logger.Named("Denylist"),
	}
}

// IsDenylisted reports whether the token is currently blocked. Cache errors
// degrade to "not blocked" so a broken cache never hides holdings.
func (r *Resolver) IsDenylisted(ctx context.Context, token, chainID string) bool {
	blocked, err := r.cache.Contains(ctx, cache.Key(chainID, token))
	if err != nil {
		r.logger.Warn("denylist lookup failed",
			zap.String("token", token),
			zap.String("chainId", chainID),
			zap.Error(err))
		return false
	}
	if blocked {
		metrics.DenylistBlocks.Inc()
	}
	return blocked
}

// Add blocks the token until the denylist TTL elapses.
func (r *Resolver) Add(ctx context.Context, token, chainID string) error {
	if err := r.cache.Set(ctx, cache.Key(chainID, token), true); err != nil {
		return err
	}
	metrics.DenylistAdditions.Inc()
	r.logger.Info("token added to denylist",
		zap.String("token", token),
		zap.String("chainId", chainID))
	return nil
}

// HandlePotentialDenylistError inspects an upstream error message and, when
// it carries a denylist signal, records the offending token. The token/chain
// pair is parsed out of the message where possible, falling back to the pair
// the caller was requesting. Returns true iff an entry was written.
func (r *Resolver) HandlePotentialDenylistError(ctx context.Context, errMsg, token, chainID string) bool {
	lower := strings.ToLower(errMsg)
	recognized := false
	for _, signal := range denylistSignals {
		if strings.Contains(lower, signal) {
			recognized = true
			break
		}
	}
	if !recognized {
		return false
	}

	if m := tokenRefPattern.FindStringSubmatch(errMsg); m != nil {
		chainID, token = m[1], m[2]
	}
	if token == "" || chainID == "" {
		r.logger.Warn("denylist signal without identifiable token", zap.String("error", errMsg))
		return false
	}

	if err := r.Add(ctx, token, chainID); err != nil {
		r.logger.Warn("failed to write denylist entry",
			zap.String("token", token),
			zap.String("chainId", chainID),
			zap.Error(err))
		return false
	}
	return true
}
