package client

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/valyala/fasthttp"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
)

// LiFiClient talks to the multi-chain token API: wallet balances batched
// across networks in one call (with inline metadata and USD prices where the
// upstream has them) and token lookup by address. The lookup endpoint is
// denylist-prone; its error bodies are surfaced verbatim so the denylist
// resolver can classify them.
type LiFiClient interface {
	GetWalletBalances(ctx context.Context, wallet string, chains []string) ([]entity.EVMTokenBalance, error)
	GetTokens(ctx context.Context, chainID string, addresses []string) (map[string]entity.TokenMetadata, error)
	GetToken(ctx context.Context, chainID, address string) (*entity.TokenMetadata, error)
}

type lifiClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewLiFiClient creates a client for the given API base URL.
func NewLiFiClient(baseURL string, timeout time.Duration, logger *zap.Logger) LiFiClient {
	return &lifiClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("LiFiClient"),
	}
}

// Wire types. The balances payload is validated strictly: a malformed row is
// a hard parsing failure for the whole fetch, never silently dropped.

type lifiBalancesResponse struct {
	Balances []lifiBalanceRow `json:"balances"`
}

type lifiBalanceRow struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI"`
	PriceUSD string `json:"priceUSD"`
	Amount   string `json:"amount"`
}

type lifiTokensResponse struct {
	Tokens map[string][]lifiToken `json:"tokens"`
}

type lifiToken struct {
	ChainID  int64  `json:"chainId"`
	Address  string `json:"address"`
	Name     string `json:"name"`
	Symbol   string `json:"symbol"`
	Decimals uint8  `json:"decimals"`
	LogoURI  string `json:"logoURI"`
}

// GetWalletBalances queries holdings across all requested networks in a
// single aggregated call.
func (c *lifiClientImpl) GetWalletBalances(ctx context.Context, wallet string, chains []string) ([]entity.EVMTokenBalance, error) {
	url := fmt.Sprintf("%s/balances?wallet=%s&chains=%s", c.baseURL, wallet, strings.Join(chains, ","))
	c.logger.Debug("Requesting wallet balances", zap.String("wallet", wallet), zap.Strings("chains", chains))

	raw, err := doRequest(ctx, c.client, "lifi", fasthttp.MethodGet, url, nil, c.timeout)
	if err != nil {
		return nil, err
	}

	var resp lifiBalancesResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal balances response: %w", err)
	}

	balances := make([]entity.EVMTokenBalance, 0, len(resp.Balances))
	for i, row := range resp.Balances {
		if err := row.validate(); err != nil {
			return nil, fmt.Errorf("malformed balances response (row %d): %w", i, err)
		}
		price, err := strconv.ParseFloat(row.PriceUSD, 64)
		if err != nil && row.PriceUSD != "" {
			return nil, fmt.Errorf("malformed balances response (row %d): bad priceUSD %q", i, row.PriceUSD)
		}
		balances = append(balances, entity.EVMTokenBalance{
			ChainID:  strconv.FormatInt(row.ChainID, 10),
			Address:  row.Address,
			Name:     row.Name,
			Symbol:   row.Symbol,
			Decimals: row.Decimals,
			LogoURI:  row.LogoURI,
			PriceUSD: price,
			Amount:   row.Amount,
		})
	}

	c.logger.Debug("Wallet balances fetched", zap.String("wallet", wallet), zap.Int("count", len(balances)))
	return balances, nil
}

func (r lifiBalanceRow) validate() error {
	if r.ChainID == 0 {
		return fmt.Errorf("missing chainId")
	}
	if r.Address == "" {
		return fmt.Errorf("missing token address")
	}
	if r.Amount == "" {
		return fmt.Errorf("missing amount for token %s", r.Address)
	}
	if _, err := strconv.ParseUint(r.Amount, 10, 64); err != nil {
		// Amounts can exceed uint64; only reject non-numeric strings.
		for _, ch := range r.Amount {
			if ch < '0' || ch > '9' {
				return fmt.Errorf("non-numeric amount %q for token %s", r.Amount, r.Address)
			}
		}
	}
	return nil
}

// GetTokens looks up metadata for a batch of token addresses on one chain.
// The result is keyed by lowercase address; addresses unknown upstream are
// simply absent.
func (c *lifiClientImpl) GetTokens(ctx context.Context, chainID string, addresses []string) (map[string]entity.TokenMetadata, error) {
	if len(addresses) == 0 {
		return map[string]entity.TokenMetadata{}, nil
	}
	url := fmt.Sprintf("%s/tokens?chains=%s&tokens=%s", c.baseURL, chainID, strings.Join(addresses, ","))

	raw, err := doRequest(ctx, c.client, "lifi", fasthttp.MethodGet, url, nil, c.timeout)
	if err != nil {
		return nil, err
	}

	var resp lifiTokensResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal tokens response: %w", err)
	}

	out := make(map[string]entity.TokenMetadata)
	for _, tokens := range resp.Tokens {
		for _, t := range tokens {
			if t.Address == "" {
				continue
			}
			out[strings.ToLower(t.Address)] = t.toMetadata(chainID)
		}
	}
	return out, nil
}

// GetToken looks up a single token by address. Upstream rejections come back
// as *entity.StatusError with the original body text.
func (c *lifiClientImpl) GetToken(ctx context.Context, chainID, address string) (*entity.TokenMetadata, error) {
	url := fmt.Sprintf("%s/token?chain=%s&token=%s", c.baseURL, chainID, address)

	raw, err := doRequest(ctx, c.client, "lifi", fasthttp.MethodGet, url, nil, c.timeout)
	if err != nil {
		return nil, err
	}

	var t lifiToken
	if err := json.Unmarshal(raw, &t); err != nil {
		return nil, fmt.Errorf("failed to unmarshal token response for %s: %w", address, err)
	}
	if t.Address == "" {
		return nil, fmt.Errorf("token response for %s is missing an address", address)
	}
	md := t.toMetadata(chainID)
	return &md, nil
}

func (t lifiToken) toMetadata(chainID string) entity.TokenMetadata {
	return entity.TokenMetadata{
		ChainID:  chainID,
		Address:  t.Address,
		Name:     t.Name,
		Symbol:   t.Symbol,
		Decimals: t.Decimals,
		LogoURI:  t.LogoURI,
	}
}
