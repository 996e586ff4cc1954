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

// HyperliquidClient reads exchange account state from the /info endpoint:
// spot balances, open perpetual positions and the all-symbols mid-price map.
type HyperliquidClient interface {
	GetSpotBalances(ctx context.Context, user string) ([]entity.SpotBalance, error)
	GetPerpPositions(ctx context.Context, user string) ([]entity.PerpPosition, error)
	GetAllMids(ctx context.Context) (map[string]float64, error)
}

type hyperliquidClientImpl struct {
	client  *fasthttp.Client
	baseURL string
	timeout time.Duration
	logger  *zap.Logger
}

// NewHyperliquidClient creates a client for the given exchange base URL.
func NewHyperliquidClient(baseURL string, timeout time.Duration, logger *zap.Logger) HyperliquidClient {
	return &hyperliquidClientImpl{
		client:  &fasthttp.Client{},
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		logger:  logger.Named("HyperliquidClient"),
	}
}

type infoRequest struct {
	Type string `json:"type"`
	User string `json:"user,omitempty"`
}

type spotStateResponse struct {
	Balances []spotBalanceRow `json:"balances"`
}

type spotBalanceRow struct {
	Coin  string `json:"coin"`
	Total string `json:"total"`
	Hold  string `json:"hold"`
}

type perpStateResponse struct {
	AssetPositions []assetPosition `json:"assetPositions"`
}

type assetPosition struct {
	Position perpPositionRow `json:"position"`
}

type perpPositionRow struct {
	Coin           string `json:"coin"`
	Szi            string `json:"szi"`
	EntryPx        string `json:"entryPx"`
	PositionValue  string `json:"positionValue"`
	UnrealizedPnl  string `json:"unrealizedPnl"`
	ReturnOnEquity string `json:"returnOnEquity"`
}

func (c *hyperliquidClientImpl) post(ctx context.Context, body infoRequest) ([]byte, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, fmt.Errorf("failed to encode info request: %w", err)
	}
	return doRequest(ctx, c.client, "hyperliquid", fasthttp.MethodPost, c.baseURL+"/info", payload, c.timeout)
}

// GetSpotBalances returns the account's spot balances.
func (c *hyperliquidClientImpl) GetSpotBalances(ctx context.Context, user string) ([]entity.SpotBalance, error) {
	raw, err := c.post(ctx, infoRequest{Type: "spotClearinghouseState", User: user})
	if err != nil {
		return nil, err
	}

	var resp spotStateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal spot clearinghouse state: %w", err)
	}

	balances := make([]entity.SpotBalance, 0, len(resp.Balances))
	for _, row := range resp.Balances {
		total, err := parseDecimal(row.Total, "total", row.Coin)
		if err != nil {
			return nil, err
		}
		hold, err := parseDecimal(row.Hold, "hold", row.Coin)
		if err != nil {
			return nil, err
		}
		balances = append(balances, entity.SpotBalance{Coin: row.Coin, Total: total, Hold: hold})
	}
	return balances, nil
}

// GetPerpPositions returns the account's open perpetual positions.
func (c *hyperliquidClientImpl) GetPerpPositions(ctx context.Context, user string) ([]entity.PerpPosition, error) {
	raw, err := c.post(ctx, infoRequest{Type: "clearinghouseState", User: user})
	if err != nil {
		return nil, err
	}

	var resp perpStateResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal clearinghouse state: %w", err)
	}

	positions := make([]entity.PerpPosition, 0, len(resp.AssetPositions))
	for _, ap := range resp.AssetPositions {
		row := ap.Position
		size, err := parseDecimal(row.Szi, "szi", row.Coin)
		if err != nil {
			return nil, err
		}
		entry, err := parseDecimal(row.EntryPx, "entryPx", row.Coin)
		if err != nil {
			return nil, err
		}
		value, err := parseDecimal(row.PositionValue, "positionValue", row.Coin)
		if err != nil {
			return nil, err
		}
		pnl, err := parseDecimal(row.UnrealizedPnl, "unrealizedPnl", row.Coin)
		if err != nil {
			return nil, err
		}
		roe, _ := strconv.ParseFloat(row.ReturnOnEquity, 64)
		positions = append(positions, entity.PerpPosition{
			Coin:           row.Coin,
			Size:           size,
			EntryPrice:     entry,
			PositionValue:  value,
			UnrealizedPnl:  pnl,
			ReturnOnEquity: roe,
		})
	}
	return positions, nil
}

// GetAllMids returns the mid price for every listed symbol.
func (c *hyperliquidClientImpl) GetAllMids(ctx context.Context) (map[string]float64, error) {
	raw, err := c.post(ctx, infoRequest{Type: "allMids"})
	if err != nil {
		return nil, err
	}

	var resp map[string]string
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal allMids response: %w", err)
	}

	mids := make(map[string]float64, len(resp))
	for coin, px := range resp {
		mid, err := strconv.ParseFloat(px, 64)
		if err != nil {
			return nil, fmt.Errorf("malformed mid price %q for %s: %w", px, coin, err)
		}
		mids[coin] = mid
	}
	return mids, nil
}

// parseDecimal parses one numeric field of the exchange payload. The venue
// encodes every number as a string; a non-numeric value is a schema error
// and fails the whole fetch.
func parseDecimal(raw, field, coin string) (float64, error) {
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, fmt.Errorf("malformed %s %q for %s: %w", field, raw, coin, err)
	}
	return v, nil
}
