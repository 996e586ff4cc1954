package restapi

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"portfolio_aggregator/internal/domain/entity"
	"portfolio_aggregator/internal/port"
	"portfolio_aggregator/internal/ratelimit"
)

// PortfolioHandler serves the portfolio resolution endpoints.
type PortfolioHandler struct {
	portfolioService port.PortfolioService
	solanaFetcher    port.ChainFetcher
	evmFetcher       port.ChainFetcher
	exchangeFetcher  port.ExchangeFetcher
	logger           *zap.Logger
}

// NewPortfolioHandler creates a new instance of PortfolioHandler.
func NewPortfolioHandler(
	portfolioService port.PortfolioService,
	solanaFetcher port.ChainFetcher,
	evmFetcher port.ChainFetcher,
	exchangeFetcher port.ExchangeFetcher,
	logger *zap.Logger,
) *PortfolioHandler {
	return &PortfolioHandler{
		portfolioService: portfolioService,
		solanaFetcher:    solanaFetcher,
		evmFetcher:       evmFetcher,
		exchangeFetcher:  exchangeFetcher,
		logger:           logger.Named("PortfolioHandler"),
	}
}

type errorResponse struct {
	Error string `json:"error"`
}

// GetPortfolioHandler resolves the combined cross-venue portfolio. Addresses
// are passed as query parameters; any subset may be present.
func (h *PortfolioHandler) GetPortfolioHandler(c *gin.Context) {
	req := entity.PortfolioRequest{
		SolanaAddress:   c.Query("solana"),
		EVMAddress:      c.Query("evm"),
		ExchangeAddress: c.Query("exchange"),
	}

	view, err := h.portfolioService.GetPortfolio(c.Request.Context(), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// GetSolanaPortfolioHandler returns the raw per-item holdings of one Solana
// wallet, before cross-chain aggregation.
func (h *PortfolioHandler) GetSolanaPortfolioHandler(c *gin.Context) {
	items, err := h.solanaFetcher.FetchPortfolio(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetEVMPortfolioHandler returns the raw holdings of one EVM wallet across
// all configured networks.
func (h *PortfolioHandler) GetEVMPortfolioHandler(c *gin.Context) {
	items, err := h.evmFetcher.FetchPortfolio(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

// GetExchangePortfolioHandler returns one exchange account's spot holdings
// and open positions.
func (h *PortfolioHandler) GetExchangePortfolioHandler(c *gin.Context) {
	portfolio, err := h.exchangeFetcher.FetchPortfolio(c.Request.Context(), c.Param("address"))
	if err != nil {
		h.fail(c, err)
		return
	}
	if portfolio == nil {
		portfolio = &entity.ExchangePortfolio{}
	}
	c.JSON(http.StatusOK, portfolio)
}

// fail maps pipeline errors to HTTP statuses: invalid input is the caller's
// fault, exhausted rate-limit budgets and other upstream failures are
// reported as bad gateway.
func (h *PortfolioHandler) fail(c *gin.Context, err error) {
	_ = c.Error(err)

	status := http.StatusBadGateway
	var statusErr *entity.StatusError
	switch {
	case errors.Is(err, ratelimit.ErrRetriesExhausted):
		status = http.StatusServiceUnavailable
	case errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusBadRequest:
		status = http.StatusBadRequest
	}
	if isInvalidAddressError(err) {
		status = http.StatusBadRequest
	}
	c.JSON(status, errorResponse{Error: err.Error()})
}
