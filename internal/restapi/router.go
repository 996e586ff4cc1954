package restapi

import (
	"net/http"
	"strings"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// SetupRouter builds the Gin engine with CORS, structured request logging and
// all portfolio routes.
func SetupRouter(handler *PortfolioHandler, logger *zap.Logger) *gin.Engine {
	router := gin.New()

	corsConfig := cors.DefaultConfig()
	corsConfig.AllowAllOrigins = true
	corsConfig.AllowMethods = []string{"GET", "POST", "OPTIONS"}
	corsConfig.AllowHeaders = []string{"Origin", "Content-Type", "Accept", "Authorization"}
	router.Use(cors.New(corsConfig))
	router.Use(ZapLoggerMiddleware(logger))
	router.Use(gin.Recovery())

	v1 := router.Group("/api/v1")
	{
		v1.GET("/portfolio", handler.GetPortfolioHandler)
		v1.GET("/portfolio/solana/:address", handler.GetSolanaPortfolioHandler)
		v1.GET("/portfolio/evm/:address", handler.GetEVMPortfolioHandler)
		v1.GET("/portfolio/exchange/:address", handler.GetExchangePortfolioHandler)
	}

	router.GET("/health", func(c *gin.Context) { c.Status(http.StatusOK) })
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	return router
}

// isInvalidAddressError distinguishes caller mistakes (malformed wallet
// addresses) from upstream failures for status-code mapping.
func isInvalidAddressError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "invalid evm address") || strings.Contains(msg, "invalid solana address")
}
