package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.uber.org/zap"

	"token_sales/internal/config"
	"token_sales/internal/dispatch"
	"token_sales/internal/sales"
)

// Dependencies are the components the HTTP surface is built on. Journal is
// nil when the node runs without an event journal; the events route is then
// not registered.
type Dependencies struct {
	Service     *sales.Service
	Dispatcher  *dispatch.Dispatcher
	Journal     EventLister
	Logger      *zap.Logger
	RateLimit   config.RateLimitConfig
	Throttler   Throttler
	ServiceName string
}

// InitRoutes registers the submission and read endpoints on the given Gin
// engine.
func InitRoutes(e *gin.Engine, deps Dependencies) {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	serviceName := deps.ServiceName
	if serviceName == "" {
		serviceName = "token-sales"
	}

	e.Use(requestID(), otelgin.Middleware(serviceName), requestLogger(logger))

	salesHandler := NewSalesHandler(deps.Service, deps.Dispatcher, deps.Journal, logger)

	submit := []gin.HandlerFunc{salesHandler.handleSubmitTransaction}
	if deps.RateLimit.RequestsPerSecond > 0 {
		limiter := newRateLimiter(deps.RateLimit.RequestsPerSecond, deps.RateLimit.Burst, deps.Throttler)
		submit = append([]gin.HandlerFunc{limiter.middleware()}, submit...)
	}
	e.POST("/transactions", submit...)

	e.GET("/sales", salesHandler.handleSearchSales)
	e.GET("/sales/:address", salesHandler.handleGetSale)
	if deps.Journal != nil {
		e.GET("/sales/:address/events", salesHandler.handleGetEvents)
	}
	e.GET("/balances/:owner/:mint", salesHandler.handleGetBalance)

	e.GET("/metrics", gin.WrapH(promhttp.Handler()))
	e.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"message": "pong",
		})
	})
}
